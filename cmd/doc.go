// Package cmd implements the command-line interface of kvuri. It opens
// key-value stores from connection URIs and provides commands to work with
// them and to inspect how URIs are resolved.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value store operations (get, set, delete, etc.) and a benchmark
//   - registry: Commands to list the registered schemes and to explain the resolution of a URI
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// The factory is configured by persistent flags or KVURI_* environment variables
// (e.g. KVURI_MODULES_DIR, KVURI_INSTALL_COMMAND, KVURI_URI).
//
// See kvuri -help for a list of all commands.
package cmd
