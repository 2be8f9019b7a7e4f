// Package common provides the building blocks shared by all kvuri packages:
// the typed resolution error, the factory configuration and the logger setup.
//
// The package focuses on:
//   - A single error type (Error) whose RetCode tells callers which step of a
//     resolution failed, usable with errors.Is against the exported sentinels
//   - Configuration of the factory (modules directory, install command, log level)
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Error: Carries a RetCode, a human-readable message naming the offending
//     URI, scheme or package, and optionally the underlying cause. Errors are
//     compared by code, so errors.Is(err, common.ErrUnknownProtocol) works on
//     any error produced by a resolution.
//
//   - FactoryConfig: The knobs of the adapter loader. Filled from command line
//     flags and environment variables by the cmd package, or constructed in code
//     via DefaultFactoryConfig.
//
//   - Logger: All packages obtain their logger with logger.GetLogger(name). InitLoggers
//     installs the kvuri formatter and sets the level for every known logger.
package common
