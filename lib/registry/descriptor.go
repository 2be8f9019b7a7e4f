package registry

import (
	"net/url"
)

// NoPackage marks a descriptor for the built-in backend, no adapter package is loaded.
const NoPackage = ""

// Mode selects how an adapter is constructed.
type Mode uint8

const (
	// ModeOptions constructs the adapter from the merged option map alone (default).
	ModeOptions Mode = iota
	// ModeString constructs the adapter from the raw URI string plus the merged option map.
	ModeString
)

func (m Mode) String() string {
	switch m {
	case ModeOptions:
		return "options"
	case ModeString:
		return "string"
	default:
		return "unknown"
	}
}

// OptionsMapper derives additional adapter options from a parsed URI.
type OptionsMapper func(u *url.URL) (map[string]any, error)

// Descriptor describes how to obtain and construct the adapter for one scheme.
// Descriptors are values, a registry lookup always hands out a copy.
type Descriptor struct {
	// Package is the import path of the adapter module (NoPackage for the built-in backend)
	Package string
	// ExportName selects a named export of the module instead of its default export
	ExportName string
	// Mode selects how the adapter constructor is called
	Mode Mode
	// OptionsMapper optionally derives adapter options from the URI
	OptionsMapper OptionsMapper
}

// IsBuiltin reports whether the descriptor refers to the built-in backend.
func (d Descriptor) IsBuiltin() bool {
	return d.Package == NoPackage
}
