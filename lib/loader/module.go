package loader

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvuri/lib/store"
)

// DefaultExport is the symbol looked up when no export name is given.
const DefaultExport = "Default"

var (
	// ErrModuleNotFound is returned by a ModuleGraph when a package is not available.
	ErrModuleNotFound = errors.New("module not found")
	// ErrSymbolNotFound is returned by a Module when it has no such export.
	ErrSymbolNotFound = errors.New("symbol not found")
)

// Constructor creates an adapter. For descriptors in string mode uri is the raw URI,
// otherwise it is empty and options carry everything the adapter needs.
type Constructor func(ctx context.Context, uri string, options map[string]any) (store.IAdapter, error)

// Lookup makes a bare Constructor usable as a Module without exports.
// Export selection falls back to the module itself in that case.
func (c Constructor) Lookup(symbol string) (any, error) {
	return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
}

// Module is a loaded adapter package.
type Module interface {
	// Lookup returns the exported symbol with the given name.
	Lookup(symbol string) (any, error)
}

// Exports is a Module backed by a map of symbol names to constructors.
// Adapter packages link themselves as Exports, with the default constructor under DefaultExport.
type Exports map[string]any

func (e Exports) Lookup(symbol string) (any, error) {
	sym, ok := e[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return sym, nil
}

// SelectExport returns the constructor exported by mod.
// A non empty export selects the named symbol. Otherwise DefaultExport is used,
// falling back to the module itself if it is a Constructor.
func SelectExport(mod Module, export string) (Constructor, error) {
	name := export
	if name == "" {
		name = DefaultExport
	}

	sym, err := mod.Lookup(name)
	if err != nil {
		if export == "" {
			if c, ok := mod.(Constructor); ok && c != nil {
				return c, nil
			}
		}
		return nil, err
	}

	c, ok := asConstructor(sym)
	if !ok {
		return nil, fmt.Errorf("symbol %s has type %T, not a constructor", name, sym)
	}
	return c, nil
}

// asConstructor accepts constructors, plain funcs with the constructor signature
// and pointers to either (plugin variables are looked up as pointers).
func asConstructor(sym any) (Constructor, bool) {
	switch c := sym.(type) {
	case Constructor:
		return c, c != nil
	case *Constructor:
		if c != nil && *c != nil {
			return *c, true
		}
	case func(context.Context, string, map[string]any) (store.IAdapter, error):
		return c, c != nil
	case *func(context.Context, string, map[string]any) (store.IAdapter, error):
		if c != nil && *c != nil {
			return *c, true
		}
	}
	return nil, false
}
