package loader

import (
	"errors"
	"fmt"
	"github.com/puzpuzpuz/xsync/v3"
	"os"
	"path/filepath"
	"plugin"
	"strings"
)

// ModuleGraph resolves adapter packages by import path.
type ModuleGraph interface {
	// TryLoad returns the module for pkg, or an error wrapping ErrModuleNotFound if it is not available.
	TryLoad(pkg string) (Module, error)
}

// --------------------------------------------------------------------------
// Linked modules (compiled into the binary)
// --------------------------------------------------------------------------

// Linked is a ModuleGraph of modules compiled into the binary.
// Adapter packages add themselves from init(), similar to database/sql drivers.
type Linked struct {
	modules *xsync.MapOf[string, Module]
}

// NewLinked creates an empty linked graph.
func NewLinked() *Linked {
	return &Linked{modules: xsync.NewMapOf[string, Module]()}
}

// Link adds (or replaces) the module for pkg.
func (l *Linked) Link(pkg string, m Module) {
	l.modules.Store(pkg, m)
}

// TryLoad implements ModuleGraph.
func (l *Linked) TryLoad(pkg string) (Module, error) {
	if m, ok := l.modules.Load(pkg); ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s is not linked", ErrModuleNotFound, pkg)
}

// Packages returns the import paths of all linked modules.
func (l *Linked) Packages() []string {
	var pkgs []string
	l.modules.Range(func(pkg string, _ Module) bool {
		pkgs = append(pkgs, pkg)
		return true
	})
	return pkgs
}

var linked = NewLinked()

// Link adds a module to the process wide linked graph.
func Link(pkg string, m Module) {
	linked.Link(pkg, m)
}

// LinkedModules returns the process wide linked graph.
func LinkedModules() *Linked {
	return linked
}

// --------------------------------------------------------------------------
// Plugin modules (installed into a directory)
// --------------------------------------------------------------------------

// PluginDir is a ModuleGraph of Go plugins stored in a directory.
// A package is expected at PluginPath(Dir, pkg).
type PluginDir struct {
	Dir string
}

// PluginPath returns the file a plugin for pkg is stored at.
func PluginPath(dir, pkg string) string {
	name := strings.NewReplacer("/", "_", "@", "_").Replace(pkg)
	return filepath.Join(dir, name+".so")
}

// TryLoad implements ModuleGraph.
func (p PluginDir) TryLoad(pkg string) (Module, error) {
	path := PluginPath(p.Dir, pkg)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s not found in %s", ErrModuleNotFound, pkg, p.Dir)
	}

	pl, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open plugin %s: %w", path, err)
	}
	return pluginModule{pl}, nil
}

type pluginModule struct {
	p *plugin.Plugin
}

func (m pluginModule) Lookup(symbol string) (any, error) {
	sym, err := m.p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSymbolNotFound, err)
	}
	return sym, nil
}

// --------------------------------------------------------------------------
// Chain
// --------------------------------------------------------------------------

// Chain tries each graph in order and returns the first module found.
type Chain []ModuleGraph

// TryLoad implements ModuleGraph.
func (c Chain) TryLoad(pkg string) (Module, error) {
	var errs []error
	for _, g := range c {
		m, err := g.TryLoad(pkg)
		if err == nil {
			return m, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, pkg)
	}
	return nil, errors.Join(errs...)
}
