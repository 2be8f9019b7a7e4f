package registry

import (
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
	"strings"
)

var log = logger.GetLogger("registry")

// Registry maps URI schemes (always terminated by ':') to adapter descriptors.
// It is safe for concurrent use, concurrent registrations follow last-write-wins.
type Registry struct {
	entries *xsync.MapOf[string, Descriptor]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: xsync.NewMapOf[string, Descriptor](),
	}
}

// NewDefault creates a registry seeded with the built-in schemes (see builtin.go).
func NewDefault() *Registry {
	r := New()
	for scheme, d := range Builtin() {
		r.entries.Store(scheme, d)
	}
	return r
}

// Normalize appends ':' to scheme if it is missing.
func Normalize(scheme string) string {
	if strings.HasSuffix(scheme, ":") {
		return scheme
	}
	return scheme + ":"
}

// Register adds or overrides the descriptor for scheme.
// "x" and "x:" are equivalent.
func (r *Registry) Register(scheme string, d Descriptor) {
	scheme = Normalize(scheme)
	if _, replaced := r.entries.LoadAndStore(scheme, d); replaced {
		log.Infof("overriding adapter for %s with %q", scheme, d.Package)
	} else {
		log.Debugf("registered adapter for %s: %q", scheme, d.Package)
	}
}

// Lookup returns the descriptor for scheme (exact match on the normalized scheme).
func (r *Registry) Lookup(scheme string) (Descriptor, bool) {
	return r.entries.Load(Normalize(scheme))
}

// Snapshot returns a copy of all entries. Modifying it does not affect the registry.
func (r *Registry) Snapshot() map[string]Descriptor {
	out := make(map[string]Descriptor, r.entries.Size())
	r.entries.Range(func(scheme string, d Descriptor) bool {
		out[scheme] = d
		return true
	})
	return out
}

// Schemes returns all registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	schemes := make([]string, 0, r.entries.Size())
	r.entries.Range(func(scheme string, _ Descriptor) bool {
		schemes = append(schemes, scheme)
		return true
	})
	sort.Strings(schemes)
	return schemes
}
