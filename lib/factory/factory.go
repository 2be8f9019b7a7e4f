package factory

import (
	"context"
	"github.com/ValentinKolb/kvuri/lib/common"
	"github.com/ValentinKolb/kvuri/lib/loader"
	"github.com/ValentinKolb/kvuri/lib/registry"
	"github.com/ValentinKolb/kvuri/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("factory")

// Factory turns URIs into stores. It owns the protocol registry and the adapter loader,
// both are safe for concurrent use.
type Factory struct {
	registry *registry.Registry
	loader   *loader.Loader
}

// Option configures a Factory.
type Option func(*Factory)

// WithRegistry replaces the default registry.
func WithRegistry(r *registry.Registry) Option {
	return func(f *Factory) {
		f.registry = r
	}
}

// WithLoader replaces the loader built from the configuration.
func WithLoader(l *loader.Loader) Option {
	return func(f *Factory) {
		f.loader = l
	}
}

// New creates a factory with the built-in schemes and a loader configured by cfg.
func New(cfg common.FactoryConfig, opts ...Option) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	if f.registry == nil {
		f.registry = registry.NewDefault()
	}
	if f.loader == nil {
		f.loader = loader.NewFromConfig(cfg)
	}
	return f
}

// Registry returns the live registry of the factory.
func (f *Factory) Registry() *registry.Registry {
	return f.registry
}

// Loader returns the adapter loader of the factory.
func (f *Factory) Loader() *loader.Loader {
	return f.loader
}

// RegisterAdapter adds or replaces the descriptor for scheme ("x" and "x:" are equivalent).
func (f *Factory) RegisterAdapter(scheme string, d registry.Descriptor) {
	f.registry.Register(scheme, d)
}

// GetRegistry returns a copy of all registered descriptors.
func (f *Factory) GetRegistry() map[string]registry.Descriptor {
	return f.registry.Snapshot()
}

// ClearAdapterCache drops all loaded adapter constructors.
func (f *Factory) ClearAdapterCache() {
	f.loader.Clear()
}

// --------------------------------------------------------------------------
// Callback and Future
// --------------------------------------------------------------------------

// Callback receives the outcome of a resolution. Exactly one of s and err is non-nil.
type Callback func(s *store.Store, err error)

// Future is the pending result of a resolution. It settles exactly once.
type Future struct {
	done  chan struct{}
	store *store.Store
	err   error
}

// Done is closed when the future has settled.
func (fu *Future) Done() <-chan struct{} {
	return fu.done
}

// Wait blocks until the future settles or ctx is done.
// If ctx ends first, ctx.Err() is returned and the resolution keeps running; Wait may be called again.
func (fu *Future) Wait(ctx context.Context) (*store.Store, error) {
	select {
	case <-fu.done:
		return fu.store, fu.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CreateStore runs Open in the background.
//
// If cb is non-nil, the outcome is passed to cb and nil is returned.
// Otherwise a Future is returned that settles with the outcome.
func (f *Factory) CreateStore(ctx context.Context, uri string, opts *Options, cb Callback) *Future {
	if cb != nil {
		go func() {
			cb(f.Open(ctx, uri, opts))
		}()
		return nil
	}

	fu := &Future{done: make(chan struct{})}
	go func() {
		fu.store, fu.err = f.Open(ctx, uri, opts)
		close(fu.done)
	}()
	return fu
}
