package factory

import (
	"context"
	"github.com/ValentinKolb/kvuri/lib/common"
	"github.com/ValentinKolb/kvuri/lib/registry"
	"github.com/ValentinKolb/kvuri/lib/store"
	"sync"
)

var (
	defaultOnce    sync.Once
	defaultFactory *Factory
)

// Default returns the process wide factory, created with common.DefaultFactoryConfig on first use.
func Default() *Factory {
	defaultOnce.Do(func() {
		defaultFactory = New(common.DefaultFactoryConfig())
	})
	return defaultFactory
}

// CreateStore calls CreateStore on the default factory.
func CreateStore(ctx context.Context, uri string, opts *Options, cb Callback) *Future {
	return Default().CreateStore(ctx, uri, opts, cb)
}

// Open calls Open on the default factory.
func Open(ctx context.Context, uri string, opts *Options) (*store.Store, error) {
	return Default().Open(ctx, uri, opts)
}

// RegisterAdapter registers a descriptor with the default factory.
func RegisterAdapter(scheme string, d registry.Descriptor) {
	Default().RegisterAdapter(scheme, d)
}

// GetRegistry returns a copy of the default factory's registry.
func GetRegistry() map[string]registry.Descriptor {
	return Default().GetRegistry()
}

// ClearAdapterCache clears the adapter cache of the default factory.
func ClearAdapterCache() {
	Default().ClearAdapterCache()
}
