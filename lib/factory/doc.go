/*
Package factory turns connection URIs into stores.

A resolution parses the URI, looks up the scheme in the registry, loads the adapter
package (installing it if needed) and constructs the adapter and the store:

	s, err := factory.Open(ctx, "redis://localhost:6379/0?namespace=sessions", nil)

	fu := factory.CreateStore(ctx, "sqlite:///var/lib/app/kv.db", &factory.Options{TTL: time.Hour}, nil)
	s, err := fu.Wait(ctx)

	factory.CreateStore(ctx, "memory://", nil, func(s *store.Store, err error) { ... })

Options are merged in this order, later wins: URI query, options mapper of the scheme, caller options.
Adapters receive the merged options. The store itself is configured by the caller options only,
except for built-in schemes (memory:) where the URI query applies too.

Every call returns a new store. All errors are *common.Error, use errors.Is with the sentinels
of package common to tell them apart.
*/
package factory
