// Package store provides the key-value client returned by the kvuri factory and
// the adapter interface every storage backend implements.
//
// The package focuses on:
//   - A unified adapter interface (IAdapter) for get/set/delete/clear across backends
//   - A client (Store) that adds namespacing and a default ttl on top of an adapter
//   - Decoding of untyped option maps (as produced from URIs) into a typed Config
//
// Key Components:
//
//   - IAdapter: The core abstraction implemented by the built-in memory backend
//     (lib/store/memory) and by the adapter packages (adapters/...). Adapters see
//     fully qualified keys ("<namespace>:<key>") and clear by prefix.
//
//   - Store: Wraps an adapter. All keys are prefixed with the namespace, so two
//     stores with different namespaces never observe each other's keys, even when
//     they share one adapter. Set uses the store's default ttl, SetWithTTL overrides it.
//
//   - Config: Namespace, TTL and Extra (all option keys the store does not interpret).
//     ConfigFromMap decodes option maps weakly typed, ttl values are milliseconds.
//
//   - Typed: A generic view of a Store that encodes values with a codec.ICodec
//     (json or gob, see lib/store/codec).
//
// Usage Example:
//
//	s, err := store.New(store.Config{Namespace: "sessions", TTL: time.Minute})
//	err = s.Set(ctx, "abc", []byte("alice"))
//	value, ok, err := s.Get(ctx, "abc")
package store
