package store

import (
	"context"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IAdapter is the interface every storage backend implements.
// The Store wraps an adapter and adds namespacing and a default ttl,
// so adapters only ever see fully qualified keys.
type IAdapter interface {
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	// Expired entries must be reported as not found.
	Get(ctx context.Context, key string) (value []byte, loaded bool, err error)
	// Set inserts or updates a key–value pair. A ttl of zero means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (err error)
	// Delete removes a key–value pair. The boolean return value indicates whether the key existed.
	Delete(ctx context.Context, key string) (deleted bool, err error)
	// Clear removes all keys starting with prefix. An empty prefix removes everything.
	Clear(ctx context.Context, prefix string) (err error)
	// Close releases all resources held by the adapter.
	Close() (err error)
}
