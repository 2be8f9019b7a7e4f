// Package memory implements the built-in in-memory storage backend used for the
// memory:// scheme and whenever a store is created without an adapter.
//
// Data is held in an xsync.MapOf and is not persisted between process restarts.
// Expiration is checked on every read, expired entries are removed lazily.
// Values are copied on the way in and on the way out, so callers may reuse
// their buffers.
package memory
