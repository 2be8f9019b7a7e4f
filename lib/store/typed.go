package store

import (
	"context"
	"github.com/ValentinKolb/kvuri/lib/store/codec"
)

// Typed is a view of a Store that encodes values of type T with a codec.
//
// Usage:
//
//	sessions := store.NewTyped[Session](s, codec.NewJSONCodec())
//	err := sessions.Set(ctx, "abc", Session{User: "alice"})
//	sess, ok, err := sessions.Get(ctx, "abc")
type Typed[T any] struct {
	*Store
	codec codec.ICodec
}

// NewTyped creates a typed view of s. A nil codec selects json.
func NewTyped[T any](s *Store, c codec.ICodec) *Typed[T] {
	if c == nil {
		c = codec.NewJSONCodec()
	}
	return &Typed[T]{Store: s, codec: c}
}

// Get returns the decoded value for key.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	b, ok, err := t.Store.Get(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	var v T
	if err := t.codec.Decode(b, &v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Set encodes and stores value using the store's default ttl.
func (t *Typed[T]) Set(ctx context.Context, key string, value T) error {
	b, err := t.codec.Encode(value)
	if err != nil {
		return err
	}
	return t.Store.Set(ctx, key, b)
}
