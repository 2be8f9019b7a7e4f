package store

import (
	"context"
	"errors"
	"github.com/ValentinKolb/kvuri/lib/store/memory"
	"github.com/lni/dragonboat/v4/logger"
	"sync/atomic"
	"time"
)

var log = logger.GetLogger("store")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is the key-value client handed out by the factory.
// It wraps an IAdapter and scopes all keys by namespace, so two stores with different
// namespaces never observe each other's keys even if they share an adapter.
type Store struct {
	adapter   IAdapter
	namespace string
	ttl       time.Duration
	extra     map[string]any
	closed    atomic.Bool
}

// New creates a new store from the given configuration.
// A nil adapter selects the built-in memory backend.
func New(conf Config) (*Store, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	adapter := conf.Adapter
	if adapter == nil {
		adapter = memory.New()
	}

	namespace := conf.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	log.Debugf("created store (namespace=%s, ttl=%s, adapter=%T)", namespace, conf.TTL, adapter)

	return &Store{
		adapter:   adapter,
		namespace: namespace,
		ttl:       conf.TTL,
		extra:     conf.Extra,
	}, nil
}

// NewFromMap decodes options with ConfigFromMap and creates a store around adapter.
func NewFromMap(adapter IAdapter, options map[string]any) (*Store, error) {
	conf, err := ConfigFromMap(adapter, options)
	if err != nil {
		return nil, err
	}
	return New(conf)
}

// key returns the fully qualified key for the adapter
func (s *Store) key(key string) string {
	return s.namespace + ":" + key
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Namespace returns the namespace of the store.
func (s *Store) Namespace() string { return s.namespace }

// TTL returns the default ttl of the store.
func (s *Store) TTL() time.Duration { return s.ttl }

// Adapter returns the underlying adapter.
func (s *Store) Adapter() IAdapter { return s.adapter }

// Option returns an option that was passed to the store but not interpreted by it.
func (s *Store) Option(key string) (any, bool) {
	v, ok := s.extra[key]
	return v, ok
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	return s.adapter.Get(ctx, s.key(key))
}

// Has returns whether a (non expired) value exists for key.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Set stores a value using the default ttl of the store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

// SetWithTTL stores a value with an explicit ttl (0 = never expires).
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if ttl < 0 {
		return errors.New("ttl must not be negative")
	}
	return s.adapter.Set(ctx, s.key(key), value, ttl)
}

// Delete removes a key. The boolean return value indicates whether the key existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	return s.adapter.Delete(ctx, s.key(key))
}

// Clear removes all keys of the store's namespace.
func (s *Store) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.adapter.Clear(ctx, s.namespace+":")
}

// Close closes the underlying adapter. Calling Close more than once is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.adapter.Close()
}
