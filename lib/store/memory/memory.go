package memory

import (
	"context"
	"github.com/puzpuzpuz/xsync/v3"
	"strings"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time // zero = never
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Adapter is the built-in in-memory storage backend.
// It is safe for concurrent use. Expired entries are removed lazily on access.
type Adapter struct {
	data *xsync.MapOf[string, entry]
	now  func() time.Time
}

// New creates a new, empty memory adapter.
func New() *Adapter {
	return &Adapter{
		data: xsync.NewMapOf[string, entry](),
		now:  time.Now,
	}
}

// NewWithClock creates a memory adapter that reads the time from now (used in tests).
func NewWithClock(now func() time.Time) *Adapter {
	a := New()
	a.now = now
	return a
}

// Len returns the number of stored entries, including expired entries not yet collected.
func (a *Adapter) Len() int {
	return a.data.Size()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (a *Adapter) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := a.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(a.now()) {
		a.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
			// only delete if the entry was not replaced in the meantime
			return old, loaded && old.expired(a.now())
		})
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (a *Adapter) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expires = a.now().Add(ttl)
	}
	a.data.Store(key, e)
	return nil
}

func (a *Adapter) Delete(_ context.Context, key string) (bool, error) {
	e, ok := a.data.LoadAndDelete(key)
	return ok && !e.expired(a.now()), nil
}

func (a *Adapter) Clear(_ context.Context, prefix string) error {
	if prefix == "" {
		a.data.Clear()
		return nil
	}
	a.data.Range(func(key string, _ entry) bool {
		if strings.HasPrefix(key, prefix) {
			a.data.Delete(key)
		}
		return true
	})
	return nil
}

func (a *Adapter) Close() error {
	return nil
}
