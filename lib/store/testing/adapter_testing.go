package testing

import (
	"bytes"
	"context"
	"fmt"
	"github.com/ValentinKolb/kvuri/lib/store"
	"sync"
	"testing"
	"time"
)

// AdapterFactory creates a new, empty adapter for a single test.
type AdapterFactory func(t *testing.T) store.IAdapter

type suiteOptions struct {
	advance func(d time.Duration)
}

// Option configures the test suite.
type Option func(*suiteOptions)

// WithAdvance sets the function used to let time pass in expiry tests (default time.Sleep).
func WithAdvance(f func(d time.Duration)) Option {
	return func(o *suiteOptions) {
		o.advance = f
	}
}

// RunAdapterTests runs a comprehensive test suite for an IAdapter implementation.
func RunAdapterTests(t *testing.T, name string, factory AdapterFactory, opts ...Option) {
	o := &suiteOptions{advance: time.Sleep}
	for _, opt := range opts {
		opt(o)
	}

	run := func(t *testing.T, test func(t *testing.T, a store.IAdapter)) {
		a := factory(t)
		defer func() {
			if err := a.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		}()
		test(t, a)
	}

	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) { run(t, testSetGet) })
		t.Run("Missing", func(t *testing.T) { run(t, testMissing) })
		t.Run("Delete", func(t *testing.T) { run(t, testDelete) })
		t.Run("ClearPrefix", func(t *testing.T) { run(t, testClearPrefix) })
		t.Run("ClearAll", func(t *testing.T) { run(t, testClearAll) })
		t.Run("BinaryValues", func(t *testing.T) { run(t, testBinaryValues) })
		t.Run("Expiry", func(t *testing.T) {
			run(t, func(t *testing.T, a store.IAdapter) { testExpiry(t, a, o.advance) })
		})
		t.Run("Concurrent", func(t *testing.T) { run(t, testConcurrent) })
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, a store.IAdapter) {
	ctx := context.Background()
	key := "ns:test-key"

	if err := a.Set(ctx, key, []byte("value1"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := a.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() = %s, %v, %v; want value1, true, nil", v, ok, err)
	}
	if !bytes.Equal(v, []byte("value1")) {
		t.Errorf("Get() = %s, want value1", v)
	}

	if err := a.Set(ctx, key, []byte("value2"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, _, _ = a.Get(ctx, key)
	if !bytes.Equal(v, []byte("value2")) {
		t.Errorf("Get() after overwrite = %s, want value2", v)
	}
}

func testMissing(t *testing.T, a store.IAdapter) {
	v, ok, err := a.Get(context.Background(), "ns:nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || v != nil {
		t.Errorf("Get() of a missing key = %s, %v; want nil, false", v, ok)
	}
}

func testDelete(t *testing.T, a store.IAdapter) {
	ctx := context.Background()
	key := "ns:delete-me"

	_ = a.Set(ctx, key, []byte("v"), 0)
	deleted, err := a.Delete(ctx, key)
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v; want true, nil", deleted, err)
	}
	if _, ok, _ := a.Get(ctx, key); ok {
		t.Errorf("key still exists after Delete()")
	}
	deleted, err = a.Delete(ctx, key)
	if err != nil || deleted {
		t.Errorf("second Delete() = %v, %v; want false, nil", deleted, err)
	}
}

func testClearPrefix(t *testing.T, a store.IAdapter) {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = a.Set(ctx, fmt.Sprintf("a:%d", i), []byte("x"), 0)
		_ = a.Set(ctx, fmt.Sprintf("b:%d", i), []byte("y"), 0)
	}
	if err := a.Clear(ctx, "a:"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, ok, _ := a.Get(ctx, fmt.Sprintf("a:%d", i)); ok {
			t.Errorf("a:%d survived Clear(a:)", i)
		}
		if _, ok, _ := a.Get(ctx, fmt.Sprintf("b:%d", i)); !ok {
			t.Errorf("b:%d was removed by Clear(a:)", i)
		}
	}
}

func testClearAll(t *testing.T, a store.IAdapter) {
	ctx := context.Background()

	_ = a.Set(ctx, "a:1", []byte("x"), 0)
	_ = a.Set(ctx, "b:1", []byte("y"), 0)
	if err := a.Clear(ctx, ""); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	for _, k := range []string{"a:1", "b:1"} {
		if _, ok, _ := a.Get(ctx, k); ok {
			t.Errorf("%s survived Clear()", k)
		}
	}
}

func testBinaryValues(t *testing.T, a store.IAdapter) {
	ctx := context.Background()
	value := []byte{0x00, 0xff, 0x10, 0x00, 'a'}

	_ = a.Set(ctx, "ns:bin", value, 0)
	v, ok, err := a.Get(ctx, "ns:bin")
	if err != nil || !ok || !bytes.Equal(v, value) {
		t.Errorf("Get() = %v, %v, %v; want %v", v, ok, err, value)
	}

	_ = a.Set(ctx, "ns:empty", []byte{}, 0)
	v, ok, err = a.Get(ctx, "ns:empty")
	if err != nil || !ok || len(v) != 0 {
		t.Errorf("Get() of empty value = %v, %v, %v; want [], true, nil", v, ok, err)
	}
}

func testExpiry(t *testing.T, a store.IAdapter, advance func(time.Duration)) {
	ctx := context.Background()

	_ = a.Set(ctx, "ns:short", []byte("v"), time.Second)
	_ = a.Set(ctx, "ns:forever", []byte("v"), 0)
	if _, ok, _ := a.Get(ctx, "ns:short"); !ok {
		t.Fatalf("key with ttl missing before expiry")
	}

	advance(1500 * time.Millisecond)

	if _, ok, _ := a.Get(ctx, "ns:short"); ok {
		t.Errorf("key with ttl still present after expiry")
	}
	if _, ok, _ := a.Get(ctx, "ns:forever"); !ok {
		t.Errorf("key without ttl expired")
	}
}

func testConcurrent(t *testing.T, a store.IAdapter) {
	ctx := context.Background()
	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("ns:%d-%d", w, i)
				if err := a.Set(ctx, key, []byte(key), 0); err != nil {
					t.Errorf("Set(%s) error = %v", key, err)
					return
				}
				v, ok, err := a.Get(ctx, key)
				if err != nil || !ok || string(v) != key {
					t.Errorf("Get(%s) = %s, %v, %v", key, v, ok, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
}
