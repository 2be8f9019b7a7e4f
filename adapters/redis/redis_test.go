package redis

import (
	"context"
	"github.com/ValentinKolb/kvuri/lib/store"
	storetesting "github.com/ValentinKolb/kvuri/lib/store/testing"
	"github.com/alicebob/miniredis/v2"
	"testing"
	"time"
)

func TestRedisAdapter(t *testing.T) {
	mr := miniredis.RunT(t)

	factory := func(t *testing.T) store.IAdapter {
		mr.FlushAll()
		a, err := New(context.Background(), "redis://"+mr.Addr()+"/0", nil)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return a
	}

	storetesting.RunAdapterTests(t, "Redis", factory, storetesting.WithAdvance(mr.FastForward))
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	t.Run("QueryOptions", func(t *testing.T) {
		a, err := New(ctx, "redis://"+mr.Addr()+"/2?namespace=x&pool_size=3", map[string]any{
			"namespace":    "x",
			"pool_size":    int64(3),
			"dial_timeout": int64(1500),
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		defer a.Close()

		opts := a.(*Adapter).client.Options()
		if opts.DB != 2 {
			t.Errorf("DB = %d, want 2", opts.DB)
		}
		if opts.PoolSize != 3 {
			t.Errorf("PoolSize = %d, want 3", opts.PoolSize)
		}
		if opts.DialTimeout != 1500*time.Millisecond {
			t.Errorf("DialTimeout = %s, want 1.5s", opts.DialTimeout)
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		_, err := New(ctx, "redis://127.0.0.1:1/0", map[string]any{"dial_timeout": 200})
		if err == nil {
			t.Error("expected connection error")
		}
	})

	t.Run("InvalidURI", func(t *testing.T) {
		for _, uri := range []string{"", "http://localhost", "redis://localhost/notadb"} {
			if _, err := New(ctx, uri, nil); err == nil {
				t.Errorf("expected error for %q", uri)
			}
		}
	})

	t.Run("InvalidOptions", func(t *testing.T) {
		_, err := New(ctx, "redis://"+mr.Addr(), map[string]any{"pool_size": "many"})
		if err == nil {
			t.Error("expected option error")
		}
	})
}

func TestEscapeGlob(t *testing.T) {
	tests := map[string]string{
		"ns:":    "ns:",
		"a*:":    `a\*:`,
		"q?[x]:": `q\?\[x\]:`,
		`back\`:  `back\\`,
	}
	for in, want := range tests {
		if got := escapeGlob(in); got != want {
			t.Errorf("escapeGlob(%q) = %q, want %q", in, got, want)
		}
	}
}
