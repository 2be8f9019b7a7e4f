package factory

import (
	"context"
	"errors"
	"github.com/ValentinKolb/kvuri/lib/common"
	"github.com/ValentinKolb/kvuri/lib/loader"
	"github.com/ValentinKolb/kvuri/lib/registry"
	"github.com/ValentinKolb/kvuri/lib/store"
	"github.com/ValentinKolb/kvuri/lib/store/memory"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testPackage = "example.com/kvuri-test"

// recordingAdapter is a memory adapter that remembers whether it was closed.
type recordingAdapter struct {
	*memory.Adapter
	closed atomic.Bool
}

func (a *recordingAdapter) Close() error {
	a.closed.Store(true)
	return a.Adapter.Close()
}

// call is one recorded constructor invocation.
type call struct {
	uri     string
	options map[string]any
	adapter *recordingAdapter
}

// testEnv is a factory with a private linked graph holding one test adapter package.
type testEnv struct {
	f     *Factory
	loads atomic.Int32

	mu    sync.Mutex
	calls []call
	fail  error
}

func (e *testEnv) TryLoad(pkg string) (loader.Module, error) {
	e.loads.Add(1)
	if pkg != testPackage {
		return nil, loader.ErrModuleNotFound
	}
	return loader.Exports{
		loader.DefaultExport: loader.Constructor(e.construct),
		"Named":              loader.Constructor(e.construct),
	}, nil
}

func (e *testEnv) construct(_ context.Context, uri string, options map[string]any) (store.IAdapter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	a := &recordingAdapter{Adapter: memory.New()}
	e.calls = append(e.calls, call{uri: uri, options: options, adapter: a})
	return a, nil
}

func (e *testEnv) lastCall(t *testing.T) call {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.calls) == 0 {
		t.Fatal("adapter was not constructed")
	}
	return e.calls[len(e.calls)-1]
}

func newTestEnv() *testEnv {
	e := &testEnv{}
	e.f = New(common.DefaultFactoryConfig(), WithLoader(loader.New(e, nil, "")))
	e.f.RegisterAdapter("test", registry.Descriptor{
		Package:       testPackage,
		OptionsMapper: registry.ConnectionString("url"),
	})
	e.f.RegisterAdapter("teststr", registry.Descriptor{
		Package: testPackage,
		Mode:    registry.ModeString,
	})
	return e
}

// checkOutcome asserts that exactly one of s and err is set.
func checkOutcome(t *testing.T, s *store.Store, err error) {
	t.Helper()
	if (s == nil) == (err == nil) {
		t.Errorf("expected exactly one of store and error, got store=%v err=%v", s, err)
	}
}

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	f := newTestEnv().f

	t.Run("RoundTrip", func(t *testing.T) {
		s, err := f.Open(ctx, "memory://", nil)
		checkOutcome(t, s, err)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer s.Close()

		value := []byte{0, 1, 2, 'v', 0xff}
		if err := s.Set(ctx, "key", value); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, ok, err := s.Get(ctx, "key")
		if err != nil || !ok {
			t.Fatalf("Get failed: ok=%v err=%v", ok, err)
		}
		if string(got) != string(value) {
			t.Errorf("Get() = %v, want %v", got, value)
		}
	})

	t.Run("URIOptions", func(t *testing.T) {
		s, err := f.Open(ctx, "memory://?namespace=cache&ttl=1500", nil)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if s.Namespace() != "cache" {
			t.Errorf("Namespace() = %s, want cache", s.Namespace())
		}
		if s.TTL() != 1500*time.Millisecond {
			t.Errorf("TTL() = %s, want 1.5s", s.TTL())
		}
	})

	t.Run("CallerOptionsWin", func(t *testing.T) {
		s, err := f.Open(ctx, "memory://?namespace=cache&ttl=1500&mode=a", &Options{
			Namespace: "sessions",
			TTL:       time.Minute,
			Extra:     map[string]any{"mode": "b"},
		})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if s.Namespace() != "sessions" {
			t.Errorf("Namespace() = %s, want sessions", s.Namespace())
		}
		if s.TTL() != time.Minute {
			t.Errorf("TTL() = %s, want 1m", s.TTL())
		}
		if v, _ := s.Option("mode"); v != "b" {
			t.Errorf("Option(mode) = %v, want b", v)
		}
	})

	t.Run("NamespaceIsolation", func(t *testing.T) {
		shared := memory.New()
		a, err := f.Open(ctx, "memory://", &Options{Store: shared, Namespace: "a"})
		if err != nil {
			t.Fatal(err)
		}
		b, err := f.Open(ctx, "memory://", &Options{Store: shared, Namespace: "b"})
		if err != nil {
			t.Fatal(err)
		}

		if err := a.Set(ctx, "key", []byte("from a")); err != nil {
			t.Fatal(err)
		}
		if _, ok, _ := b.Get(ctx, "key"); ok {
			t.Error("namespace b sees a key of namespace a")
		}
		if err := b.Set(ctx, "key", []byte("from b")); err != nil {
			t.Fatal(err)
		}
		got, _, _ := a.Get(ctx, "key")
		if string(got) != "from a" {
			t.Errorf("namespace a got %q, want %q", got, "from a")
		}
		if err := b.Clear(ctx); err != nil {
			t.Fatal(err)
		}
		if ok, _ := a.Has(ctx, "key"); !ok {
			t.Error("clearing namespace b removed a key of namespace a")
		}
	})

	t.Run("DistinctStores", func(t *testing.T) {
		s1, err := f.Open(ctx, "memory://", nil)
		if err != nil {
			t.Fatal(err)
		}
		s2, err := f.Open(ctx, "memory://", nil)
		if err != nil {
			t.Fatal(err)
		}
		if s1 == s2 {
			t.Error("expected distinct stores")
		}
	})

	t.Run("InvalidOptions", func(t *testing.T) {
		s, err := f.Open(ctx, "memory://?ttl=soon", nil)
		checkOutcome(t, s, err)
		if !errors.Is(err, common.ErrAdapterConstruction) {
			t.Errorf("expected construction failure, got %v", err)
		}
	})
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownProtocol", func(t *testing.T) {
		f := newTestEnv().f
		s, err := f.Open(ctx, "madeup://host", nil)
		checkOutcome(t, s, err)
		if !errors.Is(err, common.ErrUnknownProtocol) {
			t.Fatalf("expected unknown protocol, got %v", err)
		}
		if !strings.Contains(err.Error(), "madeup:") {
			t.Errorf("expected scheme in message, got %q", err)
		}
		if !strings.Contains(err.Error(), "RegisterAdapter") {
			t.Errorf("expected registration hint in message, got %q", err)
		}
	})

	t.Run("InvalidURI", func(t *testing.T) {
		f := newTestEnv().f
		for _, uri := range []string{"not-a-valid-uri", "://missing-scheme", ""} {
			s, err := f.Open(ctx, uri, nil)
			checkOutcome(t, s, err)
			if !errors.Is(err, common.ErrInvalidURI) {
				t.Fatalf("%q: expected invalid URI, got %v", uri, err)
			}
			if !strings.Contains(err.Error(), "Invalid URI: "+uri) {
				t.Errorf("expected URI in message, got %q", err)
			}
		}
	})

	t.Run("LoadFailure", func(t *testing.T) {
		e := newTestEnv()
		e.f.RegisterAdapter("missing", registry.Descriptor{Package: "example.com/not-there"})
		s, err := e.f.Open(ctx, "missing://host", nil)
		checkOutcome(t, s, err)
		if !errors.Is(err, common.ErrAdapterLoad) {
			t.Fatalf("expected load failure, got %v", err)
		}
		if !strings.Contains(err.Error(), "example.com/not-there") {
			t.Errorf("expected package in message, got %q", err)
		}
	})

	t.Run("ConstructorFailure", func(t *testing.T) {
		e := newTestEnv()
		cause := errors.New("connection refused")
		e.fail = cause
		s, err := e.f.Open(ctx, "test://host", nil)
		checkOutcome(t, s, err)
		if !errors.Is(err, common.ErrAdapterConstruction) {
			t.Fatalf("expected construction failure, got %v", err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("expected cause to be wrapped, got %v", err)
		}
	})

	t.Run("StoreFailureClosesAdapter", func(t *testing.T) {
		e := newTestEnv()
		s, err := e.f.Open(ctx, "test://host", &Options{TTL: -time.Second})
		checkOutcome(t, s, err)
		if !errors.Is(err, common.ErrAdapterConstruction) {
			t.Fatalf("expected construction failure, got %v", err)
		}
		if !e.lastCall(t).adapter.closed.Load() {
			t.Error("expected adapter to be closed")
		}
	})

	t.Run("MapperFailure", func(t *testing.T) {
		e := newTestEnv()
		e.f.RegisterAdapter("badmap", registry.Descriptor{
			Package: testPackage,
			OptionsMapper: func(*url.URL) (map[string]any, error) {
				return nil, errors.New("no mapping")
			},
		})
		s, err := e.f.Open(ctx, "badmap://host", nil)
		checkOutcome(t, s, err)
		if !errors.Is(err, common.ErrAdapterConstruction) {
			t.Fatalf("expected construction failure, got %v", err)
		}
	})

	t.Run("PassthroughFailure", func(t *testing.T) {
		f := newTestEnv().f
		s, err := f.Open(ctx, "memory://", &Options{Store: memory.New(), TTL: -time.Second})
		checkOutcome(t, s, err)
		if !errors.Is(err, common.ErrPassthroughConstruction) {
			t.Fatalf("expected passthrough failure, got %v", err)
		}
	})
}

func TestOpenAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("MergePrecedence", func(t *testing.T) {
		e := newTestEnv()
		uri := "test://db.local/data?url=ignored&a=1&b=uri&c=true&store=x"
		s, err := e.f.Open(ctx, uri, &Options{
			Namespace: "ns",
			Extra:     map[string]any{"b": "caller", "d": 2.5},
		})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}

		got := e.lastCall(t).options
		want := map[string]any{
			"url":       uri,
			"a":         int64(1),
			"b":         "caller",
			"c":         true,
			"d":         2.5,
			"namespace": "ns",
		}
		if len(got) != len(want) {
			t.Errorf("options = %#v, want %#v", got, want)
		}
		for k, v := range want {
			if got[k] != v {
				t.Errorf("options[%s] = %#v, want %#v", k, got[k], v)
			}
		}
		if _, ok := got[store.KeyStore]; ok {
			t.Error("store key was not stripped")
		}
		if s.Namespace() != "ns" {
			t.Errorf("Namespace() = %s, want ns", s.Namespace())
		}
	})

	t.Run("CallerBeatsMapper", func(t *testing.T) {
		e := newTestEnv()
		_, err := e.f.Open(ctx, "test://host", &Options{Extra: map[string]any{"url": "override"}})
		if err != nil {
			t.Fatal(err)
		}
		if got := e.lastCall(t).options["url"]; got != "override" {
			t.Errorf("options[url] = %v, want override", got)
		}
	})

	t.Run("StoreUsesCallerOptionsOnly", func(t *testing.T) {
		e := newTestEnv()
		s, err := e.f.Open(ctx, "test://host?namespace=fromuri", nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := e.lastCall(t).options["namespace"]; got != "fromuri" {
			t.Errorf("adapter options[namespace] = %v, want fromuri", got)
		}
		if s.Namespace() != store.DefaultNamespace {
			t.Errorf("Namespace() = %s, want %s", s.Namespace(), store.DefaultNamespace)
		}
	})

	t.Run("Modes", func(t *testing.T) {
		e := newTestEnv()
		if _, err := e.f.Open(ctx, "test://host/a", nil); err != nil {
			t.Fatal(err)
		}
		if got := e.lastCall(t).uri; got != "" {
			t.Errorf("options mode received uri %q", got)
		}
		if _, err := e.f.Open(ctx, "teststr://host/a?x=1", nil); err != nil {
			t.Fatal(err)
		}
		if got := e.lastCall(t).uri; got != "teststr://host/a?x=1" {
			t.Errorf("string mode received uri %q", got)
		}
	})

	t.Run("NamedExport", func(t *testing.T) {
		e := newTestEnv()
		e.f.RegisterAdapter("named", registry.Descriptor{Package: testPackage, ExportName: "Named"})
		e.f.RegisterAdapter("unnamed", registry.Descriptor{Package: testPackage, ExportName: "Unknown"})
		if _, err := e.f.Open(ctx, "named://host", nil); err != nil {
			t.Fatal(err)
		}
		if _, err := e.f.Open(ctx, "unnamed://host", nil); !errors.Is(err, common.ErrAdapterLoad) {
			t.Errorf("expected load failure for missing export, got %v", err)
		}
	})

	t.Run("Passthrough", func(t *testing.T) {
		e := newTestEnv()
		adapter := memory.New()
		// the URI is not even parsed
		s, err := e.f.Open(ctx, "not-a-valid-uri", &Options{Store: adapter, Namespace: "p"})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if s.Adapter() != adapter {
			t.Error("expected caller adapter to be used")
		}
		if e.loads.Load() != 0 {
			t.Error("passthrough must not load adapters")
		}
	})

	t.Run("ClearAdapterCache", func(t *testing.T) {
		e := newTestEnv()

		e.f.ClearAdapterCache()
		if _, err := e.f.Open(ctx, "test://host", nil); err != nil {
			t.Fatal(err)
		}
		if _, err := e.f.Open(ctx, "test://host", nil); err != nil {
			t.Fatal(err)
		}
		if got := e.loads.Load(); got != 1 {
			t.Errorf("expected cached constructor, got %d loads", got)
		}

		e.f.ClearAdapterCache()
		if _, err := e.f.Open(ctx, "test://host", nil); err != nil {
			t.Fatal(err)
		}
		e.f.ClearAdapterCache()
		if _, err := e.f.Open(ctx, "test://host", nil); err != nil {
			t.Fatal(err)
		}
		if got := e.loads.Load(); got != 3 {
			t.Errorf("expected a local load after each clear, got %d loads", got)
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		e := newTestEnv()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := e.f.Open(ctx, "test://host", nil)
				checkOutcome(t, s, err)
			}()
		}
		wg.Wait()
	})
}

func TestRegistryAPI(t *testing.T) {
	f := newTestEnv().f

	f.RegisterAdapter("x", registry.Descriptor{Package: "example.com/x"})
	f.RegisterAdapter("y:", registry.Descriptor{Package: "example.com/y"})

	snapshot := f.GetRegistry()
	if d, ok := snapshot["x:"]; !ok || d.Package != "example.com/x" {
		t.Errorf("expected x: in registry, got %v", d)
	}
	if _, ok := snapshot["y:"]; !ok {
		t.Error("expected y: in registry")
	}
	if _, ok := snapshot["memory:"]; !ok {
		t.Error("expected built-in memory: in registry")
	}

	// the snapshot is a copy
	delete(snapshot, "x:")
	if _, ok := f.GetRegistry()["x:"]; !ok {
		t.Error("mutating the snapshot changed the registry")
	}
}

func TestDescribe(t *testing.T) {
	f := newTestEnv().f

	cwd := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(cwd); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)
	cwd, _ = os.Getwd()

	req, err := f.Describe("file://./data/kv.json?pretty=true", nil)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if req.Scheme != "file:" {
		t.Errorf("Scheme = %s, want file:", req.Scheme)
	}
	if req.Descriptor.ExportName != "File" {
		t.Errorf("ExportName = %s, want File", req.Descriptor.ExportName)
	}
	want := filepath.Join(cwd, "data", "kv.json")
	if got := req.Merged["filename"]; got != want {
		t.Errorf("filename = %v, want %s", got, want)
	}
	if got := req.Merged["pretty"]; got != true {
		t.Errorf("pretty = %v, want true", got)
	}
	if _, err := os.Stat(filepath.Dir(want)); err != nil {
		t.Errorf("expected parent directory to exist: %v", err)
	}

	req, err = f.Describe("postgres://user@db/app?sslmode=disable", &Options{TTL: time.Second})
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if got := req.Merged["uri"]; got != "postgres://user@db/app?sslmode=disable" {
		t.Errorf("uri = %v", got)
	}
	if got := req.Merged["ttl"]; got != int64(1000) {
		t.Errorf("ttl = %#v, want int64(1000)", got)
	}

	if _, err := f.Describe("madeup://x", nil); !errors.Is(err, common.ErrUnknownProtocol) {
		t.Errorf("expected unknown protocol, got %v", err)
	}
}

func TestCreateStore(t *testing.T) {
	ctx := context.Background()
	f := newTestEnv().f

	t.Run("Callback", func(t *testing.T) {
		done := make(chan struct{})
		var calls atomic.Int32
		fu := f.CreateStore(ctx, "memory://", nil, func(s *store.Store, err error) {
			calls.Add(1)
			checkOutcome(t, s, err)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			close(done)
		})
		if fu != nil {
			t.Error("callback mode must not return a future")
		}
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("callback was not called")
		}
		if calls.Load() != 1 {
			t.Errorf("callback called %d times", calls.Load())
		}
	})

	t.Run("CallbackError", func(t *testing.T) {
		errs := make(chan error, 1)
		f.CreateStore(ctx, "madeup://x", nil, func(s *store.Store, err error) {
			checkOutcome(t, s, err)
			errs <- err
		})
		select {
		case err := <-errs:
			if !errors.Is(err, common.ErrUnknownProtocol) {
				t.Errorf("expected unknown protocol, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("callback was not called")
		}
	})

	t.Run("Future", func(t *testing.T) {
		fu := f.CreateStore(ctx, "memory://?namespace=fut", nil, nil)
		if fu == nil {
			t.Fatal("expected a future")
		}
		s, err := fu.Wait(ctx)
		checkOutcome(t, s, err)
		if err != nil {
			t.Fatal(err)
		}
		if s.Namespace() != "fut" {
			t.Errorf("Namespace() = %s, want fut", s.Namespace())
		}

		// settled futures return the same outcome again
		<-fu.Done()
		again, _ := fu.Wait(ctx)
		if again != s {
			t.Error("future settled twice")
		}
	})

	t.Run("FutureError", func(t *testing.T) {
		s, err := f.CreateStore(ctx, "not-a-valid-uri", nil, nil).Wait(ctx)
		checkOutcome(t, s, err)
		if !errors.Is(err, common.ErrInvalidURI) {
			t.Errorf("expected invalid URI, got %v", err)
		}
	})

	t.Run("WaitCancelled", func(t *testing.T) {
		fu := &Future{done: make(chan struct{})}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := fu.Wait(cctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("DistinctStores", func(t *testing.T) {
		a, _ := f.CreateStore(ctx, "memory://", nil, nil).Wait(ctx)
		b, _ := f.CreateStore(ctx, "memory://", nil, nil).Wait(ctx)
		if a == nil || a == b {
			t.Error("expected distinct stores per call")
		}
	})
}

func TestDefaultFactory(t *testing.T) {
	ctx := context.Background()

	if Default() != Default() {
		t.Error("expected one default factory")
	}

	RegisterAdapter("defaulttest", registry.Descriptor{Package: registry.NoPackage})
	if _, ok := GetRegistry()["defaulttest:"]; !ok {
		t.Error("expected defaulttest: in default registry")
	}

	s, err := Open(ctx, "defaulttest://", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	s, err = CreateStore(ctx, "memory://", nil, nil).Wait(ctx)
	if err != nil || s == nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	ClearAdapterCache()
	if Default().Loader().Len() != 0 {
		t.Error("expected empty adapter cache")
	}
}
