package loader

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvuri/lib/common"
	"github.com/ValentinKolb/kvuri/lib/store"
	"github.com/ValentinKolb/kvuri/lib/store/memory"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeGraph reports a package as missing until installed is set.
type fakeGraph struct {
	mod       Module
	installed atomic.Bool
	loads     atomic.Int32
}

func (g *fakeGraph) TryLoad(pkg string) (Module, error) {
	g.loads.Add(1)
	if !g.installed.Load() {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, pkg)
	}
	return g.mod, nil
}

// fakeInstaller marks the graph as installed, or fails with err.
type fakeInstaller struct {
	graph *fakeGraph
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (i *fakeInstaller) Install(_ context.Context, _, _ string) error {
	i.calls.Add(1)
	time.Sleep(i.delay)
	if i.err != nil {
		return i.err
	}
	i.graph.installed.Store(true)
	return nil
}

func newMemoryAdapter(context.Context, string, map[string]any) (store.IAdapter, error) {
	return memory.New(), nil
}

func TestLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("LocalLoadAndCache", func(t *testing.T) {
		g := &fakeGraph{mod: Exports{DefaultExport: Constructor(newMemoryAdapter)}}
		g.installed.Store(true)
		inst := &fakeInstaller{graph: g}
		l := New(g, inst, t.TempDir())

		for i := 0; i < 3; i++ {
			c, err := l.Load(ctx, "example.com/adapter", "")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if c == nil {
				t.Fatal("expected a constructor")
			}
		}
		if got := g.loads.Load(); got != 1 {
			t.Errorf("expected 1 local load, got %d", got)
		}
		if got := inst.calls.Load(); got != 0 {
			t.Errorf("expected no install, got %d", got)
		}
		if !l.Cached("example.com/adapter", "") {
			t.Error("expected constructor to be cached")
		}
	})

	t.Run("InstallThenRetry", func(t *testing.T) {
		g := &fakeGraph{mod: Exports{DefaultExport: Constructor(newMemoryAdapter)}}
		inst := &fakeInstaller{graph: g}
		l := New(g, inst, t.TempDir())

		if _, err := l.Load(ctx, "example.com/adapter", ""); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got := inst.calls.Load(); got != 1 {
			t.Errorf("expected 1 install, got %d", got)
		}
		if got := g.loads.Load(); got != 2 {
			t.Errorf("expected 2 load attempts, got %d", got)
		}

		// cached now
		if _, err := l.Load(ctx, "example.com/adapter", ""); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got := inst.calls.Load(); got != 1 {
			t.Errorf("expected install to run once, got %d", got)
		}
	})

	t.Run("ClearForcesLocalLoad", func(t *testing.T) {
		g := &fakeGraph{mod: Exports{DefaultExport: Constructor(newMemoryAdapter)}}
		g.installed.Store(true)
		l := New(g, nil, "")

		if _, err := l.Load(ctx, "example.com/adapter", ""); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		l.Clear()
		if l.Len() != 0 {
			t.Errorf("expected empty cache after Clear, got %d", l.Len())
		}
		if _, err := l.Load(ctx, "example.com/adapter", ""); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got := g.loads.Load(); got != 2 {
			t.Errorf("expected 2 local loads, got %d", got)
		}
	})

	t.Run("InstallFailureNotCached", func(t *testing.T) {
		g := &fakeGraph{mod: Exports{DefaultExport: Constructor(newMemoryAdapter)}}
		installErr := errors.New("network down")
		inst := &fakeInstaller{graph: g, err: installErr}
		l := New(g, inst, t.TempDir())

		_, err := l.Load(ctx, "example.com/adapter", "")
		if !errors.Is(err, common.ErrAdapterLoad) {
			t.Fatalf("expected adapter load error, got %v", err)
		}
		if !errors.Is(err, installErr) {
			t.Errorf("expected install error to be wrapped, got %v", err)
		}
		if l.Len() != 0 {
			t.Errorf("failure must not be cached")
		}

		// a second attempt tries to install again and now succeeds
		inst.err = nil
		if _, err := l.Load(ctx, "example.com/adapter", ""); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got := inst.calls.Load(); got != 2 {
			t.Errorf("expected 2 installs, got %d", got)
		}
	})

	t.Run("StillMissingAfterInstall", func(t *testing.T) {
		g := &fakeGraph{}
		inst := InstallerFunc(func(context.Context, string, string) error { return nil })
		l := New(g, inst, t.TempDir())

		_, err := l.Load(ctx, "example.com/adapter", "")
		if !errors.Is(err, common.ErrAdapterLoad) {
			t.Fatalf("expected adapter load error, got %v", err)
		}
		if !errors.Is(err, ErrModuleNotFound) {
			t.Errorf("expected module not found cause, got %v", err)
		}
		if got := g.loads.Load(); got != 2 {
			t.Errorf("expected exactly one retry, got %d loads", got)
		}
	})

	t.Run("InstallDisabled", func(t *testing.T) {
		l := New(&fakeGraph{}, nil, "")
		_, err := l.Load(ctx, "example.com/adapter", "")
		if !errors.Is(err, common.ErrAdapterLoad) {
			t.Fatalf("expected adapter load error, got %v", err)
		}
	})

	t.Run("NoPackage", func(t *testing.T) {
		l := New(&fakeGraph{}, nil, "")
		if _, err := l.Load(ctx, "", ""); !errors.Is(err, common.ErrAdapterLoad) {
			t.Fatalf("expected adapter load error, got %v", err)
		}
	})

	t.Run("ConcurrentInstallShared", func(t *testing.T) {
		g := &fakeGraph{mod: Exports{DefaultExport: Constructor(newMemoryAdapter)}}
		inst := &fakeInstaller{graph: g, delay: 50 * time.Millisecond}
		l := New(g, inst, t.TempDir())

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Load(ctx, "example.com/adapter", "")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}
		if got := inst.calls.Load(); got > 2 {
			t.Errorf("expected installs to be shared, got %d", got)
		}
		if l.Len() != 1 {
			t.Errorf("expected 1 cache entry, got %d", l.Len())
		}
	})

	t.Run("ExportsCachedSeparately", func(t *testing.T) {
		mod := Exports{
			DefaultExport: Constructor(newMemoryAdapter),
			"Other":       Constructor(newMemoryAdapter),
		}
		g := &fakeGraph{mod: mod}
		g.installed.Store(true)
		l := New(g, nil, "")

		if _, err := l.Load(ctx, "example.com/adapter", ""); err != nil {
			t.Fatal(err)
		}
		if _, err := l.Load(ctx, "example.com/adapter", "Other"); err != nil {
			t.Fatal(err)
		}
		if l.Len() != 2 {
			t.Errorf("expected 2 cache entries, got %d", l.Len())
		}
	})
}

func TestSelectExport(t *testing.T) {
	ctor := Constructor(newMemoryAdapter)
	plain := newMemoryAdapter

	tests := []struct {
		name    string
		mod     Module
		export  string
		wantErr bool
	}{
		{"DefaultExport", Exports{DefaultExport: ctor}, "", false},
		{"NamedExport", Exports{"SQLite": ctor}, "SQLite", false},
		{"MissingNamedExport", Exports{DefaultExport: ctor}, "SQLite", true},
		{"ModuleIsConstructor", ctor, "", false},
		{"ModuleIsConstructorNamed", ctor, "SQLite", true},
		{"NoDefault", Exports{"SQLite": ctor}, "", true},
		{"PlainFunc", Exports{DefaultExport: plain}, "", false},
		{"PointerToConstructor", Exports{DefaultExport: &ctor}, "", false},
		{"PointerToPlainFunc", Exports{DefaultExport: &plain}, "", false},
		{"NilConstructor", Exports{DefaultExport: Constructor(nil)}, "", true},
		{"WrongType", Exports{DefaultExport: "not a constructor"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := SelectExport(tt.mod, tt.export)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SelectExport() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c == nil {
				t.Error("expected a constructor")
			}
		})
	}
}

func TestGraphs(t *testing.T) {
	t.Run("Linked", func(t *testing.T) {
		g := NewLinked()
		if _, err := g.TryLoad("example.com/a"); !errors.Is(err, ErrModuleNotFound) {
			t.Errorf("expected ErrModuleNotFound, got %v", err)
		}
		g.Link("example.com/a", Constructor(newMemoryAdapter))
		if _, err := g.TryLoad("example.com/a"); err != nil {
			t.Errorf("TryLoad failed: %v", err)
		}
		if pkgs := g.Packages(); len(pkgs) != 1 || pkgs[0] != "example.com/a" {
			t.Errorf("unexpected packages %v", pkgs)
		}
	})

	t.Run("PluginDirMissing", func(t *testing.T) {
		g := PluginDir{Dir: t.TempDir()}
		if _, err := g.TryLoad("example.com/a"); !errors.Is(err, ErrModuleNotFound) {
			t.Errorf("expected ErrModuleNotFound, got %v", err)
		}
	})

	t.Run("PluginPath", func(t *testing.T) {
		got := PluginPath("/mods", "github.com/x/y@v1")
		if want := filepath.Join("/mods", "github.com_x_y_v1.so"); got != want {
			t.Errorf("PluginPath() = %s, want %s", got, want)
		}
	})

	t.Run("Chain", func(t *testing.T) {
		a, b := NewLinked(), NewLinked()
		b.Link("example.com/b", Constructor(newMemoryAdapter))
		c := Chain{a, b}

		if _, err := c.TryLoad("example.com/b"); err != nil {
			t.Errorf("TryLoad failed: %v", err)
		}
		if _, err := c.TryLoad("example.com/c"); !errors.Is(err, ErrModuleNotFound) {
			t.Errorf("expected ErrModuleNotFound, got %v", err)
		}
		if _, err := (Chain{}).TryLoad("example.com/c"); !errors.Is(err, ErrModuleNotFound) {
			t.Errorf("expected ErrModuleNotFound for empty chain, got %v", err)
		}
	})
}

func TestCommandInstaller(t *testing.T) {
	ctx := context.Background()

	t.Run("Render", func(t *testing.T) {
		inst := NewCommandInstaller("build {{.Package}} {{.Output}}", 0)
		got, err := inst.Render("example.com/a", "/mods")
		if err != nil {
			t.Fatal(err)
		}
		want := "build example.com/a " + PluginPath("/mods", "example.com/a")
		if got != want {
			t.Errorf("Render() = %q, want %q", got, want)
		}
	})

	t.Run("RejectsShellCharacters", func(t *testing.T) {
		inst := NewCommandInstaller("build {{.Package}}", 0)
		for _, pkg := range []string{"a; rm -rf /", "$(id)", "a b", ""} {
			if _, err := inst.Render(pkg, "/mods"); err == nil {
				t.Errorf("expected %q to be rejected", pkg)
			}
		}
	})

	t.Run("InvalidTemplate", func(t *testing.T) {
		inst := NewCommandInstaller("build {{.Package", 0)
		if err := inst.Install(ctx, "example.com/a", t.TempDir()); err == nil {
			t.Error("expected template error")
		}
	})

	t.Run("CreatesOutput", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "modules")
		inst := NewCommandInstaller("touch {{.Output}}", 10*time.Second)
		if err := inst.Install(ctx, "example.com/a", dir); err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		if _, err := os.Stat(PluginPath(dir, "example.com/a")); err != nil {
			t.Errorf("expected output file: %v", err)
		}
	})

	t.Run("CommandFails", func(t *testing.T) {
		inst := NewCommandInstaller("echo cannot fetch {{.Package}} >&2; exit 3", 0)
		err := inst.Install(ctx, "example.com/a", t.TempDir())
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		inst := NewCommandInstaller("sleep 5", 100*time.Millisecond)
		start := time.Now()
		err := inst.Install(ctx, "example.com/a", t.TempDir())
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if time.Since(start) > 4*time.Second {
			t.Error("install command was not aborted")
		}
	})
}
