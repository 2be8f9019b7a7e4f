package loader

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/kvuri/lib/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
	"time"
)

var log = logger.GetLogger("loader")

var (
	loadsCacheHit  = metrics.NewCounter(`kvuri_adapter_loads_total{result="cache_hit"}`)
	loadsLocal     = metrics.NewCounter(`kvuri_adapter_loads_total{result="local"}`)
	loadsInstalled = metrics.NewCounter(`kvuri_adapter_loads_total{result="installed"}`)
	loadsFailed    = metrics.NewCounter(`kvuri_adapter_loads_total{result="failed"}`)
	installsFailed = metrics.NewCounter(`kvuri_adapter_installs_failed_total`)
	installTime    = metrics.NewHistogram(`kvuri_adapter_install_duration_seconds`)
)

// Loader resolves adapter packages to constructors.
// Loaded constructors are cached per package and export name; failures are never cached.
type Loader struct {
	graph     ModuleGraph
	installer Installer
	dir       string

	cache    *xsync.MapOf[string, Constructor]
	installs singleflight.Group
}

// New creates a loader. A nil installer disables installation; missing packages then fail to load.
// dir is passed to the installer as install target.
func New(graph ModuleGraph, installer Installer, dir string) *Loader {
	return &Loader{
		graph:     graph,
		installer: installer,
		dir:       dir,
		cache:     xsync.NewMapOf[string, Constructor](),
	}
}

// NewFromConfig creates the loader used by the factory: the linked graph, followed by the
// plugin directory the configured install command writes to.
func NewFromConfig(cfg common.FactoryConfig) *Loader {
	graph := Chain{LinkedModules(), PluginDir{Dir: cfg.ModulesDir}}
	var installer Installer
	if cfg.InstallCommand != "" {
		installer = NewCommandInstaller(cfg.InstallCommand, cfg.InstallTimeout())
	}
	return New(graph, installer, cfg.ModulesDir)
}

func cacheKey(pkg, export string) string {
	if export == "" {
		export = "default"
	}
	return pkg + ":" + export
}

// Load returns the constructor exported by pkg.
//
// The steps are:
//  1. return a cached constructor
//  2. load the package from the module graph
//  3. if the package is not available, install it and load it again (once)
//
// All failures are returned as common.Error with code RetCAdapterLoad.
// Concurrent installs of the same package are shared.
func (l *Loader) Load(ctx context.Context, pkg, export string) (Constructor, error) {
	if pkg == "" {
		loadsFailed.Inc()
		return nil, common.NewError(common.RetCAdapterLoad, "no adapter package given")
	}

	key := cacheKey(pkg, export)
	if c, ok := l.cache.Load(key); ok {
		loadsCacheHit.Inc()
		return c, nil
	}

	mod, err := l.graph.TryLoad(pkg)
	if err == nil {
		c, err := SelectExport(mod, export)
		if err != nil {
			loadsFailed.Inc()
			return nil, common.WrapError(common.RetCAdapterLoad, err, "adapter package %s has no usable export %q", pkg, export)
		}
		loadsLocal.Inc()
		return l.store(key, c), nil
	}

	log.Infof("adapter package %s not available (%v)", pkg, err)
	if l.installer == nil {
		loadsFailed.Inc()
		return nil, common.WrapError(common.RetCAdapterLoad, err, "adapter package %s is not available and installing is disabled", pkg)
	}

	if err := l.install(ctx, pkg); err != nil {
		loadsFailed.Inc()
		return nil, common.WrapError(common.RetCAdapterLoad, err, "could not install adapter package %s", pkg)
	}

	mod, err = l.graph.TryLoad(pkg)
	if err != nil {
		loadsFailed.Inc()
		return nil, common.WrapError(common.RetCAdapterLoad, err, "adapter package %s could not be loaded after install", pkg)
	}
	c, err := SelectExport(mod, export)
	if err != nil {
		loadsFailed.Inc()
		return nil, common.WrapError(common.RetCAdapterLoad, err, "adapter package %s has no usable export %q", pkg, export)
	}

	loadsInstalled.Inc()
	return l.store(key, c), nil
}

// store adds c to the cache unless another load won the race, and returns the cached value.
func (l *Loader) store(key string, c Constructor) Constructor {
	actual, _ := l.cache.LoadOrStore(key, c)
	return actual
}

func (l *Loader) install(ctx context.Context, pkg string) error {
	_, err, shared := l.installs.Do(pkg, func() (any, error) {
		start := time.Now()
		err := l.installer.Install(ctx, pkg, l.dir)
		installTime.UpdateDuration(start)
		if err != nil {
			installsFailed.Inc()
			log.Errorf("installing %s failed: %v", pkg, err)
			return nil, err
		}
		log.Infof("installed %s in %s", pkg, time.Since(start).Round(time.Millisecond))
		return nil, nil
	})
	if shared {
		log.Debugf("install of %s was shared with a concurrent load", pkg)
	}
	return err
}

// Cached reports whether a constructor for pkg and export is cached.
func (l *Loader) Cached(pkg, export string) bool {
	_, ok := l.cache.Load(cacheKey(pkg, export))
	return ok
}

// Len returns the number of cached constructors.
func (l *Loader) Len() int {
	return l.cache.Size()
}

// Clear empties the cache. Installed packages stay installed.
func (l *Loader) Clear() {
	l.cache.Clear()
}

// String describes the loader for logs and the CLI.
func (l *Loader) String() string {
	return fmt.Sprintf("Loader{dir: %s, cached: %d, install: %t}", l.dir, l.cache.Size(), l.installer != nil)
}
