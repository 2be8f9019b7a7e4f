// Package file provides a JSON file adapter for the file: scheme.
//
// The whole data set is kept in memory and written to the file after every change.
// Writes go to a temporary file that is renamed over the target, so readers never see partial data.
// With the watch option the file is reloaded when another process changes it.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvuri/lib/loader"
	"github.com/ValentinKolb/kvuri/lib/registry"
	"github.com/ValentinKolb/kvuri/lib/store"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var log = logger.GetLogger("adapter")

func init() {
	loader.Link(registry.PackageFile, loader.Exports{
		"File":               loader.Constructor(File),
		loader.DefaultExport: loader.Constructor(File),
	})
}

// reloadDelay debounces file change events.
const reloadDelay = 100 * time.Millisecond

// Options of the file adapter.
type Options struct {
	// Filename is set by the filename options mapper of the file: scheme
	Filename string `mapstructure:"filename"`
	// Pretty indents the JSON file
	Pretty bool `mapstructure:"pretty"`
	// Watch reloads the file when it is changed by someone else
	Watch bool `mapstructure:"watch"`
}

type entry struct {
	Value   []byte `json:"value"`
	Expires int64  `json:"expires,omitempty"`
}

// Adapter is a key value adapter backed by a JSON file.
type Adapter struct {
	filename string
	pretty   bool
	now      func() time.Time

	mu   sync.RWMutex
	data map[string]entry

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// File opens (or creates) the file named by the filename option.
func File(_ context.Context, _ string, options map[string]any) (store.IAdapter, error) {
	var o Options
	if err := store.DecodeOptions(options, &o); err != nil {
		return nil, fmt.Errorf("invalid file options: %w", err)
	}
	if o.Filename == "" {
		return nil, errors.New("missing filename option")
	}
	return Open(o)
}

// Open creates an adapter from typed options.
func Open(o Options) (*Adapter, error) {
	if err := os.MkdirAll(filepath.Dir(o.Filename), 0o755); err != nil {
		return nil, fmt.Errorf("could not create directory for %s: %w", o.Filename, err)
	}

	a := &Adapter{
		filename: o.Filename,
		pretty:   o.Pretty,
		now:      time.Now,
		data:     map[string]entry{},
		done:     make(chan struct{}),
	}
	if err := a.load(); err != nil {
		return nil, err
	}

	if o.Watch {
		if err := a.watch(); err != nil {
			return nil, fmt.Errorf("could not watch %s: %w", o.Filename, err)
		}
	}

	log.Infof("opened file adapter %s (%d entries, watch=%t)", o.Filename, len(a.data), o.Watch)
	return a, nil
}

// Filename returns the path of the backing file.
func (a *Adapter) Filename() string {
	return a.filename
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// load replaces the in memory data with the file content. A missing or empty file is an empty data set.
func (a *Adapter) load() error {
	raw, err := os.ReadFile(a.filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read %s: %w", a.filename, err)
	}

	data := map[string]entry{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("could not parse %s: %w", a.filename, err)
		}
	}

	a.mu.Lock()
	a.data = data
	a.mu.Unlock()
	return nil
}

// persist writes the data atomically. The caller must hold the write lock.
func (a *Adapter) persist() error {
	var raw []byte
	var err error
	if a.pretty {
		raw, err = json.MarshalIndent(a.data, "", "  ")
	} else {
		raw, err = json.Marshal(a.data)
	}
	if err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.%s.tmp", a.filename, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, a.filename); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// watch reloads the file on changes until Close is called.
func (a *Adapter) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// the directory is watched, the file is replaced on every write
	if err := w.Add(filepath.Dir(a.filename)); err != nil {
		_ = w.Close()
		return err
	}
	a.watcher = w

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		reload := make(chan struct{}, 1)

		for {
			select {
			case <-a.done:
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(a.filename) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDelay, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})

			case <-reload:
				if err := a.load(); err != nil {
					log.Warningf("could not reload %s: %v", a.filename, err)
				} else {
					log.Debugf("reloaded %s", a.filename)
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warningf("watcher error for %s: %v", a.filename, err)
			}
		}
	}()
	return nil
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

func (a *Adapter) expired(e entry) bool {
	return e.Expires != 0 && e.Expires <= a.now().UnixMilli()
}

func (a *Adapter) Get(_ context.Context, key string) ([]byte, bool, error) {
	a.mu.RLock()
	e, ok := a.data[key]
	a.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if a.expired(e) {
		a.mu.Lock()
		if cur, ok := a.data[key]; ok && a.expired(cur) {
			delete(a.data, key)
		}
		a.mu.Unlock()
		return nil, false, nil
	}

	v := make([]byte, len(e.Value))
	copy(v, e.Value)
	return v, true, nil
}

func (a *Adapter) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{Value: make([]byte, len(value))}
	copy(e.Value, value)
	if ttl > 0 {
		e.Expires = a.now().Add(ttl).UnixMilli()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[key] = e
	return a.persist()
}

func (a *Adapter) Delete(_ context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.data[key]
	if !ok {
		return false, nil
	}
	delete(a.data, key)
	return !a.expired(e), a.persist()
}

func (a *Adapter) Clear(_ context.Context, prefix string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for k := range a.data {
		if strings.HasPrefix(k, prefix) {
			delete(a.data, k)
		}
	}
	return a.persist()
}

// Close stops watching the file. The data is already persisted.
func (a *Adapter) Close() error {
	var err error
	a.once.Do(func() {
		close(a.done)
		if a.watcher != nil {
			err = a.watcher.Close()
		}
		a.wg.Wait()
	})
	return err
}
