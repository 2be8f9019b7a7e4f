package factory

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvuri/lib/common"
	"github.com/ValentinKolb/kvuri/lib/registry"
	"github.com/ValentinKolb/kvuri/lib/store"
	"github.com/ValentinKolb/kvuri/lib/uriopts"
	"github.com/VictoriaMetrics/metrics"
	"time"
)

var resolveTime = metrics.NewHistogram(`kvuri_resolution_duration_seconds`)

func countResolution(err error) {
	code := common.RetCSuccess
	var e *common.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`kvuri_resolutions_total{result=%q}`, code.String())).Inc()
}

// Open resolves uri to a store. A nil opts is the same as empty options.
//
// Exactly one of the returned values is non-nil. Errors are *common.Error:
//   - RetCPassthroughConstruction if opts.Store is set and the store could not be built around it
//   - RetCInvalidURI if uri can not be parsed
//   - RetCUnknownProtocol if no adapter is registered for the scheme
//   - RetCAdapterLoad if the adapter package could not be loaded or installed
//   - RetCAdapterConstruction if the adapter or the store could not be constructed
func (f *Factory) Open(ctx context.Context, uri string, opts *Options) (*store.Store, error) {
	start := time.Now()
	if opts == nil {
		opts = &Options{}
	}

	s, err := f.open(ctx, uri, opts)
	resolveTime.UpdateDuration(start)
	countResolution(err)
	if err != nil {
		log.Warningf("could not open %s: %v", uri, err)
		return nil, err
	}
	return s, nil
}

func (f *Factory) open(ctx context.Context, uri string, opts *Options) (*store.Store, error) {
	// a caller supplied adapter skips resolution
	if opts.Store != nil {
		conf, err := opts.storeConfig(opts.Store)
		if err == nil {
			var s *store.Store
			if s, err = store.New(conf); err == nil {
				log.Debugf("opened store around caller supplied %T", opts.Store)
				return s, nil
			}
		}
		return nil, common.WrapError(common.RetCPassthroughConstruction, err, "could not create store around %T", opts.Store)
	}

	req, err := f.prepare(uri, opts)
	if err != nil {
		return nil, err
	}
	d := req.Descriptor

	// built-in backend, no package to load
	if d.IsBuiltin() {
		req.Merged = merge(req.URIOptions, opts.toMap())
		s, err := store.NewFromMap(nil, req.Merged)
		if err != nil {
			return nil, common.WrapError(common.RetCAdapterConstruction, err, "could not create built-in store for %s", req.Scheme)
		}
		log.Debugf("opened built-in store for %s", req.Scheme)
		return s, nil
	}

	ctor, err := f.loader.Load(ctx, d.Package, d.ExportName)
	if err != nil {
		return nil, err
	}

	if err := f.mapOptions(req); err != nil {
		return nil, err
	}

	raw := ""
	if d.Mode == registry.ModeString {
		raw = req.URI
	}
	adapter, err := ctor(ctx, raw, req.Merged)
	if err != nil {
		return nil, common.WrapError(common.RetCAdapterConstruction, err, "could not construct adapter %s for %s", d.Package, req.Scheme)
	}
	if adapter == nil {
		return nil, common.NewError(common.RetCAdapterConstruction, fmt.Sprintf("adapter %s returned no adapter for %s", d.Package, req.Scheme))
	}

	conf, err := opts.storeConfig(adapter)
	if err == nil {
		var s *store.Store
		if s, err = store.New(conf); err == nil {
			log.Debugf("opened store for %s using %s (%s mode)", req.Scheme, d.Package, d.Mode)
			return s, nil
		}
	}
	if cerr := adapter.Close(); cerr != nil {
		log.Warningf("could not close adapter for %s: %v", req.Scheme, cerr)
	}
	return nil, common.WrapError(common.RetCAdapterConstruction, err, "could not create store for %s", req.Scheme)
}

// prepare parses uri and looks up its descriptor.
func (f *Factory) prepare(uri string, opts *Options) (*Request, error) {
	u, err := uriopts.Parse(uri)
	if err != nil {
		return nil, common.WrapError(common.RetCInvalidURI, err, "Invalid URI: %s", uri)
	}

	scheme := registry.Normalize(u.Scheme)
	d, ok := f.registry.Lookup(scheme)
	if !ok {
		return nil, common.NewError(common.RetCUnknownProtocol,
			fmt.Sprintf("Unknown protocol: %s. Use RegisterAdapter() to add support for it", scheme))
	}

	return &Request{
		URI:        uri,
		Options:    *opts,
		URL:        u,
		Scheme:     scheme,
		Descriptor: d,
		URIOptions: uriopts.ParseQueryOptions(u),
	}, nil
}

// mapOptions runs the options mapper of the descriptor and computes the merged adapter options.
// Caller options win over mapper options, which win over the URI query.
func (f *Factory) mapOptions(req *Request) error {
	if mapper := req.Descriptor.OptionsMapper; mapper != nil {
		m, err := mapper(req.URL)
		if err != nil {
			return common.WrapError(common.RetCAdapterConstruction, err, "could not map options for %s", req.Scheme)
		}
		req.MapperOptions = m
	}
	req.Merged = merge(req.URIOptions, req.MapperOptions, req.Options.toMap())
	delete(req.Merged, store.KeyStore)
	return nil
}

// Describe resolves uri like Open but stops before loading the adapter.
// Options mappers do run, so the file mapper creates the parent directory.
func (f *Factory) Describe(uri string, opts *Options) (*Request, error) {
	if opts == nil {
		opts = &Options{}
	}
	req, err := f.prepare(uri, opts)
	if err != nil {
		return nil, err
	}
	if req.Descriptor.IsBuiltin() {
		req.Merged = merge(req.URIOptions, opts.toMap())
		return req, nil
	}
	if err := f.mapOptions(req); err != nil {
		return nil, err
	}
	return req, nil
}
