package factory

import (
	"github.com/ValentinKolb/kvuri/lib/registry"
	"github.com/ValentinKolb/kvuri/lib/store"
	"net/url"
	"time"
)

// Options are the caller supplied options of a resolution. Only non-zero fields count as supplied.
type Options struct {
	// Store is a pre-built adapter. If set, the URI is not resolved at all.
	Store store.IAdapter
	// Namespace is the logical key prefix of the store
	Namespace string
	// TTL is the default expiry of entries
	TTL time.Duration
	// Extra is passed to the adapter and the store untouched
	Extra map[string]any
}

// toMap returns the supplied options as option map. TTL is written in milliseconds.
func (o *Options) toMap() map[string]any {
	m := make(map[string]any, len(o.Extra)+2)
	for k, v := range o.Extra {
		m[k] = v
	}
	if o.Namespace != "" {
		m[store.KeyNamespace] = o.Namespace
	}
	if o.TTL != 0 {
		m[store.KeyTTL] = int64(o.TTL / time.Millisecond)
	}
	return m
}

// storeConfig returns the store configuration for adapter built from the caller options only.
func (o *Options) storeConfig(adapter store.IAdapter) (store.Config, error) {
	return store.ConfigFromMap(adapter, o.toMap())
}

// Request is the state of one resolution.
type Request struct {
	// URI is the raw URI as given by the caller
	URI string
	// Options are the caller options
	Options Options
	// URL is the parsed URI
	URL *url.URL
	// Scheme is the normalized registry key, e.g. "redis:"
	Scheme string
	// Descriptor is the registry entry of Scheme, copied at lookup
	Descriptor registry.Descriptor
	// URIOptions are the auto-typed query parameters
	URIOptions map[string]any
	// MapperOptions is the output of the descriptor's options mapper (may be nil)
	MapperOptions map[string]any
	// Merged are the options the adapter is constructed with
	Merged map[string]any
}

// merge copies all maps into a new map, later maps win.
func merge(maps ...map[string]any) map[string]any {
	n := 0
	for _, m := range maps {
		n += len(m)
	}
	merged := make(map[string]any, n)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
