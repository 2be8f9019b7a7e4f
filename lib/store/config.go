package store

import (
	"errors"
	"fmt"
	"github.com/go-viper/mapstructure/v2"
	"reflect"
	"strconv"
	"time"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "kvuri"

// Option keys understood by the store. All other keys end up in Config.Extra.
const (
	KeyStore     = "store"
	KeyNamespace = "namespace"
	KeyTTL       = "ttl"
)

// Config holds the configuration of a Store.
type Config struct {
	// Adapter is the storage backend. A nil adapter selects the built-in memory backend.
	Adapter IAdapter `mapstructure:"-"`
	// Namespace is the logical key prefix of the store
	Namespace string `mapstructure:"namespace"`
	// TTL is the default expiry of entries (0 = never). Option maps carry it in milliseconds.
	TTL time.Duration `mapstructure:"ttl"`
	// Extra holds all other options, untouched
	Extra map[string]any `mapstructure:",remain"`
}

// ConfigFromMap decodes an option map into a Config.
// Values are weakly typed, so "60000" and 60000 are both accepted for ttl.
// The store key is ignored, the adapter is always passed explicitly.
func ConfigFromMap(adapter IAdapter, options map[string]any) (Config, error) {
	conf := Config{Adapter: adapter}
	clean := make(map[string]any, len(options))
	for k, v := range options {
		if k != KeyStore {
			clean[k] = v
		}
	}
	if err := DecodeOptions(clean, &conf); err != nil {
		return conf, fmt.Errorf("invalid store options: %w", err)
	}
	return conf, nil
}

// DecodeOptions decodes an option map into result (a pointer to a struct with mapstructure tags).
// Input is weakly typed and time.Duration fields are read as milliseconds. Adapters use it for their own options.
func DecodeOptions(options map[string]any, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		WeaklyTypedInput: true,
		DecodeHook:       millisecondsHook,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.TTL < 0 {
		return errors.New("ttl must not be negative")
	}
	return nil
}

// millisecondsHook converts numeric ttl values (milliseconds) to time.Duration.
// Strings are parsed as milliseconds too; duration strings such as "1m" are accepted as well.
func millisecondsHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case uint64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	case string:
		if ms, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(ms * float64(time.Millisecond)), nil
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d, nil
		}
	}
	return data, nil
}
