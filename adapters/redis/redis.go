// Package redis provides a Redis adapter for the redis: and rediss: schemes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvuri/lib/loader"
	"github.com/ValentinKolb/kvuri/lib/registry"
	"github.com/ValentinKolb/kvuri/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/redis/go-redis/v9"
	"net/url"
	"strings"
	"time"
)

var log = logger.GetLogger("adapter")

func init() {
	loader.Link(registry.PackageRedis, loader.Exports{
		loader.DefaultExport: loader.Constructor(New),
	})
}

// Options are the adapter options, usually taken from the URI query.
type Options struct {
	ClientName   string        `mapstructure:"client_name"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ScanCount is the COUNT hint used when clearing keys
	ScanCount int64 `mapstructure:"scan_count"`
}

// Adapter stores entries as plain redis strings.
type Adapter struct {
	client    *redis.Client
	scanCount int64
}

// New connects to the server named by uri (redis:// or rediss://) and pings it.
// The query of uri is not passed to go-redis, query parameters reach the adapter as options.
func New(ctx context.Context, uri string, options map[string]any) (store.IAdapter, error) {
	if uri == "" {
		return nil, errors.New("redis adapter requires a URI")
	}
	ropts, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	var o Options
	if err := store.DecodeOptions(options, &o); err != nil {
		return nil, fmt.Errorf("invalid redis options: %w", err)
	}
	o.apply(ropts)

	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", ropts.Addr, err)
	}

	log.Infof("connected to redis at %s (db %d)", ropts.Addr, ropts.DB)

	scanCount := o.ScanCount
	if scanCount <= 0 {
		scanCount = 100
	}
	return &Adapter{client: client, scanCount: scanCount}, nil
}

// ParseURI converts a redis URI without its query into go-redis options.
func ParseURI(uri string) (*redis.Options, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URI: %w", err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	ropts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("invalid redis URI: %w", err)
	}
	return ropts, nil
}

func (o *Options) apply(r *redis.Options) {
	if o.ClientName != "" {
		r.ClientName = o.ClientName
	}
	if o.PoolSize > 0 {
		r.PoolSize = o.PoolSize
	}
	if o.MinIdleConns > 0 {
		r.MinIdleConns = o.MinIdleConns
	}
	if o.MaxRetries != 0 {
		r.MaxRetries = o.MaxRetries
	}
	if o.DialTimeout > 0 {
		r.DialTimeout = o.DialTimeout
	}
	if o.ReadTimeout > 0 {
		r.ReadTimeout = o.ReadTimeout
	}
	if o.WriteTimeout > 0 {
		r.WriteTimeout = o.WriteTimeout
	}
}

func (a *Adapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := a.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

func (a *Adapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return a.client.Set(ctx, key, value, ttl).Err()
}

func (a *Adapter) Delete(ctx context.Context, key string) (bool, error) {
	n, err := a.client.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear deletes all keys matching prefix using SCAN, so other keys of the database are kept.
func (a *Adapter) Clear(ctx context.Context, prefix string) error {
	pattern := escapeGlob(prefix) + "*"
	iter := a.client.Scan(ctx, 0, pattern, a.scanCount).Iterator()

	batch := make([]string, 0, a.scanCount)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= a.scanCount {
			if err := a.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return a.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.client.Close()
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob escapes the glob characters of a SCAN MATCH pattern.
func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
