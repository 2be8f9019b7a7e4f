package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvuri/lib/loader"
	"github.com/ValentinKolb/kvuri/lib/registry"
	"github.com/ValentinKolb/kvuri/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"regexp"
	"time"
)

var log = logger.GetLogger("adapter")

func init() {
	loader.Link(registry.PackageSQL, loader.Exports{
		"Postgres": loader.Constructor(Postgres),
		"MySQL":    loader.Constructor(MySQL),
		"SQLite":   loader.Constructor(SQLite),
	})
}

// DefaultTable is the table used when no table option is given.
const DefaultTable = "kvuri"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options are the options shared by all SQL adapters.
type Options struct {
	// URI is the connection URI, set by the uri options mapper of the scheme
	URI string `mapstructure:"uri"`
	// Table is the name of the key value table
	Table string `mapstructure:"table"`
	// MaxOpenConns limits the connection pool (0 = driver default)
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

func decodeOptions(options map[string]any) (Options, error) {
	var o Options
	if err := store.DecodeOptions(options, &o); err != nil {
		return o, fmt.Errorf("invalid sql options: %w", err)
	}
	if o.Table == "" {
		o.Table = DefaultTable
	}
	if !tableNameRe.MatchString(o.Table) {
		return o, fmt.Errorf("invalid table name %q", o.Table)
	}
	return o, nil
}

// Adapter stores entries in a single SQL table.
type Adapter struct {
	db  *sql.DB
	d   *dialect
	q   queries
	now func() time.Time
}

// open connects to dsn and creates the table if needed.
func open(ctx context.Context, d *dialect, dsn string, o Options, configure func(*sql.DB)) (*Adapter, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open %s database: %w", d.name, err)
	}
	if configure != nil {
		configure(db)
	}
	if o.MaxOpenConns > 0 {
		db.SetMaxOpenConns(o.MaxOpenConns)
	}

	a := &Adapter{db: db, d: d, q: d.queries(o.Table), now: time.Now}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not connect to %s database: %w", d.name, err)
	}
	if _, err := db.ExecContext(ctx, a.q.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create table %s: %w", o.Table, err)
	}

	log.Infof("opened %s adapter (table %s)", d.name, o.Table)
	return a, nil
}

// DB returns the underlying database handle.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

func (a *Adapter) nowMillis() int64 {
	return a.now().UnixMilli()
}

func (a *Adapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expires int64
	err := a.db.QueryRowContext(ctx, a.q.get, key).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if now := a.nowMillis(); expires != 0 && expires <= now {
		if _, err := a.db.ExecContext(ctx, a.q.delExpired, key, now); err != nil {
			log.Warningf("could not remove expired key %s: %v", key, err)
		}
		return nil, false, nil
	}

	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (a *Adapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = a.now().Add(ttl).UnixMilli()
	}
	if value == nil {
		value = []byte{}
	}
	_, err := a.db.ExecContext(ctx, a.q.set, key, value, expires)
	return err
}

func (a *Adapter) Delete(ctx context.Context, key string) (bool, error) {
	now := a.nowMillis()
	res, err := a.db.ExecContext(ctx, a.q.delete, key, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// the row may still exist expired
		if _, err := a.db.ExecContext(ctx, a.q.delExpired, key, now); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}

func (a *Adapter) Clear(ctx context.Context, prefix string) error {
	if prefix == "" {
		_, err := a.db.ExecContext(ctx, a.q.clearAll)
		return err
	}
	_, err := a.db.ExecContext(ctx, a.q.clear, a.d.escape(prefix))
	return err
}

func (a *Adapter) Close() error {
	return a.db.Close()
}
