package sql

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect holds the statements that differ between databases.
// Statements are written with ? placeholders, dollar numbered databases rebind them.
type dialect struct {
	name        string
	driver      string
	schema      string
	upsert      string
	prefixMatch string
	dollar      bool
	escape      func(prefix string) string
}

var (
	postgresDialect = dialect{
		name:        "postgres",
		driver:      "pgx",
		schema:      "CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, value BYTEA, expires BIGINT NOT NULL DEFAULT 0)",
		upsert:      "INSERT INTO %s (id, value, expires) VALUES (?, ?, ?) ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value, expires = EXCLUDED.expires",
		prefixMatch: "id LIKE ? ESCAPE '!'",
		dollar:      true,
		escape:      likePrefix,
	}

	mysqlDialect = dialect{
		name:        "mysql",
		driver:      "mysql",
		schema:      "CREATE TABLE IF NOT EXISTS %s (id VARBINARY(255) PRIMARY KEY, value LONGBLOB, expires BIGINT NOT NULL DEFAULT 0)",
		upsert:      "INSERT INTO %s (id, value, expires) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value), expires = VALUES(expires)",
		prefixMatch: "id LIKE ? ESCAPE '!'",
		escape:      likePrefix,
	}

	// sqlite LIKE ignores case, GLOB does not
	sqliteDialect = dialect{
		name:        "sqlite",
		driver:      "sqlite",
		schema:      "CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, value BLOB, expires INTEGER NOT NULL DEFAULT 0)",
		upsert:      "INSERT INTO %s (id, value, expires) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET value = excluded.value, expires = excluded.expires",
		prefixMatch: "id GLOB ?",
		escape:      globPrefix,
	}
)

type queries struct {
	schema     string
	get        string
	set        string
	delete     string
	delExpired string
	clear      string
	clearAll   string
}

func (d *dialect) queries(table string) queries {
	q := queries{
		schema:     fmt.Sprintf(d.schema, table),
		get:        fmt.Sprintf("SELECT value, expires FROM %s WHERE id = ?", table),
		set:        fmt.Sprintf(d.upsert, table),
		delete:     fmt.Sprintf("DELETE FROM %s WHERE id = ? AND (expires = 0 OR expires > ?)", table),
		delExpired: fmt.Sprintf("DELETE FROM %s WHERE id = ? AND expires <> 0 AND expires <= ?", table),
		clear:      fmt.Sprintf("DELETE FROM %s WHERE %s", table, d.prefixMatch),
		clearAll:   fmt.Sprintf("DELETE FROM %s", table),
	}
	if d.dollar {
		q.get = rebind(q.get)
		q.set = rebind(q.set)
		q.delete = rebind(q.delete)
		q.delExpired = rebind(q.delExpired)
		q.clear = rebind(q.clear)
	}
	return q
}

// rebind replaces ? placeholders with $1, $2, ...
func rebind(query string) string {
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var (
	likeReplacer = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	globReplacer = strings.NewReplacer("[", "[[]", "*", "[*]", "?", "[?]")
)

// likePrefix returns a LIKE pattern (escape character !) matching all strings starting with prefix.
func likePrefix(prefix string) string {
	return likeReplacer.Replace(prefix) + "%"
}

// globPrefix returns a GLOB pattern matching all strings starting with prefix.
func globPrefix(prefix string) string {
	return globReplacer.Replace(prefix) + "*"
}
