/*
Package sql provides SQL adapters for the postgres:, postgresql:, mysql: and sqlite: schemes.

All three exports share one table layout:

	id       the key (primary key)
	value    the value bytes
	expires  unix milliseconds, 0 = never

The table is named by the table option (default kvuri) and created if missing.
Expired rows are removed lazily when they are read.

Drivers: github.com/jackc/pgx/v5 (stdlib), github.com/go-sql-driver/mysql and modernc.org/sqlite.
*/
package sql
