package repository

import (
	_ "embed"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema/postgres.sql
var postgresSchema string

//go:embed schema/sqlite.sql
var sqliteSchema string

const pgUniqueViolation = "23505"

// dialect captures what differs between the supported SQL engines.
type dialect struct {
	name       string
	driverName string
	schema     string
	// forUpdate is appended to row-locking selects.
	forUpdate string
	// numbered rewrites ? placeholders as $1, $2, ...
	numbered bool
	isUnique func(error) bool
}

var postgresDialect = &dialect{ //nolint:gochecknoglobals // immutable dialect table
	name:       "postgres",
	driverName: "pgx",
	schema:     postgresSchema,
	forUpdate:  " FOR UPDATE",
	numbered:   true,
	isUnique: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
	},
}

var sqliteDialect = &dialect{ //nolint:gochecknoglobals // immutable dialect table
	name:       "sqlite",
	driverName: "sqlite",
	schema:     sqliteSchema,
	isUnique: func(err error) bool {
		var sqlErr *sqlite.Error
		if !errors.As(err, &sqlErr) {
			return false
		}
		code := sqlErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	},
}

func dialectFor(driver string) (*dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return postgresDialect, nil
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	}
	return nil, ErrUnknownDriver
}

// rebind converts ? placeholders for engines that number them.
func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// statements splits the schema into executable statements.
func (d *dialect) statements() []string {
	parts := strings.Split(d.schema, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// sqliteDSN sets the connection pragmas and a sortable time format.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}
