package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// sqlDB carries the query code shared by the SQLite and PostgreSQL backends.
// Queries are written with '?' placeholders and rebound for PostgreSQL.
type sqlDB struct {
	db     *sql.DB
	name   string // log prefix of the owning store
	dollar bool   // use $n placeholders
}

// openSQL opens driver at dsn, applies tune, verifies the connection and runs
// the embedded migrations. The connection is closed on any failure.
func openSQL(name, driver, dsn, migrations string, dollar bool, tune func(*sql.DB)) (*sqlDB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", name, err)
	}
	if tune != nil {
		tune(db)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", name, err)
	}
	if _, err := db.Exec(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to run migrations: %w", name, err)
	}
	slog.Debug(name+".open: migrations applied", "driver", driver)
	return &sqlDB{db: db, name: name, dollar: dollar}, nil
}

func (s *sqlDB) rebind(query string) string {
	if !s.dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the underlying database connection.
func (s *sqlDB) Close() error {
	return s.db.Close()
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
