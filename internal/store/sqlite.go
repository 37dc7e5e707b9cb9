package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
)

// sqlitePragmas are appended to every DSN: wait on a locked database instead
// of failing, and let readers proceed during writes.
const sqlitePragmas = "_busy_timeout=5000&_journal_mode=WAL"

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists everything in a single SQLite file.
type SQLiteStore struct {
	*sqlDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database file named by the DSN, creating its
// parent directory when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, errors.New("SQLiteStore: DSN not set")
	}
	path := strings.TrimPrefix(cfg.DSN, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("SQLiteStore: create database directory: %w", err)
	}

	sep := "?"
	if strings.Contains(cfg.DSN, "?") {
		sep = "&"
	}
	db, err := openSQL("SQLiteStore", "sqlite3", cfg.DSN+sep+sqlitePragmas, sqliteMigrations, false, func(db *sql.DB) {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY under concurrent turns.
		db.SetMaxOpenConns(1)
	})
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{sqlDB: db}, nil
}
