package store

import (
	"database/sql"
	"errors"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
)

// Connection pool limits for PostgreSQL. The intake load is a handful of
// concurrent conversations, so the pool stays small.
const (
	PostgresMaxOpenConns    = 10
	PostgresMaxIdleConns    = 5
	PostgresConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists conversations, flow configuration, settings,
// knowledge documents and the inbound ledger in PostgreSQL.
type PostgresStore struct {
	*sqlDB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects with the configured DSN and applies the schema.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, errors.New("PostgresStore: DSN not set")
	}
	db, err := openSQL("PostgresStore", "postgres", cfg.DSN, postgresMigrations, true, func(db *sql.DB) {
		db.SetMaxOpenConns(PostgresMaxOpenConns)
		db.SetMaxIdleConns(PostgresMaxIdleConns)
		db.SetConnMaxLifetime(PostgresConnMaxLifetime)
	})
	if err != nil {
		return nil, err
	}
	return &PostgresStore{sqlDB: db}, nil
}
