// Package postgres reads computed leaderboard documents stored in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/mini-league/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "computed_documents"

// DocumentStoreConfig controls the Postgres connection pool used for reads.
type DocumentStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryCloser interface {
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// DocumentStore serves documents from a table shaped like:
//
//	CREATE TABLE computed_documents (
//		path       TEXT PRIMARY KEY,
//		body       JSONB NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type DocumentStore struct {
	pool  queryCloser
	table string
	query string
}

// NewDocumentStore connects a pool using the provided config.
func NewDocumentStore(ctx context.Context, cfg DocumentStoreConfig) (*DocumentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("source.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewDocumentStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewDocumentStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewDocumentStoreWithPool(pool queryCloser, table string) (*DocumentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &DocumentStore{
		pool:  pool,
		table: table,
		query: fmt.Sprintf(`SELECT body FROM %s WHERE path = $1`, table),
	}, nil
}

// Close releases the underlying pool resources.
func (s *DocumentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// GetObject returns the raw JSON body stored for path.
func (s *DocumentStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("document store is not configured")
	}
	key, err := storage.ObjectKey("", path)
	if err != nil {
		return nil, err
	}
	var body []byte
	if err := s.pool.QueryRow(ctx, s.query, key).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("read %s from %s: %w", key, s.table, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("query %s: %w", key, err)
	}
	return body, nil
}
