// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattermost/ltengine/loadtest/store"

	"github.com/lib/pq"
)

// DefaultTable is the table used when none is given.
const DefaultTable = "ltengine_kv"

const queryTimeout = 10 * time.Second

// SQLStore is a store.KVStore backed by a single PostgreSQL table with a
// text primary key and a bytea value column.
type SQLStore struct {
	db    *sql.DB
	table string
}

// New opens a connection to the PostgreSQL database described by
// dataSource and makes sure the backing table exists.
func New(dataSource, table string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dataSource)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: could not open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	s, err := NewWithDB(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB creates a SQLStore on top of an already opened database handle.
func NewWithDB(db *sql.DB, table string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("sqlstore: db should not be nil")
	}
	if table == "" {
		table = DefaultTable
	}
	s := &SQLStore{
		db:    db,
		table: pq.QuoteIdentifier(table),
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value BYTEA NOT NULL, updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`, s.table)
	if _, err := db.ExecContext(ctx, q); err != nil {
		return nil, fmt.Errorf("sqlstore: could not create table: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var value []byte
	q := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("sqlstore: could not get %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLStore) Set(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	q := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, NOW()) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("sqlstore: could not set %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	q := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("sqlstore: could not delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ensure SQLStore implements store.KVStore interface
var _ store.KVStore = (*SQLStore)(nil)
