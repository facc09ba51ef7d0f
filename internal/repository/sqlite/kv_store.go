package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"userauth/internal/repository"
)

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// KVStore keeps small process-wide values in the metadata table.
type KVStore struct {
	db *sql.DB
}

func NewKVStore(db *sql.DB) repository.KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createMetadataTable); err != nil {
		return storageErr("create metadata table", err)
	}
	return nil
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, storageErr("get "+key, err)
	}
	return value, true, nil
}

func (s *KVStore) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	query := fmt.Sprintf(`SELECT key, value FROM metadata WHERE key IN (%s)`, placeholders(len(keys)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("get metadata", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, storageErr("scan metadata", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate metadata", err)
	}
	return out, nil
}

func (s *KVStore) SetMany(ctx context.Context, values map[string]string) error {
	return s.withTx(ctx, "set metadata", func(tx *sql.Tx) error {
		for k, v := range values {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
				return fmt.Errorf("set %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *KVStore) DeleteMany(ctx context.Context, keys ...string) error {
	return s.withTx(ctx, "delete metadata", func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *KVStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op, err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
