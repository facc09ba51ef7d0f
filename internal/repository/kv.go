package repository

import "context"

// KVStore is process-wide persisted key/value storage. SetMany and
// DeleteMany apply all keys or none.
type KVStore interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) (string, bool, error)
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	SetMany(ctx context.Context, values map[string]string) error
	DeleteMany(ctx context.Context, keys ...string) error
}
