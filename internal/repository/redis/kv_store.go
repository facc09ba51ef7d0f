package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"userauth/internal/domain"
	"userauth/internal/repository"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "userauth:session:"

// KVStore keeps process-wide values as plain Redis strings under a prefix.
type KVStore struct {
	client redis.UniversalClient
	prefix string
}

func NewKVStore(client redis.UniversalClient, prefix string) repository.KVStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &KVStore{client: client, prefix: prefix}
}

// Init is a no-op; Redis needs no schema.
func (s *KVStore) Init(context.Context) error { return nil }

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, storageErr("get "+key, err)
	}
	return v, true, nil
}

func (s *KVStore) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	values, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, storageErr("mget", err)
	}
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

func (s *KVStore) SetMany(ctx context.Context, values map[string]string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return storageErr("set", err)
	}
	return nil
}

func (s *KVStore) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return storageErr("del", err)
	}
	return nil
}

func (s *KVStore) key(k string) string {
	return s.prefix + k
}

func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: fmt.Errorf("redis: %w", err)}
}
