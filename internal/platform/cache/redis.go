// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
)

// RedisStore implements [Store] on top of a go-redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// unavailable normalizes a transport failure to the stable taxonomy.
// Context cancellation keeps its own code so deadlines are distinguishable
// from outages in logs.
func unavailable(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout("Cache operation timed out").WithCause(err)
	}
	return apperr.ServiceUnavailable("Cache is unavailable").WithCause(err)
}

// Set stores a value without expiry.
func (store *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := store.client.Set(ctx, key, value, 0).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// SetWithTTL stores a value that expires after ttl.
//
// A non-positive ttl is rejected up front: passing 0 to Redis would create
// a key that never expires, silently defeating every cooldown and lockout
// built on this adapter.
func (store *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return apperr.InvalidArgument("TTL must be positive")
	}
	if err := store.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Get returns the value and whether the key exists.
func (store *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := store.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable(err)
	}
	return value, true, nil
}

// Exists reports whether the key is present.
func (store *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	count, err := store.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return count > 0, nil
}

// Del removes the given keys. Missing keys are not an error.
func (store *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := store.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Expire sets a fresh ttl on an existing key.
func (store *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := store.client.Expire(ctx, key, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// TTL returns the remaining lifetime of the key.
//
// Redis reports -2 for a missing key and -1 for a key without expiry; both
// collapse to zero here because callers only use this for residual-time
// display.
func (store *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := store.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Incr atomically increments the integer value at key, creating it at 1.
//
// An overflow of the underlying 64-bit counter surfaces as a Redis error
// and is normalized to ServiceUnavailable like any other transport failure.
func (store *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	count, err := store.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return count, nil
}

// HSet stores the given fields on a hash key.
func (store *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	flat := make([]interface{}, 0, len(fields)*2)
	for field, value := range fields {
		flat = append(flat, field, value)
	}
	if err := store.client.HSet(ctx, key, flat...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// HGet returns a single hash field and whether it exists.
func (store *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	value, err := store.client.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable(err)
	}
	return value, true, nil
}

// HGetAll returns every field of a hash key.
func (store *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := store.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return fields, nil
}

// HDel removes fields from a hash key.
func (store *RedisStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := store.client.HDel(ctx, key, fields...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Ping verifies connectivity to the backing store.
func (store *RedisStore) Ping(ctx context.Context) error {
	if err := store.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
