// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cache provides the narrow key/value adapter used by the SMS code
lifecycle and the login-attempt limiter.

It wraps the Redis client behind the [Store] interface so domain packages
never see transport types, and so unit tests can substitute the in-memory
implementation.

Error Contract:

  - Any transport failure surfaces as apperr.ServiceUnavailable. Callers on
    the critical path treat that conservatively (fail-closed) so an outage
    can never bypass a rate limit or a lockout.
  - A missing key is NOT an error: read operations report it via their
    found/ok result.
  - SetWithTTL rejects non-positive TTLs with apperr.InvalidArgument rather
    than silently creating an immortal key.
*/
package cache

import (
	"context"
	"time"
)

// Store is the adapter contract over the volatile key/value + hash cache.
type Store interface {

	// Set stores a value without expiry.
	Set(ctx context.Context, key, value string) error

	// SetWithTTL stores a value that expires after ttl.
	// A non-positive ttl is rejected with apperr.InvalidArgument.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Expire sets a fresh ttl on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining lifetime of the key. A missing key or a key
	// without expiry reports zero.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Incr atomically increments the integer value at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)

	// HSet stores the given fields on a hash key.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HGet returns a single hash field and whether it exists.
	HGet(ctx context.Context, key, field string) (value string, found bool, err error)

	// HGetAll returns every field of a hash key. Missing keys yield an
	// empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HDel removes fields from a hash key.
	HDel(ctx context.Context, key string, fields ...string) error

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error
}
