// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/taibuivan/yomira-passport/internal/platform/apperr"
)

// Memory is an in-process [Store] used by unit tests and local development.
//
// # Clock
//
// Expiry is evaluated against the Now function, which tests may replace to
// simulate the passage of time without sleeping.
type Memory struct {
	mu     sync.Mutex
	items  map[string]memoryItem
	hashes map[string]map[string]string

	// Now supplies the current instant. Defaults to time.Now.
	Now func() time.Time

	// Fail, when set, makes every operation return ServiceUnavailable.
	// Tests use it to exercise fail-closed paths.
	Fail bool
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items:  make(map[string]memoryItem),
		hashes: make(map[string]map[string]string),
		Now:    time.Now,
	}
}

// live returns the item if present and unexpired, pruning it otherwise.
// Callers must hold the mutex.
func (store *Memory) live(key string) (memoryItem, bool) {
	item, ok := store.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expiresAt.IsZero() && !store.Now().Before(item.expiresAt) {
		delete(store.items, key)
		return memoryItem{}, false
	}
	return item, true
}

func (store *Memory) failErr() error {
	if store.Fail {
		return apperr.ServiceUnavailable("Cache is unavailable")
	}
	return nil
}

// Set stores a value without expiry.
func (store *Memory) Set(_ context.Context, key, value string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return err
	}
	store.items[key] = memoryItem{value: value}
	return nil
}

// SetWithTTL stores a value that expires after ttl.
func (store *Memory) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return err
	}
	if ttl <= 0 {
		return apperr.InvalidArgument("TTL must be positive")
	}
	store.items[key] = memoryItem{value: value, expiresAt: store.Now().Add(ttl)}
	return nil
}

// Get returns the value and whether the key exists.
func (store *Memory) Get(_ context.Context, key string) (string, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return "", false, err
	}
	item, ok := store.live(key)
	if !ok {
		return "", false, nil
	}
	return item.value, true, nil
}

// Exists reports whether the key is present.
func (store *Memory) Exists(_ context.Context, key string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return false, err
	}
	_, ok := store.live(key)
	return ok, nil
}

// Del removes the given keys.
func (store *Memory) Del(_ context.Context, keys ...string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return err
	}
	for _, key := range keys {
		delete(store.items, key)
	}
	return nil
}

// Expire sets a fresh ttl on an existing key.
func (store *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return err
	}
	item, ok := store.live(key)
	if !ok {
		return nil
	}
	item.expiresAt = store.Now().Add(ttl)
	store.items[key] = item
	return nil
}

// TTL returns the remaining lifetime of the key.
func (store *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return 0, err
	}
	item, ok := store.live(key)
	if !ok || item.expiresAt.IsZero() {
		return 0, nil
	}
	return item.expiresAt.Sub(store.Now()), nil
}

// Incr atomically increments the integer value at key, creating it at 1.
func (store *Memory) Incr(_ context.Context, key string) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return 0, err
	}
	item, ok := store.live(key)
	var count int64
	if ok {
		parsed, err := strconv.ParseInt(item.value, 10, 64)
		if err != nil {
			return 0, apperr.ServiceUnavailable("Counter holds a non-integer value")
		}
		count = parsed
	}
	count++
	item.value = strconv.FormatInt(count, 10)
	store.items[key] = item
	return count, nil
}

// HSet stores the given fields on a hash key.
func (store *Memory) HSet(_ context.Context, key string, fields map[string]string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return err
	}
	hash, ok := store.hashes[key]
	if !ok {
		hash = make(map[string]string, len(fields))
		store.hashes[key] = hash
	}
	for field, value := range fields {
		hash[field] = value
	}
	return nil
}

// HGet returns a single hash field and whether it exists.
func (store *Memory) HGet(_ context.Context, key, field string) (string, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return "", false, err
	}
	value, ok := store.hashes[key][field]
	return value, ok, nil
}

// HGetAll returns every field of a hash key.
func (store *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return nil, err
	}
	snapshot := make(map[string]string, len(store.hashes[key]))
	for field, value := range store.hashes[key] {
		snapshot[field] = value
	}
	return snapshot, nil
}

// HDel removes fields from a hash key.
func (store *Memory) HDel(_ context.Context, key string, fields ...string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.failErr(); err != nil {
		return err
	}
	for _, field := range fields {
		delete(store.hashes[key], field)
	}
	return nil
}

// Ping verifies connectivity (always healthy unless Fail is set).
func (store *Memory) Ping(_ context.Context) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.failErr()
}
