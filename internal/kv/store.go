package kv

import (
	"context"
	"errors"
)

// ErrNoKey is returned when a key or hash field does not exist.
var ErrNoKey = errors.New("kv: key not found")

// Store is the volatile key-value cache used for the content snapshot, the
// comment hash maps and the abuse counters. Implementations must make each
// call atomic; callers treat any returned error as "store unavailable" and
// degrade instead of failing hard.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes a plain value or a whole hash map.
	Delete(ctx context.Context, key string) error

	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key, field, value string) error
	HDelete(ctx context.Context, key, field string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}
