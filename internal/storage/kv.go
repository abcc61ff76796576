// internal/storage/kv.go
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Set when the value does not fit
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
)

// KeyValueStore is the string store behind the session cache
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that need periodic removal of expired entries
type Sweeper interface {
	Sweep() int
}
