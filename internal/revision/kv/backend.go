// Package kv provides the capacity-bounded string key-value stores that hold
// revision snapshots and the revision index.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is returned by Set when the value does not fit in the
	// remaining capacity. Callers branch on it with errors.Is.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrUnavailable reports a backend that cannot serve requests at all.
	ErrUnavailable = errors.New("storage backend unavailable")
)

// Backend is a synchronous string key-value store with a size limit.
type Backend interface {
	// Get returns the value stored under key; ok is false when absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Lister is implemented by backends that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Unlimited disables capacity enforcement when passed as a capacity.
const Unlimited int64 = 0

// entrySize is the number of bytes an entry counts against capacity.
func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

// fits reports whether replacing an entry of oldSize bytes with one of newSize
// bytes keeps usage within capacity.
func fits(capacity, used, oldSize, newSize int64) bool {
	if capacity == Unlimited {
		return true
	}
	return used-oldSize+newSize <= capacity
}
