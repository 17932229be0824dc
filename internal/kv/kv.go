// Package kv provides the shared persistent key-value abstraction used by
// the incident tracker, the delivery queue, and the event publisher.
// Values are JSON strings; list operations have durable FIFO semantics.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by GetWithTTL and ListPop on a miss.
// A miss is a valid outcome for callers, not a failure.
var ErrNotFound = errors.New("kv: not found")

type Store interface {
	// GetWithTTL returns the value stored at key or ErrNotFound.
	GetWithTTL(ctx context.Context, key string) (string, error)

	// SetWithTTL stores value at key, expiring after ttl. A ttl of zero
	// stores without expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value at key only if the key does not exist.
	// Returns true if the write won. Used as a registration guard to
	// serialize concurrent incident creation per context key.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// ScanByPrefix returns all keys matching the glob pattern.
	ScanByPrefix(ctx context.Context, pattern string) ([]string, error)

	// ListPush pushes item onto the head of the list at key.
	ListPush(ctx context.Context, key, item string) error

	// ListPop pops from the tail of the list at key (FIFO with ListPush)
	// or returns ErrNotFound when the list is empty.
	ListPop(ctx context.Context, key string) (string, error)

	// ListLength returns the number of items in the list at key.
	ListLength(ctx context.Context, key string) (int64, error)
}
