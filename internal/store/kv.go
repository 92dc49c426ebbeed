// Package store provides the key-value persistence layer: a small KV
// abstraction with Redis and in-memory implementations, and a RecordStore
// that maps license records onto it.
package store

import (
	"context"
)

// UpdateFunc transforms the current value of a key into its next value.
// exists is false when the key is absent; returning an error aborts the
// update without writing.
type UpdateFunc func(current string, exists bool) (next string, err error)

// KV is the minimal key-value surface the license server needs. All
// values are strings; sets hold string members.
type KV interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes the value for key unconditionally.
	Set(ctx context.Context, key, value string) error

	// SetNX writes value only if key is absent; returns whether it wrote.
	SetNX(ctx context.Context, key, value string) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Update applies fn to key atomically with respect to concurrent
	// Updates of the same key.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// SAdd adds member to the named set.
	SAdd(ctx context.Context, set, member string) error

	// SRem removes member from the named set.
	SRem(ctx context.Context, set, member string) error

	// SMembers returns all members of the named set.
	SMembers(ctx context.Context, set string) ([]string, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection resources.
	Close() error
}
