// Package kvstore defines the namespaced key-value store the auction
// service persists into, along with an in-memory implementation.
//
// The two write verbs are deliberately conditional: Create only succeeds
// when the key is absent, Update only when it is present. Both execute the
// caller's closure inside a single read-modify-write unit, so a closure
// error aborts the write and no other operation ever observes a partially
// written record.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no record exists at the requested key.
	ErrNotFound = errors.New("kvstore: record not found")

	// ErrExists is returned by Create when a record already exists at the key.
	ErrExists = errors.New("kvstore: record already exists")
)

// ProduceFunc builds the value for a conditional create. It must be pure:
// implementations may invoke it before knowing whether the key is free and
// discard the result.
type ProduceFunc func() ([]byte, error)

// TransformFunc maps the existing value to its replacement for a
// conditional update. Returning an error aborts the write.
type TransformFunc func(existing []byte) ([]byte, error)

// Store is a key-value store scoped by a string namespace. Keys are raw
// bytes and ordered bytewise within a namespace.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, namespace string, key []byte) ([]byte, error)

	// Create installs produce()'s result at key if and only if no record
	// exists there. Returns ErrExists (leaving the store unchanged) when a
	// record is already present.
	Create(ctx context.Context, namespace string, key []byte, produce ProduceFunc) error

	// Update replaces the record at key with transform(existing) if and only
	// if a record exists there. Returns ErrNotFound when absent. A transform
	// error aborts the write and is returned unchanged.
	Update(ctx context.Context, namespace string, key []byte, transform TransformFunc) error

	// Keys returns up to limit keys in the namespace in ascending byte
	// order, strictly after startAfter when startAfter is non-nil. Each call
	// scans from the given start; no cursor state is kept between calls.
	Keys(ctx context.Context, namespace string, startAfter []byte, limit int) ([][]byte, error)
}
