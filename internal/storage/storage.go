// Package storage defines the Storage Backend contract consumed by
// the core: an opaque key to bytes map with get/put/delete/has/list/
// clear, plus a decorator that applies the retry policy required of
// a conforming backend.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when key has no stored value.
var ErrNotFound = errors.New("storage: key not found")

// Backend is the narrow interface the core consumes for persistence.
// Keys are opaque UTF-8 strings (a content-addressed object id or a
// fileId); implementations are free to back this with any medium.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
