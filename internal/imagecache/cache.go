// Package imagecache stores thumbnail bytes keyed by bookmark identifier.
package imagecache

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get on a cache miss.
var ErrNotFound = errors.New("image not cached")

// Cache is a byte store for thumbnails. Implementations are safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Clear(ctx context.Context) error
}

var (
	_ Cache = (*Memory)(nil)
	_ Cache = (*File)(nil)
	_ Cache = (*Redis)(nil)
)
