// Package blob defines the object storage the file bytes live in. The catalog
// only keeps the key returned by the upload flow.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"bitwise74/file-api/pkg/validators"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Store is a key addressed object store. Implementations must be safe for
// concurrent use. Delete of a missing key is not an error.
type Store interface {
	Put(ctx context.Context, key string, src validators.Source, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URLFor(ctx context.Context, key string) (string, error)
}

// Object is a stored object as reported by a Lister
type Object struct {
	Key        string
	ModifiedAt time.Time
}

// Lister is implemented by stores that can enumerate their objects. Used by
// the orphan sweeper.
type Lister interface {
	List(ctx context.Context, prefix string) ([]Object, error)
}

// ValidKey reports whether key is a relative slash separated path that stays
// inside the store, e.g. "alice/Xk2a9PqL0bZc"
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}

	if path.Clean(key) != key {
		return false
	}

	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return false
		}
	}

	return true
}
