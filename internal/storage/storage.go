package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned by Get when no object exists under the key.
// The metadata row may still exist; callers treat that as a consistency gap.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds one opaque, pre-encrypted object per vault file, addressed
// by an unguessable random key distinct from the file's public identifier.
type BlobStore interface {
	Save(ctx context.Context, key string, data io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete is a no-op for keys that are already gone, so the cleanup
	// sweep can safely re-run.
	Delete(ctx context.Context, key string) error
}
