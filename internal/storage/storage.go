// Package storage provides byte access to recordings, annotations and
// extraction outputs. It defines the Storage interface (port) and
// implementations for local disk and S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
)

// ErrNotFound is returned when a path does not exist. It also matches
// fs.ErrNotExist.
var ErrNotFound = fmt.Errorf("storage: not found: %w", fs.ErrNotExist)

// Storage reads inputs and writes outputs by path.
type Storage interface {
	// Open returns a reader for path. Missing paths yield ErrNotFound.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Save writes data to path, replacing any existing content.
	Save(ctx context.Context, path string, data io.Reader) error
}
