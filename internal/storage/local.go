package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStorage implements the Storage interface using local disk. Relative
// paths are resolved against a root directory.
type LocalStorage struct {
	root string
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage creates a new LocalStorage instance.
// If root is empty, relative paths resolve against the working directory.
func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: root}
}

// Root returns the directory relative paths resolve against.
func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) resolve(path string) string {
	if s.root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}

// Open returns a reader for the file at path.
func (s *LocalStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(s.resolve(path)) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// Save writes data to path through a temporary file in the same directory,
// creating parent directories as needed.
func (s *LocalStorage) Save(ctx context.Context, path string, data io.Reader) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dst := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+"_*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmp := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
