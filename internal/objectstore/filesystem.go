package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"folio/internal/folio"
)

// ErrNotFound is returned by Get for a key with no stored object.
var ErrNotFound = errors.New("object not found")

// FileSystemStore keeps objects as files below a root directory:
//
//	<root>/
//	  .tmp/          (in-progress writes)
//	  <k0k1>/<key>   (objects, fanned out by the first two key characters)
type FileSystemStore struct {
	root   string
	tmpDir string
}

var _ folio.ObjectStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates the directory structure under root if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	tmpDir := filepath.Join(root, ".tmp")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object store directory: %w", err)
	}
	return &FileSystemStore{root: root, tmpDir: tmpDir}, nil
}

func (s *FileSystemStore) objectPath(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	fan := key
	if len(fan) > 2 {
		fan = fan[:2]
	}
	return filepath.Join(s.root, fan, key), nil
}

// Put writes the object through a temp file and renames it into place.
func (s *FileSystemStore) Put(_ context.Context, key string, r io.Reader, size int64) error {
	destPath, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.tmpDir, "put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

func (s *FileSystemStore) Get(_ context.Context, key string, w io.Writer) error {
	srcPath, err := s.objectPath(key)
	if err != nil {
		return err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

func (s *FileSystemStore) Delete(_ context.Context, key string) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// ValidateSetup checks that the root is a directory and writable.
func (s *FileSystemStore) ValidateSetup(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("object store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("object store root is not a directory: %s", s.root)
	}

	probe, err := os.CreateTemp(s.tmpDir, "probe-*")
	if err != nil {
		return fmt.Errorf("object store not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}
