package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"folio/internal/folio"
)

const slotPattern = "upload-*"

// fileSystemStore keeps each slot as a file in the staging directory:
//
//	<staging_dir>/
//	  upload-<random>   (one file per upload in flight)
type fileSystemStore struct {
	dir string
}

// NewFileSystemStagingArea creates a staging area backed by files in stagingDir,
// holding at most maxSize bytes. Slots left behind by a previous process are removed.
func NewFileSystemStagingArea(stagingDir string, maxSize int64) (folio.StagingArea, error) {
	if err := os.MkdirAll(stagingDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	stale, err := filepath.Glob(filepath.Join(stagingDir, slotPattern))
	if err != nil {
		return nil, fmt.Errorf("listing stale staging files: %w", err)
	}
	for _, p := range stale {
		os.Remove(p)
	}

	return newStagingArea(&fileSystemStore{dir: stagingDir}, maxSize), nil
}

func (f *fileSystemStore) Create() (string, io.WriteCloser, error) {
	file, err := os.CreateTemp(f.dir, slotPattern)
	if err != nil {
		return "", nil, fmt.Errorf("creating staging file: %w", err)
	}
	return filepath.Base(file.Name()), file, nil
}

func (f *fileSystemStore) Open(id string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(f.dir, id))
	if err != nil {
		return nil, fmt.Errorf("opening staged content: %w", err)
	}
	return file, nil
}

func (f *fileSystemStore) Remove(id string) {
	os.Remove(filepath.Join(f.dir, id))
}
