package staging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"folio/internal/config"
	"folio/internal/folio"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func readAll(t *testing.T, c folio.StagedContent) string {
	t.Helper()
	r, err := c.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(data)
}

// runStagingContract exercises a folio.StagingArea with the given capacity of 16 bytes.
func runStagingContract(t *testing.T, newArea func(t *testing.T, maxSize int64) folio.StagingArea) {
	t.Run("stages and reads back content", func(t *testing.T) {
		sa := newArea(t, 16)

		c, err := sa.Stage(writeString("hello"))
		if err != nil {
			t.Fatalf("Stage() error = %v", err)
		}
		if c.Size() != 5 {
			t.Errorf("Size() = %d, want 5", c.Size())
		}
		if got := readAll(t, c); got != "hello" {
			t.Errorf("content = %q, want %q", got, "hello")
		}

		used, _ := sa.Size()
		if used != 5 {
			t.Errorf("area Size() = %d, want 5", used)
		}

		c.Release()
		used, _ = sa.Size()
		if used != 0 {
			t.Errorf("area Size() after Release() = %d, want 0", used)
		}
	})

	t.Run("release is idempotent", func(t *testing.T) {
		sa := newArea(t, 16)
		c, _ := sa.Stage(writeString("abc"))
		c.Release()
		c.Release()

		used, _ := sa.Size()
		if used != 0 {
			t.Errorf("area Size() = %d, want 0", used)
		}
	})

	t.Run("rejects content over capacity", func(t *testing.T) {
		sa := newArea(t, 16)

		_, err := sa.Stage(writeString(strings.Repeat("x", 17)))
		if !errors.Is(err, folio.ErrStagingFull) {
			t.Fatalf("Stage() error = %v, want ErrStagingFull", err)
		}

		used, _ := sa.Size()
		if used != 0 {
			t.Errorf("area Size() after rejected Stage() = %d, want 0", used)
		}
	})

	t.Run("capacity is shared by uploads in flight", func(t *testing.T) {
		sa := newArea(t, 16)

		first, err := sa.Stage(writeString(strings.Repeat("a", 10)))
		if err != nil {
			t.Fatalf("first Stage() error = %v", err)
		}
		if _, err := sa.Stage(writeString(strings.Repeat("b", 10))); !errors.Is(err, folio.ErrStagingFull) {
			t.Fatalf("second Stage() error = %v, want ErrStagingFull", err)
		}

		first.Release()
		second, err := sa.Stage(writeString(strings.Repeat("b", 10)))
		if err != nil {
			t.Fatalf("Stage() after Release() error = %v", err)
		}
		second.Release()
	})

	t.Run("write error discards the slot", func(t *testing.T) {
		sa := newArea(t, 16)
		boom := errors.New("boom")

		_, err := sa.Stage(func(w io.Writer) error {
			io.WriteString(w, "partial")
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Stage() error = %v, want boom", err)
		}
		used, _ := sa.Size()
		if used != 0 {
			t.Errorf("area Size() = %d, want 0", used)
		}
	})

	t.Run("concurrent stages never exceed capacity", func(t *testing.T) {
		sa := newArea(t, 16)

		var wg sync.WaitGroup
		var mu sync.Mutex
		var staged []folio.StagedContent
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := sa.Stage(writeString("1234"))
				if err != nil {
					return
				}
				mu.Lock()
				staged = append(staged, c)
				mu.Unlock()
			}()
		}
		wg.Wait()

		if len(staged) > 4 {
			t.Errorf("%d uploads staged, want at most 4", len(staged))
		}
		used, _ := sa.Size()
		if used > 16 {
			t.Errorf("area Size() = %d, exceeds capacity", used)
		}
		for _, c := range staged {
			c.Release()
		}
	})
}

func TestMemoryStagingArea(t *testing.T) {
	runStagingContract(t, func(t *testing.T, maxSize int64) folio.StagingArea {
		return NewMemoryStagingArea(maxSize)
	})
}

func TestFileSystemStagingArea(t *testing.T) {
	runStagingContract(t, func(t *testing.T, maxSize int64) folio.StagingArea {
		sa, err := NewFileSystemStagingArea(t.TempDir(), maxSize)
		if err != nil {
			t.Fatalf("NewFileSystemStagingArea() error = %v", err)
		}
		return sa
	})
}

func TestFileSystemStagingArea_Files(t *testing.T) {
	dir := t.TempDir()

	t.Run("removes stale slots on startup", func(t *testing.T) {
		stale := filepath.Join(dir, "upload-stale")
		if err := os.WriteFile(stale, []byte("left over"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := NewFileSystemStagingArea(dir, 16); err != nil {
			t.Fatalf("NewFileSystemStagingArea() error = %v", err)
		}
		if _, err := os.Stat(stale); !os.IsNotExist(err) {
			t.Errorf("stale slot still present: %v", err)
		}
	})

	t.Run("release deletes the file", func(t *testing.T) {
		sa, _ := NewFileSystemStagingArea(dir, 16)
		c, err := sa.Stage(writeString("abc"))
		if err != nil {
			t.Fatalf("Stage() error = %v", err)
		}

		files, _ := filepath.Glob(filepath.Join(dir, slotPattern))
		if len(files) != 1 {
			t.Fatalf("%d slot files, want 1", len(files))
		}

		c.Release()
		files, _ = filepath.Glob(filepath.Join(dir, slotPattern))
		if len(files) != 0 {
			t.Errorf("%d slot files after Release(), want 0", len(files))
		}
	})
}

func TestNewStagingAreaFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StagingConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.StagingConfig{Type: "memory", MaxSize: 10}},
		{name: "default max size", cfg: config.StagingConfig{Type: "memory"}},
		{name: "filesystem", cfg: config.StagingConfig{Type: "filesystem", StagingDir: t.TempDir()}},
		{name: "filesystem without dir", cfg: config.StagingConfig{Type: "filesystem"}, wantErr: true},
		{name: "unknown", cfg: config.StagingConfig{Type: "s3"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStagingAreaFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStagingAreaFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Error("NewStagingAreaFromConfig() should return nil on error")
				}
				return
			}
			c, err := got.Stage(writeString("x"))
			if err != nil {
				t.Fatalf("Stage() error = %v", err)
			}
			c.Release()
		})
	}
}

func TestBudgetWriter_CountsBytes(t *testing.T) {
	sa := NewMemoryStagingArea(1 << 10)
	c, err := sa.Stage(func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(make([]byte, 300)))
		return err
	})
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	defer c.Release()
	if c.Size() != 300 {
		t.Errorf("Size() = %d, want 300", c.Size())
	}
}
