package objectstore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"folio/internal/folio"
)

// runObjectStoreContract exercises the folio.ObjectStore contract.
func runObjectStoreContract(t *testing.T, newStore func(t *testing.T) folio.ObjectStore) {
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		if err := s.Put(ctx, "key-1", strings.NewReader("hello world"), 11); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		var buf bytes.Buffer
		if err := s.Get(ctx, "key-1", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "hello world" {
			t.Errorf("Get() = %q, want %q", buf.String(), "hello world")
		}
	})

	t.Run("put replaces existing object", func(t *testing.T) {
		s := newStore(t)
		s.Put(ctx, "key-1", strings.NewReader("old"), 3)
		if err := s.Put(ctx, "key-1", strings.NewReader("newer"), 5); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		var buf bytes.Buffer
		s.Get(ctx, "key-1", &buf)
		if buf.String() != "newer" {
			t.Errorf("Get() = %q, want %q", buf.String(), "newer")
		}
	})

	t.Run("empty object", func(t *testing.T) {
		s := newStore(t)
		if err := s.Put(ctx, "empty", strings.NewReader(""), 0); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		var buf bytes.Buffer
		if err := s.Get(ctx, "empty", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("Get() returned %d bytes, want 0", buf.Len())
		}
	})

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)
		err := s.Get(ctx, "missing", &bytes.Buffer{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		s.Put(ctx, "key-1", strings.NewReader("data"), 4)

		if err := s.Delete(ctx, "key-1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := s.Get(ctx, "key-1", &bytes.Buffer{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "key-1"); err != nil {
			t.Errorf("Delete() of missing key error = %v, want nil", err)
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		s := newStore(t)
		if err := s.ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}
