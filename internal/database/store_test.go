package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"folio/internal/folio"
	"folio/internal/model"
)

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// runStoreContract exercises the folio.Store contract against a backend.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) folio.Store) {
	ctx := context.Background()

	insertUser := func(t *testing.T, s folio.Store, email, username string) primitive.ObjectID {
		t.Helper()
		id, err := s.InsertUser(ctx, &model.User{
			Email:        email,
			Username:     username,
			PasswordHash: "hash",
			CreatedAt:    testTime,
		})
		if err != nil {
			t.Fatalf("InsertUser(%s) error = %v", email, err)
		}
		return id
	}

	insertEntry := func(t *testing.T, s folio.Store, owner primitive.ObjectID, folderPath, filename string, isFolder bool) primitive.ObjectID {
		t.Helper()
		id, err := s.InsertEntry(ctx, &model.Entry{
			OwnerID:         owner,
			FolderPath:      folderPath,
			Filename:        filename,
			IsFolder:        isFolder,
			UploadTimestamp: testTime,
		})
		if err != nil {
			t.Fatalf("InsertEntry(%s/%s) error = %v", folderPath, filename, err)
		}
		return id
	}

	t.Run("user lookups return nil when missing", func(t *testing.T) {
		s := newStore(t)

		u, err := s.FindUserByEmail(ctx, "nobody@example.com")
		if err != nil || u != nil {
			t.Errorf("FindUserByEmail() = %v, %v; want nil, nil", u, err)
		}
		u, err = s.FindUserByUsername(ctx, "nobody")
		if err != nil || u != nil {
			t.Errorf("FindUserByUsername() = %v, %v; want nil, nil", u, err)
		}
		u, err = s.FindUserByID(ctx, primitive.NewObjectID())
		if err != nil || u != nil {
			t.Errorf("FindUserByID() = %v, %v; want nil, nil", u, err)
		}
	})

	t.Run("inserts and finds users", func(t *testing.T) {
		s := newStore(t)
		user := &model.User{
			Name:         "Ada",
			Email:        "ada@example.com",
			PasswordHash: "hash",
			CreatedAt:    testTime,
		}
		id, err := s.InsertUser(ctx, user)
		if err != nil {
			t.Fatalf("InsertUser() error = %v", err)
		}
		if id.IsZero() || user.ID != id {
			t.Fatalf("InsertUser() id = %v, user.ID = %v", id, user.ID)
		}

		got, err := s.FindUserByID(ctx, id)
		if err != nil {
			t.Fatalf("FindUserByID() error = %v", err)
		}
		if got == nil {
			t.Fatal("FindUserByID() = nil, want user")
		}
		if got.Email != "ada@example.com" || got.Name != "Ada" || got.PasswordHash != "hash" {
			t.Errorf("FindUserByID() = %+v", got)
		}
		if !got.CreatedAt.Equal(testTime) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, testTime)
		}

		byEmail, err := s.FindUserByEmail(ctx, "ada@example.com")
		if err != nil || byEmail == nil || byEmail.ID != id {
			t.Errorf("FindUserByEmail() = %v, %v", byEmail, err)
		}
	})

	t.Run("duplicate email is a duplicate key", func(t *testing.T) {
		s := newStore(t)
		insertUser(t, s, "dup@example.com", "")

		_, err := s.InsertUser(ctx, &model.User{Email: "dup@example.com", PasswordHash: "x", CreatedAt: testTime})
		if !errors.Is(err, folio.ErrDuplicateKey) {
			t.Errorf("InsertUser() error = %v, want ErrDuplicateKey", err)
		}
	})

	t.Run("username is unique only when set", func(t *testing.T) {
		s := newStore(t)
		insertUser(t, s, "a@example.com", "")
		insertUser(t, s, "b@example.com", "")
		insertUser(t, s, "c@example.com", "carol")

		_, err := s.InsertUser(ctx, &model.User{Email: "d@example.com", Username: "carol", PasswordHash: "x", CreatedAt: testTime})
		if !errors.Is(err, folio.ErrDuplicateKey) {
			t.Errorf("InsertUser() error = %v, want ErrDuplicateKey", err)
		}

		got, err := s.FindUserByUsername(ctx, "carol")
		if err != nil || got == nil || got.Email != "c@example.com" {
			t.Errorf("FindUserByUsername() = %v, %v", got, err)
		}
	})

	t.Run("lists and deletes users", func(t *testing.T) {
		s := newStore(t)
		first := insertUser(t, s, "a@example.com", "")
		insertUser(t, s, "b@example.com", "bee")

		users, err := s.ListUsers(ctx)
		if err != nil {
			t.Fatalf("ListUsers() error = %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("len(ListUsers()) = %d, want 2", len(users))
		}

		deleted, err := s.DeleteUser(ctx, first)
		if err != nil || !deleted {
			t.Fatalf("DeleteUser() = %v, %v; want true", deleted, err)
		}
		deleted, err = s.DeleteUser(ctx, first)
		if err != nil || deleted {
			t.Errorf("second DeleteUser() = %v, %v; want false", deleted, err)
		}

		users, _ = s.ListUsers(ctx)
		if len(users) != 1 {
			t.Errorf("len(ListUsers()) after delete = %d, want 1", len(users))
		}
	})

	t.Run("entry triple is unique per owner", func(t *testing.T) {
		s := newStore(t)
		alice := insertUser(t, s, "alice@example.com", "")
		bob := insertUser(t, s, "bob@example.com", "")
		insertEntry(t, s, alice, "/docs", "a.txt", false)

		_, err := s.InsertEntry(ctx, &model.Entry{OwnerID: alice, FolderPath: "/docs", Filename: "a.txt", IsFolder: true, UploadTimestamp: testTime})
		if !errors.Is(err, folio.ErrDuplicateKey) {
			t.Errorf("InsertEntry() error = %v, want ErrDuplicateKey", err)
		}

		// Same path, different owner.
		insertEntry(t, s, bob, "/docs", "a.txt", false)
	})

	t.Run("finds entries by id and path", func(t *testing.T) {
		s := newStore(t)
		owner := insertUser(t, s, "o@example.com", "")
		entry := &model.Entry{
			OwnerID:         owner,
			FolderPath:      "/docs",
			Filename:        "report.pdf",
			ContentType:     "application/pdf",
			StorageKey:      "key-1",
			Size:            42,
			Checksum:        "abc",
			Encrypted:       true,
			UploadTimestamp: testTime,
		}
		id, err := s.InsertEntry(ctx, entry)
		if err != nil {
			t.Fatalf("InsertEntry() error = %v", err)
		}

		got, err := s.FindEntryByID(ctx, id)
		if err != nil || got == nil {
			t.Fatalf("FindEntryByID() = %v, %v", got, err)
		}
		if got.OwnerID != owner || got.StorageKey != "key-1" || got.Size != 42 || !got.Encrypted || got.IsFolder {
			t.Errorf("FindEntryByID() = %+v", got)
		}
		if !got.UploadTimestamp.Equal(testTime) {
			t.Errorf("UploadTimestamp = %v, want %v", got.UploadTimestamp, testTime)
		}

		byPath, err := s.FindEntryByPath(ctx, owner, "/docs", "report.pdf")
		if err != nil || byPath == nil || byPath.ID != id {
			t.Errorf("FindEntryByPath() = %v, %v", byPath, err)
		}

		missing, err := s.FindEntryByPath(ctx, owner, "/docs", "other.pdf")
		if err != nil || missing != nil {
			t.Errorf("FindEntryByPath(missing) = %v, %v; want nil, nil", missing, err)
		}
		missing, err = s.FindEntryByID(ctx, primitive.NewObjectID())
		if err != nil || missing != nil {
			t.Errorf("FindEntryByID(missing) = %v, %v; want nil, nil", missing, err)
		}
	})

	t.Run("finds entries in scope", func(t *testing.T) {
		s := newStore(t)
		owner := insertUser(t, s, "o@example.com", "")
		other := insertUser(t, s, "x@example.com", "")
		insertEntry(t, s, owner, "/docs/2024", "deep.txt", false)
		insertEntry(t, s, other, "/docs", "theirs.txt", false)
		insertEntry(t, s, owner, "/docs_old", "sibling.txt", false)

		tests := []struct {
			name    string
			scope   string
			subtree bool
			want    string
		}{
			{"direct ignores deeper entries", "/docs", false, ""},
			{"subtree finds deeper entries", "/docs", true, "deep.txt"},
			{"direct exact match", "/docs/2024", false, "deep.txt"},
			{"subtree does not match name prefix", "/doc", true, ""},
			{"root subtree matches everything", "/", true, "any"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.FindEntryInScope(ctx, owner, tt.scope, tt.subtree)
				if err != nil {
					t.Fatalf("FindEntryInScope() error = %v", err)
				}
				switch {
				case tt.want == "" && got != nil:
					t.Errorf("FindEntryInScope() = %s, want nil", got.FullPath())
				case tt.want == "any" && got == nil:
					t.Error("FindEntryInScope() = nil, want an entry")
				case tt.want != "" && tt.want != "any" && (got == nil || got.Filename != tt.want):
					t.Errorf("FindEntryInScope() = %v, want %s", got, tt.want)
				}
				if got != nil && got.OwnerID != owner {
					t.Errorf("FindEntryInScope() returned entry of owner %v", got.OwnerID)
				}
			})
		}
	})

	t.Run("finds entries in scope with multi-byte and wildcard names", func(t *testing.T) {
		s := newStore(t)
		owner := insertUser(t, s, "o@example.com", "")
		insertEntry(t, s, owner, "/résumé/2024", "cv.pdf", false)
		insertEntry(t, s, owner, "/100%/q_1", "plan.txt", false)
		insertEntry(t, s, owner, "/a_b", "x.txt", false)
		insertEntry(t, s, owner, "/aXc/deep", "y.txt", false)

		tests := []struct {
			name  string
			scope string
			want  string
		}{
			{"multi-byte folder name", "/résumé", "cv.pdf"},
			{"multi-byte prefix of a longer name", "/résum", ""},
			{"percent in folder name", "/100%", "plan.txt"},
			{"percent is not a wildcard", "/1%", ""},
			{"underscore is not a wildcard", "/a", ""},
			{"underscore scope matches itself", "/a_b", "x.txt"},
			{"underscore does not match another character", "/a_c", ""},
			{"deeper than an underscore scope", "/100%/q_1", "plan.txt"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.FindEntryInScope(ctx, owner, tt.scope, true)
				if err != nil {
					t.Fatalf("FindEntryInScope() error = %v", err)
				}
				if tt.want == "" {
					if got != nil {
						t.Errorf("FindEntryInScope(%q) = %s, want nil", tt.scope, got.FullPath())
					}
					return
				}
				if got == nil || got.Filename != tt.want {
					t.Errorf("FindEntryInScope(%q) = %v, want %s", tt.scope, got, tt.want)
				}
			})
		}
	})

	t.Run("lists entries with filters", func(t *testing.T) {
		s := newStore(t)
		alice := insertUser(t, s, "alice@example.com", "")
		bob := insertUser(t, s, "bob@example.com", "")
		insertEntry(t, s, alice, "/", "docs", true)
		insertEntry(t, s, alice, "/docs", "a.txt", false)
		insertEntry(t, s, alice, "/docs", "b.txt", false)
		insertEntry(t, s, bob, "/docs", "c.txt", false)

		docs := "/docs"
		tests := []struct {
			name   string
			filter model.EntryFilter
			want   int
		}{
			{"no filter", model.EntryFilter{}, 4},
			{"owner", model.EntryFilter{OwnerID: &alice}, 3},
			{"folder", model.EntryFilter{FolderPath: &docs}, 3},
			{"owner and folder", model.EntryFilter{OwnerID: &bob, FolderPath: &docs}, 1},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.ListEntries(ctx, tt.filter)
				if err != nil {
					t.Fatalf("ListEntries() error = %v", err)
				}
				if len(got) != tt.want {
					t.Errorf("len(ListEntries()) = %d, want %d", len(got), tt.want)
				}
			})
		}
	})

	t.Run("deletes entries", func(t *testing.T) {
		s := newStore(t)
		owner := insertUser(t, s, "o@example.com", "")
		id := insertEntry(t, s, owner, "/", "docs", true)

		deleted, err := s.DeleteEntry(ctx, id)
		if err != nil || !deleted {
			t.Fatalf("DeleteEntry() = %v, %v; want true", deleted, err)
		}
		deleted, err = s.DeleteEntry(ctx, id)
		if err != nil || deleted {
			t.Errorf("second DeleteEntry() = %v, %v; want false", deleted, err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}
