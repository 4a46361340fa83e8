package folio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"folio/internal/model"
)

// EmptinessCheck selects which entries keep a folder from being deleted.
type EmptinessCheck string

const (
	// EmptinessDirect blocks deletion only for direct children of the folder.
	EmptinessDirect EmptinessCheck = "direct"
	// EmptinessSubtree blocks deletion for any entry at any depth below the folder.
	EmptinessSubtree EmptinessCheck = "subtree"
)

// ParseEmptinessCheck validates a configured emptiness mode. "" selects EmptinessDirect.
func ParseEmptinessCheck(s string) (EmptinessCheck, error) {
	switch EmptinessCheck(s) {
	case "", EmptinessDirect:
		return EmptinessDirect, nil
	case EmptinessSubtree:
		return EmptinessSubtree, nil
	}
	return "", fmt.Errorf("unknown emptiness check: %q", s)
}

const defaultContentType = "application/octet-stream"

// ListFilter narrows ListEntries. Empty fields match everything.
type ListFilter struct {
	OwnerID    string
	FolderPath string
}

// TreeManager maintains each user's tree of files and folders.
//
// The tree is flat: every entry records the owner, the canonical path of its
// containing folder and its own name, and (owner, folder path, name) is unique.
// A folder's children are the entries whose folder path equals the folder's
// child scope. File bytes live in the object store; entries only hold the key.
type TreeManager struct {
	store       Store
	objects     ObjectStore
	stagingArea StagingArea
	encryptor   Encryptor
	logger      Logger
	clock       Clock
	idgen       IDGenerator
	emptiness   EmptinessCheck
}

func NewTreeManager(store Store, objects ObjectStore, stagingArea StagingArea, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator, emptiness EmptinessCheck) *TreeManager {
	if emptiness == "" {
		emptiness = EmptinessDirect
	}
	return &TreeManager{
		store:       store,
		objects:     objects,
		stagingArea: stagingArea,
		encryptor:   encryptor,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
		emptiness:   emptiness,
	}
}

// UploadFile stores content as a new file named filename inside folderPath.
func (m *TreeManager) UploadFile(ctx context.Context, ownerID, folderPath, filename, contentType string, content io.Reader) (*model.Entry, error) {
	owner, folderPath, err := m.checkNewEntry(ctx, ownerID, folderPath, filename)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	hasher := sha256.New()
	counter := &countingWriter{}
	plaintext := io.TeeReader(content, io.MultiWriter(hasher, counter))

	staged, err := m.stagingArea.Stage(func(w io.Writer) error {
		return m.encryptor.Encrypt(plaintext, w)
	})
	if err != nil {
		if errors.Is(err, ErrStagingFull) {
			return nil, newError(ErrBadRequest, "upload exceeds staging capacity")
		}
		return nil, fmt.Errorf("staging upload: %w", err)
	}
	defer staged.Release()

	key := m.idgen.New()
	if err := m.putStaged(ctx, key, staged); err != nil {
		return nil, err
	}

	entry := &model.Entry{
		OwnerID:         owner,
		FolderPath:      folderPath,
		Filename:        filename,
		ContentType:     contentType,
		StorageKey:      key,
		Size:            counter.n,
		Checksum:        hex.EncodeToString(hasher.Sum(nil)),
		Encrypted:       m.encryptor.Enabled(),
		UploadTimestamp: m.clock.Now().UTC(),
	}
	if err := m.insertEntry(ctx, entry); err != nil {
		m.deleteObject(ctx, key)
		return nil, err
	}

	m.logger.Info("file uploaded", "id", entry.ID.Hex(), "path", entry.FullPath(), "size", entry.Size)
	return entry, nil
}

func (m *TreeManager) putStaged(ctx context.Context, key string, staged StagedContent) error {
	r, err := staged.Open()
	if err != nil {
		return fmt.Errorf("opening staged upload: %w", err)
	}
	defer r.Close()

	if err := m.objects.Put(ctx, key, r, staged.Size()); err != nil {
		return fmt.Errorf("storing object: %w", err)
	}
	return nil
}

// CreateFolder creates an empty folder named filename inside folderPath.
func (m *TreeManager) CreateFolder(ctx context.Context, ownerID, folderPath, filename string) (*model.Entry, error) {
	owner, folderPath, err := m.checkNewEntry(ctx, ownerID, folderPath, filename)
	if err != nil {
		return nil, err
	}

	entry := &model.Entry{
		OwnerID:         owner,
		FolderPath:      folderPath,
		Filename:        filename,
		IsFolder:        true,
		UploadTimestamp: m.clock.Now().UTC(),
	}
	if err := m.insertEntry(ctx, entry); err != nil {
		return nil, err
	}

	m.logger.Info("folder created", "id", entry.ID.Hex(), "path", entry.FullPath())
	return entry, nil
}

// checkNewEntry validates the owner and name of an entry about to be created
// and returns the owner id and canonical folder path.
func (m *TreeManager) checkNewEntry(ctx context.Context, ownerID, folderPath, filename string) (primitive.ObjectID, string, error) {
	owner, err := model.ParseID(ownerID)
	if err != nil {
		return owner, "", newError(ErrBadRequest, "Invalid user ID")
	}

	user, err := m.store.FindUserByID(ctx, owner)
	if err != nil {
		return owner, "", fmt.Errorf("finding owner: %w", err)
	}
	if user == nil {
		return owner, "", newError(ErrNotFound, "User not found")
	}

	if err := validateFilename(filename); err != nil {
		return owner, "", err
	}

	folderPath = CleanFolderPath(folderPath)
	existing, err := m.store.FindEntryByPath(ctx, owner, folderPath, filename)
	if err != nil {
		return owner, "", fmt.Errorf("checking for existing entry: %w", err)
	}
	if existing != nil {
		return owner, "", newError(ErrConflict, "File has duplicate path")
	}

	return owner, folderPath, nil
}

// insertEntry stores entry, turning a unique index violation into a conflict.
// The check in checkNewEntry does not close the race between two concurrent creates.
func (m *TreeManager) insertEntry(ctx context.Context, entry *model.Entry) error {
	id, err := m.store.InsertEntry(ctx, entry)
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return newError(ErrConflict, "File has duplicate path")
		}
		return fmt.Errorf("inserting entry: %w", err)
	}
	entry.ID = id
	return nil
}

// ListEntries returns the entries matching filter, of every owner when filter is empty.
func (m *TreeManager) ListEntries(ctx context.Context, filter ListFilter) ([]*model.Entry, error) {
	var f model.EntryFilter
	if filter.OwnerID != "" {
		owner, err := model.ParseID(filter.OwnerID)
		if err != nil {
			return nil, newError(ErrBadRequest, "Invalid user ID")
		}
		f.OwnerID = &owner
	}
	if filter.FolderPath != "" {
		folderPath := CleanFolderPath(filter.FolderPath)
		f.FolderPath = &folderPath
	}

	entries, err := m.store.ListEntries(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

// DeleteFile removes an entry by id, folder or not, and then its stored object.
func (m *TreeManager) DeleteFile(ctx context.Context, fileID string) error {
	id, err := model.ParseID(fileID)
	if err != nil {
		return newError(ErrBadRequest, "Invalid file ID")
	}

	entry, err := m.store.FindEntryByID(ctx, id)
	if err != nil {
		return fmt.Errorf("finding entry: %w", err)
	}
	if entry == nil {
		return newError(ErrNotFound, "File not found")
	}

	deleted, err := m.store.DeleteEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if !deleted {
		return newError(ErrNotFound, "File not found")
	}

	if entry.StorageKey != "" {
		m.deleteObject(ctx, entry.StorageKey)
	}

	m.logger.Info("file deleted", "id", fileID, "path", entry.FullPath())
	return nil
}

// DeleteFolder removes a folder that has no children.
func (m *TreeManager) DeleteFolder(ctx context.Context, folderID string) error {
	id, err := model.ParseID(folderID)
	if err != nil {
		return newError(ErrBadRequest, "Invalid folder ID")
	}

	folder, err := m.store.FindEntryByID(ctx, id)
	if err != nil {
		return fmt.Errorf("finding folder: %w", err)
	}
	if folder == nil {
		return newError(ErrNotFound, "Folder not found")
	}

	scope := ChildScope(folder.FolderPath, folder.Filename)
	child, err := m.store.FindEntryInScope(ctx, folder.OwnerID, scope, m.emptiness == EmptinessSubtree)
	if err != nil {
		return fmt.Errorf("checking folder contents: %w", err)
	}
	if child != nil {
		return newError(ErrConflict, "Folder not empty")
	}

	// An entry inserted into scope after the check above is orphaned.
	deleted, err := m.store.DeleteEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}
	if !deleted {
		return newError(ErrNotFound, "Folder not found")
	}

	m.logger.Info("folder deleted", "id", folderID, "path", folder.FullPath())
	return nil
}

// OpenFile writes the plaintext content of a file to w and returns its entry.
// Encrypted content requires dc; it may be nil when nothing is encrypted.
func (m *TreeManager) OpenFile(ctx context.Context, fileID string, dc DecryptionContext, w io.Writer) (*model.Entry, error) {
	entry, err := m.FindFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if !entry.Encrypted {
		if err := m.objects.Get(ctx, entry.StorageKey, w); err != nil {
			return nil, fmt.Errorf("reading object: %w", err)
		}
		return entry, nil
	}

	if dc == nil {
		return nil, fmt.Errorf("file %s is encrypted and no decryption key is unlocked", fileID)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(m.objects.Get(ctx, entry.StorageKey, pw))
	}()
	defer pr.Close()

	if err := dc.Decrypt(pr, w); err != nil {
		return nil, fmt.Errorf("decrypting object: %w", err)
	}
	return entry, nil
}

// FindFile returns the file entry with the given id.
func (m *TreeManager) FindFile(ctx context.Context, fileID string) (*model.Entry, error) {
	id, err := model.ParseID(fileID)
	if err != nil {
		return nil, newError(ErrBadRequest, "Invalid file ID")
	}

	entry, err := m.store.FindEntryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding entry: %w", err)
	}
	if entry == nil {
		return nil, newError(ErrNotFound, "File not found")
	}
	if entry.IsFolder {
		return nil, newError(ErrBadRequest, "%s is a folder", entry.FullPath())
	}
	return entry, nil
}

func (m *TreeManager) deleteObject(ctx context.Context, key string) {
	if err := m.objects.Delete(ctx, key); err != nil {
		m.logger.Warn("deleting object", "key", key, "error", err)
	}
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
