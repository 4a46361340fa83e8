package model

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidID is returned by ParseID for strings that are not 24-character hex object ids.
var ErrInvalidID = errors.New("invalid object id")

// ParseID parses the hex form of an object id.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return id, nil
}

// User is an account. Users created through registration carry a Name,
// users created through the directory carry a Username; both carry an Email.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name,omitempty"`
	Email        string             `bson:"email"`
	Username     string             `bson:"username,omitempty"` // unique when set
	PasswordHash string             `bson:"password"`           // bcrypt hash, never plaintext
	CreatedAt    time.Time          `bson:"created_at"`
}

// Entry is a file or folder in a user's tree. The tree is not stored as such:
// an entry only knows the path of the folder that contains it.
type Entry struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID         primitive.ObjectID `bson:"owner_id"`
	FolderPath      string             `bson:"folder_path"` // canonical, see folio.CleanFolderPath
	Filename        string             `bson:"filename"`
	IsFolder        bool               `bson:"is_folder"`
	ContentType     string             `bson:"content_type,omitempty"`
	StorageKey      string             `bson:"storage_key,omitempty"` // object store key, files only
	Size            int64              `bson:"size,omitempty"`        // plaintext bytes
	Checksum        string             `bson:"checksum,omitempty"`    // SHA-256 of plaintext
	Encrypted       bool               `bson:"encrypted,omitempty"`
	UploadTimestamp time.Time          `bson:"upload_timestamp"`
}

// FullPath returns the path of the entry itself. folio.FullPath builds on it.
func (e *Entry) FullPath() string {
	if e.FolderPath == "/" {
		return "/" + e.Filename
	}
	return e.FolderPath + "/" + e.Filename
}

// EntryFilter narrows ListEntries. Nil fields match everything.
type EntryFilter struct {
	OwnerID    *primitive.ObjectID
	FolderPath *string
}
