package folio

import (
	"strings"

	"folio/internal/model"
)

// Folder paths are opaque slash-separated strings compared by exact equality.
// The only normalization is syntactic: a leading "/" is ensured, runs of "/"
// collapse to one and a trailing "/" is dropped, so "docs", "/docs/" and
// "//docs" all name the same folder. Root is "/". "." and ".." are not resolved.

// CleanFolderPath returns the canonical form of a folder path.
func CleanFolderPath(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 1)
	b.WriteByte('/')
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		if b.Len() > 1 {
			b.WriteByte('/')
		}
		b.WriteString(seg)
	}
	return b.String()
}

// FullPath returns the canonical path of the entry named filename inside folderPath.
func FullPath(folderPath, filename string) string {
	e := model.Entry{FolderPath: CleanFolderPath(folderPath), Filename: filename}
	return e.FullPath()
}

// ChildScope returns the folder path under which the direct children of the
// folder (folderPath, filename) are filed: folderPath + "/" + filename + "/"
// in canonical form.
func ChildScope(folderPath, filename string) string {
	return CleanFolderPath(folderPath + "/" + filename + "/")
}

// SubtreePrefix returns the prefix shared by every folder path strictly below scope.
func SubtreePrefix(scope string) string {
	if scope == "/" {
		return "/"
	}
	return scope + "/"
}

// validateFilename rejects names that cannot be a single path segment.
func validateFilename(name string) error {
	switch {
	case name == "":
		return newError(ErrBadRequest, "Filename is required")
	case name == "." || name == "..":
		return newError(ErrBadRequest, "Invalid filename %q", name)
	case strings.Contains(name, "/"):
		return newError(ErrBadRequest, "Filename must not contain '/'")
	}
	return nil
}
