package gateway

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"folio/internal/folio"
	"folio/internal/model"
)

// EntryView is the JSON form of a tree entry.
type EntryView struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	FolderPath      string    `json:"folder_path"`
	Filename        string    `json:"filename"`
	FullPath        string    `json:"full_path"`
	IsFolder        bool      `json:"is_folder"`
	ContentType     string    `json:"content_type,omitempty"`
	Size            int64     `json:"size"`
	Checksum        string    `json:"checksum,omitempty"`
	Encrypted       bool      `json:"encrypted"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
}

func newEntryView(e *model.Entry) EntryView {
	return EntryView{
		ID:              e.ID.Hex(),
		OwnerID:         e.OwnerID.Hex(),
		FolderPath:      e.FolderPath,
		Filename:        e.Filename,
		FullPath:        e.FullPath(),
		IsFolder:        e.IsFolder,
		ContentType:     e.ContentType,
		Size:            e.Size,
		Checksum:        e.Checksum,
		Encrypted:       e.Encrypted,
		UploadTimestamp: e.UploadTimestamp,
	}
}

type createdEntry struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

type createFolderRequest struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := s.tree.ListEntries(r.Context(), folio.ListFilter{
		OwnerID:    q.Get("owner_id"),
		FolderPath: q.Get("folder_path"),
	})
	if err != nil {
		s.fail(w, r, err, http.StatusConflict)
		return
	}

	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e))
	}
	respondJSON(w, http.StatusOK, views)
}

// handleUploadFile streams the multipart part named "file" into the tree
// without buffering the whole body.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	folderPath := r.URL.Query().Get("folder_path")

	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "Expected a multipart/form-data body")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "File is required")
			return
		}
		if err != nil {
			respondError(w, http.StatusBadRequest, "Malformed multipart body")
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		entry, err := s.tree.UploadFile(r.Context(), userID, folderPath, part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		if err != nil {
			s.fail(w, r, err, http.StatusBadRequest)
			return
		}
		respondJSON(w, http.StatusOK, createdEntry{ID: entry.ID.Hex(), Filename: entry.Filename})
		return
	}
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	entry, err := s.tree.CreateFolder(r.Context(), mux.Vars(r)["user_id"], req.Path, req.Filename)
	if err != nil {
		s.fail(w, r, err, http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, createdEntry{ID: entry.ID.Hex(), Filename: entry.Filename})
}

// handleDownloadFile looks the file up first so lookup failures still get a
// proper status. Headers are sent with the first body byte, so a failure to
// read the object is reported as an error; once streaming starts, errors can
// only be logged.
func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["file_id"]

	entry, err := s.tree.FindFile(r.Context(), fileID)
	if err != nil {
		s.fail(w, r, err, http.StatusConflict)
		return
	}
	if entry.Encrypted && s.decryption == nil {
		s.logger.Error("encrypted download without unlocked key", "id", fileID)
		respondError(w, http.StatusServiceUnavailable, "Encrypted content is not available")
		return
	}

	dw := &downloadWriter{w: w, entry: entry}
	if _, err := s.tree.OpenFile(r.Context(), fileID, s.decryption, dw); err != nil {
		if !dw.started {
			s.fail(w, r, err, http.StatusConflict)
			return
		}
		s.logger.Error("streaming file", "id", fileID, "request_id", requestID(r.Context()), "error", err)
		return
	}
	dw.start()
}

// downloadWriter writes the download headers before the first body byte.
type downloadWriter struct {
	w       http.ResponseWriter
	entry   *model.Entry
	started bool
}

func (d *downloadWriter) start() {
	if d.started {
		return
	}
	d.started = true
	h := d.w.Header()
	h.Set("Content-Type", d.entry.ContentType)
	h.Set("Content-Length", strconv.FormatInt(d.entry.Size, 10))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.entry.Filename}))
	d.w.WriteHeader(http.StatusOK)
}

func (d *downloadWriter) Write(p []byte) (int, error) {
	d.start()
	return d.w.Write(p)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["file_id"]
	if err := s.tree.DeleteFile(r.Context(), fileID); err != nil {
		s.fail(w, r, err, http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, deleted(fileID))
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	folderID := mux.Vars(r)["folder_id"]
	if err := s.tree.DeleteFolder(r.Context(), folderID); err != nil {
		s.fail(w, r, err, http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, deleted(folderID))
}
