package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"folio/internal/folio"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

// fail writes err as an error response. Conflicts are answered with
// conflictStatus, since some routes report them as 400.
// Unclassified errors become a 500 and are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, conflictStatus int) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, folio.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, folio.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, folio.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, folio.ErrConflict):
		status = conflictStatus
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", requestID(r.Context()), "error", err)
		respondError(w, status, "Internal server error")
		return
	}
	respondError(w, status, folio.Detail(err))
}

// maxJSONBody caps request bodies of the JSON routes.
const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
}
