package gateway

import (
	"net/http"

	"github.com/gorilla/mux"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	reg, err := s.users.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err, http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, reg)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	token, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err, http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.tokens.Revoke(r.Context(), ClaimsFromContext(r.Context())); err != nil {
		s.fail(w, r, err, http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ClaimsFromContext(r.Context()))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.fail(w, r, err, http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	created, err := s.users.Create(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err, http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, created)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if err := s.users.Delete(r.Context(), userID); err != nil {
		s.fail(w, r, err, http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, deleted(userID))
}

func deleted(id string) map[string]string {
	return map[string]string{"status": "success", "deleted_id": id}
}
