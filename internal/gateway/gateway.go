// Package gateway exposes the user directory and tree manager over HTTP.
//
// Routes:
//
//	GET    /healthz                          store reachability
//	POST   /register                         create an account, returns a token
//	POST   /login                            exchange credentials for a token
//	POST   /logout                           revoke the presented token
//	GET    /me                               claims of the presented token
//	GET    /users                            list users
//	POST   /users                            create a user with a username
//	DELETE /users/{user_id}                  delete a user
//	GET    /files                            list entries, ?owner_id=&folder_path=
//	POST   /user/{user_id}/files             multipart upload, ?folder_path=
//	POST   /user/{user_id}/folders           create a folder
//	GET    /files/{file_id}/content          download a file
//	DELETE /files/{file_id}                  delete an entry
//	DELETE /folders/{folder_id}              delete an empty folder
//
// Everything except /healthz, /register and /login needs an
// "Authorization: Bearer <token>" header. Errors are returned as {"detail": "..."}.
package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"folio/internal/folio"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the gateway serves.
type Deps struct {
	Users  *folio.UserDirectory
	Tree   *folio.TreeManager
	Tokens *folio.TokenIssuer
	Health Pinger

	// Decryption opens encrypted files for download. Nil when nothing is encrypted
	// or the key was not unlocked; such downloads then fail.
	Decryption folio.DecryptionContext

	Logger folio.Logger
}

// Server is the HTTP front of folio.
type Server struct {
	users      *folio.UserDirectory
	tree       *folio.TreeManager
	tokens     *folio.TokenIssuer
	health     Pinger
	decryption folio.DecryptionContext
	logger     folio.Logger

	handler http.Handler
}

var _ http.Handler = (*Server)(nil)

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = folio.NewNopLogger()
	}

	s := &Server{
		users:      deps.Users,
		tree:       deps.Tree,
		tokens:     deps.Tokens,
		health:     deps.Health,
		decryption: deps.Decryption,
		logger:     logger,
	}
	s.handler = s.logRequests(s.routes())
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	api := router.NewRoute().Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	api.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	api.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	api.HandleFunc("/users/{user_id}", s.handleDeleteUser).Methods(http.MethodDelete)

	api.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	api.HandleFunc("/user/{user_id}/files", s.handleUploadFile).Methods(http.MethodPost)
	api.HandleFunc("/user/{user_id}/folders", s.handleCreateFolder).Methods(http.MethodPost)
	api.HandleFunc("/files/{file_id}/content", s.handleDownloadFile).Methods(http.MethodGet)
	api.HandleFunc("/files/{file_id}", s.handleDeleteFile).Methods(http.MethodDelete)
	api.HandleFunc("/folders/{folder_id}", s.handleDeleteFolder).Methods(http.MethodDelete)

	return router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
