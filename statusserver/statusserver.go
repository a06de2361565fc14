// Package statusserver exposes a coordinator's progress over HTTP, per
// spec §6B: a read-only window for a companion UI or monitoring script,
// entirely optional and with no effect on backup semantics.
package statusserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/foomo/htpasswd"
	"github.com/gorilla/mux"

	"github.com/kmichels/imageintactcore/backup"
	"github.com/kmichels/imageintactcore/internal/logging"
)

var log = logging.Module("statusserver")

// StatusResponse is the JSON body for GET /api/v1/status.
type StatusResponse struct {
	IsRunning        bool                               `json:"is_running"`
	OverallProgress  float64                             `json:"overall_progress"`
	TotalBytesToCopy int64                               `json:"total_bytes_to_copy"`
	TotalBytesCopied int64                               `json:"total_bytes_copied"`
	ByDestination    map[string]backup.DestinationStatus `json:"by_destination"`
}

// FailuresResponse is the JSON body for GET /api/v1/failures.
type FailuresResponse struct {
	Failures []backup.CollectedFailure `json:"failures"`
}

// Server wraps a *backup.Coordinator behind a basic-auth-gated mux
// router. It never mutates the coordinator; every handler just reads
// its current Status/Result.
type Server struct {
	coordinator *backup.Coordinator
	router      *mux.Router
	httpServer  *http.Server
}

// New builds a Server bound to addr. If credentialsFile is non-empty,
// it must be an htpasswd-format file and every request requires basic
// auth against it.
func New(addr, credentialsFile string, coordinator *backup.Coordinator) (*Server, error) {
	var passwords htpasswd.HashedPasswords
	if credentialsFile != "" {
		p, err := htpasswd.ParseHtpasswdFile(credentialsFile)
		if err != nil {
			return nil, err
		}
		passwords = p
	}

	s := &Server{coordinator: coordinator}

	r := mux.NewRouter()
	r.Use(authMiddleware(passwords))
	r.HandleFunc("/api/v1/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/failures", s.handleFailures).Methods(http.MethodGet)
	s.router = r

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// ListenAndServe blocks serving requests until the server is shut down
// or a listen error occurs.
func (s *Server) ListenAndServe() error {
	log.Infow("status server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Close shuts the HTTP server down.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

func authMiddleware(passwords htpasswd.HashedPasswords) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if passwords == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !passwords.Match(user, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="imageintact"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.coordinator.Status()

	resp := StatusResponse{
		IsRunning:        st.IsRunning,
		OverallProgress:  st.OverallProgress,
		TotalBytesToCopy: st.TotalBytesToCopy,
		TotalBytesCopied: st.TotalBytesCopied,
		ByDestination:    st.ByDestination,
	}

	writeJSON(w, resp)
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	st := s.coordinator.Status()
	writeJSON(w, FailuresResponse{Failures: st.CollectedFailures})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorw("failed writing response", "error", err)
	}
}
