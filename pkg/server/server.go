package server

import (
	"net/http"

	"github.com/m-mizutani/recall/pkg/usecase/memory"
)

// Server is the HTTP transport over the memory engine
type Server struct {
	uc    *memory.UseCase
	token string
	mux   *http.ServeMux
}

// Option is a functional option for Server
type Option func(*Server)

// WithToken enables bearer token authentication on every route except the
// health endpoint
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// New creates the HTTP handler for the memory API
func New(uc *memory.UseCase, opts ...Option) *Server {
	s := &Server{
		uc:  uc,
		mux: http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /memory", s.auth(s.handleStore))
	s.mux.HandleFunc("GET /memory/{id}", s.auth(s.handleGet))
	s.mux.HandleFunc("DELETE /memory/{id}", s.auth(s.handleDelete))
	s.mux.HandleFunc("GET /memories", s.auth(s.handleList))
	s.mux.HandleFunc("POST /search", s.auth(s.handleSearch))
	s.mux.HandleFunc("POST /ingest", s.auth(s.handleIngest))

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next(w, r)
	}
}
