// Package server exposes the model lifecycle over HTTP.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/modelhub/pkg/usecase/lifecycle"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	// DefaultMaxBodyBytes bounds request bodies; datasets travel inline
	DefaultMaxBodyBytes int64 = 32 << 20
)

// Server is the HTTP handler of modelhub
type Server struct {
	uc       *lifecycle.UseCase
	router   chi.Router
	validate *validator.Validate
	mcp      http.Handler

	maxBodyBytes int64
}

// Option is a functional option for Server
type Option func(*Server)

// WithMCP mounts an MCP streamable HTTP handler at /mcp
func WithMCP(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// WithMaxBodyBytes limits the size of JSON request bodies. Non-positive
// values keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// New builds the router for uc
func New(uc *lifecycle.UseCase, opts ...Option) *Server {
	s := &Server{
		uc:           uc,
		validate:     validator.New(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(countRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
	}

	r.Route("/api/v1/models", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handleUpdate)
			r.Delete("/", s.handleRemove)
			r.Post("/predict", s.handlePredict)
		})
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
