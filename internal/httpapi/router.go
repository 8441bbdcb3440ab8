// Package httpapi is the thin HTTP front door that turns requests into
// Engine calls and Engine outcomes into responses. It is the "out of scope"
// collaborator layer spec.md describes: the contracts it drives live in
// package engine.
package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"breeze/internal/deletiontoken"
	"breeze/internal/engine"
)

// Logger is designed to be satisfied by log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Server wires the Engine and deletion verifier to HTTP handlers.
type Server struct {
	engine    *engine.Engine
	verifier  *deletiontoken.Verifier
	uploadKey string
	version   string

	accessLogger Logger
	errorLogger  Logger
}

// New returns a ready-to-serve Server.
func New(e *engine.Engine, verifier *deletiontoken.Verifier, uploadKey, version string, accessLogger, errorLogger Logger) *Server {
	return &Server{
		engine:       e,
		verifier:     verifier,
		uploadKey:    uploadKey,
		version:      version,
		accessLogger: accessLogger,
		errorLogger:  errorLogger,
	}
}

// Handler builds the complete net/http.Handler for breeze's HTTP surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /new", s.handleNew)
	mux.HandleFunc("GET /p/{name}", s.handleGet)
	mux.HandleFunc("GET /del", s.handleDelete)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /robots.txt", s.handleRobots)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.accessLogger.Printf("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
