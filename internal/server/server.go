// Package server implements the AdminAPI (spec.md §4.7/§6): REST CRUD over
// the Deployment/Stack/Container graph, catalog projection endpoints, and a
// WebSocket notification stream.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/theinhumaneme/hikari/internal/db"
	"github.com/theinhumaneme/hikari/internal/notifier"
	"github.com/theinhumaneme/hikari/internal/projector"
)

// Server is the hikari control plane: one Repository, one Notifier, one
// CatalogProjector, shared across all requests.
type Server struct {
	Repo      *db.Repository
	Notifier  *notifier.Notifier
	Projector *projector.Projector
	Log       *slog.Logger

	APIKey      string
	CORSOrigins []string
}

// New wires a Server over an already-open Repository.
func New(repo *db.Repository, log *slog.Logger, apiKey string, corsOrigins []string) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		Repo:        repo,
		Notifier:    notifier.New(),
		Projector:   projector.New(repo),
		Log:         log,
		APIKey:      apiKey,
		CORSOrigins: corsOrigins,
	}
}

// Handler returns the HTTP handler for the AdminAPI.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/deployments", s.handleDeploymentList)
	mux.HandleFunc("GET /api/v1/deployment", s.handleDeploymentGet)
	mux.HandleFunc("POST /api/v1/deployment", s.handleDeploymentCreate)
	mux.HandleFunc("PUT /api/v1/deployment", s.handleDeploymentUpdate)
	mux.HandleFunc("DELETE /api/v1/deployment", s.handleDeploymentDelete)

	mux.HandleFunc("GET /api/v1/stacks", s.handleStackList)
	mux.HandleFunc("GET /api/v1/stack", s.handleStackGet)
	mux.HandleFunc("POST /api/v1/stack", s.handleStackCreate)
	mux.HandleFunc("PUT /api/v1/stack", s.handleStackUpdate)
	mux.HandleFunc("DELETE /api/v1/stack", s.handleStackDelete)

	mux.HandleFunc("GET /api/v1/containers", s.handleContainerList)
	mux.HandleFunc("GET /api/v1/container", s.handleContainerGet)
	mux.HandleFunc("POST /api/v1/container", s.handleContainerCreate)
	mux.HandleFunc("PUT /api/v1/container", s.handleContainerUpdate)
	mux.HandleFunc("DELETE /api/v1/container", s.handleContainerDelete)

	mux.HandleFunc("GET /api/v1/hikari/metadata", s.handleHikariMetadata)
	mux.HandleFunc("GET /api/v1/hikari/name", s.handleHikariName)

	mux.HandleFunc("GET /ws", s.handleWS)

	return recoveryMiddleware(
		corsMiddleware(
			authMiddleware(
				loggingMiddleware(mux, s.Log),
				s.APIKey, s.Log,
			),
			s.CORSOrigins,
		),
		s.Log,
	)
}

// Start runs the AdminAPI HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	s.Log.Info("admin api started", "addr", addr)

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background()) //nolint:errcheck
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// jsonOK writes a JSON 200 response.
func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// jsonStatus writes a JSON response with an arbitrary success status.
func jsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// jsonErr writes a JSON error response.
func jsonErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}

// writeDBErr maps a Repository error to the status codes of spec.md §7.
func writeDBErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		jsonErr(w, http.StatusNotFound, fmt.Sprintf("%s: not found", op))
	case errors.Is(err, db.ErrConflict):
		jsonErr(w, http.StatusConflict, fmt.Sprintf("%s: conflicting record", op))
	case errors.Is(err, db.ErrFKViolation):
		jsonErr(w, http.StatusConflict, fmt.Sprintf("%s: foreign key violation", op))
	default:
		jsonErr(w, http.StatusInternalServerError, err.Error())
	}
}

// ── Middleware ──────────────────────────────────────────────────────────

func authMiddleware(next http.Handler, apiKey string, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != apiKey {
			log.Warn("unauthorized request", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "remote", r.RemoteAddr)
			jsonErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type contextKey int

const requestIDKey contextKey = iota

// newRequestID returns a short random hex token correlating one request's
// log lines with its panic report or response, if any.
func newRequestID() string {
	var b [8]byte
	rand.Read(b[:]) //nolint:errcheck
	return hex.EncodeToString(b[:])
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// recoveryMiddleware assigns every request a correlation id before anything
// else runs, then catches panics, logs the stack trace tagged with that id,
// and returns 500 with the id in the body so an operator can grep the logs
// for the failing request rather than just knowing something, somewhere,
// panicked.
func recoveryMiddleware(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := newRequestID()
		w.Header().Set("X-Request-Id", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered", "request_id", id, "error", rec, "stack", string(debug.Stack()))
				jsonErr(w, http.StatusInternalServerError, fmt.Sprintf("internal server error (request_id=%s)", id))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers, including the X-Request-Id response
// header set by recoveryMiddleware so a browser-based dashboard can surface
// it alongside a failed request.
func corsMiddleware(next http.Handler, origins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && matchOrigin(origin, origins) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// matchOrigin reports whether origin satisfies one of patterns. A pattern
// ending in "*" matches any origin sharing its prefix (e.g.
// "http://localhost:*" matches any local port).
func matchOrigin(origin string, patterns []string) bool {
	for _, pattern := range patterns {
		prefix, wildcard := strings.CutSuffix(pattern, "*")
		if wildcard {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
			continue
		}
		if origin == pattern {
			return true
		}
	}
	return false
}

// statusRecorder captures the status code a handler actually wrote so
// loggingMiddleware can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs one line per request: method, path, response
// status, latency, and the correlating request id. When the query string
// names a client (as /api/v1/hikari/metadata and /ws requests do), the
// (client, environment, solution) triple is logged too, since it is what an
// operator greps for when chasing a mis-delivered deployment across a fleet.
func loggingMiddleware(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFromContext(r.Context()),
		}
		if client := r.URL.Query().Get("client"); client != "" {
			fields = append(fields, "client", client,
				"environment", r.URL.Query().Get("environment"),
				"solution", r.URL.Query().Get("solution"))
		}

		next.ServeHTTP(rec, r)

		fields = append(fields, "status", rec.status, "duration", time.Since(start))
		log.Info("request", fields...)
	})
}
