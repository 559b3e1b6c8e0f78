// Package api exposes the catalog engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/vyuha/vyuha-catalog/internal/engine"
	"github.com/vyuha/vyuha-catalog/internal/filter"
	"github.com/vyuha/vyuha-catalog/internal/metrics"
	"github.com/vyuha/vyuha-catalog/internal/source"
	"github.com/vyuha/vyuha-catalog/internal/storage"
)

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server is the HTTP API layer of the catalog.
type Server struct {
	engine        *engine.Engine
	store         *storage.Storage
	feed          *CatalogFeed
	mux           *http.ServeMux
	server        *http.Server
	importLimiter *rate.Limiter
	watcher       *source.Watcher
}

// NewServer creates a Server over eng. store may be nil, in which case
// imports only change the in-memory catalog.
func NewServer(eng *engine.Engine, store *storage.Storage) *Server {
	s := &Server{
		engine: eng,
		store:  store,
		feed:   NewCatalogFeed(eng.Snapshot()),
		mux:    http.NewServeMux(),
	}

	// Imports rebuild the whole catalog: 2/sec, burst 5.
	s.importLimiter = rate.NewLimiter(rate.Limit(2), 5)

	eng.OnLoad(func(snap engine.Snapshot) {
		s.feed.Publish(snap)
	})
	return s
}

// SetWatcher attaches the records file watcher reported on
// /api/source/status.
func (s *Server) SetWatcher(w *source.Watcher) {
	s.watcher = w
}

// RegisterRoutes wires up every API endpoint.
func (s *Server) RegisterRoutes() {
	// -- Catalog endpoints ------------------------------------------------
	s.mux.HandleFunc("GET /api/services", s.handleServices)
	s.mux.HandleFunc("GET /api/services/{name}", s.handleService)
	s.mux.HandleFunc("DELETE /api/services/{name}", s.handleDeleteService)
	s.mux.HandleFunc("POST /api/services/import",
		s.withRateLimit(s.importLimiter, s.handleImport))
	s.mux.HandleFunc("GET /api/imports", s.handleImports)
	s.mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /api/source/status", s.handleSourceStatus)
	s.mux.HandleFunc("GET /api/filter/keys", s.handleFilterKeys)

	// -- Graph endpoints --------------------------------------------------
	s.mux.HandleFunc("GET /api/graph/tree", s.handleGraphTree)
	s.mux.HandleFunc("GET /api/graph/hops", s.handleGraphHops)
	s.mux.HandleFunc("GET /api/graph/stats", s.handleGraphStats)
	s.mux.HandleFunc("GET /api/graph/dependencies", s.handleGraphDependencies)

	// -- View endpoints ---------------------------------------------------
	s.mux.HandleFunc("GET /api/views/hierarchy", s.handleHierarchyView)
	s.mux.HandleFunc("GET /api/views/flow", s.handleFlowView)

	// -- SSE event stream -------------------------------------------------
	s.mux.HandleFunc("GET /api/events", s.handleSSE)

	// -- Metrics and health -----------------------------------------------
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the fully-wrapped http.Handler (middleware chain + mux).
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = recoveryMiddleware(h)
	h = loggingMiddleware(h)
	h = corsMiddleware(h)
	return h
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"service":  "vyuha-catalog",
		"snapshot": snap.ID,
		"services": snap.Services,
	})
}

// ---------------------------------------------------------------------------
// JSON response helpers
// ---------------------------------------------------------------------------

// writeJSON writes an arbitrary value as JSON with the given HTTP status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a standardised JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}

// writeEngineError maps engine failures onto 400 responses. Filter syntax
// errors carry their full message list.
func writeEngineError(w http.ResponseWriter, err error) {
	var syntaxErr *filter.SyntaxError
	switch {
	case errors.As(err, &syntaxErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    "invalid filter",
			"code":     "INVALID_FILTER",
			"messages": syntaxErr.Messages,
		})
	case errors.Is(err, engine.ErrUnknownPivot):
		writeError(w, http.StatusBadRequest, "INVALID_PIVOT", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware allows requests from any localhost origin (UI dev server).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "http://localhost:5173"
		}

		if strings.HasPrefix(origin, "http://localhost:") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseRecorder captures the status code written by downstream handlers.
// It also implements http.Flusher so SSE streaming works through the
// logging middleware.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher by delegating to the underlying writer.
func (rr *responseRecorder) Flush() {
	if f, ok := rr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware logs each request and records it in the HTTP metrics.
// Metrics are labelled by route pattern, not raw path.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPTotalRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.statusCode)).Inc()
		metrics.HTTPResponseDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration_ms", elapsed.Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware catches panics and returns a 500 response.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()
				slog.Error("panic recovered",
					"error", err,
					"stack", string(stack),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, `{"error":"internal server error"}`)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRateLimit wraps a handler with a token-bucket rate limiter.
// Returns 429 when the limiter is exhausted.
func (s *Server) withRateLimit(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%.0f", float64(limiter.Limit())))
			w.Header().Set("X-RateLimit-Remaining",
				fmt.Sprintf("%d", int(limiter.Tokens())))
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"rate limit exceeded","retry_after_ms":1000}`)
			slog.Warn("rate limit exceeded",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			return
		}
		next(w, r)
	}
}
