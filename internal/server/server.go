// Package server provides the HTTP API for reading ingest and queries.
//
// Routes configured:
//   - POST /update - Ingest a batch of readings
//   - GET /history/{id} - Full retained history of a source
//   - GET /latest/{id}?type=<measurementType> - Most recent reading
//   - POST /deploy - Create a geofence deployment from the latest position
//   - GET /deployment/{id} - Deployment plus current geofence status
//   - GET /summary/{id} - Per-type aggregate statistics
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seaward/buoyd/internal/analytics"
	"github.com/seaward/buoyd/internal/errors"
	"github.com/seaward/buoyd/internal/logging"
	"github.com/seaward/buoyd/internal/metrics"
	"github.com/seaward/buoyd/internal/store"
)

// Server dispatches the HTTP API against one Store.
type Server struct {
	store      store.Store
	summarizer *analytics.Summarizer
	mtx        *metrics.Metrics
	log        *slog.Logger
	now        func() time.Time
}

// New builds a server. mtx may be nil to disable instrumentation.
func New(st store.Store, mtx *metrics.Metrics) *Server {
	return &Server{
		store:      st,
		summarizer: analytics.NewSummarizer(st),
		mtx:        mtx,
		log:        logging.Component("server"),
		now:        time.Now,
	}
}

// Handler returns the routed HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /update", s.route("update", s.handleUpdate))
	mux.HandleFunc("GET /history/{id}", s.route("history", s.handleHistory))
	mux.HandleFunc("GET /latest/{id}", s.route("latest", s.handleLatest))
	mux.HandleFunc("POST /deploy", s.route("deploy", s.handleDeploy))
	mux.HandleFunc("GET /deployment/{id}", s.route("deployment", s.handleDeployment))
	mux.HandleFunc("GET /summary/{id}", s.route("summary", s.handleSummary))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return cors(mux)
}

// cors sets the permissive cross-origin headers on every response and
// answers preflight requests directly.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// route wraps a handler with per-route request counting and latency.
func (s *Server) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.mtx == nil {
			h(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		h(rec, r)
		s.mtx.RecordHTTPRequest(name, strconv.Itoa(rec.code))
		s.mtx.ObserveHTTPDuration(name, time.Since(start).Seconds())
	}
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	return id, err == nil
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps the error taxonomy to a status code and a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
