// Package api serves the publishing pipeline over HTTP, directly for the
// CLI's serve command or behind API Gateway through the Lambda proxy
// adapter.
//
// Endpoints:
//
//	GET  /api/health                 health check (no origin check)
//	POST /api/publish                run the job descriptors in the body
//	GET  /api/runs/{runId}/records   per-job records of a run
//	GET|POST /api/webhook            Meta webhook receiver (when configured,
//	                                 signature-checked, no origin check)
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fpang/meta-publisher/internal/jobs"
	"github.com/fpang/meta-publisher/internal/publish"
	"github.com/fpang/meta-publisher/internal/store"
)

const (
	runsPrefix = "/api/runs/"

	// maxBodyBytes bounds a publish request body.
	maxBodyBytes int64 = 1 << 20
)

// BatchFactory returns a batch runner for one request.
type BatchFactory func(continueOnFail bool) *publish.Batch

type Server struct {
	newBatch       BatchFactory
	records        store.RecordStore
	continueOnFail bool
	originSecret   string
	metrics        bool
	namespace      string
	metricsOut     io.Writer
	webhook        http.Handler
}

type Option func(*Server)

// ContinueOnFailDefault sets the mode used when a request does not pass
// ?continueOnFail.
func ContinueOnFailDefault(v bool) Option { return func(s *Server) { s.continueOnFail = v } }

// WithOriginSecret requires the x-origin-verify header on every request
// except the health check.
func WithOriginSecret(secret string) Option { return func(s *Server) { s.originSecret = secret } }

// WithMetrics emits one EMF document per request to out (stdout when nil).
func WithMetrics(namespace string, out io.Writer) Option {
	return func(s *Server) {
		s.metrics = true
		s.namespace = namespace
		s.metricsOut = out
	}
}

// WithWebhook mounts h at /api/webhook. A nil h leaves the route unset.
func WithWebhook(h http.Handler) Option { return func(s *Server) { s.webhook = h } }

func NewServer(newBatch BatchFactory, records store.RecordStore, opts ...Option) *Server {
	s := &Server{newBatch: newBatch, records: records}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/publish", s.handlePublish)
	mux.HandleFunc(runsPrefix, s.handleRunRoutes)

	root := http.NewServeMux()
	root.HandleFunc("/api/health", s.handleHealth)
	if s.webhook != nil {
		root.Handle("/api/webhook", s.webhook)
	}
	root.Handle("/", s.withOriginVerify(mux))

	var h http.Handler = root
	if s.metrics {
		h = s.withMetrics(h)
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "meta-publisher",
	})
}

// publishFailure is the body of a publish request stopped by a failed job.
type publishFailure struct {
	*publish.BatchOutput
	Error     string `json:"error"`
	FailedJob int    `json:"failedIndex"`
}

// POST /api/publish[?continueOnFail=true]
//
// The body is one job descriptor, an array of them, or a {"data":[...]}
// envelope. The run executes synchronously and the response carries every
// result. A failed job in stop-on-failure mode answers 422 with the results
// gathered before it.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	continueOnFail := s.continueOnFail
	if v := r.URL.Query().Get("continueOnFail"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httpError(w, http.StatusBadRequest, "continueOnFail must be true or false")
			return
		}
		continueOnFail = b
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	descs, err := publish.SplitDescriptors(body)
	if err != nil {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("invalid job descriptors: %v", err))
		return
	}
	if len(descs) == 0 {
		httpError(w, http.StatusBadRequest, "no job descriptors in request body")
		return
	}

	out, err := s.newBatch(continueOnFail).Run(r.Context(), "", descs)
	if err != nil {
		if je, ok := publish.IsJobError(err); ok {
			respondJSON(w, http.StatusUnprocessableEntity, publishFailure{
				BatchOutput: out,
				Error:       je.Error(),
				FailedJob:   je.Index,
			})
			return
		}
		httpError(w, http.StatusInternalServerError, "publish run failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// handleRunRoutes dispatches /api/runs/{runId}/{action}.
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	runID, action, ok := jobs.ParseRoute(r.URL.Path, runsPrefix)
	if !ok {
		httpError(w, http.StatusBadRequest, "invalid run path: expected /api/runs/{runId}/records")
		return
	}
	switch action {
	case "records":
		s.handleRecords(w, r, runID)
	default:
		httpError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.records == nil {
		httpError(w, http.StatusNotImplemented, "record store not configured")
		return
	}
	recs, err := s.records.GetRecords(r.Context(), runID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to read run records", err.Error())
		return
	}
	if len(recs) == 0 {
		httpError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"runId":   runID,
		"records": recs,
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a JSON error response. clientMsg is returned to the
// caller; internalDetails are logged and never sent.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}
