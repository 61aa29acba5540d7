// Package api provides the REST endpoints used by the presenter and
// controller clients.
//
//	@title			talkback API
//	@version		1.0
//	@description	Chunked transcription and presentation feedback.
//	@BasePath		/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/txn2/talkback/pkg/audit"
	"github.com/txn2/talkback/pkg/feedback"
	"github.com/txn2/talkback/pkg/ingest"
	"github.com/txn2/talkback/pkg/session"
	"github.com/txn2/talkback/pkg/transcript"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000

	// multipart parts beyond this are spooled to disk by net/http.
	multipartMemory = 32 << 20
)

// Ingester stores one uploaded chunk.
type Ingester interface {
	Ingest(ctx context.Context, up ingest.Upload) (*ingest.Result, error)
}

// Finalizer produces the feedback report for a session.
type Finalizer interface {
	Finalize(ctx context.Context, req feedback.Request) (*feedback.Report, error)
}

// Deps holds the collaborators the handlers call.
type Deps struct {
	Ingester  Ingester
	Finalizer Finalizer
	Store     transcript.Store
	Registry  session.Registry
	Audit     audit.Logger
}

// Handler serves the REST API.
type Handler struct {
	mux  *http.ServeMux
	deps Deps
}

// NewHandler creates the REST handler.
func NewHandler(deps Deps) *Handler {
	if deps.Audit == nil {
		deps.Audit = audit.NoopLogger{}
	}
	h := &Handler{mux: http.NewServeMux(), deps: deps}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /transcribe-chunk", h.transcribeChunk)
	h.mux.HandleFunc("POST /feedback", h.finalize)
	h.mux.HandleFunc("POST /gemini-feedback", h.finalize)
	h.mux.HandleFunc("GET /sessions", h.listSessions)
	h.mux.HandleFunc("GET /sessions/{id}", h.getSession)
	h.mux.HandleFunc("DELETE /sessions/{id}", h.resetSession)
	h.mux.HandleFunc("GET /api/v1/audit/events", h.listAuditEvents)
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// ingestStatus maps an ingest error to its HTTP status.
func ingestStatus(err error) int {
	var (
		verr *ingest.ValidationError
		cerr *ingest.ConversionError
		terr *ingest.TranscriptionError
		mbe  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &cerr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &terr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseIntParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
