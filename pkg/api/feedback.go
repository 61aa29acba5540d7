package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/txn2/talkback/pkg/feedback"
	"github.com/txn2/talkback/pkg/scoring"
	"github.com/txn2/talkback/pkg/transcript"
)

// faceMetricsBody carries the client-side audience averages and trend.
type faceMetricsBody struct {
	scoring.FaceMetrics
	Trend string `json:"trend,omitempty"`
}

// feedbackRequest is the body of POST /feedback.
type feedbackRequest struct {
	SessionID   string           `json:"sessionId"`
	FaceMetrics *faceMetricsBody `json:"faceMetrics,omitempty"`
	Trend       string           `json:"trend,omitempty"`
}

// feedbackResponse is the finalize report plus the success flag clients
// check.
type feedbackResponse struct {
	*feedback.Report
	Success bool `json:"success"`
}

// finalize handles POST /feedback and its /gemini-feedback alias.
//
//	@Summary		Finalize a session
//	@Description	Assembles the session transcript, runs the analyses and returns the fused score. The session's chunks are cleared.
//	@Tags			Feedback
//	@Accept			json
//	@Produce		json
//	@Param			request	body		feedbackRequest	true	"Session and audience metrics"
//	@Success		200		{object}	feedbackResponse
//	@Failure		400		{object}	errorResponse
//	@Failure		500		{object}	errorResponse
//	@Router			/feedback [post]
func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	var body feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req := feedback.Request{
		SessionID: strings.TrimSpace(body.SessionID),
		Trend:     body.Trend,
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if body.FaceMetrics != nil {
		face := body.FaceMetrics.FaceMetrics
		req.Face = &face
		if body.FaceMetrics.Trend != "" {
			req.Trend = body.FaceMetrics.Trend
		}
	}

	report, err := h.deps.Finalizer.Finalize(r.Context(), req)
	switch {
	case errors.Is(err, transcript.ErrEmptySession):
		writeError(w, http.StatusBadRequest, "No transcripts found for this session")
		return
	case err != nil:
		slog.Error("finalize failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{Report: report, Success: true})
}
