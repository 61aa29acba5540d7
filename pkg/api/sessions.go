package api

import (
	"net/http"
	"time"

	"github.com/txn2/talkback/pkg/audit"
	"github.com/txn2/talkback/pkg/session"
	"github.com/txn2/talkback/pkg/transcript"
)

// sessionListResponse is returned by GET /sessions.
type sessionListResponse struct {
	Sessions []transcript.SessionInfo `json:"sessions"`
	Count    int                      `json:"count"`
}

// resetResponse is returned by DELETE /sessions/{id}.
type resetResponse struct {
	SessionID string `json:"sessionId"`
	Cleared   bool   `json:"cleared"`
}

// listSessions handles GET /sessions.
//
//	@Summary		List sessions
//	@Description	Sessions that currently hold transcript chunks.
//	@Tags			Sessions
//	@Produce		json
//	@Success		200	{object}	sessionListResponse
//	@Router			/sessions [get]
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	infos := h.deps.Store.Sessions(r.Context())
	writeJSON(w, http.StatusOK, sessionListResponse{Sessions: infos, Count: len(infos)})
}

// getSession handles GET /sessions/{id}.
//
//	@Summary		Get session status
//	@Description	Chunk count and control-plane state for one session.
//	@Tags			Sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session id"
//	@Success		200	{object}	session.Status
//	@Failure		404	{object}	errorResponse
//	@Router			/sessions/{id} [get]
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, ok := session.Describe(r.Context(), h.deps.Store, h.deps.Registry, id)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// resetSession handles DELETE /sessions/{id}.
//
//	@Summary		Reset a session
//	@Description	Discards every stored chunk for the session without producing a report.
//	@Tags			Sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session id"
//	@Success		200	{object}	resetResponse
//	@Failure		500	{object}	errorResponse
//	@Router			/sessions/{id} [delete]
func (h *Handler) resetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	start := time.Now()
	existed := h.deps.Store.Exists(r.Context(), id)
	if err := h.deps.Store.Clear(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	audit.LogAsync(h.deps.Audit, audit.NewEvent(audit.KindSessionReset).
		WithSession(id).
		WithDetails(map[string]any{"had_chunks": existed}).
		WithResult(true, "", time.Since(start).Milliseconds()))

	writeJSON(w, http.StatusOK, resetResponse{SessionID: id, Cleared: existed})
}
