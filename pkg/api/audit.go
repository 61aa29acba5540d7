package api

import (
	"net/http"
	"strconv"

	"github.com/txn2/talkback/pkg/audit"
)

// auditEventResponse is returned by GET /api/v1/audit/events.
type auditEventResponse struct {
	Data  []audit.Event `json:"data"`
	Count int           `json:"count"`
}

// listAuditEvents handles GET /api/v1/audit/events.
//
//	@Summary		List audit events
//	@Description	Returns recent session events, newest first, with optional filtering.
//	@Tags			Audit
//	@Produce		json
//	@Param			session_id	query		string	false	"Filter by session id"
//	@Param			kind		query		string	false	"Filter by event kind"
//	@Param			success		query		boolean	false	"Filter by success/failure"
//	@Param			limit		query		integer	false	"Maximum events (default 100, max 1000)"
//	@Param			offset		query		integer	false	"Events to skip"
//	@Success		200			{object}	auditEventResponse
//	@Failure		500			{object}	errorResponse
//	@Router			/api/v1/audit/events [get]
func (h *Handler) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		SessionID: q.Get("session_id"),
		Kind:      audit.Kind(q.Get("kind")),
		Limit:     min(parseIntParam(r, "limit", defaultAuditLimit), maxAuditLimit),
		Offset:    parseIntParam(r, "offset", 0),
	}
	if v := q.Get("success"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Success = &b
		}
	}

	events, err := h.deps.Audit.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query audit events")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, auditEventResponse{Data: events, Count: len(events)})
}
