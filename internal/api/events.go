package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-sentinel/internal/audit"
)

// handleListEvents returns the persisted security event history.
//
// Query parameters: type, since (RFC 3339), limit, offset.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeUnavailable(w, "event history not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{Type: q.Get("type")}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing security events", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
