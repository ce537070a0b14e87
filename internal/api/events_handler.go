package api

import (
	"net/http"

	"github.com/sertdev/reachd/internal/store"
)

const maxEventsLimit = 500

type eventsHandler struct {
	journal EventLister
}

func (h *eventsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "not_found", "Event journal is disabled")
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit < 1 {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be positive")
		return
	}
	limit = min(limit, maxEventsLimit)

	evs, err := h.journal.RecentEvents(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to list events")
		return
	}
	if evs == nil {
		evs = []store.EventRecord{}
	}
	writeData(w, http.StatusOK, evs)
}
