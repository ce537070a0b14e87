package api

import (
	"net/http"

	"github.com/sertdev/reachd/internal/state"
)

type statusHandler struct {
	monitor   Monitor
	snapshots Snapshots
}

type statusResponse struct {
	Endpoint       string         `json:"endpoint"`
	Monitoring     bool           `json:"monitoring"`
	SchedulerState string         `json:"scheduler_state"`
	Seq            uint64         `json:"seq"`
	Snapshot       state.Snapshot `json:"snapshot"`
}

func (h *statusHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, seq := h.snapshots.Latest()
	endpoint := h.monitor.Endpoint()
	writeData(w, http.StatusOK, statusResponse{
		Endpoint:       endpoint,
		Monitoring:     endpoint != "",
		SchedulerState: h.monitor.SchedulerState(),
		Seq:            seq,
		Snapshot:       snap,
	})
}
