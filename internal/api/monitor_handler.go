package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"

	"github.com/sertdev/reachd/internal/supervisor"
)

type monitorHandler struct {
	monitor         Monitor
	defaultEndpoint string
}

type beginRequest struct {
	Endpoint string `json:"endpoint"`
}

type beginResponse struct {
	Endpoint string `json:"endpoint"`
}

type probeResponse struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

func (h *monitorHandler) Begin(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Failed to read body")
		return
	}
	if len(body) > 0 {
		if err := sonic.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
			return
		}
	}

	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = h.defaultEndpoint
	}
	if endpoint == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "endpoint is required")
		return
	}
	if u, err := url.Parse(endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "endpoint must be an absolute http(s) URL")
		return
	}

	if err := h.monitor.Begin(endpoint); err != nil {
		if errors.Is(err, supervisor.ErrAlreadyMonitoring) {
			writeError(w, http.StatusConflict, "already_monitoring", "Monitoring has already begun")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to begin monitoring")
		return
	}
	writeData(w, http.StatusAccepted, beginResponse{Endpoint: endpoint})
}

func (h *monitorHandler) Probe(w http.ResponseWriter, r *http.Request) {
	id, err := h.monitor.Retry()
	if errors.Is(err, supervisor.ErrNotMonitoring) {
		writeError(w, http.StatusConflict, "not_monitoring", "Monitoring has not begun")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to request probe")
		return
	}
	writeData(w, http.StatusAccepted, probeResponse{ID: id, Endpoint: h.monitor.Endpoint()})
}
