package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/syncmesh-go/internal/infra/buildinfo"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ReadyResponse is the body of GET /ready. Unserved lists the fields that
// accept commands but have no authority to apply them.
type ReadyResponse struct {
	Ready    bool     `json:"ready"`
	Fields   int      `json:"fields"`
	Sessions int      `json:"sessions"`
	Unserved []string `json:"unserved,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: buildinfo.Version,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
	})
}

// handleReady answers 503 while the switch has no authority, since every
// toggle would fail until one claims it.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	fields := h.node.Fields()
	resp := ReadyResponse{
		Ready:    true,
		Fields:   len(fields),
		Sessions: len(h.node.Sessions()),
	}
	if h.sw != nil {
		if f, err := h.node.Field(h.sw.FieldID()); err != nil || f.Authority == "" {
			resp.Ready = false
			resp.Unserved = append(resp.Unserved, h.sw.FieldID())
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, r, status, resp)
}
