package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/telemetry/logger"
)

// handleEvents handles GET /v1/sessions/{id}/events?field=...
//
// The response is a server-sent event stream of the session's notifications.
// Each "field" query value subscribes the session first. The stream ends when
// the client goes away or the session disconnects.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.handleServiceError(w, r, domain.ErrInternalServer.WithDetails("streaming unsupported"))
		return
	}
	if err := subscribeAll(s, r.URL.Query()["field"]); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := logger.L(r.Context()).With("session_id", s.ID())
	log.Debug("event stream opened")
	defer log.Debug("event stream closed")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		if err := writeEvents(w, s.Drain()); err != nil {
			log.Debug("event stream write failed", "error", err)
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-s.Done():
			_ = writeEvents(w, s.Drain())
			fmt.Fprint(w, "event: closed\ndata: {}\n\n")
			flusher.Flush()
			return
		case <-s.Ready():
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
	}
}

func writeEvents(w http.ResponseWriter, items []domain.Notification) error {
	for _, n := range items {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: change\ndata: %s\n\n", n.Version, data); err != nil {
			return err
		}
	}
	return nil
}
