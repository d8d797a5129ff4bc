package handler

import (
	"errors"
	"net/http"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/core/replication"
	"github.com/yndnr/syncmesh-go/internal/telemetry/logger"
)

// handleConnect handles POST /v1/sessions.
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.SpawnPlayer && h.movement == nil {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("player movement is disabled"))
		return
	}

	s, err := h.node.Connect()
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := ConnectResponse{}
	if req.SpawnPlayer {
		info, err := h.movement.Spawn(r.Context(), s)
		if err != nil {
			s.Disconnect()
			h.handleServiceError(w, r, err)
			return
		}
		resp.Player = &info
	}
	resp.Session = s.Info()

	logger.L(r.Context()).Debug("session connected over http", "session_id", s.ID(), "spawn_player", req.SpawnPlayer)
	h.writeJSON(w, r, http.StatusCreated, resp)
}

// handleListSessions handles GET /v1/sessions.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	items := h.node.Sessions()
	h.writeJSON(w, r, http.StatusOK, ListSessionsResponse{Items: items, Total: len(items)})
}

// session resolves the {id} path value.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*replication.Session, bool) {
	s, err := h.node.Session(r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	return s, true
}

// handleGetSession handles GET /v1/sessions/{id}.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.Info())
}

// handleDisconnect handles DELETE /v1/sessions/{id}.
func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Disconnect()
	h.writeJSON(w, r, http.StatusOK, s.Info())
}

// handleClaim handles POST /v1/sessions/{id}/authority/{field}.
func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	fieldID := r.PathValue("field")
	c, err := s.ClaimAuthority(fieldID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, AuthorityResponse{
		SessionID: s.ID(),
		FieldID:   fieldID,
		Epoch:     c.Epoch(),
	})
}

// handleRelease handles DELETE /v1/sessions/{id}/authority/{field}.
func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.ReleaseAuthority(r.PathValue("field")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.Info())
}

// handleSubscribe handles POST /v1/sessions/{id}/subscriptions/{field}.
// Notifications are queued on the session and read from its event stream.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Subscribe(r.PathValue("field"), nil); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.Info())
}

// handleUnsubscribe handles DELETE /v1/sessions/{id}/subscriptions/{field}.
func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Unsubscribe(r.PathValue("field")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.Info())
}

// subscribeAll subscribes s to every field, tolerating existing subscriptions.
func subscribeAll(s *replication.Session, fields []string) error {
	for _, f := range fields {
		if err := s.Subscribe(f, nil); err != nil && !errors.Is(err, domain.ErrAlreadySubscribed) {
			return err
		}
	}
	return nil
}
