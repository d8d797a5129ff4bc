package handler

import (
	"net/http"

	"github.com/yndnr/syncmesh-go/internal/core/service"
)

// handleSwitchState handles GET /v1/switch.
func (h *Handler) handleSwitchState(w http.ResponseWriter, r *http.Request) {
	on, version, err := h.sw.State()
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, SwitchResponse{
		FieldID: h.sw.FieldID(),
		On:      on,
		Color:   h.sw.Color(on),
		Version: version,
	})
}

// handleSwitchToggle handles POST /v1/switch/toggle on behalf of the session
// in the X-Session-ID header.
func (h *Handler) handleSwitchToggle(w http.ResponseWriter, r *http.Request) {
	s, err := h.issuer(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	res, err := h.sw.Toggle(r.Context(), s)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	on := res.Value.Bool()
	h.writeJSON(w, r, http.StatusOK, SwitchResponse{
		FieldID: res.FieldID,
		On:      on,
		Color:   h.sw.Color(on),
		Version: res.Version,
	})
}

// handlePlayerPosition handles GET /v1/players/{id}.
func (h *Handler) handlePlayerPosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pos, version, err := h.movement.Position(id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, PlayerResponse{
		SessionID: id,
		FieldID:   service.PlayerField(id),
		Position:  pos,
		Version:   version,
	})
}

// handlePlayerMove handles POST /v1/players/{id}/move. The player's own
// session issues the move.
func (h *Handler) handlePlayerMove(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req MoveRequest
	if !h.decode(w, r, &req) {
		return
	}
	pos, err := h.movement.Move(r.Context(), s, req.X, req.Y, req.DT)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	_, version, err := h.movement.Position(s.ID())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, PlayerResponse{
		SessionID: s.ID(),
		FieldID:   service.PlayerField(s.ID()),
		Position:  pos,
		Version:   version,
	})
}
