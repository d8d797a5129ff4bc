package handler

import (
	"net/http"

	"github.com/yndnr/syncmesh-go/internal/core/replication"
)

// handleListFields handles GET /v1/fields.
func (h *Handler) handleListFields(w http.ResponseWriter, r *http.Request) {
	items := h.node.Fields()
	h.writeJSON(w, r, http.StatusOK, ListFieldsResponse{Items: items, Total: len(items)})
}

// handleGetField handles GET /v1/fields/{field}.
func (h *Handler) handleGetField(w http.ResponseWriter, r *http.Request) {
	info, err := h.node.Field(r.PathValue("field"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, info)
}

// handleDeclareField handles PUT /v1/fields/{field}.
func (h *Handler) handleDeclareField(w http.ResponseWriter, r *http.Request) {
	var req DeclareFieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	info, err := h.node.DeclareField(r.Context(), replication.FieldSpec{
		ID:        r.PathValue("field"),
		Initial:   req.Initial,
		Owner:     req.Owner,
		Ephemeral: req.Ephemeral,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, info)
}

// handleDropField handles DELETE /v1/fields/{field}.
func (h *Handler) handleDropField(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("field")
	if err := h.node.DropField(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"field_id": id})
}
