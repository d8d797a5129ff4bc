package handler

import (
	"context"
	"net/http"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// handleSubmit handles POST /v1/commands/{field}. The request waits until
// the authority resolves the command or the command timeout elapses.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s, err := h.issuer(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var req CommandRequest
	if !h.decode(w, r, &req) {
		return
	}
	cmd, err := domain.NewCommand(r.PathValue("field"), req.Kind)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	cmd.Value = req.Value
	if req.Move != nil {
		cmd.Move = *req.Move
	}

	ticket, err := s.Submit(cmd)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	res, err := ticket.Wait(ctx)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

// handleCommit handles POST /v1/commits/{field}: a direct write by the
// session holding authority.
func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	s, err := h.issuer(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var req CommitRequest
	if !h.decode(w, r, &req) {
		return
	}
	fieldID := r.PathValue("field")
	version, err := s.Commit(fieldID, req.Value)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, CommitResponse{FieldID: fieldID, Version: version})
}
