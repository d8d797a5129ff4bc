package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/yndnr/syncmesh-go/internal/telemetry/logger"
)

// handleBackup handles GET /v1/admin/backup by streaming a full journal dump.
func (h *Handler) handleBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("syncmesh-%s.bak", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	start := time.Now()
	if err := h.backup.Backup(r.Context(), w); err != nil {
		// The status line is already sent; the body ends truncated.
		logger.L(r.Context()).Error("backup failed", "error", err)
		return
	}
	logger.L(r.Context()).Info("backup streamed", "file", name, "elapsed", time.Since(start))
}
