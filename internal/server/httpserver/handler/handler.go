package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/core/replication"
	"github.com/yndnr/syncmesh-go/internal/core/service"
	"github.com/yndnr/syncmesh-go/internal/telemetry/logger"
)

// HeaderSessionID names the session issuing a command or commit.
const HeaderSessionID = "X-Session-ID"

// Backuper writes a full dump of the journal.
type Backuper interface {
	Backup(ctx context.Context, w io.Writer) error
}

// Config wires the handler to the node and its services. Switch, Movement
// and Backup are optional; their routes answer 404 when unset.
type Config struct {
	Node     *replication.Node
	Switch   *service.SwitchService
	Movement *service.MovementService
	Backup   Backuper

	// CommandTimeout bounds how long a command request waits for the
	// authority.
	CommandTimeout time.Duration

	// Heartbeat is the idle interval between SSE keepalive comments.
	Heartbeat time.Duration

	Logger *slog.Logger
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	node      *replication.Node
	sw        *service.SwitchService
	movement  *service.MovementService
	backup    Backuper
	timeout   time.Duration
	heartbeat time.Duration
	logger    *slog.Logger
	mux       *http.ServeMux
	started   time.Time
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = service.DefaultTimeout
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{
		node:      cfg.Node,
		sw:        cfg.Switch,
		movement:  cfg.Movement,
		backup:    cfg.Backup,
		timeout:   cfg.CommandTimeout,
		heartbeat: cfg.Heartbeat,
		logger:    cfg.Logger,
		mux:       http.NewServeMux(),
		started:   time.Now(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// Sessions
	h.mux.HandleFunc("POST /v1/sessions", h.handleConnect)
	h.mux.HandleFunc("GET /v1/sessions", h.handleListSessions)
	h.mux.HandleFunc("GET /v1/sessions/{id}", h.handleGetSession)
	h.mux.HandleFunc("DELETE /v1/sessions/{id}", h.handleDisconnect)
	h.mux.HandleFunc("POST /v1/sessions/{id}/authority/{field...}", h.handleClaim)
	h.mux.HandleFunc("DELETE /v1/sessions/{id}/authority/{field...}", h.handleRelease)
	h.mux.HandleFunc("POST /v1/sessions/{id}/subscriptions/{field...}", h.handleSubscribe)
	h.mux.HandleFunc("DELETE /v1/sessions/{id}/subscriptions/{field...}", h.handleUnsubscribe)
	h.mux.HandleFunc("GET /v1/sessions/{id}/events", h.handleEvents)

	// Fields
	h.mux.HandleFunc("GET /v1/fields", h.handleListFields)
	h.mux.HandleFunc("GET /v1/fields/{field...}", h.handleGetField)
	h.mux.HandleFunc("PUT /v1/fields/{field...}", h.handleDeclareField)
	h.mux.HandleFunc("DELETE /v1/fields/{field...}", h.handleDropField)

	// Mutations
	h.mux.HandleFunc("POST /v1/commands/{field...}", h.handleSubmit)
	h.mux.HandleFunc("POST /v1/commits/{field...}", h.handleCommit)

	if h.sw != nil {
		h.mux.HandleFunc("GET /v1/switch", h.handleSwitchState)
		h.mux.HandleFunc("POST /v1/switch/toggle", h.handleSwitchToggle)
	}
	if h.movement != nil {
		h.mux.HandleFunc("GET /v1/players/{id}", h.handlePlayerPosition)
		h.mux.HandleFunc("POST /v1/players/{id}/move", h.handlePlayerMove)
	}
	if h.backup != nil {
		h.mux.HandleFunc("GET /v1/admin/backup", h.handleBackup)
	}
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// decode reads a JSON body. An empty body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("invalid request body").WithCause(err))
	return false
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	de, ok := domain.AsDomainError(err)
	if !ok {
		logger.L(r.Context()).Error("internal error", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, "internal server error", nil)
		return
	}

	status := de.Status()
	if status >= http.StatusInternalServerError {
		logger.L(r.Context()).Error("request failed", "code", de.Code, "error", err)
	}
	if de.Transient {
		w.Header().Set("Retry-After", "1")
	}
	h.writeError(w, r, status, de.Code, err.Error(), nil)
}

// issuer resolves the session named by the X-Session-ID header.
func (h *Handler) issuer(r *http.Request) (*replication.Session, error) {
	id := r.Header.Get(HeaderSessionID)
	if id == "" {
		return nil, domain.ErrMissingArgument.WithDetails(HeaderSessionID + " header is required")
	}
	return h.node.Session(id)
}
