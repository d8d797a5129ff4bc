package handler

import (
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/core/replication"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics, the event stream and
// the backup download).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// ConnectRequest is the request body for POST /v1/sessions.
type ConnectRequest struct {
	SpawnPlayer bool `json:"spawn_player,omitempty"`
}

// ConnectResponse is the response body for POST /v1/sessions.
type ConnectResponse struct {
	Session domain.SessionInfo     `json:"session"`
	Player  *replication.FieldInfo `json:"player,omitempty"`
}

// ListSessionsResponse is the response body for GET /v1/sessions.
type ListSessionsResponse struct {
	Items []domain.SessionInfo `json:"items"`
	Total int                  `json:"total"`
}

// AuthorityResponse is the response body for authority claims.
type AuthorityResponse struct {
	SessionID string `json:"session_id"`
	FieldID   string `json:"field_id"`
	Epoch     uint64 `json:"epoch"`
}

// DeclareFieldRequest is the request body for PUT /v1/fields/{field}.
type DeclareFieldRequest struct {
	Initial   domain.Value `json:"initial"`
	Owner     string       `json:"owner,omitempty"`
	Ephemeral bool         `json:"ephemeral,omitempty"`
}

// ListFieldsResponse is the response body for GET /v1/fields.
type ListFieldsResponse struct {
	Items []replication.FieldInfo `json:"items"`
	Total int                     `json:"total"`
}

// CommandRequest is the request body for POST /v1/commands/{field}.
type CommandRequest struct {
	Kind  domain.CommandKind `json:"kind"`
	Value domain.Value       `json:"value,omitzero"`
	Move  *domain.MoveInput  `json:"move,omitempty"`
}

// CommitRequest is the request body for POST /v1/commits/{field}.
type CommitRequest struct {
	Value domain.Value `json:"value"`
}

// CommitResponse is the response body for POST /v1/commits/{field}.
type CommitResponse struct {
	FieldID string `json:"field_id"`
	Version uint64 `json:"version"`
}

// SwitchResponse describes the switch state.
type SwitchResponse struct {
	FieldID string `json:"field_id"`
	On      bool   `json:"on"`
	Color   string `json:"color"`
	Version uint64 `json:"version"`
}

// MoveRequest is the request body for POST /v1/players/{id}/move.
type MoveRequest struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	DT float64 `json:"dt"`
}

// PlayerResponse describes a player's position.
type PlayerResponse struct {
	SessionID string      `json:"session_id"`
	FieldID   string      `json:"field_id"`
	Position  domain.Vec2 `json:"position"`
	Version   uint64      `json:"version"`
}
