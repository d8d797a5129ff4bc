package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// Response bodies of the server API, as the CLI reads them.

type fieldView struct {
	ID          string       `json:"id"`
	Kind        domain.Kind  `json:"kind"`
	Owner       string       `json:"owner,omitempty"`
	Ephemeral   bool         `json:"ephemeral,omitempty"`
	Value       domain.Value `json:"value"`
	Version     uint64       `json:"version"`
	Authority   string       `json:"authority,omitempty"`
	Subscribers int          `json:"subscribers"`
	Pending     int          `json:"pending"`
}

type fieldsResponse struct {
	Items []fieldView `json:"items"`
	Total int         `json:"total"`
}

type sessionsResponse struct {
	Items []domain.SessionInfo `json:"items"`
	Total int                  `json:"total"`
}

type connectResult struct {
	Session domain.SessionInfo `json:"session"`
	Player  *fieldView         `json:"player,omitempty"`
}

type authorityResult struct {
	SessionID string `json:"session_id"`
	FieldID   string `json:"field_id"`
	Epoch     uint64 `json:"epoch"`
}

type commandResult struct {
	CommandID string       `json:"command_id"`
	FieldID   string       `json:"field_id"`
	Value     domain.Value `json:"value"`
	Version   uint64       `json:"version"`
	Changed   bool         `json:"changed"`
}

type commitResult struct {
	FieldID string `json:"field_id"`
	Version uint64 `json:"version"`
}

type switchState struct {
	FieldID string `json:"field_id"`
	On      bool   `json:"on"`
	Color   string `json:"color"`
	Version uint64 `json:"version"`
}

type playerState struct {
	SessionID string      `json:"session_id"`
	FieldID   string      `json:"field_id"`
	Position  domain.Vec2 `json:"position"`
	Version   uint64      `json:"version"`
}

func formatTime(unixMilli int64) string {
	if unixMilli == 0 {
		return "-"
	}
	return time.UnixMilli(unixMilli).Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinOrDash(items []string) string {
	return orDash(strings.Join(items, ","))
}

func itoa(n int) string { return strconv.Itoa(n) }

func utoa(n uint64) string { return strconv.FormatUint(n, 10) }

// truncateID shortens long ids in narrow tables.
func truncateID(id string, wide bool) string {
	if wide || len(id) <= 16 {
		return id
	}
	return id[:13] + "..."
}
