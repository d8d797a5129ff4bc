package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID prefixes. IDs are {prefix}{ulid_lowercase}, 31 characters total.
const (
	SessionIDPrefix = "smss-"
	CommandIDPrefix = "smcm-"

	idLength = 31
)

// Role describes what a connected session does for the fields it touches.
type Role string

// Session roles.
const (
	RoleObserver  Role = "observer"
	RoleAuthority Role = "authority"
	RoleBoth      Role = "both"
)

// SessionState is the connection state of a session.
type SessionState string

// Session states.
const (
	StateDisconnected SessionState = "disconnected"
	StateConnected    SessionState = "connected"
)

// SessionInfo is a point-in-time description of a session.
type SessionInfo struct {
	ID            string       `json:"id"`
	State         SessionState `json:"state"`
	Role          Role         `json:"role"`
	ConnectedAt   int64        `json:"connected_at"`
	AuthorityFor  []string     `json:"authority_for"`
	Subscriptions []string     `json:"subscriptions"`
}

// Notification is one committed change delivered to an observer.
type Notification struct {
	FieldID string `json:"field_id"`
	Old     Value  `json:"old"`
	New     Value  `json:"new"`
	Version uint64 `json:"version"`
	At      int64  `json:"at"`
}

// GenerateSessionID generates a new session ID using ULID.
func GenerateSessionID() (string, error) {
	return generateID(SessionIDPrefix)
}

// GenerateCommandID generates a new command ID using ULID.
func GenerateCommandID() (string, error) {
	return generateID(CommandIDPrefix)
}

// IsValidSessionID checks the session ID format.
func IsValidSessionID(id string) bool {
	return isValidID(id, SessionIDPrefix)
}

func generateID(prefix string) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return prefix + strings.ToLower(id.String()), nil
}

func isValidID(id, prefix string) bool {
	if len(id) != idLength || !strings.HasPrefix(id, prefix) {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(id[len(prefix):]))
	return err == nil
}
