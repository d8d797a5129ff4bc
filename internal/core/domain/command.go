package domain

import (
	"fmt"
	"strings"
	"time"
)

// Field ID constraints.
const (
	MaxFieldIDLength = 128
)

// CommandKind names the mutation a command requests.
type CommandKind string

// Built-in command kinds.
const (
	// CommandToggle flips a bool field.
	CommandToggle CommandKind = "toggle"
	// CommandSet replaces the field value with the payload value.
	CommandSet CommandKind = "set"
	// CommandMove displaces a vector field by input axes scaled by speed and dt.
	CommandMove CommandKind = "move"
)

// MoveInput is the payload of a move command: input axes in [-1, 1] and the
// frame time in seconds.
type MoveInput struct {
	Axis Vec2    `json:"axis"`
	DT   float64 `json:"dt"`
}

// Command is a requested mutation of one field. It is created on submit and
// discarded once the authority accepts or rejects it.
type Command struct {
	ID        string      `json:"id"`
	FieldID   string      `json:"field_id"`
	Kind      CommandKind `json:"kind"`
	Value     Value       `json:"value,omitzero"`
	Move      MoveInput   `json:"move,omitzero"`
	SessionID string      `json:"session_id"`
	IssuedAt  int64       `json:"issued_at"`
}

// NewCommand creates a command with a generated ID.
func NewCommand(fieldID string, kind CommandKind) (Command, error) {
	id, err := GenerateCommandID()
	if err != nil {
		return Command{}, err
	}
	return Command{
		ID:       id,
		FieldID:  fieldID,
		Kind:     kind,
		IssuedAt: time.Now().UnixMilli(),
	}, nil
}

// Toggle builds a toggle command for a bool field.
func Toggle(fieldID string) (Command, error) {
	return NewCommand(fieldID, CommandToggle)
}

// Set builds a set command.
func Set(fieldID string, v Value) (Command, error) {
	cmd, err := NewCommand(fieldID, CommandSet)
	if err != nil {
		return Command{}, err
	}
	cmd.Value = v
	return cmd, nil
}

// Move builds a move command.
func Move(fieldID string, axis Vec2, dt float64) (Command, error) {
	cmd, err := NewCommand(fieldID, CommandMove)
	if err != nil {
		return Command{}, err
	}
	cmd.Move = MoveInput{Axis: axis, DT: dt}
	return cmd, nil
}

// Validate checks the command envelope. Payload semantics are checked by the
// authority's handler.
func (c Command) Validate() error {
	if err := ValidateFieldID(c.FieldID); err != nil {
		return err
	}
	if c.Kind == "" {
		return ErrMissingArgument.WithDetails("command kind is required")
	}
	return nil
}

// ValidateFieldID checks a field identifier. Slashes are allowed so that
// fields can be namespaced (e.g. "player/<session-id>").
func ValidateFieldID(id string) error {
	if id == "" {
		return ErrMissingArgument.WithDetails("field id is required")
	}
	if len(id) > MaxFieldIDLength {
		return ErrInvalidArgument.WithDetails(fmt.Sprintf("field id exceeds %d characters", MaxFieldIDLength))
	}
	if strings.HasPrefix(id, "/") || strings.HasSuffix(id, "/") || strings.ContainsAny(id, " \t\n?#") {
		return ErrInvalidArgument.WithDetails("field id contains invalid characters")
	}
	return nil
}
