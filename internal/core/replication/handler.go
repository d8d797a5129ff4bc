package replication

import (
	"fmt"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// FieldMeta is what a command handler may know about the target field.
type FieldMeta struct {
	ID    string
	Kind  domain.Kind
	Owner string
}

// HandlerFunc validates cmd against the current value on the authority and
// returns the value to commit. Returning the current value commits nothing.
type HandlerFunc func(meta FieldMeta, current domain.Value, cmd domain.Command) (domain.Value, error)

// Handlers maps command kinds to their authority-side handler.
type Handlers map[domain.CommandKind]HandlerFunc

// DefaultHandlers returns the built-in toggle, set and move handlers.
func DefaultHandlers(moveSpeed, maxMoveDT float64) Handlers {
	return Handlers{
		domain.CommandToggle: ToggleHandler,
		domain.CommandSet:    SetHandler,
		domain.CommandMove:   MoveHandler(moveSpeed, maxMoveDT),
	}
}

// ToggleHandler flips a bool field.
func ToggleHandler(meta FieldMeta, current domain.Value, _ domain.Command) (domain.Value, error) {
	if meta.Kind != domain.KindBool {
		return current, domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("toggle needs a bool field, %s is %s", meta.ID, meta.Kind))
	}
	return domain.BoolValue(!current.Bool()), nil
}

// SetHandler replaces the value with the command payload of the same kind.
func SetHandler(meta FieldMeta, current domain.Value, cmd domain.Command) (domain.Value, error) {
	if cmd.Value.Kind() != meta.Kind {
		return current, domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("set on %s needs a %s value, got %q", meta.ID, meta.Kind, cmd.Value.Kind()))
	}
	if !cmd.Value.Finite() {
		return current, domain.ErrInvalidArgument.WithDetails("set on " + meta.ID + " needs a finite value")
	}
	return cmd.Value, nil
}

// MoveHandler displaces an owned vector field by axis * speed * dt. Only the
// owning session may move its field, each axis must lie in [-1, 1] and dt in
// (0, maxDT].
func MoveHandler(speed, maxDT float64) HandlerFunc {
	return func(meta FieldMeta, current domain.Value, cmd domain.Command) (domain.Value, error) {
		if meta.Kind != domain.KindVector {
			return current, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("move needs a vector field, %s is %s", meta.ID, meta.Kind))
		}
		if meta.Owner != "" && meta.Owner != cmd.SessionID {
			return current, domain.ErrNotOwner.WithDetails(
				fmt.Sprintf("%s is owned by %s", meta.ID, meta.Owner))
		}
		in := cmd.Move
		// Written so NaN fails every bound.
		if !(in.Axis.X >= -1 && in.Axis.X <= 1 && in.Axis.Y >= -1 && in.Axis.Y <= 1) {
			return current, domain.ErrInvalidArgument.WithDetails("move axes must be within [-1, 1]")
		}
		if !(in.DT > 0 && in.DT <= maxDT) {
			return current, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("move dt must be within (0, %g]", maxDT))
		}
		if in.Axis.IsZero() {
			return current, nil
		}
		return domain.VectorValue(current.Vector().Add(in.Axis.Scale(speed * in.DT))), nil
	}
}
