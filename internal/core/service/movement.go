package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/core/replication"
)

// PlayerFieldPrefix namespaces player position fields.
const PlayerFieldPrefix = "player/"

// PlayerField returns the position field of a session's player.
func PlayerField(sessionID string) string {
	return PlayerFieldPrefix + sessionID
}

// MovementService manages player positions. Each player field is owned by its
// session, so only that session's move commands are accepted, and it is
// dropped when the session disconnects.
type MovementService struct {
	node      *replication.Node
	authority *replication.Session
	timeout   time.Duration
	logger    *slog.Logger
}

// NewMovementService creates a MovementService. authority is the session
// that applies moves; when nil, the caller claims player fields itself.
func NewMovementService(node *replication.Node, authority *replication.Session, timeout time.Duration, logger *slog.Logger) *MovementService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MovementService{node: node, authority: authority, timeout: timeout, logger: logger}
}

// Spawn declares the player of session at the origin.
func (m *MovementService) Spawn(ctx context.Context, session *replication.Session) (replication.FieldInfo, error) {
	id := PlayerField(session.ID())
	if _, err := m.node.DeclareField(ctx, replication.FieldSpec{
		ID:        id,
		Initial:   domain.VectorValue(domain.Vec2{}),
		Owner:     session.ID(),
		Ephemeral: true,
	}); err != nil {
		return replication.FieldInfo{}, err
	}
	if m.authority != nil {
		if _, err := m.authority.ClaimAuthority(id); err != nil {
			_ = m.node.DropField(ctx, id)
			return replication.FieldInfo{}, err
		}
	}

	m.logger.Info("player spawned", "session_id", session.ID(), "field", id)
	return m.node.Field(id)
}

// Move submits one frame of input for the session's player and waits until
// the authority applied it.
func (m *MovementService) Move(ctx context.Context, session *replication.Session, x, y, dt float64) (domain.Vec2, error) {
	cmd, err := domain.Move(PlayerField(session.ID()), domain.Vec2{X: x, Y: y}, dt)
	if err != nil {
		return domain.Vec2{}, err
	}
	ticket, err := session.Submit(cmd)
	if err != nil {
		return domain.Vec2{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	res, err := ticket.Wait(ctx)
	if err != nil {
		return domain.Vec2{}, err
	}
	return res.Value.Vector(), nil
}

// Position returns the current position of the session's player.
func (m *MovementService) Position(sessionID string) (domain.Vec2, uint64, error) {
	v, version, err := m.node.Read(PlayerField(sessionID))
	if err != nil {
		return domain.Vec2{}, 0, err
	}
	return v.Vector(), version, nil
}
