package replication

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// SessionOption configures a session at connect time.
type SessionOption func(*Session)

// Headless marks a session that only acts as an authority and never observes
// fields locally, like a dedicated server process.
func Headless() SessionOption {
	return func(s *Session) {
		s.headless = true
	}
}

// Session is one connected participant. A fresh session observes; claiming
// authority over a field makes it authority and observer at once, unless it
// is headless.
type Session struct {
	id          string
	node        *Node
	connectedAt time.Time
	headless    bool
	outbox      *outbox
	done        chan struct{}

	mu        sync.Mutex
	state     domain.SessionState
	authority map[string]*Capability
	subs      map[string]*Subscription[domain.Value]
}

func newSession(id string, node *Node, outboxSize int) *Session {
	return &Session{
		id:          id,
		node:        node,
		connectedAt: time.Now(),
		outbox:      newOutbox(outboxSize),
		done:        make(chan struct{}),
		state:       domain.StateConnected,
		authority:   make(map[string]*Capability),
		subs:        make(map[string]*Subscription[domain.Value]),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Done is closed when the session disconnects.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the connection state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Role returns the current role of the session.
func (s *Session) Role() domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roleLocked()
}

func (s *Session) roleLocked() domain.Role {
	switch {
	case s.headless:
		return domain.RoleAuthority
	case len(s.authority) > 0:
		return domain.RoleBoth
	default:
		return domain.RoleObserver
	}
}

// Info returns a snapshot of the session.
func (s *Session) Info() domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionInfo{
		ID:            s.id,
		State:         s.state,
		Role:          s.roleLocked(),
		ConnectedAt:   s.connectedAt.UnixMilli(),
		AuthorityFor:  slices.Sorted(maps.Keys(s.authority)),
		Subscriptions: slices.Sorted(maps.Keys(s.subs)),
	}
}

// ClaimAuthority makes the session the single authority for a field and
// starts applying the field's queued commands. Claiming a field the session
// already holds returns the existing capability.
func (s *Session) ClaimAuthority(fieldID string) (*Capability, error) {
	e, err := s.node.entry(fieldID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateConnected {
		return nil, domain.ErrSessionClosed.WithDetails(s.id)
	}
	if c, ok := s.authority[fieldID]; ok {
		return c, nil
	}
	c, err := e.field.claim(s.id)
	if err != nil {
		return nil, err
	}
	s.authority[fieldID] = c
	e.queue.attach(c)

	s.node.recorder.AuthorityClaimed()
	s.node.logger.Info("authority claimed",
		"session_id", s.id,
		"field", fieldID,
		"epoch", c.epoch)
	return c, nil
}

// ReleaseAuthority gives up authority over a field. Commands still queued
// for it are rejected with ErrAuthorityUnavailable.
func (s *Session) ReleaseAuthority(fieldID string) error {
	s.mu.Lock()
	if s.state != domain.StateConnected {
		s.mu.Unlock()
		return domain.ErrSessionClosed.WithDetails(s.id)
	}
	c, ok := s.authority[fieldID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotAuthorized.WithDetails("session " + s.id + " does not hold authority for field " + fieldID)
	}
	delete(s.authority, fieldID)
	s.mu.Unlock()

	s.node.releaseAuthority(fieldID, c)
	return nil
}

// Capability returns the session's capability for a field, if it holds one.
func (s *Session) Capability(fieldID string) (*Capability, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.authority[fieldID]
	return c, ok
}

// Subscribe registers hook for changes of a field and starts buffering its
// notifications in the session outbox. hook may be nil.
func (s *Session) Subscribe(fieldID string, hook Hook[domain.Value]) error {
	e, err := s.node.entry(fieldID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateConnected {
		return domain.ErrSessionClosed.WithDetails(s.id)
	}
	if s.headless {
		return domain.ErrInvalidArgument.WithDetails("headless session " + s.id + " cannot observe fields")
	}
	if _, ok := s.subs[fieldID]; ok {
		return domain.ErrAlreadySubscribed.WithDetails(s.id + " on " + fieldID)
	}

	rec := s.node.recorder
	tap := func(id string, oldValue, newValue domain.Value, version uint64) {
		dropped := s.outbox.push(domain.Notification{
			FieldID: id,
			Old:     oldValue,
			New:     newValue,
			Version: version,
			At:      time.Now().UnixMilli(),
		})
		rec.NotificationDelivered()
		if dropped {
			rec.NotificationDropped()
		}
	}
	sub, err := e.field.subscribe(s.id, hook, tap)
	if err != nil {
		return err
	}
	s.subs[fieldID] = sub
	return nil
}

// Unsubscribe stops observing a field. Once it returns, the hook registered
// for the field is not called again. It must not be called synchronously from
// that hook.
func (s *Session) Unsubscribe(fieldID string) error {
	s.mu.Lock()
	sub, ok := s.subs[fieldID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotSubscribed.WithDetails(s.id + " on " + fieldID)
	}
	delete(s.subs, fieldID)
	s.mu.Unlock()

	if e, err := s.node.entry(fieldID); err == nil {
		e.field.Unsubscribe(sub)
	}
	return nil
}

// Submit sends a command to the field's authority. No authority or
// ownership check gates submission; validation happens on the authority.
func (s *Session) Submit(cmd domain.Command) (*Ticket, error) {
	if s.State() != domain.StateConnected {
		return nil, domain.ErrSessionClosed.WithDetails(s.id)
	}
	if cmd.ID == "" {
		id, err := domain.GenerateCommandID()
		if err != nil {
			return nil, err
		}
		cmd.ID = id
	}
	if cmd.IssuedAt == 0 {
		cmd.IssuedAt = time.Now().UnixMilli()
	}
	cmd.SessionID = s.id

	e, err := s.node.entry(cmd.FieldID)
	if err != nil {
		return nil, err
	}
	return e.queue.Submit(cmd)
}

// Commit writes a field directly. Only the field's authority may do so.
func (s *Session) Commit(fieldID string, v domain.Value) (uint64, error) {
	e, err := s.node.entry(fieldID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.state != domain.StateConnected {
		s.mu.Unlock()
		return 0, domain.ErrSessionClosed.WithDetails(s.id)
	}
	c := s.authority[fieldID]
	s.mu.Unlock()

	if c == nil {
		return 0, domain.ErrNotAuthorized.WithDetails("session " + s.id + " does not hold authority for field " + fieldID)
	}
	if v.Kind() != e.meta.Kind {
		return 0, domain.ErrInvalidArgument.WithDetails(
			"field " + fieldID + " holds " + string(e.meta.Kind) + " values")
	}
	if !v.Finite() {
		return 0, domain.ErrInvalidArgument.WithDetails("field " + fieldID + " needs a finite value")
	}
	return e.field.Commit(c, v)
}

// Pending returns the number of buffered notifications.
func (s *Session) Pending() int { return s.outbox.len() }

// Drain removes and returns all buffered notifications in delivery order.
func (s *Session) Drain() []domain.Notification { return s.outbox.drain() }

// Ready receives a value whenever notifications were buffered since the last
// receive.
func (s *Session) Ready() <-chan struct{} { return s.outbox.ready }

// Dropped returns how many notifications were discarded because the outbox
// was full.
func (s *Session) Dropped() uint64 { return s.outbox.droppedCount() }

// Disconnect releases every authority the session holds, removes all its
// subscriptions and forgets the session. It is idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == domain.StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = domain.StateDisconnected
	authority := s.authority
	subs := s.subs
	s.authority = make(map[string]*Capability)
	s.subs = make(map[string]*Subscription[domain.Value])
	close(s.done)
	s.mu.Unlock()

	for fieldID, c := range authority {
		s.node.releaseAuthority(fieldID, c)
	}
	for fieldID, sub := range subs {
		if e, err := s.node.entry(fieldID); err == nil {
			e.field.Unsubscribe(sub)
		}
	}
	s.node.removeSession(s)
}

// forget removes a field from the session's bookkeeping without touching
// the field itself; used when the field is dropped.
func (s *Session) forget(fieldID string) (*Capability, *Subscription[domain.Value]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.authority[fieldID]
	sub := s.subs[fieldID]
	delete(s.authority, fieldID)
	delete(s.subs, fieldID)
	return c, sub
}
