package replication

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/pkg/cmap"
)

// Default tuning. Queues are unbounded unless a capacity is configured.
const (
	DefaultMoveSpeed     = 5.0
	DefaultMaxMoveDT     = 1.0
	DefaultQueueCapacity = 0
)

// Config configures a Node.
type Config struct {
	Queue QueueConfig

	// MoveSpeed is the distance per second a full axis input moves a player.
	MoveSpeed float64
	// MaxMoveDT bounds the frame time accepted with a move command, in seconds.
	MaxMoveDT float64

	OutboxSize int

	Logger   *slog.Logger
	Recorder Recorder
	// Journal persists durable fields; nil keeps everything in memory.
	Journal Journal
}

// DefaultConfig returns a configuration with the default tuning and no
// journal.
func DefaultConfig() Config {
	return Config{
		Queue:      QueueConfig{Capacity: DefaultQueueCapacity},
		MoveSpeed:  DefaultMoveSpeed,
		MaxMoveDT:  DefaultMaxMoveDT,
		OutboxSize: DefaultOutboxSize,
	}
}

// FieldSpec declares a replicated field.
type FieldSpec struct {
	ID      string
	Initial domain.Value
	// Owner is the session that may move the field; empty means unowned.
	Owner string
	// Ephemeral fields are never journaled and are dropped when their owner
	// disconnects.
	Ephemeral bool
}

// FieldInfo is a point-in-time view of a field.
type FieldInfo struct {
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

type entry struct {
	spec  FieldSpec
	meta  FieldMeta
	field *Field[domain.Value]
	queue *Queue
}

func (e *entry) info() FieldInfo {
	v, version := e.field.Read()
	holder, _ := e.field.Authority()
	return FieldInfo{
		ID:          e.spec.ID,
		Kind:        e.meta.Kind,
		Owner:       e.spec.Owner,
		Ephemeral:   e.spec.Ephemeral,
		Value:       v,
		Version:     version,
		Authority:   holder,
		Subscribers: e.field.Subscribers(),
		Pending:     e.queue.Len(),
	}
}

// Node hosts replicated fields and the sessions that observe and command
// them.
type Node struct {
	logger   *slog.Logger
	recorder Recorder
	journal  Journal

	mu       sync.RWMutex
	cfg      Config
	handlers Handlers

	fields   *cmap.Map[*entry]
	sessions *cmap.Map[*Session]
	closed   atomic.Bool
}

// NewNode creates a node. Zero tuning values fall back to the defaults.
func NewNode(cfg Config) *Node {
	def := DefaultConfig()
	if cfg.MoveSpeed <= 0 {
		cfg.MoveSpeed = def.MoveSpeed
	}
	if cfg.MaxMoveDT <= 0 {
		cfg.MaxMoveDT = def.MaxMoveDT
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = def.OutboxSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	return &Node{
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
		journal:  cfg.Journal,
		cfg:      cfg,
		handlers: DefaultHandlers(cfg.MoveSpeed, cfg.MaxMoveDT),
		fields:   cmap.New[*entry](),
		sessions: cmap.New[*Session](),
	}
}

// Handle registers or replaces the handler for a command kind. It affects
// fields declared afterwards.
func (n *Node) Handle(kind domain.CommandKind, h HandlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[kind] = h
}

// SetQueueConfig retunes every queue and the ones created later.
func (n *Node) SetQueueConfig(cfg QueueConfig) {
	n.mu.Lock()
	n.cfg.Queue = cfg
	n.mu.Unlock()

	n.fields.Range(func(_ string, e *entry) bool {
		e.queue.SetConfig(cfg)
		return true
	})
	n.logger.Info("queue config updated",
		"capacity", cfg.Capacity,
		"rate_limit", cfg.RateLimit,
		"rate_burst", cfg.RateBurst)
}

// DeclareField creates a field. Durable fields are restored from the journal
// when it holds a value of the same kind.
func (n *Node) DeclareField(ctx context.Context, spec FieldSpec) (FieldInfo, error) {
	if n.closed.Load() {
		return FieldInfo{}, domain.ErrSessionClosed.WithDetails("node closed")
	}
	if err := domain.ValidateFieldID(spec.ID); err != nil {
		return FieldInfo{}, err
	}
	kind := spec.Initial.Kind()
	if !kind.Valid() {
		return FieldInfo{}, domain.ErrInvalidArgument.WithDetails("field " + spec.ID + " needs a typed initial value")
	}
	if !spec.Initial.Finite() {
		return FieldInfo{}, domain.ErrInvalidArgument.WithDetails("field " + spec.ID + " needs a finite initial value")
	}
	if spec.Owner != "" && !n.sessions.Has(spec.Owner) {
		return FieldInfo{}, domain.ErrSessionNotFound.WithDetails(spec.Owner)
	}
	if n.fields.Has(spec.ID) {
		return FieldInfo{}, domain.ErrFieldExists.WithDetails(spec.ID)
	}

	field := NewField(spec.ID, spec.Initial)
	field.bus.logger = n.logger

	durable := n.journal != nil && !spec.Ephemeral
	if durable {
		v, version, ok, err := n.journal.Load(ctx, spec.ID)
		if err != nil {
			return FieldInfo{}, domain.ErrStorageError.WithCause(err)
		}
		switch {
		case ok && v.Kind() == kind:
			if err := field.Restore(v, version); err != nil {
				return FieldInfo{}, err
			}
		case ok:
			n.logger.Warn("ignoring journaled value of another kind",
				"field", spec.ID,
				"declared", kind,
				"journaled", v.Kind())
		}
	}

	field.OnCommit(func(id string, v domain.Value, version uint64) {
		n.recorder.Committed()
		if !durable {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.journal.Save(ctx, id, v, version); err != nil {
			n.logger.Error("failed to journal commit",
				"field", id,
				"version", version,
				"error", err)
		}
	})

	meta := FieldMeta{ID: spec.ID, Kind: kind, Owner: spec.Owner}
	n.mu.RLock()
	handlers := make(Handlers, len(n.handlers))
	for k, h := range n.handlers {
		handlers[k] = h
	}
	qcfg := n.cfg.Queue
	n.mu.RUnlock()

	e := &entry{
		spec:  spec,
		meta:  meta,
		field: field,
		queue: newQueue(field, meta, handlers, qcfg, n.logger, n.recorder),
	}
	if !n.fields.SetIfAbsent(spec.ID, e) {
		return FieldInfo{}, domain.ErrFieldExists.WithDetails(spec.ID)
	}

	_, version := field.Read()
	n.logger.Info("field declared",
		"field", spec.ID,
		"kind", kind,
		"owner", spec.Owner,
		"ephemeral", spec.Ephemeral,
		"version", version)
	return e.info(), nil
}

// DropField removes a field. Its authority is released, pending commands are
// rejected and every subscription is removed.
func (n *Node) DropField(ctx context.Context, id string) error {
	e, ok := n.fields.Pop(id)
	if !ok {
		return domain.ErrFieldNotFound.WithDetails(id)
	}

	if holder := e.field.retire(); holder != nil {
		// forget waits for a ClaimAuthority still attaching the queue.
		if s, ok := n.sessions.Get(holder.sessionID); ok {
			if _, sub := s.forget(id); sub != nil {
				e.field.Unsubscribe(sub)
			}
		}
		e.queue.detach(holder)
		if e.field.release(holder) {
			n.recorder.AuthorityReleased()
		}
	}
	for _, sessionID := range e.field.bus.sessionIDs() {
		if s, ok := n.sessions.Get(sessionID); ok {
			if _, sub := s.forget(id); sub != nil {
				e.field.Unsubscribe(sub)
			}
		}
	}

	if n.journal != nil && !e.spec.Ephemeral {
		if err := n.journal.Delete(ctx, id); err != nil {
			n.logger.Warn("failed to delete journaled field", "field", id, "error", err)
		}
	}
	n.logger.Info("field dropped", "field", id)
	return nil
}

func (n *Node) entry(id string) (*entry, error) {
	e, ok := n.fields.Get(id)
	if !ok {
		return nil, domain.ErrFieldNotFound.WithDetails(id)
	}
	return e, nil
}

// Field returns a view of one field.
func (n *Node) Field(id string) (FieldInfo, error) {
	e, err := n.entry(id)
	if err != nil {
		return FieldInfo{}, err
	}
	return e.info(), nil
}

// Fields returns every field ordered by id.
func (n *Node) Fields() []FieldInfo {
	entries := n.fields.Values()
	out := make([]FieldInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.info())
	}
	return out
}

// Read returns the canonical value and version of a field.
func (n *Node) Read(id string) (domain.Value, uint64, error) {
	e, err := n.entry(id)
	if err != nil {
		return domain.Value{}, 0, err
	}
	v, version := e.field.Read()
	return v, version, nil
}

// Connect opens a new session.
func (n *Node) Connect(opts ...SessionOption) (*Session, error) {
	if n.closed.Load() {
		return nil, domain.ErrSessionClosed.WithDetails("node closed")
	}
	id, err := domain.GenerateSessionID()
	if err != nil {
		return nil, err
	}
	s := newSession(id, n, n.cfg.OutboxSize)
	for _, opt := range opts {
		opt(s)
	}
	n.sessions.Set(id, s)
	n.recorder.SessionConnected()
	n.logger.Info("session connected", "session_id", id, "headless", s.headless)
	return s, nil
}

// Session looks up a connected session.
func (n *Node) Session(id string) (*Session, error) {
	s, ok := n.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound.WithDetails(id)
	}
	return s, nil
}

// Sessions returns every connected session ordered by id.
func (n *Node) Sessions() []domain.SessionInfo {
	sessions := n.sessions.Values()
	out := make([]domain.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	return out
}

// Close disconnects every session. Declared fields keep their values.
func (n *Node) Close() {
	if !n.closed.CompareAndSwap(false, true) {
		return
	}
	for _, s := range n.sessions.Values() {
		s.Disconnect()
	}
	n.logger.Info("node closed")
}

func (n *Node) releaseAuthority(fieldID string, c *Capability) {
	e, err := n.entry(fieldID)
	if err != nil {
		return
	}
	e.queue.detach(c)
	if !e.field.release(c) {
		return
	}
	n.recorder.AuthorityReleased()
	n.logger.Info("authority released",
		"session_id", c.sessionID,
		"field", fieldID,
		"epoch", c.epoch)
}

func (n *Node) removeSession(s *Session) {
	n.sessions.Delete(s.id)

	var owned []string
	n.fields.Range(func(id string, e *entry) bool {
		e.queue.forget(s.id)
		if e.spec.Ephemeral && e.spec.Owner == s.id {
			owned = append(owned, id)
		}
		return true
	})
	for _, id := range owned {
		_ = n.DropField(context.Background(), id)
	}

	n.recorder.SessionDisconnected()
	n.logger.Info("session disconnected", "session_id", s.id, "dropped_fields", len(owned))
}
