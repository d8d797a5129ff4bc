package replication

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// Hook is called once per committed change of a subscribed field.
type Hook[T comparable] func(fieldID string, oldValue, newValue T)

// tapFunc is the internal variant of Hook that also sees the version.
type tapFunc[T comparable] func(fieldID string, oldValue, newValue T, version uint64)

// Subscription is one session's registration on one field.
type Subscription[T comparable] struct {
	sessionID string
	fieldID   string
	hook      Hook[T]
	tap       tapFunc[T]

	// mu is held for the whole delivery and unsubscribe sets closed under
	// it, so nothing is delivered once unsubscribe has returned.
	mu          sync.Mutex
	closed      bool
	lastVersion uint64
}

// SessionID returns the subscribing session.
func (s *Subscription[T]) SessionID() string { return s.sessionID }

// FieldID returns the observed field.
func (s *Subscription[T]) FieldID() string { return s.fieldID }

// LastVersion returns the version of the last delivered change, or the
// field version at subscribe time if nothing was delivered yet.
func (s *Subscription[T]) LastVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastVersion
}

// Closed reports whether the subscription was removed.
func (s *Subscription[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscription[T]) deliver(fieldID string, oldValue, newValue T, version uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || version <= s.lastVersion {
		return nil
	}
	s.lastVersion = version

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panic: %v", r)
		}
	}()
	if s.tap != nil {
		s.tap(fieldID, oldValue, newValue, version)
	}
	if s.hook != nil {
		s.hook(fieldID, oldValue, newValue)
	}
	return nil
}

// Bus fans committed changes of one field out to its subscribers.
//
// Delivery is synchronous with publish. A hook must not unsubscribe its own
// subscription synchronously; doing so from another goroutine is fine.
type Bus[T comparable] struct {
	mu        sync.Mutex
	subs      []*Subscription[T]
	bySession map[string]*Subscription[T]
	logger    *slog.Logger
}

// NewBus creates an empty bus.
func NewBus[T comparable](logger *slog.Logger) *Bus[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus[T]{
		bySession: make(map[string]*Subscription[T]),
		logger:    logger,
	}
}

// Count returns the number of live subscriptions.
func (b *Bus[T]) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Lookup returns the subscription held by a session.
func (b *Bus[T]) Lookup(sessionID string) (*Subscription[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.bySession[sessionID]
	return s, ok
}

func (b *Bus[T]) subscribe(sessionID, fieldID string, hook Hook[T], tap tapFunc[T], version uint64) (*Subscription[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.bySession[sessionID]; ok {
		return nil, domain.ErrAlreadySubscribed.WithDetails(sessionID + " on " + fieldID)
	}
	s := &Subscription[T]{
		sessionID:   sessionID,
		fieldID:     fieldID,
		hook:        hook,
		tap:         tap,
		lastVersion: version,
	}
	b.subs = append(b.subs, s)
	b.bySession[sessionID] = s
	return s, nil
}

func (b *Bus[T]) unsubscribe(s *Subscription[T]) {
	if s == nil {
		return
	}
	b.mu.Lock()
	if cur, ok := b.bySession[s.sessionID]; ok && cur == s {
		delete(b.bySession, s.sessionID)
	}
	b.subs = slices.DeleteFunc(b.subs, func(x *Subscription[T]) bool { return x == s })
	b.mu.Unlock()

	// Waits for an in-flight delivery to this subscription to finish.
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// publish delivers one change to every subscriber present when it starts.
// Callers serialise publishes per field.
func (b *Bus[T]) publish(fieldID string, oldValue, newValue T, version uint64) {
	b.mu.Lock()
	subs := slices.Clone(b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if err := s.deliver(fieldID, oldValue, newValue, version); err != nil {
			b.logger.Error("change hook failed",
				"field", fieldID,
				"session_id", s.sessionID,
				"version", version,
				"error", err)
		}
	}
}

// sessionIDs returns the sessions subscribed at the time of the call.
func (b *Bus[T]) sessionIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.subs))
	for _, s := range b.subs {
		ids = append(ids, s.sessionID)
	}
	return ids
}
