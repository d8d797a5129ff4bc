package replication

import (
	"log/slog"
	"sync"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// Capability is the proof of authority over one field. It is handed out by a
// successful claim and becomes useless once released; its fields are
// unexported so it cannot be forged outside this package.
type Capability struct {
	fieldID   string
	sessionID string
	epoch     uint64
}

// FieldID returns the field the capability grants authority over.
func (c *Capability) FieldID() string { return c.fieldID }

// SessionID returns the session holding the capability.
func (c *Capability) SessionID() string { return c.sessionID }

// Epoch returns the claim generation; it increases on every successful claim.
func (c *Capability) Epoch() uint64 { return c.epoch }

// CommitObserver is notified after every version-changing commit, once all
// subscribers have been delivered to.
type CommitObserver[T comparable] func(fieldID string, value T, version uint64)

// Field is the canonical copy of one replicated value. Only the holder of the
// current Capability may change it; every change bumps the version and is
// published to subscribers in commit order.
type Field[T comparable] struct {
	id string

	// commitMu serialises read-modify-write plus publish, so subscribers see
	// commits in version order. mu only guards the state below, which lets
	// hooks call Read while a publish is in progress.
	commitMu sync.Mutex

	mu        sync.RWMutex
	value     T
	version   uint64
	holder    *Capability
	epoch     uint64
	retired   bool
	observers []CommitObserver[T]

	bus *Bus[T]
}

// NewField creates a field holding initial at version 0 with no authority.
func NewField[T comparable](id string, initial T) *Field[T] {
	return &Field[T]{
		id:    id,
		value: initial,
		bus:   NewBus[T](slog.Default()),
	}
}

// ID returns the field identifier.
func (f *Field[T]) ID() string { return f.id }

// Read returns the current value and version.
func (f *Field[T]) Read() (T, uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value, f.version
}

// Authority returns the session currently holding authority, if any.
func (f *Field[T]) Authority() (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.holder == nil {
		return "", false
	}
	return f.holder.sessionID, true
}

// Restore seeds a recovered value and version. It is only allowed while no
// session holds authority and never moves the version backwards.
func (f *Field[T]) Restore(v T, version uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holder != nil {
		return domain.ErrAuthorityConflict.WithDetails("cannot restore field " + f.id + " while authority is held")
	}
	if version < f.version {
		return domain.ErrInvalidArgument.WithDetails("restore would move version of " + f.id + " backwards")
	}
	f.value = v
	f.version = version
	return nil
}

// OnCommit registers an observer called after each version-changing commit.
func (f *Field[T]) OnCommit(fn CommitObserver[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
}

// Commit replaces the value. Committing the current value is a no-op that
// returns the unchanged version and notifies nobody.
func (f *Field[T]) Commit(c *Capability, v T) (uint64, error) {
	version, _, err := f.Update(c, func(T) (T, error) { return v, nil })
	return version, err
}

// Update atomically computes the next value from the current one and commits
// it. fn runs with commits to this field serialised, so the value it sees is
// the one it replaces.
func (f *Field[T]) Update(c *Capability, fn func(current T) (T, error)) (version uint64, changed bool, err error) {
	f.commitMu.Lock()
	defer f.commitMu.Unlock()

	f.mu.RLock()
	if c == nil || f.holder != c {
		current := f.version
		f.mu.RUnlock()
		return current, false, f.notAuthorized(c)
	}
	old := f.value
	f.mu.RUnlock()

	next, err := fn(old)
	if err != nil {
		_, current := f.Read()
		return current, false, err
	}

	f.mu.Lock()
	if f.holder != c {
		current := f.version
		f.mu.Unlock()
		return current, false, f.notAuthorized(c)
	}
	if next == old {
		current := f.version
		f.mu.Unlock()
		return current, false, nil
	}
	f.value = next
	f.version++
	version = f.version
	observers := append([]CommitObserver[T](nil), f.observers...)
	f.mu.Unlock()

	f.bus.publish(f.id, old, next, version)
	for _, fn := range observers {
		fn(f.id, next, version)
	}
	return version, true, nil
}

// Subscribe registers hook for every future change. The subscription starts
// at the current version: changes committed before Subscribe returns with a
// version at or below it are never delivered.
func (f *Field[T]) Subscribe(sessionID string, hook Hook[T]) (*Subscription[T], error) {
	return f.subscribe(sessionID, hook, nil)
}

func (f *Field[T]) subscribe(sessionID string, hook Hook[T], tap tapFunc[T]) (*Subscription[T], error) {
	// Holding mu across the insert orders it against version bumps: a commit
	// either happened before (and is deduplicated by version) or is published
	// after the subscription is visible.
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bus.subscribe(sessionID, f.id, hook, tap, f.version)
}

// Unsubscribe removes the subscription. No notification is delivered to it
// after Unsubscribe returns.
func (f *Field[T]) Unsubscribe(sub *Subscription[T]) {
	f.bus.unsubscribe(sub)
}

// Subscribers returns the number of live subscriptions.
func (f *Field[T]) Subscribers() int {
	return f.bus.Count()
}

func (f *Field[T]) claim(sessionID string) (*Capability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retired {
		return nil, domain.ErrFieldNotFound.WithDetails(f.id)
	}
	if f.holder != nil {
		if f.holder.sessionID == sessionID {
			return f.holder, nil
		}
		return nil, domain.ErrAuthorityConflict.WithDetails("field " + f.id + " is held by " + f.holder.sessionID)
	}
	f.epoch++
	f.holder = &Capability{fieldID: f.id, sessionID: sessionID, epoch: f.epoch}
	return f.holder, nil
}

// retire marks the field as dropped from its node so later claims fail, and
// returns the capability held at that moment, if any.
func (f *Field[T]) retire() *Capability {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retired = true
	return f.holder
}

// release drops authority if c is still the current capability.
func (f *Field[T]) release(c *Capability) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c == nil || f.holder != c {
		return false
	}
	f.holder = nil
	return true
}

func (f *Field[T]) notAuthorized(c *Capability) error {
	if c == nil {
		return domain.ErrNotAuthorized.WithDetails("no capability for field " + f.id)
	}
	return domain.ErrNotAuthorized.WithDetails("session " + c.sessionID + " does not hold authority for field " + f.id)
}
