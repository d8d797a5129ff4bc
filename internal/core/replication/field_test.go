package replication

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

type change struct {
	from, to bool
}

type hookRecorder struct {
	mu      sync.Mutex
	changes []change
}

func (r *hookRecorder) hook(_ string, oldValue, newValue bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change{oldValue, newValue})
}

func (r *hookRecorder) snapshot() []change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]change(nil), r.changes...)
}

func TestField_CommitRequiresCapability(t *testing.T) {
	f := NewField("switch/isOn", false)

	if _, err := f.Commit(nil, true); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("Commit(nil) error = %v, want ErrNotAuthorized", err)
	}

	c, err := f.claim("a")
	if err != nil {
		t.Fatalf("claim() error = %v", err)
	}
	version, err := f.Commit(c, true)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}

	f.release(c)
	if _, err := f.Commit(c, false); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("Commit() with released capability error = %v, want ErrNotAuthorized", err)
	}
	if v, _ := f.Read(); v != true {
		t.Errorf("Read() = %v, want true", v)
	}
}

func TestField_Claim(t *testing.T) {
	f := NewField("x", 0)

	a, err := f.claim("a")
	if err != nil {
		t.Fatalf("claim(a) error = %v", err)
	}
	again, err := f.claim("a")
	if err != nil || again != a {
		t.Errorf("second claim(a) = %v, %v; want same capability", again, err)
	}
	if _, err := f.claim("b"); !errors.Is(err, domain.ErrAuthorityConflict) {
		t.Errorf("claim(b) error = %v, want ErrAuthorityConflict", err)
	}

	f.release(a)
	b, err := f.claim("b")
	if err != nil {
		t.Fatalf("claim(b) after release error = %v", err)
	}
	if b.Epoch() <= a.Epoch() {
		t.Errorf("epoch = %d, want > %d", b.Epoch(), a.Epoch())
	}
	if _, err := f.Commit(a, 1); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("stale capability commit error = %v, want ErrNotAuthorized", err)
	}
}

func TestField_RetireBlocksClaims(t *testing.T) {
	f := NewField("x", 0)
	if holder := f.retire(); holder != nil {
		t.Errorf("retire() = %v, want nil", holder)
	}
	if _, err := f.claim("a"); !errors.Is(err, domain.ErrFieldNotFound) {
		t.Errorf("claim() after retire error = %v, want ErrFieldNotFound", err)
	}

	g := NewField("y", 0)
	c, _ := g.claim("a")
	if holder := g.retire(); holder != c {
		t.Errorf("retire() = %v, want the current capability", holder)
	}
}

func TestField_IdempotentCommit(t *testing.T) {
	f := NewField("switch/isOn", false)
	c, _ := f.claim("a")
	rec := &hookRecorder{}
	if _, err := f.Subscribe("b", rec.hook); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	version, err := f.Commit(c, false)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if version != 0 {
		t.Errorf("version = %d, want 0", version)
	}
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("hook calls = %v, want none", got)
	}
}

func TestField_SubscribersSeeCommitsInOrder(t *testing.T) {
	f := NewField("counter", 0)
	c, _ := f.claim("a")

	var mu sync.Mutex
	var seen []int
	if _, err := f.Subscribe("b", func(_ string, _, newValue int) {
		mu.Lock()
		seen = append(seen, newValue)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = f.Update(c, func(cur int) (int, error) { return cur + 1, nil })
		}()
	}
	wg.Wait()

	if _, version := f.Read(); version != 50 {
		t.Fatalf("version = %d, want 50", version)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 50 {
		t.Fatalf("notifications = %d, want 50", len(seen))
	}
	for i, v := range seen {
		if v != i+1 {
			t.Fatalf("notification %d = %d, want %d", i, v, i+1)
		}
	}
}

func TestField_NoDeliveryAfterUnsubscribe(t *testing.T) {
	f := NewField("switch/isOn", false)
	c, _ := f.claim("a")
	rec := &hookRecorder{}
	sub, err := f.Subscribe("b", rec.hook)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if _, err := f.Commit(c, true); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	f.Unsubscribe(sub)
	if _, err := f.Commit(c, false); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	got := rec.snapshot()
	if len(got) != 1 || got[0] != (change{false, true}) {
		t.Errorf("hook calls = %v, want [{false true}]", got)
	}
	if !sub.Closed() {
		t.Error("subscription not closed")
	}
	if f.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", f.Subscribers())
	}
}

func TestField_UnsubscribeWaitsForInFlightDelivery(t *testing.T) {
	f := NewField("x", 0)
	c, _ := f.claim("a")

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	sub, err := f.Subscribe("b", func(string, int, int) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	committed := make(chan error, 1)
	go func() {
		_, err := f.Commit(c, 1)
		committed <- err
	}()
	<-entered

	unsubscribed := make(chan struct{})
	go func() {
		f.Unsubscribe(sub)
		close(unsubscribed)
	}()

	select {
	case <-unsubscribed:
		t.Fatal("Unsubscribe() returned while a delivery was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-unsubscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("Unsubscribe() did not return after the delivery finished")
	}
	if err := <-committed; err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	for v := 2; v <= 5; v++ {
		if _, err := f.Commit(c, v); err != nil {
			t.Fatalf("Commit(%d) error = %v", v, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("hook calls = %d, want 1", got)
	}
}

func TestField_DuplicateSubscribe(t *testing.T) {
	f := NewField("x", 0)
	if _, err := f.Subscribe("b", nil); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, err := f.Subscribe("b", nil); !errors.Is(err, domain.ErrAlreadySubscribed) {
		t.Errorf("second Subscribe() error = %v, want ErrAlreadySubscribed", err)
	}
}

func TestField_HookMayRead(t *testing.T) {
	f := NewField("x", 0)
	c, _ := f.claim("a")

	var got int
	if _, err := f.Subscribe("b", func(string, int, int) {
		got, _ = f.Read()
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, err := f.Commit(c, 7); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if got != 7 {
		t.Errorf("value read in hook = %d, want 7", got)
	}
}

func TestField_PanickingHookDoesNotBlockOthers(t *testing.T) {
	f := NewField("x", 0)
	c, _ := f.claim("a")

	if _, err := f.Subscribe("bad", func(string, int, int) { panic("boom") }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	calls := 0
	if _, err := f.Subscribe("good", func(string, int, int) { calls++ }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if _, err := f.Commit(c, 1); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("good hook calls = %d, want 1", calls)
	}
}

func TestField_Restore(t *testing.T) {
	f := NewField("x", 0)

	if err := f.Restore(5, 3); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if v, version := f.Read(); v != 5 || version != 3 {
		t.Errorf("Read() = %d, %d; want 5, 3", v, version)
	}
	if err := f.Restore(1, 2); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Restore() backwards error = %v, want ErrInvalidArgument", err)
	}

	c, _ := f.claim("a")
	if err := f.Restore(9, 9); !errors.Is(err, domain.ErrAuthorityConflict) {
		t.Errorf("Restore() with authority error = %v, want ErrAuthorityConflict", err)
	}
	version, _ := f.Commit(c, 6)
	if version != 4 {
		t.Errorf("version after restore = %d, want 4", version)
	}
}

func TestField_OnCommit(t *testing.T) {
	f := NewField("x", 0)
	c, _ := f.claim("a")

	var versions []uint64
	f.OnCommit(func(_ string, _ int, version uint64) {
		versions = append(versions, version)
	})

	_, _ = f.Commit(c, 1)
	_, _ = f.Commit(c, 1)
	_, _ = f.Commit(c, 2)

	if len(versions) != 2 || versions[0] != 1 || versions[1] != 2 {
		t.Errorf("observed versions = %v, want [1 2]", versions)
	}
}
