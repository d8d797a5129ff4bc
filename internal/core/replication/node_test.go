package replication

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

const switchField = "switch/isOn"

func newTestNode(t *testing.T, cfg Config) *Node {
	t.Helper()
	n := NewNode(cfg)
	t.Cleanup(n.Close)
	return n
}

func connect(t *testing.T, n *Node, opts ...SessionOption) *Session {
	t.Helper()
	s, err := n.Connect(opts...)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return s
}

func declare(t *testing.T, n *Node, spec FieldSpec) {
	t.Helper()
	if _, err := n.DeclareField(context.Background(), spec); err != nil {
		t.Fatalf("DeclareField(%s) error = %v", spec.ID, err)
	}
}

func wait(t *testing.T, ticket *Ticket) (Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return ticket.Wait(ctx)
}

// switchNode returns a node with the switch field, an authority session a
// and an observer session b.
func switchNode(t *testing.T, cfg Config) (*Node, *Session, *Session) {
	t.Helper()
	n := newTestNode(t, cfg)
	declare(t, n, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})
	a := connect(t, n)
	if _, err := a.ClaimAuthority(switchField); err != nil {
		t.Fatalf("ClaimAuthority() error = %v", err)
	}
	b := connect(t, n)
	return n, a, b
}

type valueChange struct {
	from, to domain.Value
}

type valueRecorder struct {
	mu      sync.Mutex
	changes []valueChange
}

func (r *valueRecorder) hook(_ string, oldValue, newValue domain.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, valueChange{oldValue, newValue})
}

func (r *valueRecorder) snapshot() []valueChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]valueChange(nil), r.changes...)
}

func TestSession_ToggleFromObserver(t *testing.T) {
	n, _, b := switchNode(t, DefaultConfig())

	rec := &valueRecorder{}
	if err := b.Subscribe(switchField, rec.hook); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	cmd, _ := domain.Toggle(switchField)
	ticket, err := b.Submit(cmd)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	res, err := wait(t, ticket)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !res.Value.Bool() || res.Version != 1 || !res.Changed {
		t.Errorf("Result = %+v, want true at version 1", res)
	}

	got := rec.snapshot()
	want := valueChange{domain.BoolValue(false), domain.BoolValue(true)}
	if len(got) != 1 || got[0] != want {
		t.Errorf("hook calls = %v, want [%v]", got, want)
	}

	v, version, err := n.Read(switchField)
	if err != nil || !v.Bool() || version != 1 {
		t.Errorf("Read() = %v, %d, %v; want true, 1", v, version, err)
	}

	notes := b.Drain()
	if len(notes) != 1 || notes[0].Version != 1 || !notes[0].New.Bool() {
		t.Errorf("Drain() = %+v, want one notification at version 1", notes)
	}
}

func TestSession_SpamToggleAppliesEveryCommand(t *testing.T) {
	_, _, b := switchNode(t, DefaultConfig())

	var tickets []*Ticket
	for range 5 {
		cmd, _ := domain.Toggle(switchField)
		ticket, err := b.Submit(cmd)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		tickets = append(tickets, ticket)
	}
	for i, ticket := range tickets {
		res, err := wait(t, ticket)
		if err != nil {
			t.Fatalf("ticket %d error = %v", i, err)
		}
		if res.Version != uint64(i+1) {
			t.Errorf("ticket %d version = %d, want %d", i, res.Version, i+1)
		}
		if res.Value.Bool() != (i%2 == 0) {
			t.Errorf("ticket %d value = %v", i, res.Value)
		}
	}
}

func TestSession_SubmitWithoutAuthority(t *testing.T) {
	n := newTestNode(t, DefaultConfig())
	declare(t, n, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})
	b := connect(t, n)

	cmd, _ := domain.Toggle(switchField)
	if _, err := b.Submit(cmd); !errors.Is(err, domain.ErrAuthorityUnavailable) {
		t.Errorf("Submit() error = %v, want ErrAuthorityUnavailable", err)
	}
}

func TestSession_AuthorityConflict(t *testing.T) {
	_, _, b := switchNode(t, DefaultConfig())

	if _, err := b.ClaimAuthority(switchField); !errors.Is(err, domain.ErrAuthorityConflict) {
		t.Errorf("ClaimAuthority() error = %v, want ErrAuthorityConflict", err)
	}
}

func TestSession_CommitRequiresAuthority(t *testing.T) {
	n, a, b := switchNode(t, DefaultConfig())

	if _, err := b.Commit(switchField, domain.BoolValue(true)); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("observer Commit() error = %v, want ErrNotAuthorized", err)
	}
	if _, err := a.Commit(switchField, domain.NumberValue(1)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Commit() of wrong kind error = %v, want ErrInvalidArgument", err)
	}

	version, err := a.Commit(switchField, domain.BoolValue(true))
	if err != nil || version != 1 {
		t.Fatalf("Commit() = %d, %v; want 1", version, err)
	}
	version, err = a.Commit(switchField, domain.BoolValue(true))
	if err != nil || version != 1 {
		t.Errorf("repeated Commit() = %d, %v; want unchanged version 1", version, err)
	}
	if _, v, _ := n.Read(switchField); v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
}

func TestSession_Roles(t *testing.T) {
	n := newTestNode(t, DefaultConfig())
	declare(t, n, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})

	s := connect(t, n)
	if s.Role() != domain.RoleObserver {
		t.Errorf("Role() = %s, want observer", s.Role())
	}
	if _, err := s.ClaimAuthority(switchField); err != nil {
		t.Fatalf("ClaimAuthority() error = %v", err)
	}
	if s.Role() != domain.RoleBoth {
		t.Errorf("Role() after claim = %s, want both", s.Role())
	}
	if err := s.ReleaseAuthority(switchField); err != nil {
		t.Fatalf("ReleaseAuthority() error = %v", err)
	}
	if s.Role() != domain.RoleObserver {
		t.Errorf("Role() after release = %s, want observer", s.Role())
	}
	if err := s.ReleaseAuthority(switchField); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("second ReleaseAuthority() error = %v, want ErrNotAuthorized", err)
	}

	h := connect(t, n, Headless())
	if h.Role() != domain.RoleAuthority {
		t.Errorf("headless Role() = %s, want authority", h.Role())
	}
	if err := h.Subscribe(switchField, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("headless Subscribe() error = %v, want ErrInvalidArgument", err)
	}
}

func TestSession_Unsubscribe(t *testing.T) {
	_, a, b := switchNode(t, DefaultConfig())

	rec := &valueRecorder{}
	if err := b.Subscribe(switchField, rec.hook); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := b.Subscribe(switchField, nil); !errors.Is(err, domain.ErrAlreadySubscribed) {
		t.Errorf("second Subscribe() error = %v, want ErrAlreadySubscribed", err)
	}
	if err := b.Unsubscribe(switchField); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if err := b.Unsubscribe(switchField); !errors.Is(err, domain.ErrNotSubscribed) {
		t.Errorf("second Unsubscribe() error = %v, want ErrNotSubscribed", err)
	}

	if _, err := a.Commit(switchField, domain.BoolValue(true)); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("hook calls after unsubscribe = %v, want none", got)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", b.Pending())
	}
}

func TestSession_ReleaseRejectsPending(t *testing.T) {
	n := newTestNode(t, DefaultConfig())
	entered := make(chan struct{}, 1)
	unblock := make(chan struct{})
	n.Handle(domain.CommandToggle, func(meta FieldMeta, current domain.Value, cmd domain.Command) (domain.Value, error) {
		entered <- struct{}{}
		<-unblock
		return ToggleHandler(meta, current, cmd)
	})
	declare(t, n, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})
	a := connect(t, n)
	if _, err := a.ClaimAuthority(switchField); err != nil {
		t.Fatalf("ClaimAuthority() error = %v", err)
	}
	b := connect(t, n)

	first, _ := domain.Toggle(switchField)
	t1, err := b.Submit(first)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-entered
	second, _ := domain.Toggle(switchField)
	t2, err := b.Submit(second)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	released := make(chan error, 1)
	go func() { released <- a.ReleaseAuthority(switchField) }()
	for {
		info, _ := n.Field(switchField)
		if info.Pending == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(unblock)
	if err := <-released; err != nil {
		t.Fatalf("ReleaseAuthority() error = %v", err)
	}

	if res, err := wait(t, t1); err != nil || res.Version != 1 {
		t.Errorf("in-flight command = %+v, %v; want applied at version 1", res, err)
	}
	if _, err := wait(t, t2); !errors.Is(err, domain.ErrAuthorityUnavailable) {
		t.Errorf("pending command error = %v, want ErrAuthorityUnavailable", err)
	}
}

func TestQueue_FullDropsOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Queue.Capacity = 2
	n := newTestNode(t, cfg)

	entered := make(chan struct{}, 8)
	unblock := make(chan struct{})
	n.Handle(domain.CommandToggle, func(meta FieldMeta, current domain.Value, cmd domain.Command) (domain.Value, error) {
		entered <- struct{}{}
		<-unblock
		return ToggleHandler(meta, current, cmd)
	})
	declare(t, n, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})
	a := connect(t, n)
	if _, err := a.ClaimAuthority(switchField); err != nil {
		t.Fatalf("ClaimAuthority() error = %v", err)
	}
	b := connect(t, n)

	submit := func() *Ticket {
		cmd, _ := domain.Toggle(switchField)
		ticket, err := b.Submit(cmd)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		return ticket
	}

	inFlight := submit()
	<-entered
	oldest := submit()
	kept1 := submit()
	kept2 := submit()

	if _, err := wait(t, oldest); !errors.Is(err, domain.ErrQueueFull) {
		t.Errorf("oldest pending error = %v, want ErrQueueFull", err)
	}
	close(unblock)

	for i, ticket := range []*Ticket{inFlight, kept1, kept2} {
		res, err := wait(t, ticket)
		if err != nil {
			t.Fatalf("ticket %d error = %v", i, err)
		}
		if res.Version != uint64(i+1) {
			t.Errorf("ticket %d version = %d, want %d", i, res.Version, i+1)
		}
	}
}

func TestQueue_UnboundedByDefault(t *testing.T) {
	if got := DefaultConfig().Queue.Capacity; got != 0 {
		t.Fatalf("default capacity = %d, want 0", got)
	}
	n := newTestNode(t, DefaultConfig())

	var once sync.Once
	entered := make(chan struct{})
	unblock := make(chan struct{})
	n.Handle(domain.CommandToggle, func(meta FieldMeta, current domain.Value, cmd domain.Command) (domain.Value, error) {
		once.Do(func() {
			close(entered)
			<-unblock
		})
		return ToggleHandler(meta, current, cmd)
	})
	declare(t, n, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})
	a := connect(t, n)
	if _, err := a.ClaimAuthority(switchField); err != nil {
		t.Fatalf("ClaimAuthority() error = %v", err)
	}
	b := connect(t, n)

	const total = 2048
	tickets := make([]*Ticket, 0, total)
	for i := range total {
		cmd, _ := domain.Toggle(switchField)
		ticket, err := b.Submit(cmd)
		if err != nil {
			t.Fatalf("Submit(%d) error = %v", i, err)
		}
		tickets = append(tickets, ticket)
		if i == 0 {
			<-entered
		}
	}
	if info, _ := n.Field(switchField); info.Pending != total-1 {
		t.Errorf("pending = %d, want %d", info.Pending, total-1)
	}
	close(unblock)

	for i, ticket := range tickets {
		if _, err := wait(t, ticket); err != nil {
			t.Fatalf("ticket %d error = %v", i, err)
		}
	}
	if _, version, _ := n.Read(switchField); version != total {
		t.Errorf("version = %d, want %d", version, total)
	}
}

func TestQueue_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Queue.RateLimit = 0.001
	cfg.Queue.RateBurst = 1
	_, _, b := switchNode(t, cfg)

	first, _ := domain.Toggle(switchField)
	if _, err := b.Submit(first); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	second, _ := domain.Toggle(switchField)
	if _, err := b.Submit(second); !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("second Submit() error = %v, want ErrRateLimited", err)
	}
}

func TestTicket_WaitTimeout(t *testing.T) {
	n := newTestNode(t, DefaultConfig())
	unblock := make(chan struct{})
	t.Cleanup(func() { close(unblock) })
	n.Handle(domain.CommandToggle, func(meta FieldMeta, current domain.Value, cmd domain.Command) (domain.Value, error) {
		<-unblock
		return ToggleHandler(meta, current, cmd)
	})
	declare(t, n, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})
	a := connect(t, n)
	if _, err := a.ClaimAuthority(switchField); err != nil {
		t.Fatalf("ClaimAuthority() error = %v", err)
	}

	cmd, _ := domain.Toggle(switchField)
	ticket, err := a.Submit(cmd)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := ticket.Wait(ctx); !errors.Is(err, domain.ErrCommandTimedOut) {
		t.Errorf("Wait() error = %v, want ErrCommandTimedOut", err)
	}
}

func TestSession_UnknownCommand(t *testing.T) {
	_, _, b := switchNode(t, DefaultConfig())

	cmd, _ := domain.NewCommand(switchField, "explode")
	ticket, err := b.Submit(cmd)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := wait(t, ticket); !errors.Is(err, domain.ErrUnknownCommand) {
		t.Errorf("Wait() error = %v, want ErrUnknownCommand", err)
	}
}

func TestSession_Move(t *testing.T) {
	n := newTestNode(t, DefaultConfig())
	host := connect(t, n, Headless())
	player := connect(t, n)
	other := connect(t, n)

	field := "player/" + player.ID()
	declare(t, n, FieldSpec{ID: field, Initial: domain.VectorValue(domain.Vec2{}), Owner: player.ID(), Ephemeral: true})
	if _, err := host.ClaimAuthority(field); err != nil {
		t.Fatalf("ClaimAuthority() error = %v", err)
	}

	tests := []struct {
		name    string
		session *Session
		axis    domain.Vec2
		dt      float64
		wantErr error
		want    domain.Vec2
	}{
		{"owner moves", player, domain.Vec2{X: 1}, 0.1, nil, domain.Vec2{X: 0.5}},
		{"zero input", player, domain.Vec2{}, 0.1, nil, domain.Vec2{X: 0.5}},
		{"not owner", other, domain.Vec2{X: 1}, 0.1, domain.ErrNotOwner, domain.Vec2{X: 0.5}},
		{"axis out of range", player, domain.Vec2{Y: 2}, 0.1, domain.ErrInvalidArgument, domain.Vec2{X: 0.5}},
		{"dt too large", player, domain.Vec2{Y: 1}, 5, domain.ErrInvalidArgument, domain.Vec2{X: 0.5}},
		{"non-positive dt", player, domain.Vec2{Y: 1}, 0, domain.ErrInvalidArgument, domain.Vec2{X: 0.5}},
		{"nan axis", player, domain.Vec2{X: math.NaN()}, 0.1, domain.ErrInvalidArgument, domain.Vec2{X: 0.5}},
		{"infinite axis", player, domain.Vec2{Y: math.Inf(1)}, 0.1, domain.ErrInvalidArgument, domain.Vec2{X: 0.5}},
		{"nan dt", player, domain.Vec2{X: 1}, math.NaN(), domain.ErrInvalidArgument, domain.Vec2{X: 0.5}},
		{"diagonal", player, domain.Vec2{X: -1, Y: 1}, 0.2, nil, domain.Vec2{X: -0.5, Y: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := domain.Move(field, tt.axis, tt.dt)
			ticket, err := tt.session.Submit(cmd)
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			_, err = wait(t, ticket)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("error = %v", err)
			}
			v, _, _ := n.Read(field)
			if v.Vector() != tt.want {
				t.Errorf("position = %v, want %v", v.Vector(), tt.want)
			}
		})
	}
}

func TestSession_RejectsNonFiniteValues(t *testing.T) {
	n := newTestNode(t, DefaultConfig())
	a := connect(t, n)
	declare(t, n, FieldSpec{ID: "pos", Initial: domain.VectorValue(domain.Vec2{})})
	declare(t, n, FieldSpec{ID: "speed", Initial: domain.NumberValue(1)})
	for _, id := range []string{"pos", "speed"} {
		if _, err := a.ClaimAuthority(id); err != nil {
			t.Fatalf("ClaimAuthority(%s) error = %v", id, err)
		}
	}

	bad := []struct {
		field string
		v     domain.Value
	}{
		{"pos", domain.VectorValue(domain.Vec2{X: math.NaN()})},
		{"pos", domain.VectorValue(domain.Vec2{Y: math.Inf(-1)})},
		{"speed", domain.NumberValue(math.NaN())},
		{"speed", domain.NumberValue(math.Inf(1))},
	}
	for _, tt := range bad {
		if _, err := a.Commit(tt.field, tt.v); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Commit(%s, %v) error = %v, want ErrInvalidArgument", tt.field, tt.v, err)
		}
		cmd, _ := domain.Set(tt.field, tt.v)
		ticket, err := a.Submit(cmd)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if _, err := wait(t, ticket); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("set %s to %v error = %v, want ErrInvalidArgument", tt.field, tt.v, err)
		}
		if _, version, _ := n.Read(tt.field); version != 0 {
			t.Errorf("%s version = %d, want 0", tt.field, version)
		}
	}

	if _, err := n.DeclareField(context.Background(), FieldSpec{ID: "bad", Initial: domain.NumberValue(math.NaN())}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("DeclareField(NaN) error = %v, want ErrInvalidArgument", err)
	}
}

func TestSession_Disconnect(t *testing.T) {
	n := newTestNode(t, DefaultConfig())
	declare(t, n, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})
	a := connect(t, n)
	if _, err := a.ClaimAuthority(switchField); err != nil {
		t.Fatalf("ClaimAuthority() error = %v", err)
	}
	if err := a.Subscribe(switchField, nil); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	owned := "player/" + a.ID()
	declare(t, n, FieldSpec{ID: owned, Initial: domain.VectorValue(domain.Vec2{}), Owner: a.ID(), Ephemeral: true})

	a.Disconnect()
	a.Disconnect()

	select {
	case <-a.Done():
	default:
		t.Error("Done() not closed")
	}
	if a.State() != domain.StateDisconnected {
		t.Errorf("State() = %s, want disconnected", a.State())
	}
	if _, err := n.Session(a.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Session() error = %v, want ErrSessionNotFound", err)
	}
	if _, err := n.Field(owned); !errors.Is(err, domain.ErrFieldNotFound) {
		t.Errorf("owned ephemeral field error = %v, want ErrFieldNotFound", err)
	}
	info, err := n.Field(switchField)
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	if info.Authority != "" || info.Subscribers != 0 {
		t.Errorf("FieldInfo = %+v, want no authority and no subscribers", info)
	}
	if _, err := a.ClaimAuthority(switchField); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("ClaimAuthority() after disconnect error = %v, want ErrSessionClosed", err)
	}

	b := connect(t, n)
	if _, err := b.ClaimAuthority(switchField); err != nil {
		t.Errorf("ClaimAuthority() by new session error = %v", err)
	}
}

func TestSession_OutboxOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutboxSize = 2
	_, a, b := switchNode(t, cfg)
	if err := b.Subscribe(switchField, nil); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for i := range 3 {
		if _, err := a.Commit(switchField, domain.BoolValue(i%2 == 0)); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}

	select {
	case <-b.Ready():
	default:
		t.Error("Ready() not signalled")
	}
	notes := b.Drain()
	if len(notes) != 2 || notes[0].Version != 2 || notes[1].Version != 3 {
		t.Errorf("Drain() = %+v, want versions 2 and 3", notes)
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", b.Dropped())
	}
}

func TestNode_DropFieldRacingClaim(t *testing.T) {
	n := newTestNode(t, DefaultConfig())
	a := connect(t, n)

	for i := range 200 {
		declare(t, n, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})
		e, err := n.entry(switchField)
		if err != nil {
			t.Fatalf("entry() error = %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = a.ClaimAuthority(switchField)
		}()
		go func() {
			defer wg.Done()
			if err := n.DropField(context.Background(), switchField); err != nil {
				t.Errorf("DropField() error = %v", err)
			}
		}()
		wg.Wait()

		if held := a.Info().AuthorityFor; len(held) != 0 {
			t.Fatalf("round %d: session still holds %v", i, held)
		}
		if _, ok := e.field.Authority(); ok {
			t.Fatalf("round %d: dropped field still has an authority", i)
		}
		e.queue.mu.Lock()
		holder := e.queue.holder
		e.queue.mu.Unlock()
		if holder != nil {
			t.Fatalf("round %d: dropped field queue still draining", i)
		}
	}
}

func TestNode_DeclareField(t *testing.T) {
	n := newTestNode(t, DefaultConfig())

	tests := []struct {
		name    string
		spec    FieldSpec
		wantErr error
	}{
		{"valid", FieldSpec{ID: "door/open", Initial: domain.BoolValue(false)}, nil},
		{"duplicate", FieldSpec{ID: "door/open", Initial: domain.BoolValue(false)}, domain.ErrFieldExists},
		{"empty id", FieldSpec{Initial: domain.BoolValue(false)}, domain.ErrMissingArgument},
		{"bad id", FieldSpec{ID: "/door", Initial: domain.BoolValue(false)}, domain.ErrInvalidArgument},
		{"untyped", FieldSpec{ID: "door/closed"}, domain.ErrInvalidArgument},
		{"unknown owner", FieldSpec{ID: "player/x", Initial: domain.VectorValue(domain.Vec2{}), Owner: "smss-missing"}, domain.ErrSessionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.DeclareField(context.Background(), tt.spec)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("DeclareField() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DeclareField() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	fields := n.Fields()
	if len(fields) != 1 || fields[0].ID != "door/open" || fields[0].Kind != domain.KindBool {
		t.Errorf("Fields() = %+v", fields)
	}
}

func TestNode_DropField(t *testing.T) {
	n, a, b := switchNode(t, DefaultConfig())
	if err := b.Subscribe(switchField, nil); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := a.Subscribe(switchField, nil); err != nil {
		t.Fatalf("authority Subscribe() error = %v", err)
	}
	e, _ := n.entry(switchField)

	if err := n.DropField(context.Background(), switchField); err != nil {
		t.Fatalf("DropField() error = %v", err)
	}
	if err := n.DropField(context.Background(), switchField); !errors.Is(err, domain.ErrFieldNotFound) {
		t.Errorf("second DropField() error = %v, want ErrFieldNotFound", err)
	}
	if info := a.Info(); len(info.AuthorityFor) != 0 {
		t.Errorf("authority info = %v, want empty", info.AuthorityFor)
	}
	if info := b.Info(); len(info.Subscriptions) != 0 {
		t.Errorf("subscription info = %v, want empty", info.Subscriptions)
	}
	if info := a.Info(); len(info.Subscriptions) != 0 {
		t.Errorf("authority subscription info = %v, want empty", info.Subscriptions)
	}
	if got := e.field.Subscribers(); got != 0 {
		t.Errorf("Subscribers() after drop = %d, want 0", got)
	}
}

func TestNode_Close(t *testing.T) {
	n := NewNode(DefaultConfig())
	s := connect(t, n)

	n.Close()
	if s.State() != domain.StateDisconnected {
		t.Errorf("State() = %s, want disconnected", s.State())
	}
	if _, err := n.Connect(); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("Connect() after Close error = %v, want ErrSessionClosed", err)
	}
	if len(n.Sessions()) != 0 {
		t.Errorf("Sessions() = %v, want empty", n.Sessions())
	}
}

type memJournal struct {
	mu      sync.Mutex
	values  map[string]domain.Value
	version map[string]uint64
}

func newMemJournal() *memJournal {
	return &memJournal{values: make(map[string]domain.Value), version: make(map[string]uint64)}
}

func (j *memJournal) Load(_ context.Context, id string) (domain.Value, uint64, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.values[id]
	return v, j.version[id], ok, nil
}

func (j *memJournal) Save(_ context.Context, id string, v domain.Value, version uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.values[id] = v
	j.version[id] = version
	return nil
}

func (j *memJournal) Delete(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.values, id)
	delete(j.version, id)
	return nil
}

func TestNode_JournalRestore(t *testing.T) {
	journal := newMemJournal()
	cfg := DefaultConfig()
	cfg.Journal = journal

	first := newTestNode(t, cfg)
	declare(t, first, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})
	a := connect(t, first)
	if _, err := a.ClaimAuthority(switchField); err != nil {
		t.Fatalf("ClaimAuthority() error = %v", err)
	}
	if _, err := a.Commit(switchField, domain.BoolValue(true)); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	first.Close()

	second := newTestNode(t, cfg)
	declare(t, second, FieldSpec{ID: switchField, Initial: domain.BoolValue(false)})
	v, version, err := second.Read(switchField)
	if err != nil || !v.Bool() || version != 1 {
		t.Errorf("restored Read() = %v, %d, %v; want true, 1", v, version, err)
	}

	declare(t, second, FieldSpec{ID: "player/p", Initial: domain.VectorValue(domain.Vec2{}), Ephemeral: true})
	if _, _, ok, _ := journal.Load(context.Background(), "player/p"); ok {
		t.Error("ephemeral field was journaled")
	}
}
