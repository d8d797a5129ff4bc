package replication

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// QueueConfig tunes a command queue.
type QueueConfig struct {
	// Capacity bounds pending commands; 0 means unbounded. When full, the
	// oldest pending command is dropped with ErrQueueFull.
	Capacity int

	// RateLimit is the sustained commands per second allowed per session;
	// 0 disables limiting, so rapid repeated toggles are all applied.
	RateLimit float64

	// RateBurst is the per-session burst; defaults to 1 when limiting.
	RateBurst int
}

// Queue carries commands for one field from any session to the field's
// authority, which applies them one at a time.
type Queue struct {
	field    *Field[domain.Value]
	meta     FieldMeta
	handlers Handlers
	logger   *slog.Logger
	recorder Recorder

	wake chan struct{}

	mu       sync.Mutex
	cfg      QueueConfig
	pending  []*Ticket
	holder   *Capability
	stop     chan struct{}
	done     chan struct{}
	limiters map[string]*rate.Limiter
}

func newQueue(field *Field[domain.Value], meta FieldMeta, handlers Handlers, cfg QueueConfig, logger *slog.Logger, rec Recorder) *Queue {
	return &Queue{
		field:    field,
		meta:     meta,
		handlers: handlers,
		logger:   logger,
		recorder: rec,
		wake:     make(chan struct{}, 1),
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Submit enqueues cmd for the authority without waiting for it to be
// applied. It fails immediately with ErrAuthorityUnavailable when nobody
// holds authority and with ErrRateLimited when the issuing session is over
// its rate.
func (q *Queue) Submit(cmd domain.Command) (*Ticket, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.FieldID != q.meta.ID {
		return nil, domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("command for %s submitted to queue of %s", cmd.FieldID, q.meta.ID))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.holder == nil {
		return nil, domain.ErrAuthorityUnavailable.WithDetails(q.meta.ID)
	}
	if !q.allowLocked(cmd.SessionID) {
		return nil, domain.ErrRateLimited.WithDetails("session " + cmd.SessionID)
	}

	t := newTicket(cmd)
	if q.cfg.Capacity > 0 && len(q.pending) >= q.cfg.Capacity {
		dropped := q.pending[0]
		q.pending = q.pending[1:]
		q.finish(dropped, Result{}, domain.ErrQueueFull.WithDetails(
			fmt.Sprintf("%s dropped, capacity %d", dropped.cmd.ID, q.cfg.Capacity)))
	}
	q.pending = append(q.pending, t)
	q.recorder.CommandSubmitted(string(cmd.Kind))
	q.recorder.QueueDepth(q.meta.ID, len(q.pending))

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return t, nil
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// SetConfig replaces the queue tuning. Rate limiter state is reset.
func (q *Queue) SetConfig(cfg QueueConfig) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cfg = cfg
	q.limiters = make(map[string]*rate.Limiter)
}

// forget drops per-session limiter state.
func (q *Queue) forget(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.limiters, sessionID)
}

func (q *Queue) allowLocked(sessionID string) bool {
	if q.cfg.RateLimit <= 0 {
		return true
	}
	lim, ok := q.limiters[sessionID]
	if !ok {
		burst := q.cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(q.cfg.RateLimit), burst)
		q.limiters[sessionID] = lim
	}
	return lim.Allow()
}

// attach starts draining on behalf of the authority holding c.
func (q *Queue) attach(c *Capability) {
	q.mu.Lock()
	if q.holder == c {
		q.mu.Unlock()
		return
	}
	q.holder = c
	stop := make(chan struct{})
	done := make(chan struct{})
	q.stop, q.done = stop, done
	q.mu.Unlock()

	go q.drain(c, stop, done)
}

// detach stops draining for c, waits for the command being applied, and
// rejects everything still pending with ErrAuthorityUnavailable. It must not
// be called from a change hook of this field.
func (q *Queue) detach(c *Capability) {
	q.mu.Lock()
	if q.holder == nil || q.holder != c {
		q.mu.Unlock()
		return
	}
	q.holder = nil
	stop, done := q.stop, q.done
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	close(stop)
	<-done

	for _, t := range pending {
		q.finish(t, Result{}, domain.ErrAuthorityUnavailable.WithDetails("authority for "+q.meta.ID+" released"))
	}
	q.recorder.QueueDepth(q.meta.ID, 0)
}

func (q *Queue) drain(c *Capability, stop, done chan struct{}) {
	defer close(done)
	for {
		if t := q.next(c); t != nil {
			q.apply(c, t)
			continue
		}
		select {
		case <-q.wake:
		case <-stop:
			return
		}
	}
}

func (q *Queue) next(c *Capability) *Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.holder != c || len(q.pending) == 0 {
		return nil
	}
	t := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.recorder.QueueDepth(q.meta.ID, len(q.pending))
	return t
}

func (q *Queue) apply(c *Capability, t *Ticket) {
	cmd := t.cmd
	handler, ok := q.handlers[cmd.Kind]
	if !ok {
		q.finish(t, Result{}, domain.ErrUnknownCommand.WithDetails(string(cmd.Kind)))
		return
	}

	var next domain.Value
	version, changed, err := q.field.Update(c, func(current domain.Value) (domain.Value, error) {
		v, err := handler(q.meta, current, cmd)
		next = v
		return v, err
	})
	if err != nil {
		q.logger.Debug("command rejected",
			"command_id", cmd.ID,
			"field", cmd.FieldID,
			"kind", cmd.Kind,
			"session_id", cmd.SessionID,
			"error", err)
		q.finish(t, Result{}, err)
		return
	}

	q.logger.Debug("command applied",
		"command_id", cmd.ID,
		"field", cmd.FieldID,
		"kind", cmd.Kind,
		"session_id", cmd.SessionID,
		"version", version,
		"changed", changed)
	q.finish(t, Result{
		CommandID: cmd.ID,
		FieldID:   cmd.FieldID,
		Value:     next,
		Version:   version,
		Changed:   changed,
	}, nil)
}

func (q *Queue) finish(t *Ticket, res Result, err error) {
	if !t.resolve(res, err) {
		return
	}
	code := "OK"
	if err != nil {
		code = domain.ErrorCode(err)
	}
	latency := time.Duration(0)
	if t.cmd.IssuedAt > 0 {
		latency = time.Since(time.UnixMilli(t.cmd.IssuedAt))
	}
	q.recorder.CommandResolved(string(t.cmd.Kind), code, latency)
}
