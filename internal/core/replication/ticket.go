package replication

import (
	"context"
	"errors"
	"sync"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// Result is the outcome of an accepted command.
type Result struct {
	CommandID string       `json:"command_id"`
	FieldID   string       `json:"field_id"`
	Value     domain.Value `json:"value"`
	Version   uint64       `json:"version"`
	Changed   bool         `json:"changed"`
}

// Ticket tracks one submitted command until the authority resolves it.
type Ticket struct {
	cmd  domain.Command
	done chan struct{}
	once sync.Once
	res  Result
	err  error
}

func newTicket(cmd domain.Command) *Ticket {
	return &Ticket{cmd: cmd, done: make(chan struct{})}
}

// Command returns the submitted command.
func (t *Ticket) Command() domain.Command { return t.cmd }

// Done is closed once the command is committed or rejected.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the command is resolved or ctx ends. When ctx hits its
// deadline the error is ErrCommandTimedOut; the command may still be applied
// later.
func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.res, t.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, domain.ErrCommandTimedOut.WithDetails(t.cmd.ID).WithCause(ctx.Err())
		}
		return Result{}, ctx.Err()
	}
}

func (t *Ticket) resolve(res Result, err error) bool {
	resolved := false
	t.once.Do(func() {
		t.res = res
		t.err = err
		close(t.done)
		resolved = true
	})
	return resolved
}
