package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/core/replication"
)

// Default switch settings.
const (
	DefaultSwitchField = "switch/isOn"
	DefaultOnColor     = "green"
	DefaultOffColor    = "red"
	DefaultTimeout     = 5 * time.Second
)

// SwitchConfig configures a SwitchService.
type SwitchConfig struct {
	FieldID  string
	Initial  bool
	OnColor  string
	OffColor string
	// Timeout bounds how long Toggle waits for the authority.
	Timeout time.Duration
}

// SwitchService drives a shared on/off switch: any session may toggle it, the
// authority applies the toggle and every observer sees the new colour.
type SwitchService struct {
	node   *replication.Node
	cfg    SwitchConfig
	logger *slog.Logger
}

// NewSwitchService creates a SwitchService. Empty settings take the defaults.
func NewSwitchService(node *replication.Node, cfg SwitchConfig, logger *slog.Logger) *SwitchService {
	if cfg.FieldID == "" {
		cfg.FieldID = DefaultSwitchField
	}
	if cfg.OnColor == "" {
		cfg.OnColor = DefaultOnColor
	}
	if cfg.OffColor == "" {
		cfg.OffColor = DefaultOffColor
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SwitchService{node: node, cfg: cfg, logger: logger}
}

// FieldID returns the id of the switch field.
func (s *SwitchService) FieldID() string { return s.cfg.FieldID }

// Declare creates the switch field. An existing field is left untouched.
func (s *SwitchService) Declare(ctx context.Context) error {
	_, err := s.node.DeclareField(ctx, replication.FieldSpec{
		ID:      s.cfg.FieldID,
		Initial: domain.BoolValue(s.cfg.Initial),
	})
	if errors.Is(err, domain.ErrFieldExists) {
		return nil
	}
	return err
}

// Toggle asks the authority to flip the switch on behalf of session and waits
// for the outcome.
func (s *SwitchService) Toggle(ctx context.Context, session *replication.Session) (replication.Result, error) {
	cmd, err := domain.Toggle(s.cfg.FieldID)
	if err != nil {
		return replication.Result{}, err
	}
	ticket, err := session.Submit(cmd)
	if err != nil {
		return replication.Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	res, err := ticket.Wait(ctx)
	if err != nil {
		return replication.Result{}, err
	}
	s.logger.Debug("switch toggled",
		"session_id", session.ID(),
		"is_on", res.Value.Bool(),
		"version", res.Version)
	return res, nil
}

// State returns whether the switch is on and its version.
func (s *SwitchService) State() (bool, uint64, error) {
	v, version, err := s.node.Read(s.cfg.FieldID)
	if err != nil {
		return false, 0, err
	}
	return v.Bool(), version, nil
}

// Color maps a switch state to its colour.
func (s *SwitchService) Color(on bool) string {
	if on {
		return s.cfg.OnColor
	}
	return s.cfg.OffColor
}

// WatchColor calls fn with the current colour and then once per change seen
// by session. Calls to fn are serialised; the initial call is skipped when a
// change was already delivered, so fn never ends on a stale colour.
func (s *SwitchService) WatchColor(session *replication.Session, fn func(color string)) error {
	var (
		mu        sync.Mutex
		delivered bool
	)
	err := session.Subscribe(s.cfg.FieldID, func(fieldID string, oldValue, newValue domain.Value) {
		s.logger.Info("switch state changed",
			"field", fieldID,
			"session_id", session.ID(),
			"from", oldValue.Bool(),
			"to", newValue.Bool())
		mu.Lock()
		defer mu.Unlock()
		delivered = true
		fn(s.Color(newValue.Bool()))
	})
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if delivered {
		return nil
	}
	on, _, err := s.State()
	if err != nil {
		return err
	}
	fn(s.Color(on))
	return nil
}
