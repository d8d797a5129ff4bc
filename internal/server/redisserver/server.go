package redisserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/syncmesh-go/internal/core/replication"
	"github.com/yndnr/syncmesh-go/internal/core/service"
)

// Config holds the RESP server configuration.
type Config struct {
	// Address is the TCP listen address.
	Address string
	// TLSConfig switches the listener to TLS when set.
	TLSConfig *tls.Config
	// ReadTimeout bounds reading one command once its first byte arrived.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one reply or notification batch.
	WriteTimeout time.Duration
	// IdleTimeout closes connections with no traffic. Subscribed connections
	// are kept open as long as the client stays connected.
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per connection;
	// 0 disables it.
	RateLimit float64
	RateBurst int
	// CommandTimeout bounds how long TOGGLE, SET and MOVE wait for the
	// authority.
	CommandTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Address:        "127.0.0.1:6390",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    5 * time.Minute,
		CommandTimeout: service.DefaultTimeout,
	}
}

// Server speaks RESP2. Every connection is one replication session: it is
// connected when the client connects and disconnected when it goes away.
type Server struct {
	cfg      Config
	node     *replication.Node
	handler  *CommandHandler
	logger   *slog.Logger
	running  atomic.Bool
	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	wg       sync.WaitGroup
}

// New creates a RESP server over node. movement may be nil, which disables
// SPAWN and MOVE.
func New(cfg Config, node *replication.Node, movement *service.MovementService, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		node:    node,
		handler: NewCommandHandler(node, movement, cfg.CommandTimeout, logger),
		logger:  logger,
		conns:   make(map[*Conn]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until
// Shutdown. It returns nil after Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var (
		ln  net.Listener
		err error
	)
	if s.cfg.TLSConfig != nil {
		ln, err = tls.Listen("tcp", s.cfg.Address, s.cfg.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", s.cfg.Address)
	}
	if err != nil {
		return err
	}
	s.logger.Info("resp server listening", "address", ln.Addr().String(), "tls", s.cfg.TLSConfig != nil)
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until Shutdown or ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.running.Store(true)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		c, err := s.open(nc)
		if err != nil {
			s.logger.Warn("rejecting connection", "remote", nc.RemoteAddr(), "error", err)
			_ = nc.Close()
			continue
		}

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.serveConn(c)
		}()
		go func() {
			defer s.wg.Done()
			s.pushNotifications(c)
		}()
	}
}

// Shutdown stops accepting connections, closes the open ones and waits for
// their goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Conns returns the number of open connections.
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Conn is a single RESP client connection and its session.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader
	session *replication.Session
	limiter *rate.Limiter

	wmu  sync.Mutex
	wbuf []byte

	closed atomic.Bool
	quit   chan struct{}
}

func (s *Server) open(nc net.Conn) (*Conn, error) {
	session, err := s.node.Connect()
	if err != nil {
		return nil, err
	}
	c := &Conn{
		netConn: nc,
		br:      bufio.NewReader(nc),
		session: session,
		quit:    make(chan struct{}),
	}
	if s.cfg.RateLimit > 0 {
		burst := max(s.cfg.RateBurst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)
	}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("resp client connected", "remote", nc.RemoteAddr(), "session_id", session.ID())
	return c, nil
}

// Close closes the network connection. The session is disconnected by the
// connection's read loop.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.quit)
	return c.netConn.Close()
}

// Session returns the replication session bound to the connection.
func (c *Conn) Session() *replication.Session {
	return c.session
}

// write encodes r and sends it in one write under the write lock.
func (c *Conn) write(r reply, timeout time.Duration) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.netConn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	c.wbuf = r.appendRESP(c.wbuf[:0])
	_, err := c.netConn.Write(c.wbuf)
	return err
}

func (s *Server) serveConn(c *Conn) {
	defer func() {
		_ = c.Close()
		c.session.Disconnect()
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.logger.Debug("resp client disconnected", "session_id", c.session.ID())
	}()

	for {
		// Idle clients may wait between commands; subscribed clients only
		// listen, so their read deadline is lifted.
		idle := time.Now().Add(s.cfg.IdleTimeout)
		if len(c.session.Info().Subscriptions) > 0 {
			idle = time.Time{}
		}
		if err := c.netConn.SetReadDeadline(idle); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			s.logReadError(c, err)
			return
		}

		if err := c.netConn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return
		}
		args, err := ReadCommand(c.br)
		if err != nil {
			s.logReadError(c, err)
			msg := "ERR protocol error"
			if errors.Is(err, ErrLimitExceeded) {
				msg = "ERR protocol limit exceeded"
			}
			_ = c.write(errorReply(msg), s.cfg.WriteTimeout)
			return
		}
		if len(args) == 0 {
			continue
		}

		var r reply
		if c.limiter != nil && !c.limiter.Allow() {
			r = errorReply("ERR SM-SYS-4290 rate limit exceeded")
		} else {
			r = s.handler.Handle(c, args)
		}
		if err := c.write(r, s.cfg.WriteTimeout); err != nil {
			return
		}
		if c.closed.Load() {
			return
		}
	}
}

func (s *Server) logReadError(c *Conn, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
	case errors.As(err, &netErr) && netErr.Timeout():
		s.logger.Debug("resp connection timed out", "session_id", c.session.ID())
	case errors.Is(err, ErrLimitExceeded):
		s.logger.Warn("resp protocol limit exceeded", "session_id", c.session.ID(), "error", err)
	default:
		s.logger.Debug("resp connection read error", "session_id", c.session.ID(), "error", err)
	}
}

// pushNotifications forwards the session's notifications as
// ["message", field, payload] pushes, the shape of Redis pub/sub.
func (s *Server) pushNotifications(c *Conn) {
	for {
		select {
		case <-c.quit:
			return
		case <-c.session.Done():
			_ = c.Close()
			return
		case <-c.session.Ready():
		}

		items := c.session.Drain()
		if len(items) == 0 {
			continue
		}
		batch := make(multi, 0, len(items))
		for _, n := range items {
			payload, err := json.Marshal(n)
			if err != nil {
				s.logger.Error("failed to encode notification", "field", n.FieldID, "error", err)
				continue
			}
			batch = append(batch, array{bulkString("message"), bulkString(n.FieldID), bulk(payload)})
		}
		if err := c.write(batch, s.cfg.WriteTimeout); err != nil {
			_ = c.Close()
			return
		}
	}
}
