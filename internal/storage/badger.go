package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// maxConflictRetries bounds how often Update retries a conflicting
// transaction.
const maxConflictRetries = 8

// BadgerEngine is a KVEngine on Badger v3 that also streams backups and runs
// value log GC in the background.
type BadgerEngine struct {
	db     *badger.DB
	cfg    KVConfig
	logger *slog.Logger

	closed atomic.Bool
	gcRuns atomic.Uint64
	lastGC atomic.Int64 // unix nanoseconds

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewBadgerEngine opens the engine and starts its GC loop.
func NewBadgerEngine(cfg KVConfig, logger *slog.Logger) (*BadgerEngine, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultKVConfig(cfg.Dir)
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = def.GCInterval
	}
	if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
		cfg.GCDiscardRatio = def.GCDiscardRatio
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.
		WithLogger(badgerLogger{logger.With("component", "badger")}).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.CacheSize > 0 {
		opts = opts.WithBlockCacheSize(cfg.CacheSize)
	}
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", cfg.Dir, err)
	}

	e := &BadgerEngine{db: db, cfg: cfg, logger: logger, stop: make(chan struct{})}
	if !cfg.InMemory {
		e.wg.Add(1)
		go e.gcLoop()
	}
	logger.Info("badger engine opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"sync_writes", cfg.SyncWrites,
		"gc_interval", cfg.GCInterval)
	return e, nil
}

func (e *BadgerEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

func (e *BadgerEngine) Update(ctx context.Context, key []byte, fn func(current []byte, found bool) ([]byte, error)) error {
	if e.closed.Load() {
		return ErrClosed
	}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := e.db.Update(func(txn *badger.Txn) error {
			var current []byte
			found := false
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return err
			default:
				found = true
				if current, err = item.ValueCopy(nil); err != nil {
					return err
				}
			}
			next, err := fn(current, found)
			if err != nil || next == nil {
				return err
			}
			return txn.Set(key, next)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		return err
	}
}

// Set writes key unconditionally.
func (e *BadgerEngine) Set(ctx context.Context, key, value []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (e *BadgerEngine) Delete(ctx context.Context, key []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (e *BadgerEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.KeyCopy(nil), value) {
				return nil
			}
		}
		return nil
	})
}

// Backup streams a full dump of the store to w in Badger's backup format.
func (e *BadgerEngine) Backup(ctx context.Context, w io.Writer) error {
	if e.closed.Load() {
		return ErrClosed
	}
	version, err := e.db.Backup(w, 0)
	if err != nil {
		return fmt.Errorf("badger: backup: %w", err)
	}
	e.logger.Debug("backup streamed", "version", version)
	return nil
}

// GC rewrites value log files until none is worth rewriting and returns the
// number of rewrites.
func (e *BadgerEngine) GC(ctx context.Context) (int, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	runs := 0
	for ctx.Err() == nil {
		err := e.db.RunValueLogGC(e.cfg.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			break
		}
		if err != nil {
			return runs, fmt.Errorf("badger: gc: %w", err)
		}
		runs++
	}
	e.gcRuns.Add(uint64(runs))
	e.lastGC.Store(time.Now().UnixNano())
	return runs, ctx.Err()
}

// Stats returns the current sizes and GC counters.
func (e *BadgerEngine) Stats() KVStats {
	lsm, vlog := e.db.Size()
	s := KVStats{LSMSize: lsm, ValueLogSize: vlog, GCRuns: e.gcRuns.Load()}
	if ns := e.lastGC.Load(); ns > 0 {
		s.LastGC = time.Unix(0, ns)
	}
	return s
}

// Close stops the GC loop and closes the database. It is idempotent.
func (e *BadgerEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stop)
	e.wg.Wait()
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("badger: close: %w", err)
	}
	e.logger.Info("badger engine closed")
	return nil
}

func (e *BadgerEngine) gcLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.GCInterval)
			runs, err := e.GC(ctx)
			cancel()
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				e.logger.Error("value log gc failed", "error", err)
				continue
			}
			e.logger.Debug("value log gc done", "rewrites", runs)
		}
	}
}

// RegisterMetrics exposes engine sizes and GC counters, read on every
// scrape.
func (e *BadgerEngine) RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(&engineCollector{
		engine: e,
		lsm: prometheus.NewDesc("syncmesh_journal_lsm_size_bytes",
			"Size of the journal LSM tree", nil, nil),
		vlog: prometheus.NewDesc("syncmesh_journal_value_log_size_bytes",
			"Size of the journal value log", nil, nil),
		gcRuns: prometheus.NewDesc("syncmesh_journal_gc_rewrites_total",
			"Value log files rewritten by GC", nil, nil),
		lastGC: prometheus.NewDesc("syncmesh_journal_last_gc_timestamp_seconds",
			"Unix time of the last GC pass", nil, nil),
	})
}

type engineCollector struct {
	engine                     *BadgerEngine
	lsm, vlog, gcRuns, lastGC *prometheus.Desc
}

func (c *engineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lsm
	ch <- c.vlog
	ch <- c.gcRuns
	ch <- c.lastGC
}

func (c *engineCollector) Collect(ch chan<- prometheus.Metric) {
	if c.engine.closed.Load() {
		return
	}
	s := c.engine.Stats()
	ch <- prometheus.MustNewConstMetric(c.lsm, prometheus.GaugeValue, float64(s.LSMSize))
	ch <- prometheus.MustNewConstMetric(c.vlog, prometheus.GaugeValue, float64(s.ValueLogSize))
	ch <- prometheus.MustNewConstMetric(c.gcRuns, prometheus.CounterValue, float64(s.GCRuns))
	var last float64
	if !s.LastGC.IsZero() {
		last = float64(s.LastGC.UnixNano()) / 1e9
	}
	ch <- prometheus.MustNewConstMetric(c.lastGC, prometheus.GaugeValue, last)
}

// badgerLogger routes Badger's printf logging to slog. Badger's info output
// is chatty, so it is logged at debug.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any)   { b.l.Error(fmt.Sprintf(format, args...)) }
func (b badgerLogger) Warningf(format string, args ...any) { b.l.Warn(fmt.Sprintf(format, args...)) }
func (b badgerLogger) Infof(format string, args ...any)    { b.l.Debug(fmt.Sprintf(format, args...)) }
func (b badgerLogger) Debugf(format string, args ...any)   { b.l.Debug(fmt.Sprintf(format, args...)) }
