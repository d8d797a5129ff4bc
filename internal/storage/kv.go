package storage

import (
	"context"
	"errors"
	"time"
)

// Engine errors.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("kv engine closed")
)

// KVEngine is the embedded key-value store behind the field journal.
type KVEngine interface {
	// Get returns ErrKeyNotFound when key is absent.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Update reads key and writes what fn returns, atomically. fn receives
	// nil and false when key is absent; returning a nil value leaves the key
	// unchanged.
	Update(ctx context.Context, key []byte, fn func(current []byte, found bool) ([]byte, error)) error

	Delete(ctx context.Context, key []byte) error

	// Scan visits keys with prefix in key order until fn returns false.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	Close() error
}

// KVStats is a point-in-time view of the engine.
type KVStats struct {
	LSMSize      int64
	ValueLogSize int64
	// GCRuns counts value log rewrites since the engine opened.
	GCRuns uint64
	LastGC time.Time
}

// KVConfig configures the embedded KV engine.
type KVConfig struct {
	Dir string
	// InMemory keeps everything in memory; Dir is ignored.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// GCInterval is the period of value log garbage collection.
	GCInterval time.Duration
	// GCDiscardRatio is the stale fraction of a value log file that makes
	// it worth rewriting.
	GCDiscardRatio float64

	CacheSize        int64
	ValueLogFileSize int64
}

// DefaultKVConfig returns the default configuration for dir.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Dir:              dir,
		SyncWrites:       true,
		GCInterval:       10 * time.Minute,
		GCDiscardRatio:   0.5,
		CacheSize:        16 << 20,
		ValueLogFileSize: 64 << 20,
	}
}
