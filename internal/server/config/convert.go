package config

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/core/replication"
	"github.com/yndnr/syncmesh-go/internal/core/service"
	"github.com/yndnr/syncmesh-go/internal/server/redisserver"
	"github.com/yndnr/syncmesh-go/internal/storage"
)

// Initial parses the declared initial value. An empty value is the zero
// value of the kind.
func (f FieldDecl) Initial() (domain.Value, error) {
	kind := domain.Kind(f.Kind)
	if f.Value == "" && kind.Valid() {
		return domain.ZeroValue(kind), nil
	}
	return domain.ParseValue(kind, f.Value)
}

// QueueConfig returns the hot-reloadable queue tuning.
func (c *ReplicationSection) QueueConfig() replication.QueueConfig {
	return replication.QueueConfig{
		Capacity:  c.QueueCapacity,
		RateLimit: c.RateLimit,
		RateBurst: c.RateBurst,
	}
}

// NodeConfig builds the replication node configuration. Recorder and journal
// are wired by the caller.
func (c *ServerConfig) NodeConfig(logger *slog.Logger) replication.Config {
	return replication.Config{
		Queue:      c.Replication.QueueConfig(),
		MoveSpeed:  c.Replication.MoveSpeed,
		MaxMoveDT:  c.Replication.MaxMoveDT,
		OutboxSize: c.Replication.OutboxSize,
		Logger:     logger,
	}
}

// KVConfig builds the storage engine configuration.
func (c *ServerConfig) KVConfig() storage.KVConfig {
	return storage.KVConfig{
		Dir:            c.Storage.DataDir,
		InMemory:       c.Storage.InMemory,
		SyncWrites:     c.Storage.SyncWrites,
		GCInterval:     c.Storage.GCInterval,
		GCDiscardRatio: c.Storage.GCThreshold,
		CacheSize:      c.Storage.CacheSizeMB << 20,
	}
}

// SwitchConfig builds the switch service configuration.
func (c *ServerConfig) SwitchConfig() service.SwitchConfig {
	return service.SwitchConfig{
		FieldID:  c.Switch.Field,
		Initial:  c.Switch.Initial,
		OnColor:  c.Switch.OnColor,
		OffColor: c.Switch.OffColor,
		Timeout:  c.Replication.CommandTimeout,
	}
}

// FieldSpecs converts the declared fields. Call Verify first.
func (c *ServerConfig) FieldSpecs() ([]replication.FieldSpec, error) {
	specs := make([]replication.FieldSpec, 0, len(c.Fields))
	for _, f := range c.Fields {
		v, err := f.Initial()
		if err != nil {
			return nil, err
		}
		specs = append(specs, replication.FieldSpec{ID: f.ID, Initial: v})
	}
	return specs, nil
}

// RESPServerConfig builds the RESP listener configuration, loading its TLS
// key pair when one is configured.
func (c *ServerConfig) RESPServerConfig() (redisserver.Config, error) {
	r := c.Server.RESP
	cfg := redisserver.Config{
		Address:        r.Addr,
		ReadTimeout:    r.ReadTimeout,
		WriteTimeout:   r.ReadTimeout,
		IdleTimeout:    r.IdleTimeout,
		RateLimit:      r.RateLimit,
		RateBurst:      r.RateBurst,
		CommandTimeout: c.Replication.CommandTimeout,
	}
	if r.TLSCertFile != "" {
		cert, err := tls.LoadX509KeyPair(r.TLSCertFile, r.TLSKeyFile)
		if err != nil {
			return redisserver.Config{}, fmt.Errorf("server.resp TLS key pair: %w", err)
		}
		cfg.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return cfg, nil
}
