package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
	"github.com/yndnr/syncmesh-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyReplication(&cfg.Replication); err != nil {
		return err
	}
	if err := verifySwitch(&cfg.Switch); err != nil {
		return err
	}
	if err := verifyFields(cfg.Fields, &cfg.Switch); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http TLS file: %w", err)
		}
	}
	if cfg.HTTP.RateLimit < 0 {
		return errors.New("server.http.rate_limit must not be negative")
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst < 1 {
		return errors.New("server.http.rate_burst must be at least 1 when rate_limit is set")
	}
	if cfg.RESP.Enabled {
		if err := verifyRESP(&cfg.RESP); err != nil {
			return err
		}
	}
	if cfg.Local.SocketPath != "" && !filepath.IsAbs(cfg.Local.SocketPath) {
		return errors.New("server.local.socket_path must be absolute")
	}
	return nil
}

func verifyRESP(cfg *RESPConfig) error {
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("server.resp.addr: %w", err)
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("server.resp.tls_cert_file and tls_key_file must be set together")
	}
	if cfg.ReadTimeout < 0 || cfg.IdleTimeout < 0 {
		return errors.New("server.resp timeouts must not be negative")
	}
	if cfg.RateLimit < 0 {
		return errors.New("server.resp.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return errors.New("server.resp.rate_burst must be at least 1 when rate_limit is set")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.InMemory {
		return nil
	}
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	// Check if data directory exists or can be created
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}

	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		return errors.New("storage.gc_threshold must be between 0 and 1")
	}
	if cfg.GCInterval <= 0 {
		return errors.New("storage.gc_interval must be positive")
	}
	return nil
}

func verifyReplication(cfg *ReplicationSection) error {
	switch {
	case cfg.QueueCapacity < 0:
		return errors.New("replication.queue_capacity must not be negative")
	case cfg.RateLimit < 0:
		return errors.New("replication.rate_limit must not be negative")
	case cfg.RateLimit > 0 && cfg.RateBurst < 1:
		return errors.New("replication.rate_burst must be at least 1 when rate_limit is set")
	case cfg.CommandTimeout <= 0:
		return errors.New("replication.command_timeout must be positive")
	case cfg.MoveSpeed <= 0:
		return errors.New("replication.move_speed must be positive")
	case cfg.MaxMoveDT <= 0:
		return errors.New("replication.max_move_dt must be positive")
	case cfg.OutboxSize < 1:
		return errors.New("replication.outbox_size must be at least 1")
	}
	return nil
}

func verifySwitch(cfg *SwitchSection) error {
	if !cfg.Enabled {
		return nil
	}
	if err := domain.ValidateFieldID(cfg.Field); err != nil {
		return fmt.Errorf("switch.field: %w", err)
	}
	if cfg.OnColor == "" || cfg.OffColor == "" {
		return errors.New("switch.on_color and switch.off_color are required")
	}
	return nil
}

func verifyFields(fields []FieldDecl, sw *SwitchSection) error {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if err := domain.ValidateFieldID(f.ID); err != nil {
			return fmt.Errorf("fields[%d].id: %w", i, err)
		}
		if seen[f.ID] {
			return fmt.Errorf("fields[%d]: duplicate id %q", i, f.ID)
		}
		if sw.Enabled && f.ID == sw.Field {
			return fmt.Errorf("fields[%d]: id %q is reserved by the switch", i, f.ID)
		}
		seen[f.ID] = true
		if _, err := f.Initial(); err != nil {
			return fmt.Errorf("fields[%d]: %w", i, err)
		}
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		return fmt.Errorf("log.format %q is not json or text", cfg.Format)
	}
	return nil
}
