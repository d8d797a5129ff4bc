package config

import (
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/replication"
	"github.com/yndnr/syncmesh-go/internal/core/service"
)

// Default configuration values.
const (
	DefaultHTTPAddr          = "127.0.0.1:5380"
	DefaultRESPAddr          = "127.0.0.1:6390"
	DefaultRESPReadTimeout   = 30 * time.Second
	DefaultRESPIdleTimeout   = 5 * time.Minute
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second

	DefaultDataDir     = "/var/lib/syncmesh-server/data"
	DefaultGCInterval  = 10 * time.Minute
	DefaultGCThreshold = 0.5
	DefaultCacheSizeMB = 16

	DefaultRateBurst  = 1
	DefaultOutboxSize = replication.DefaultOutboxSize

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:              DefaultHTTPAddr,
				RateBurst:         10,
				ReadHeaderTimeout: DefaultReadHeaderTimeout,
				ShutdownTimeout:   DefaultShutdownTimeout,
			},
			RESP: RESPConfig{
				Addr:        DefaultRESPAddr,
				ReadTimeout: DefaultRESPReadTimeout,
				IdleTimeout: DefaultRESPIdleTimeout,
				RateBurst:   10,
			},
		},
		Storage: StorageSection{
			DataDir:     DefaultDataDir,
			SyncWrites:  true,
			GCInterval:  DefaultGCInterval,
			GCThreshold: DefaultGCThreshold,
			CacheSizeMB: DefaultCacheSizeMB,
		},
		Replication: ReplicationSection{
			QueueCapacity:  replication.DefaultQueueCapacity,
			RateBurst:      DefaultRateBurst,
			CommandTimeout: service.DefaultTimeout,
			MoveSpeed:      replication.DefaultMoveSpeed,
			MaxMoveDT:      replication.DefaultMaxMoveDT,
			OutboxSize:     DefaultOutboxSize,
			HostAuthority:  true,
		},
		Switch: SwitchSection{
			Enabled:  true,
			Field:    service.DefaultSwitchField,
			OnColor:  service.DefaultOnColor,
			OffColor: service.DefaultOffColor,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
