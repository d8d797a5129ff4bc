package config

import "time"

// ServerConfig is the root configuration for syncmesh-server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server"`
	Storage     StorageSection     `koanf:"storage"`
	Replication ReplicationSection `koanf:"replication"`
	Switch      SwitchSection      `koanf:"switch"`
	Fields      []FieldDecl        `koanf:"fields"`
	Log         LogSection         `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP  HTTPConfig  `koanf:"http"`
	RESP  RESPConfig  `koanf:"resp"`
	Local LocalConfig `koanf:"local"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// RateLimit is requests per second per client address; 0 disables it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`

	// AdminToken guards /v1/admin endpoints with a bearer token. Empty
	// leaves them open, which is only sensible on a loopback address.
	AdminToken string `koanf:"admin_token"`
}

// RESPConfig configures the RESP (Redis protocol) listener, where each
// connection is one session.
type RESPConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	ReadTimeout time.Duration `koanf:"read_timeout"`
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// RateLimit is commands per second per connection; 0 disables it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// LocalConfig configures the local management socket. An empty SocketPath
// disables it.
type LocalConfig struct {
	SocketPath string `koanf:"socket_path"`
}

// StorageSection configures the field journal.
type StorageSection struct {
	DataDir     string        `koanf:"data_dir"`
	InMemory    bool          `koanf:"in_memory"`
	SyncWrites  bool          `koanf:"sync_writes"`
	GCInterval  time.Duration `koanf:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold"`
	CacheSizeMB int64         `koanf:"cache_size_mb"`
}

// ReplicationSection tunes the replication node.
type ReplicationSection struct {
	// QueueCapacity bounds pending commands per field; 0 (the default) is
	// unbounded. 1024 suits a server that wants backpressure.
	QueueCapacity int `koanf:"queue_capacity"`

	// RateLimit is commands per second per session; 0 allows spam toggling.
	// Hot reloadable.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	CommandTimeout time.Duration `koanf:"command_timeout"`
	MoveSpeed      float64       `koanf:"move_speed"`
	MaxMoveDT      float64       `koanf:"max_move_dt"`
	OutboxSize     int           `koanf:"outbox_size"`

	// HostAuthority makes the server's headless session claim authority over
	// every declared field that has no owner.
	HostAuthority bool `koanf:"host_authority"`
}

// SwitchSection configures the built-in toggle switch.
type SwitchSection struct {
	Enabled  bool   `koanf:"enabled"`
	Field    string `koanf:"field"`
	Initial  bool   `koanf:"initial"`
	OnColor  string `koanf:"on_color"`
	OffColor string `koanf:"off_color"`
}

// FieldDecl declares a field at startup. Value is the textual initial value
// for Kind (vectors as "x,y").
type FieldDecl struct {
	ID    string `koanf:"id"`
	Kind  string `koanf:"kind"`
	Value string `koanf:"value"`
}

// LogSection configures logging. Level is hot reloadable.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
