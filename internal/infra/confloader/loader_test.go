package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		HTTP struct {
			Address string        `koanf:"address"`
			Enabled bool          `koanf:"enabled"`
			Timeout time.Duration `koanf:"timeout"`
		} `koanf:"http"`
	} `koanf:"server"`
	Replication struct {
		QueueCapacity int     `koanf:"queue_capacity"`
		RateLimit     float64 `koanf:"rate_limit"`
	} `koanf:"replication"`
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoader_Layers(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server:
  http:
    address: "file:5380"
    timeout: 3s
replication:
  queue_capacity: 32
  rate_limit: 5
`)

	tests := []struct {
		name      string
		env       map[string]string
		overrides map[string]any
		wantAddr  string
		wantCap   int
		wantRate  float64
	}{
		{
			name:     "file over defaults",
			wantAddr: "file:5380",
			wantCap:  32,
			wantRate: 5,
		},
		{
			name:     "env over file",
			env:      map[string]string{"SYNCMESH_SERVER__HTTP__ADDRESS": "env:8080", "SYNCMESH_REPLICATION__QUEUE_CAPACITY": "48"},
			wantAddr: "env:8080",
			wantCap:  48,
			wantRate: 5,
		},
		{
			name:      "override over env",
			env:       map[string]string{"SYNCMESH_REPLICATION__QUEUE_CAPACITY": "48"},
			overrides: map[string]any{"replication.queue_capacity": "64", "replication.rate_limit": 0.5},
			wantAddr:  "file:5380",
			wantCap:   64,
			wantRate:  0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			l := NewLoader(
				WithConfigFile(path),
				WithDefaults(map[string]any{"server.http.enabled": true, "replication.queue_capacity": 1}),
			)
			for k, v := range tt.overrides {
				l.Override(k, v)
			}

			var cfg testConfig
			if err := l.Load(&cfg); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Server.HTTP.Address != tt.wantAddr {
				t.Errorf("address = %q, want %q", cfg.Server.HTTP.Address, tt.wantAddr)
			}
			if cfg.Replication.QueueCapacity != tt.wantCap {
				t.Errorf("queue_capacity = %d, want %d", cfg.Replication.QueueCapacity, tt.wantCap)
			}
			if cfg.Replication.RateLimit != tt.wantRate {
				t.Errorf("rate_limit = %v, want %v", cfg.Replication.RateLimit, tt.wantRate)
			}
			if !cfg.Server.HTTP.Enabled {
				t.Error("default enabled = false, want true")
			}
			if cfg.Server.HTTP.Timeout != 3*time.Second {
				t.Errorf("timeout = %v, want 3s", cfg.Server.HTTP.Timeout)
			}
		})
	}
}

func TestLoader_EnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER__HTTP__ADDRESS", "custom:1")
	t.Setenv("SYNCMESH_SERVER__HTTP__ADDRESS", "ignored:2")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTP.Address != "custom:1" {
		t.Errorf("address = %q, want custom:1", cfg.Server.HTTP.Address)
	}
	if got := l.Value("server.http.address"); got != "custom:1" {
		t.Errorf("Value() = %v, want custom:1", got)
	}
}

func TestLoader_FailedLoadKeepsState(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "replication:\n  queue_capacity: 8\n")

	l := NewLoader(WithConfigFile(path))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	writeConfig(t, dir, "replication: [broken\n")
	if err := l.Load(&testConfig{}); err == nil {
		t.Fatal("Load() of broken file succeeded")
	}
	if got := l.Value("replication.queue_capacity"); got != 8 {
		t.Errorf("Value() after failed load = %v, want 8", got)
	}
}

func TestLoader_MissingFile(t *testing.T) {
	l := NewLoader(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")))
	if err := l.Load(&testConfig{}); err == nil {
		t.Error("Load() of missing file succeeded")
	}
}

func TestParseOverride(t *testing.T) {
	tests := []struct {
		arg       string
		wantKey   string
		wantValue string
		wantErr   bool
	}{
		{"log.level=debug", "log.level", "debug", false},
		{"server.http.address=:1=2", "server.http.address", ":1=2", false},
		{" switch.enabled =", "switch.enabled", "", false},
		{"log.level", "", "", true},
		{"=debug", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			key, value, err := ParseOverride(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOverride() error = %v, wantErr %v", err, tt.wantErr)
			}
			if key != tt.wantKey || value != tt.wantValue {
				t.Errorf("ParseOverride() = %q, %q; want %q, %q", key, value, tt.wantKey, tt.wantValue)
			}
		})
	}
}

func TestMapProvider_Read(t *testing.T) {
	tree, err := mapProvider{"a.b.c": 1, "a.d": "x", "top": true}.Read()
	if err != nil {
		t.Fatal(err)
	}
	a, ok := tree["a"].(map[string]any)
	if !ok {
		t.Fatalf("a = %T, want map", tree["a"])
	}
	if b, _ := a["b"].(map[string]any); b["c"] != 1 {
		t.Errorf("a.b.c = %v, want 1", b["c"])
	}
	if a["d"] != "x" || tree["top"] != true {
		t.Errorf("tree = %v", tree)
	}
	if _, err := (mapProvider{}).ReadBytes(); err == nil {
		t.Error("ReadBytes() succeeded")
	}
}
