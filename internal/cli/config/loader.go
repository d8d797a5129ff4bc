package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables bound to the global flags.
const (
	EnvServer     = "SYNCMESH_SERVER"
	EnvOutput     = "SYNCMESH_OUTPUT"
	EnvAdminToken = "SYNCMESH_ADMIN_TOKEN"
	EnvSession    = "SYNCMESH_SESSION"
	EnvCAFile     = "SYNCMESH_CA_FILE"
)

// keyDelim separates nested keys; connection names may contain dots.
const keyDelim = "::"

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".syncmesh", "cli.yaml")
}

// Load loads CLI configuration from file. A missing file yields the defaults.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	k := koanf.New(keyDelim)
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse cli config %s: %w", path, err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("decode cli config %s: %w", path, err)
	}
	if cfg.Connections == nil {
		cfg.Connections = make(map[string]ConnectionConfig)
	}
	return cfg, nil
}

// Save writes CLI configuration to file with mode 0600.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode cli config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Merge returns the connection to use and the output format. Values in
// flags (command line or their environment variables) win over the saved
// active connection; empty values are ignored. Recognised keys are "server",
// "output", "admin-token" and "session".
func Merge(cfg *CLIConfig, flags map[string]string) (ConnectionConfig, string) {
	conn := cfg.Current()
	output := cfg.DefaultOutput

	pick := func(flag string, dst *string) {
		if v := flags[flag]; v != "" {
			*dst = v
		}
	}

	// A different server invalidates the saved session.
	server := conn.Server
	pick("server", &server)
	if server != conn.Server {
		conn.Session = ""
		conn.AdminToken = ""
		conn.Server = server
	}
	pick("admin-token", &conn.AdminToken)
	pick("session", &conn.Session)
	pick("output", &output)
	return conn, output
}
