// Package config defines the CLI configuration structure.
package config

// CLIConfig is the configuration for syncmesh-cli, kept in
// ~/.syncmesh/cli.yaml.
type CLIConfig struct {
	DefaultServer string `yaml:"default_server" json:"default_server"`
	DefaultOutput string `yaml:"default_output" json:"default_output"` // table, json, yaml

	// Saved connections by name.
	Connections map[string]ConnectionConfig `yaml:"connections" json:"connections"`

	CurrentConnection string `yaml:"current_connection" json:"current_connection"`
}

// ConnectionConfig stores a saved connection and the session opened on it.
type ConnectionConfig struct {
	Server     string `yaml:"server" json:"server"`
	AdminToken string `yaml:"admin_token,omitempty" json:"admin_token,omitempty"`
	// Session is the id returned by the last connect; commands act as it.
	Session string `yaml:"session,omitempty" json:"session,omitempty"`
}

// DefaultConnection names the connection used when none was chosen.
const DefaultConnection = "default"

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultServer: "http://localhost:5380",
		DefaultOutput: "table",
		Connections:   make(map[string]ConnectionConfig),
	}
}

// Current returns the active connection. Missing values fall back to the
// defaults.
func (c *CLIConfig) Current() ConnectionConfig {
	conn := c.Connections[c.currentName()]
	if conn.Server == "" {
		conn.Server = c.DefaultServer
	}
	return conn
}

// SetCurrent stores conn under the active connection name.
func (c *CLIConfig) SetCurrent(conn ConnectionConfig) {
	if c.Connections == nil {
		c.Connections = make(map[string]ConnectionConfig)
	}
	name := c.currentName()
	c.Connections[name] = conn
	c.CurrentConnection = name
}

func (c *CLIConfig) currentName() string {
	if c.CurrentConnection == "" {
		return DefaultConnection
	}
	return c.CurrentConnection
}
