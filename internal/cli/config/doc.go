// Package config provides CLI configuration for syncmesh.
//
//   - spec.go: CLIConfig struct (~/.syncmesh/cli.yaml)
//   - loader.go: loading, saving and merging with environment and flags
//
// The file keeps named connections; each remembers the server, an optional
// admin token and the session opened by the last connect.
package config
