// Package config provides the syncmesh-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (addresses, paths, tuning ranges)
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - convert.go: Conversion into replication, storage and service settings
//
// Configuration is loaded via internal/infra/confloader from a YAML file and
// SYNCMESH_ environment variables.
package config
