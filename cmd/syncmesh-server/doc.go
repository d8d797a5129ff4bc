// syncmesh-server hosts replicated fields and exposes them over:
//
//   - HTTP/HTTPS API with server-sent change events
//   - Redis-compatible protocol, one session per connection
//   - Local Unix socket for management access (no admin token required)
//
// Usage:
//
//	syncmesh-server [flags]
//	syncmesh-server --config /path/to/config.yaml
//
// The server loads configuration, opens the field journal, declares the
// configured fields under its own headless session and starts all
// configured listeners.
package main
