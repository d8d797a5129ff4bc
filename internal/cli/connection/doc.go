// Package connection provides the HTTP client syncmesh-cli uses to reach a
// server.
//
//   - http.go: request helpers, envelope decoding, unix socket transport
//   - events.go: server-sent event stream reader
//
// A server address is either host:port, an http(s) URL, or
// unix:///path/to/socket for the local management socket.
package connection
