// Package handler provides the HTTP API of syncmesh-server.
//
//   - sessions.go: connect, disconnect, authority and subscriptions
//   - fields.go: declare, read and drop fields
//   - commands.go: command submission and direct authority commits
//   - events.go: server-sent event stream of a session's notifications
//   - services.go: switch and player movement shortcuts
//   - admin.go: journal backup
//   - health.go: health and readiness checks
//
// Every JSON response uses the Response envelope; failures carry the
// domain error code and an HTTP status derived from it.
package handler
