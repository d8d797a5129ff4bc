// Package httpserver serves the syncmesh HTTP API.
//
// The API itself lives in package handler; this package adds the middleware
// chain (panic recovery, request IDs, per-IP rate limiting, the admin token,
// access logging with request metrics) and the server lifecycle.
//
// Event streams are long lived, so the server sets no write timeout and the
// access-log wrapper keeps http.Flusher reachable.
package httpserver
