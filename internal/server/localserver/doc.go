// Package localserver serves the HTTP API on a Unix domain socket for local
// management.
//
// The socket is created with mode 0600, so access is governed by file
// permissions and the admin token is not required. syncmesh-cli reaches it
// with --server unix:///path/to/syncmesh.sock.
package localserver
