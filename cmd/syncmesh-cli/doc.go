// syncmesh-cli is the command-line client for syncmesh-server:
//
//   - Sessions (connect, disconnect, list)
//   - Fields (declare, drop, claim, subscribe, watch)
//   - Commands (toggle, set, move) and direct commits
//   - Backups and system checks
//
// Usage:
//
//	syncmesh-cli [command] [flags]
//	syncmesh-cli connect http://localhost:5380
//	syncmesh-cli --output json field list
//
// Without a command it starts an interactive shell.
package main
