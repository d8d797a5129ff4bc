// Package command provides CLI command definitions for syncmesh-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: application, global flags, interactive mode
//   - connect.go: connect, disconnect and saved connections
//   - session.go: session inspection
//   - field.go: field declaration, authority and subscriptions
//   - mutate.go: toggle, set, commit, switch and player movement
//   - watch.go: live change notifications
//   - backup.go: journal backup download
//   - system.go: health, readiness and version
//   - config.go: CLI configuration
//
// Commands parse flags, call the server API through the connection package
// and print the result with the output package.
package command
