// Package repl provides the interactive mode of syncmesh-cli.
//
//   - repl.go: read-eval-print loop and line splitting
//   - completer.go: prefix completion over the command tree
//   - history.go: command history persisted to ~/.syncmesh/history
//
// Each line is split into arguments and handed to an Executor, which runs it
// as a regular CLI invocation. A line ending in "?" lists the commands that
// complete it.
package repl
