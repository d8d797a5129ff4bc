// Package service provides the gameplay services built on the replication
// core.
//
// This package contains:
//
//   - SwitchService: a shared on/off switch any session may toggle, with a
//     colour hook for observers
//   - MovementService: session-owned player positions moved by input axes
//
// Services hold no state of their own; everything lives in replicated fields
// of a replication.Node.
package service
