// Package domain defines the core domain models for syncmesh.
//
// Domain models are plain values without IO dependencies. This package
// contains:
//
//   - Value: the comparable payload carried by a replicated field
//   - Command: a requested mutation and its built-in kinds
//   - Session roles, states, notifications and ID generation
//   - Errors: the structured error taxonomy shared by every layer
package domain
