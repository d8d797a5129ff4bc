// Package storage persists replicated field values.
//
// A BadgerEngine provides the embedded key-value store and a Journal maps
// field ids to their last committed value and version on top of it, so a
// restarted node resumes every durable field where it left off. Ephemeral
// fields such as player positions are never journaled.
package storage
