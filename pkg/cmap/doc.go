// Package cmap provides a concurrent map keyed by string.
//
// Keys are spread over a power-of-two number of shards by MurmurHash3, each
// shard guarded by its own RWMutex. syncmesh uses it for the session and
// field registries, where lookups vastly outnumber inserts.
//
// Usage:
//
//	m := cmap.New[*Session]()
//	m.Set(id, s)
//	s, ok := m.Get(id)
package cmap
