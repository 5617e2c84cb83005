// Package storage provides the namespace-isolated key-value store that
// backs the dashboard's module plugins.
//
// Each module gets its own namespace with an independent backend instance:
// in-memory, JSON file, gob file, or a shared Badger database. A CachedStorage
// decorator adds per-key TTL with lazy expiry, LRU bounding, and hit/miss
// statistics. The Manager is the single registry handing out memoized
// backend and cache handles; modules never construct backends directly.
package storage
