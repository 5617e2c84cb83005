// Package cmap provides a concurrent-safe sharded map keyed by string.
//
// Keys are distributed across shards by murmur3 hash so that writers on
// different keys rarely contend on the same lock. It is the building block
// for the in-memory storage backend.
package cmap
