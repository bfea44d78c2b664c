// Package storage holds what every mediagate persistence backend shares: the
// backend configuration and the sentinel errors stores return.
//
// # Backends
//
//   - memory: a mutex-guarded in-process store, used for development and by
//     service tests.
//   - sqlstore: database/sql over PostgreSQL (lib/pq) or SQLite (go-sqlite3).
//   - rediscache: redis-backed helpers that sit beside a primary store
//     (attempt limiting).
//
// Each domain package (content, access, billing, ...) declares the narrow
// store interface it needs; memory.Store and sqlstore.Store implement all of
// them.
//
// # Errors
//
// Stores return ErrNotFound for missing records, ErrDuplicate when a
// uniqueness index rejects an insert and ErrConflict when a conditional
// update finds the record changed underneath it. Services translate these
// into their own domain errors.
package storage
