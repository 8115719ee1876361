// Package storage provides persistence backends for audit records.
//
// Two implementations exist:
//
//   - SQLiteStorage: the production backend. Decision records are stored in
//     a single table with JSON-encoded compound fields, WAL mode enabled for
//     concurrent reads during writes.
//   - MemoryStorage: an in-memory map for tests.
//
// Both satisfy the audit.Storage interface.
package storage
