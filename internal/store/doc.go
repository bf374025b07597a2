// Package store provides the connection collaborator: the process-wide
// Conn the adapter issues native statements through, and the
// request-scoped Session that owns transaction depth.
//
// Two backends implement Conn:
//
//   - SQLite (mattn/go-sqlite3): embedded store for development and tests.
//     Supports real transactions and reports affected rows.
//   - Cassandra (gocql): the production wide-column store. No multi-statement
//     transactions; logged batches are atomic; affected rows are unknown.
//
// Callers inspect Capabilities rather than assuming transactional
// behaviour.
//
// # SQLite configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Native values are stored as INTEGER (timestamps as epoch milliseconds,
// times of day as nanoseconds), REAL, BLOB or TEXT (uuids, decimals,
// varints, addresses).
package store
