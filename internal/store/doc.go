// Package store provides SQLite-backed durable storage for the ledger.
//
// It holds two independent datasets in one database file:
//   - Local Store: profiles, categories, transactions, budgets, payments,
//     debts and debt payments, exposed through ledger.Scope collections.
//   - Replica Store: replica_transactions, the local mirror of the remote
//     authority's transactions with per-row sync state.
//
// # Atomic scopes
//
// Atomic runs a callback inside one BEGIN/COMMIT covering every collection.
// Returning an error (or panicking) rolls back every write made through the
// scope. Replica mutations each run in their own transaction so the sync
// state is always written together with the record.
//
// # Deterministic ordering
//
// List queries always end with "id COLLATE BINARY" so results are stable.
// Pending replica rows are returned in mutation order (mutation_seq ASC).
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: profile ownership and category/debt links are enforced
//   - one open connection: SQLite has a single writer
package store
