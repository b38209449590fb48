// Package remote defines the Remote Ledger Authority the reconciliation
// engine pushes to and pulls from, and an HTTP/JSON client for it.
//
// Records are keyed by client-chosen ids that survive retries. The
// authority reports a duplicate create as ErrConflict and a missing record
// as ErrNotFound; the caller decides which of those are benign.
package remote
