// Package reconcile keeps the local replica of a profile's transactions
// consistent with the remote authority.
//
// Local mutations (Add, Update, Remove) commit to the replica first and
// return a Receipt: the mutation is durable once the call returns. A
// background worker per profile then pushes pending rows; Receipt.Wait
// blocks until a push covering the mutation has finished.
//
// PUSH RULES:
//
// Pending rows are pushed strictly one at a time in mutation order:
//   - deleted: remote delete; success or not-found removes the tombstone
//   - created: remote create; a duplicate-id conflict means an earlier push
//     landed and lost its response, so the row is marked synced
//   - updated: remote update; the canonical result replaces the row
//
// Any other error stops the pass. Unprocessed rows stay pending and the
// error is returned as *PushError.
//
// At most one push runs per profile at any time. Push requests arriving
// while a push runs coalesce into a single follow-up push.
//
// PULL RULES:
//
// Pull overwrites replica rows by id with authoritative values and marks
// them synced. It never deletes rows missing from the page, and it skips
// rows whose local delete has not reached the authority yet.
package reconcile
