package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/ledgersync/internal/ledger"
)

var replicaColumns = []string{
	"id", "profile_id", "direction", "amount", "currency", "category_id", "note",
	"occurred_at", "created_at", "updated_at", "deleted_at", "sync_status", "mutation_seq", "attempted_seq",
}

var replicaSelect = "SELECT " + strings.Join(replicaColumns, ", ") + " FROM replica_transactions"

func replicaValues(r ledger.ReplicaTransaction) []any {
	return []any{
		r.ID, r.ProfileID, string(r.Direction), r.Amount, r.Currency, r.CategoryID, r.Note,
		formatTime(r.OccurredAt), formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
		formatTimePtr(r.DeletedAt), string(r.SyncStatus), r.MutationSeq, r.AttemptedSeq,
	}
}

func scanReplica(r rowScanner) (ledger.ReplicaTransaction, error) {
	var (
		rec                        ledger.ReplicaTransaction
		direction, status          string
		category, deleted          sql.NullString
		occurred, created, updated string
	)
	err := r.Scan(&rec.ID, &rec.ProfileID, &direction, &rec.Amount, &rec.Currency, &category, &rec.Note,
		&occurred, &created, &updated, &deleted, &status, &rec.MutationSeq, &rec.AttemptedSeq)
	if err != nil {
		return rec, err
	}
	rec.Direction = ledger.Direction(direction)
	rec.CategoryID = stringPtr(category)
	rec.SyncStatus = ledger.SyncStatus(status)
	if rec.OccurredAt, err = parseTime(occurred); err != nil {
		return rec, err
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return rec, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return rec, err
	}
	rec.DeletedAt, err = parseTimePtr(deleted)
	return rec, err
}

func queryReplica(ctx context.Context, q querier, query string, args ...any) ([]ledger.ReplicaTransaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query replica: %w", err)
	}
	defer rows.Close()

	out := []ledger.ReplicaTransaction{}
	for rows.Next() {
		rec, err := scanReplica(rows)
		if err != nil {
			return nil, fmt.Errorf("scan replica: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replica: %w", err)
	}
	return out, nil
}

// getReplica loads one row of the profile, tombstones included.
func getReplica(ctx context.Context, q querier, profileID, id string) (ledger.ReplicaTransaction, error) {
	row := q.QueryRowContext(ctx, replicaSelect+" WHERE id = ? AND profile_id = ?", id, profileID)
	rec, err := scanReplica(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("replica transaction %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("get replica transaction %s: %w", id, err)
	}
	return rec, nil
}

func putReplica(ctx context.Context, q querier, rec ledger.ReplicaTransaction) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(replicaColumns)), ", ")
	sets := make([]string, 0, len(replicaColumns)-1)
	for _, col := range replicaColumns[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	_, err := q.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO replica_transactions (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
			strings.Join(replicaColumns, ", "), placeholders, strings.Join(sets, ", ")),
		replicaValues(rec)...,
	)
	if err != nil {
		return fmt.Errorf("write replica transaction %s: %w", rec.ID, err)
	}
	return nil
}

// inTx runs fn in a write transaction on the single connection.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReplicaGet returns a live (not tombstoned) replica row of the profile.
func (s *Store) ReplicaGet(ctx context.Context, profileID, id string) (ledger.ReplicaTransaction, error) {
	rec, err := getReplica(ctx, s.db, profileID, id)
	if err != nil {
		return rec, err
	}
	if rec.DeletedAt != nil {
		return ledger.ReplicaTransaction{}, fmt.Errorf("replica transaction %s: %w", id, ledger.ErrNotFound)
	}
	return rec, nil
}

// ReplicaList returns the live rows of a profile, newest first.
func (s *Store) ReplicaList(ctx context.Context, profileID string) ([]ledger.ReplicaTransaction, error) {
	return queryReplica(ctx, s.db,
		replicaSelect+` WHERE profile_id = ? AND deleted_at IS NULL
		ORDER BY occurred_at DESC, id COLLATE BINARY ASC`,
		profileID,
	)
}

// ReplicaPending returns the rows of a profile that still have to be pushed,
// in mutation order.
func (s *Store) ReplicaPending(ctx context.Context, profileID string) ([]ledger.ReplicaTransaction, error) {
	return queryReplica(ctx, s.db,
		replicaSelect+` WHERE profile_id = ? AND sync_status != 'synced'
		ORDER BY mutation_seq ASC, id COLLATE BINARY ASC`,
		profileID,
	)
}

// ReplicaMaxSeq returns the highest mutation sequence stored, or 0.
func (s *Store) ReplicaMaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(mutation_seq) FROM replica_transactions").Scan(&seq); err != nil {
		return 0, fmt.Errorf("max mutation seq: %w", err)
	}
	return seq.Int64, nil
}

// ReplicaCreate stores a locally created transaction in state created.
// An id is assigned when t has none.
func (s *Store) ReplicaCreate(ctx context.Context, t ledger.Transaction, seq int64) (ledger.ReplicaTransaction, error) {
	if t.ID == "" {
		t.ID = s.ids.Generate()
	}
	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	rec := ledger.ReplicaTransaction{Transaction: t, SyncStatus: ledger.SyncCreated, MutationSeq: seq}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO replica_transactions (%s) VALUES (%s)",
			strings.Join(replicaColumns, ", "),
			strings.TrimSuffix(strings.Repeat("?, ", len(replicaColumns)), ", ")),
		replicaValues(rec)...,
	)
	if err != nil {
		return rec, fmt.Errorf("create replica transaction %s: %w", t.ID, err)
	}
	return rec, nil
}

// ReplicaEdit applies edit to a live row and moves it to the next sync state.
// The id, profile and creation time cannot be changed by edit.
func (s *Store) ReplicaEdit(ctx context.Context, profileID, id string, edit func(*ledger.Transaction) error, seq int64) (ledger.ReplicaTransaction, error) {
	var out ledger.ReplicaTransaction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rec, err := getReplica(ctx, tx, profileID, id)
		if err != nil {
			return err
		}
		if rec.DeletedAt != nil {
			return fmt.Errorf("replica transaction %s: %w", id, ledger.ErrNotFound)
		}
		next, err := rec.SyncStatus.AfterEdit()
		if err != nil {
			return err
		}

		t := rec.Transaction
		if err := edit(&t); err != nil {
			return err
		}
		t.ID, t.ProfileID, t.CreatedAt = rec.ID, rec.ProfileID, rec.CreatedAt
		t.UpdatedAt = s.now()

		out = ledger.ReplicaTransaction{Transaction: t, SyncStatus: next, MutationSeq: seq, AttemptedSeq: rec.AttemptedSeq}
		return putReplica(ctx, tx, out)
	})
	if err != nil {
		return ledger.ReplicaTransaction{}, err
	}
	return out, nil
}

// ReplicaRemove deletes a live row. A row no create was ever sent for is
// removed immediately (hardDeleted); any other row becomes a tombstone
// awaiting push.
func (s *Store) ReplicaRemove(ctx context.Context, profileID, id string, seq int64) (hardDeleted bool, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		rec, err := getReplica(ctx, tx, profileID, id)
		if err != nil {
			return err
		}
		if rec.DeletedAt != nil {
			return fmt.Errorf("replica transaction %s: %w", id, ledger.ErrNotFound)
		}
		next, hard, err := rec.AfterDelete()
		if err != nil {
			return err
		}
		if hard {
			hardDeleted = true
			_, err := tx.ExecContext(ctx, "DELETE FROM replica_transactions WHERE id = ?", id)
			if err != nil {
				return fmt.Errorf("remove replica transaction %s: %w", id, err)
			}
			return nil
		}

		now := s.now()
		rec.DeletedAt = &now
		rec.SyncStatus = next
		rec.MutationSeq = seq
		return putReplica(ctx, tx, rec)
	})
	return hardDeleted, err
}

// ReplicaApplyPulled overwrites rows by id with authoritative records and
// marks them synced. Rows absent from recs are left alone. Rows with a
// pending local delete are skipped so the delete is not undone before it
// reaches the authority.
func (s *Store) ReplicaApplyPulled(ctx context.Context, profileID string, recs []ledger.Transaction) (applied, skipped int, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range recs {
			existing, err := getReplica(ctx, tx, profileID, t.ID)
			switch {
			case err == nil:
				if existing.SyncStatus == ledger.SyncDeleted {
					skipped++
					continue
				}
			case errors.Is(err, ledger.ErrNotFound):
				if err := ensureNotForeign(ctx, tx, t.ID); err != nil {
					return err
				}
			default:
				return err
			}

			t.ProfileID = profileID
			rec := ledger.ReplicaTransaction{Transaction: t, SyncStatus: ledger.SyncSynced, MutationSeq: existing.MutationSeq}
			if err := putReplica(ctx, tx, rec); err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return applied, skipped, nil
}

// ensureNotForeign rejects an id already owned by another profile.
func ensureNotForeign(ctx context.Context, q querier, id string) error {
	var owner string
	err := q.QueryRowContext(ctx, "SELECT profile_id FROM replica_transactions WHERE id = ?", id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check replica owner %s: %w", id, err)
	}
	return fmt.Errorf("replica transaction %s belongs to profile %s", id, owner)
}

// ReplicaAcknowledge records a successful create or update push. canonical,
// when non-nil, replaces the local payload; nil keeps it (idempotent
// conflict). The row is marked synced only if it was not mutated again after
// pushedSeq; otherwise a created row becomes updated because the authority
// now knows its id. Reports whether the row ended synced.
func (s *Store) ReplicaAcknowledge(ctx context.Context, profileID, id string, pushedSeq int64, canonical *ledger.Transaction) (bool, error) {
	var synced bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rec, err := getReplica(ctx, tx, profileID, id)
		if errors.Is(err, ledger.ErrNotFound) {
			// Removed outside the engine; nothing left to acknowledge.
			return nil
		}
		if err != nil {
			return err
		}

		if rec.MutationSeq != pushedSeq {
			if rec.SyncStatus != ledger.SyncCreated {
				return nil
			}
			rec.SyncStatus = ledger.SyncUpdated
			return putReplica(ctx, tx, rec)
		}

		if canonical != nil {
			t := *canonical
			t.ID, t.ProfileID = rec.ID, rec.ProfileID
			rec.Transaction = t
		}
		rec.SyncStatus = ledger.SyncSynced
		rec.DeletedAt = nil
		synced = true
		return putReplica(ctx, tx, rec)
	})
	return synced, err
}

// ReplicaMarkAttempted records that a create carrying the payload of
// pushedSeq is about to be sent. It reports false, and marks nothing, when
// the row is gone or no longer a pending create.
func (s *Store) ReplicaMarkAttempted(ctx context.Context, profileID, id string, pushedSeq int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE replica_transactions SET attempted_seq = ? WHERE id = ? AND profile_id = ? AND sync_status = 'created'",
		pushedSeq, id, profileID,
	)
	if err != nil {
		return false, fmt.Errorf("mark replica transaction %s attempted: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark replica transaction %s attempted: rows affected: %w", id, err)
	}
	return n > 0, nil
}

// ReplicaForget removes a tombstone once the authority confirmed the delete.
// Reports whether a row was removed.
func (s *Store) ReplicaForget(ctx context.Context, profileID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM replica_transactions WHERE id = ? AND profile_id = ? AND sync_status = 'deleted'",
		id, profileID,
	)
	if err != nil {
		return false, fmt.Errorf("forget replica transaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("forget replica transaction %s: rows affected: %w", id, err)
	}
	return n > 0, nil
}
