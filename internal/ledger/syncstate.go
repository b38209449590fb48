package ledger

import "fmt"

// SyncStatus is the replication state of a replica row.
//
//	synced  -> created | updated | deleted   (local mutation)
//	created | updated | deleted -> synced    (push acknowledged)
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncCreated SyncStatus = "created"
	SyncUpdated SyncStatus = "updated"
	SyncDeleted SyncStatus = "deleted"
)

// Pending reports whether the row still has to be pushed.
func (s SyncStatus) Pending() bool {
	return s != SyncSynced
}

// Valid reports whether s is a known state.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncSynced, SyncCreated, SyncUpdated, SyncDeleted:
		return true
	}
	return false
}

// AfterEdit returns the state of a row after a local edit. A row the
// authority has never seen stays created so it is pushed as a create.
func (s SyncStatus) AfterEdit() (SyncStatus, error) {
	switch s {
	case SyncCreated:
		return SyncCreated, nil
	case SyncSynced, SyncUpdated:
		return SyncUpdated, nil
	default:
		return s, fmt.Errorf("edit of %s row: %w", s, ErrNotFound)
	}
}

// AfterDelete returns the state of a row after a local delete. hardDelete is
// true when the row was never pushed and can be dropped without a tombstone.
func (s SyncStatus) AfterDelete() (next SyncStatus, hardDelete bool, err error) {
	switch s {
	case SyncCreated:
		return s, true, nil
	case SyncSynced, SyncUpdated:
		return SyncDeleted, false, nil
	default:
		return s, false, fmt.Errorf("delete of %s row: %w", s, ErrNotFound)
	}
}

// AfterDelete is SyncStatus.AfterDelete, except that a created row whose
// create was already sent keeps a tombstone: the authority may hold it even
// though no response arrived.
func (r ReplicaTransaction) AfterDelete() (next SyncStatus, hardDelete bool, err error) {
	next, hardDelete, err = r.SyncStatus.AfterDelete()
	if err == nil && hardDelete && r.AttemptedSeq > 0 {
		return SyncDeleted, false, nil
	}
	return next, hardDelete, err
}
