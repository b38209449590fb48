package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncStatus_AfterEdit(t *testing.T) {
	tests := []struct {
		from    SyncStatus
		want    SyncStatus
		wantErr bool
	}{
		{SyncCreated, SyncCreated, false},
		{SyncSynced, SyncUpdated, false},
		{SyncUpdated, SyncUpdated, false},
		{SyncDeleted, SyncDeleted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			got, err := tt.from.AfterEdit()
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrNotFound))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSyncStatus_AfterDelete(t *testing.T) {
	tests := []struct {
		from     SyncStatus
		want     SyncStatus
		wantHard bool
		wantErr  bool
	}{
		{SyncCreated, SyncCreated, true, false},
		{SyncSynced, SyncDeleted, false, false},
		{SyncUpdated, SyncDeleted, false, false},
		{SyncDeleted, SyncDeleted, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			got, hard, err := tt.from.AfterDelete()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantHard, hard)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestSyncStatus_Pending(t *testing.T) {
	assert.False(t, SyncSynced.Pending())
	for _, s := range []SyncStatus{SyncCreated, SyncUpdated, SyncDeleted} {
		assert.True(t, s.Pending(), s)
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, SyncStatus("pending").Valid())
}

func TestReplicaTransaction_AfterDelete(t *testing.T) {
	tests := []struct {
		name      string
		status    SyncStatus
		attempted int64
		want      SyncStatus
		wantHard  bool
	}{
		{"created never sent", SyncCreated, 0, SyncCreated, true},
		{"created already sent", SyncCreated, 4, SyncDeleted, false},
		{"synced", SyncSynced, 0, SyncDeleted, false},
		{"updated", SyncUpdated, 2, SyncDeleted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ReplicaTransaction{SyncStatus: tt.status, AttemptedSeq: tt.attempted}
			next, hard, err := r.AfterDelete()
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
			assert.Equal(t, tt.wantHard, hard)
		})
	}

	_, _, err := ReplicaTransaction{SyncStatus: SyncDeleted, AttemptedSeq: 1}.AfterDelete()
	assert.ErrorIs(t, err, ErrNotFound)
}
