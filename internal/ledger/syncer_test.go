package ledger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"coin-ledger/internal/models"
)

func TestSyncer_Sync_ReconcilesWithServer(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	first, err := f.service.Debit(ctx, 100, 30, "bet", nil)
	require.NoError(t, err)
	second, err := f.service.Credit(ctx, 70, 10, "reward", nil)
	require.NoError(t, err)

	f.api.On("SyncTransactions", mock.Anything, testToken, mock.MatchedBy(func(entries []models.LedgerEntry) bool {
		ids := entryIDs(entries)
		return len(ids) == 2 && ids[0] == first.Entry.ID && ids[1] == second.Entry.ID
	})).Return(&models.SyncResponse{ServerBalance: int64Ptr(999)}, nil).Once()

	result := f.syncer.Sync(ctx, testToken)

	assert.Equal(t, SyncCompleted, result.Status)
	assert.Equal(t, 2, result.Sent)
	require.NotNil(t, result.ServerBalance)
	assert.Equal(t, int64(999), *result.ServerBalance)
	f.api.AssertExpectations(t)

	log, err := f.store.ReadLog(ctx)
	require.NoError(t, err)
	for _, e := range log {
		assert.True(t, e.Synced, "entry %s synced", e.ID)
		assert.Equal(t, models.EntryStatusCompleted, e.Status, "entry %s completed", e.ID)
	}

	stored, err := f.store.ReadBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(999), stored, "server balance overrides local computation")
}

func TestSyncer_Sync_KeepsLocalBalanceWithoutServerValue(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	_, err := f.service.Debit(ctx, 100, 30, "bet", nil)
	require.NoError(t, err)
	f.api.On("SyncTransactions", mock.Anything, testToken, mock.Anything).Return(&models.SyncResponse{}, nil).Once()

	result := f.syncer.Sync(ctx, testToken)

	assert.Equal(t, SyncCompleted, result.Status)
	assert.Nil(t, result.ServerBalance)

	stored, err := f.store.ReadBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(70), stored)
}

func TestSyncer_Sync_IsIdempotent(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	_, err := f.service.Debit(ctx, 100, 30, "bet", nil)
	require.NoError(t, err)
	f.api.On("SyncTransactions", mock.Anything, testToken, mock.Anything).Return(&models.SyncResponse{}, nil).Once()

	assert.Equal(t, SyncCompleted, f.syncer.Sync(ctx, testToken).Status)
	assert.Equal(t, SyncNothingPending, f.syncer.Sync(ctx, testToken).Status)

	f.api.AssertNumberOfCalls(t, "SyncTransactions", 1)
}

func TestSyncer_Sync_NoToken(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	_, err := f.service.Debit(ctx, 100, 30, "bet", nil)
	require.NoError(t, err)

	result := f.syncer.Sync(ctx, "")

	assert.Equal(t, SyncSkippedNoToken, result.Status)
	f.api.AssertNotCalled(t, "SyncTransactions", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncer_Sync_SingleFlight(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	_, err := f.service.Debit(ctx, 100, 30, "bet", nil)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	f.api.On("SyncTransactions", mock.Anything, testToken, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&models.SyncResponse{}, nil).Once()

	done := make(chan SyncResult, 1)
	go func() {
		done <- f.syncer.Sync(ctx, testToken)
	}()

	<-started
	assert.True(t, f.syncer.InFlight())
	assert.Equal(t, SyncSkippedInFlight, f.syncer.Sync(ctx, testToken).Status)

	close(release)
	assert.Equal(t, SyncCompleted, (<-done).Status)
	assert.False(t, f.syncer.InFlight())
	f.api.AssertNumberOfCalls(t, "SyncTransactions", 1)
}

func TestSyncer_Sync_FailureLeavesEntriesPending(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	_, err := f.service.Debit(ctx, 100, 30, "bet", nil)
	require.NoError(t, err)

	networkErr := &models.NetworkError{Op: "sync transactions", StatusCode: 500, Err: errors.New("boom")}
	f.api.On("SyncTransactions", mock.Anything, testToken, mock.Anything).Return(nil, networkErr).Once()

	result := f.syncer.Sync(ctx, testToken)

	assert.Equal(t, SyncFailed, result.Status)
	assert.ErrorIs(t, result.Err, networkErr)

	pending, err := f.service.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.EntryStatusPending, pending[0].Status)

	stored, err := f.store.ReadBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(70), stored)

	// the next run retries the same entry
	f.api.On("SyncTransactions", mock.Anything, testToken, mock.MatchedBy(func(entries []models.LedgerEntry) bool {
		return len(entries) == 1 && entries[0].ID == pending[0].ID
	})).Return(&models.SyncResponse{ServerBalance: int64Ptr(70)}, nil).Once()

	assert.Equal(t, SyncCompleted, f.syncer.Sync(ctx, testToken).Status)
}

func TestSyncer_Sync_EntriesAddedDuringSyncStayPending(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	first, err := f.service.Debit(ctx, 100, 30, "bet", nil)
	require.NoError(t, err)

	var late *models.MutationResult
	f.api.On("SyncTransactions", mock.Anything, testToken, mock.Anything).
		Run(func(mock.Arguments) {
			var err error
			late, err = f.service.Debit(ctx, 70, 20, "bet", nil)
			require.NoError(t, err)
		}).
		Return(&models.SyncResponse{}, nil).Once()

	result := f.syncer.Sync(ctx, testToken)
	require.Equal(t, SyncCompleted, result.Status)
	assert.Equal(t, 1, result.Sent)

	pending, err := f.service.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{late.Entry.ID}, entryIDs(pending))

	log, err := f.store.ReadLog(ctx)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, late.Entry.ID, log[0].ID, "order is untouched")
	assert.Equal(t, first.Entry.ID, log[1].ID)
	assert.True(t, log[1].Synced)
}

func TestSyncer_Sync_StorageFailureIsReported(t *testing.T) {
	f := setupLedger(t)
	f.mr.SetError("ERR simulated failure")

	result := f.syncer.Sync(context.Background(), testToken)

	assert.Equal(t, SyncFailed, result.Status)
	var storageErr *models.StorageError
	assert.True(t, errors.As(result.Err, &storageErr))
}

func TestSyncer_Run(t *testing.T) {
	f := setupLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.syncer.Run(ctx, 5*time.Millisecond, func() string { return testToken }, func(result SyncResult) {
			assert.Equal(t, SyncNothingPending, result.Status)
			if runs.Add(1) == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}
