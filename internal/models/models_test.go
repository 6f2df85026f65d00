package models_test

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coin-ledger/internal/models"
)

func TestComputeNetWinnings(t *testing.T) {
	tests := []struct {
		name  string
		stake int64
		ratio float64
		want  models.Payout
	}{
		{name: "default ratio", stake: 500, ratio: 0.9, want: models.Payout{Pot: 1000, Net: 900, Commission: 100}},
		{name: "floors fractional net", stake: 5, ratio: 0.9, want: models.Payout{Pot: 10, Net: 9, Commission: 1}},
		{name: "odd pot", stake: 7, ratio: 0.9, want: models.Payout{Pot: 14, Net: 12, Commission: 2}},
		{name: "no float drift", stake: 50, ratio: 0.29, want: models.Payout{Pot: 100, Net: 29, Commission: 71}},
		{name: "zero stake", stake: 0, ratio: 0.9, want: models.Payout{}},
		{name: "full payout", stake: 10, ratio: 1, want: models.Payout{Pot: 20, Net: 20, Commission: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := models.ComputeNetWinnings(tt.stake, tt.ratio)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Pot, got.Net+got.Commission)
		})
	}
}

func TestComputeNetWinnings_Invalid(t *testing.T) {
	_, err := models.ComputeNetWinnings(-1, 0.9)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = models.ComputeNetWinnings(10, 1.5)
	assert.ErrorIs(t, err, models.ErrInvalidRatio)

	_, err = models.ComputeNetWinnings(10, math.NaN())
	assert.ErrorIs(t, err, models.ErrInvalidRatio)

	_, err = models.ComputeNetWinnings(math.MaxInt64/2+1, 0.9)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestPrependEntry_Cap(t *testing.T) {
	var log []models.LedgerEntry
	for i := 0; i <= models.MaxLogEntries; i++ {
		log = models.PrependEntry(log, models.LedgerEntry{ID: fmt.Sprintf("e%d", i)})
	}

	require.Len(t, log, models.MaxLogEntries)
	assert.Equal(t, fmt.Sprintf("e%d", models.MaxLogEntries), log[0].ID)
	assert.Equal(t, "e1", log[len(log)-1].ID)
}

func TestPendingOldestFirst(t *testing.T) {
	log := []models.LedgerEntry{
		{ID: "newest"},
		{ID: "synced", Synced: true},
		{ID: "oldest"},
	}

	pending := models.PendingOldestFirst(log)

	require.Len(t, pending, 2)
	assert.Equal(t, "oldest", pending[0].ID)
	assert.Equal(t, "newest", pending[1].ID)
}

func TestLedgerEntry_MarkSynced(t *testing.T) {
	debit := models.LedgerEntry{Kind: models.EntryKindDebit, Amount: 30, Status: models.EntryStatusPending}
	debit.MarkSynced()
	assert.True(t, debit.Synced)
	assert.Equal(t, models.EntryStatusCompleted, debit.Status)
	assert.Equal(t, int64(-30), debit.Delta())

	credit := models.LedgerEntry{Kind: models.EntryKindCredit, Amount: 30, Status: models.EntryStatusCompleted}
	credit.MarkSynced()
	assert.True(t, credit.Synced)
	assert.Equal(t, int64(30), credit.Delta())
}

func TestGenerateEntryID(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	a := models.GenerateEntryID(now)
	b := models.GenerateEntryID(now)

	assert.True(t, strings.HasPrefix(a, "tx_1700000000123_"))
	assert.NotEqual(t, a, b)
}

func TestErrors(t *testing.T) {
	var err error = models.NewInsufficientFundsError(100, 150)

	var insufficient *models.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(50), insufficient.Shortfall)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	cause := errors.New("disk full")
	err = &models.StorageError{Op: "write balance", Err: cause}
	assert.ErrorIs(t, err, cause)

	err = &models.NetworkError{Op: "fetch balance", StatusCode: 502, Err: errors.New("bad gateway")}
	assert.Contains(t, err.Error(), "502")
}

func TestGameMode_Staked(t *testing.T) {
	assert.True(t, models.GameModeOnline.Staked())
	assert.True(t, models.GameMode("").Staked())
	assert.False(t, models.GameModeAI.Staked())
	assert.False(t, models.GameModeLocal.Staked())
}
