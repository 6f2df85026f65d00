package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coin-ledger/internal/models"
	"coin-ledger/internal/services"
)

type pushed struct {
	userID int64
	coins  int64
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	pushes []pushed
}

func (b *recordingBroadcaster) BroadcastBalance(userID int64, coins int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushes = append(b.pushes, pushed{userID: userID, coins: coins})
}

func setupGameService(t *testing.T) (*services.GameService, *services.RedisService, *recordingBroadcaster) {
	t.Helper()

	redisService, _ := setupRedisService(t)
	broadcaster := &recordingBroadcaster{}

	gameService := services.NewGameService(redisService, models.DefaultPayoutRatio)
	gameService.SetBroadcaster(broadcaster)

	return gameService, redisService, broadcaster
}

func TestGameService_Settle(t *testing.T) {
	tests := []struct {
		name        string
		req         models.GameSettleRequest
		wantCredit  int64
		wantBalance int64
		wantPushes  int
	}{
		{
			name:        "winner gets the net of the pot",
			req:         models.GameSettleRequest{GameID: "g-win", Mode: models.GameModeOnline, Stake: 50, Won: true},
			wantCredit:  90,
			wantBalance: 1090,
			wantPushes:  1,
		},
		{
			name:        "loser is recorded without a credit",
			req:         models.GameSettleRequest{GameID: "g-lose", Mode: models.GameModeOnline, Stake: 50},
			wantCredit:  0,
			wantBalance: 1000,
			wantPushes:  1,
		},
		{
			name:        "ai games move no coins",
			req:         models.GameSettleRequest{GameID: "g-ai", Mode: models.GameModeAI, Stake: 50, Won: true},
			wantCredit:  0,
			wantBalance: 1000,
			wantPushes:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gameService, _, broadcaster := setupGameService(t)

			resp, err := gameService.Settle(context.Background(), 1, &tt.req)
			require.NoError(t, err)

			assert.Equal(t, tt.req.GameID, resp.GameID)
			assert.Equal(t, tt.wantCredit, resp.Credit)
			assert.Equal(t, tt.wantBalance, resp.Balance)
			assert.Len(t, broadcaster.pushes, tt.wantPushes)
		})
	}
}

func TestGameService_Settle_Twice(t *testing.T) {
	gameService, redisService, _ := setupGameService(t)
	ctx := context.Background()
	req := &models.GameSettleRequest{GameID: "g-1", Stake: 50, Won: true}

	_, err := gameService.Settle(ctx, 1, req)
	require.NoError(t, err)

	_, err = gameService.Settle(ctx, 1, req)
	assert.True(t, errors.Is(err, services.ErrAlreadySettled))

	wallet, err := redisService.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1090), wallet.Coins, "paid out once")
}

func TestGameService_ApplySync(t *testing.T) {
	gameService, _, broadcaster := setupGameService(t)
	ctx := context.Background()

	entries := []models.LedgerEntry{
		{ID: "tx_1", Kind: models.EntryKindDebit, Amount: 100},
		{ID: "tx_2", Kind: models.EntryKindCredit, Amount: 10},
	}

	resp, err := gameService.ApplySync(ctx, 9, entries)
	require.NoError(t, err)
	require.NotNil(t, resp.ServerBalance)
	assert.Equal(t, int64(910), *resp.ServerBalance)
	assert.Equal(t, []string{"tx_1", "tx_2"}, resp.Applied)
	assert.Equal(t, []pushed{{userID: 9, coins: 910}}, broadcaster.pushes)

	resp, err = gameService.ApplySync(ctx, 9, entries)
	require.NoError(t, err)
	assert.Equal(t, int64(910), *resp.ServerBalance)
	assert.Empty(t, resp.Applied)
	assert.Len(t, broadcaster.pushes, 1, "a replayed batch pushes nothing")
}

func TestGameService_ApplySync_Empty(t *testing.T) {
	gameService, _, broadcaster := setupGameService(t)

	resp, err := gameService.ApplySync(context.Background(), 9, nil)
	require.NoError(t, err)

	require.NotNil(t, resp.ServerBalance)
	assert.Equal(t, int64(models.DefaultStartingCoins), *resp.ServerBalance)
	assert.Empty(t, broadcaster.pushes)
}
