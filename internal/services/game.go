package services

import (
	"context"
	"errors"
	"fmt"

	"coin-ledger/internal/models"
)

// GameService settles staked games on the server side and pushes the
// resulting balance to the player's devices.
type GameService struct {
	redisService *RedisService
	broadcaster  Broadcaster
	payoutRatio  float64
}

func NewGameService(redisService *RedisService, payoutRatio float64) *GameService {
	return &GameService{
		redisService: redisService,
		broadcaster:  nopBroadcaster{},
		payoutRatio:  payoutRatio,
	}
}

func (gs *GameService) SetBroadcaster(b Broadcaster) {
	gs.broadcaster = b
}

// Settle credits the winner the net of the pot. A loss is recorded so the
// game cannot be settled twice, and moves no coins: the stake already left
// the wallet through the player's synced debit.
func (gs *GameService) Settle(ctx context.Context, userID int64, req *models.GameSettleRequest) (*models.GameSettleResponse, error) {
	if !req.Mode.Staked() {
		wallet, err := gs.redisService.GetWallet(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &models.GameSettleResponse{GameID: req.GameID, Balance: wallet.Coins}, nil
	}

	payout, err := models.ComputeNetWinnings(req.Stake, gs.payoutRatio)
	if err != nil {
		return nil, fmt.Errorf("invalid settlement: %w", err)
	}

	var credit int64
	if req.Won {
		credit = payout.Net
	}

	balance, err := gs.redisService.CreditGame(ctx, userID, req.GameID, credit)
	if err != nil {
		if errors.Is(err, ErrAlreadySettled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to settle game %s: %w", req.GameID, err)
	}

	gs.broadcaster.BroadcastBalance(userID, balance)

	return &models.GameSettleResponse{
		GameID:  req.GameID,
		Payout:  payout,
		Credit:  credit,
		Balance: balance,
	}, nil
}

// ApplySync applies a client batch and pushes the new balance when anything changed.
func (gs *GameService) ApplySync(ctx context.Context, userID int64, entries []models.LedgerEntry) (*models.SyncResponse, error) {
	if len(entries) == 0 {
		wallet, err := gs.redisService.GetWallet(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &models.SyncResponse{ServerBalance: &wallet.Coins}, nil
	}

	balance, applied, err := gs.redisService.ApplyTransactions(ctx, userID, entries)
	if err != nil {
		return nil, err
	}

	if len(applied) > 0 {
		gs.broadcaster.BroadcastBalance(userID, balance)
	}

	return &models.SyncResponse{ServerBalance: &balance, Applied: applied}, nil
}
