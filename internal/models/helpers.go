package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultPayoutRatio is the share of the pot paid to the winner; the rest is commission.
const DefaultPayoutRatio = 0.9

// GenerateEntryID builds a client-side id: creation time plus a random suffix,
// unique enough for the server to dedupe retried syncs.
func GenerateEntryID(now time.Time) string {
	return fmt.Sprintf("tx_%d_%s",
		now.UnixMilli(),
		uuid.New().String()[:8])
}

type Payout struct {
	Pot        int64 `json:"pot"`
	Net        int64 `json:"net"`
	Commission int64 `json:"commission"`
}

// ComputeNetWinnings predicts the payout of a two-player game where both
// sides put up stake.
func ComputeNetWinnings(stake int64, payoutRatio float64) (Payout, error) {
	if stake < 0 {
		return Payout{}, fmt.Errorf("stake %d: %w", stake, ErrInvalidAmount)
	}
	// written so NaN fails the check too
	if !(payoutRatio >= 0 && payoutRatio <= 1) {
		return Payout{}, fmt.Errorf("ratio %v: %w", payoutRatio, ErrInvalidRatio)
	}
	if stake > math.MaxInt64/2 {
		return Payout{}, fmt.Errorf("stake %d overflows the pot: %w", stake, ErrInvalidAmount)
	}

	pot := stake * 2
	// decimal keeps 100 * 0.29 at exactly 29
	net := decimal.NewFromInt(pot).Mul(decimal.NewFromFloat(payoutRatio)).Floor().IntPart()

	return Payout{
		Pot:        pot,
		Net:        net,
		Commission: pot - net,
	}, nil
}

func FormatCoins(coins int64) string {
	return fmt.Sprintf("%d coins", coins)
}
