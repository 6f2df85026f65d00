package models

import "time"

// DefaultStartingCoins is granted to a wallet the first time the backend sees the user.
const DefaultStartingCoins = 1000

// Wallet is the server-side authoritative balance of a user.
type Wallet struct {
	UserID      int64     `json:"user_id" redis:"user_id"`
	Coins       int64     `json:"coins" redis:"coins"`
	TotalStaked int64     `json:"total_staked" redis:"total_staked"`
	TotalWon    int64     `json:"total_won" redis:"total_won"`
	UpdatedAt   time.Time `json:"updated_at" redis:"updated_at"`
}

func NewWallet(userID, startingCoins int64) *Wallet {
	return &Wallet{
		UserID:    userID,
		Coins:     startingCoins,
		UpdatedAt: time.Now(),
	}
}
