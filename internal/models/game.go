package models

type GameMode string

const (
	GameModeOnline GameMode = "online"
	GameModeLocal  GameMode = "local"
	GameModeAI     GameMode = "ai"
)

// GameSettleRequest finalizes a staked online game on the backend.
type GameSettleRequest struct {
	GameID string   `json:"game_id" binding:"required"`
	Mode   GameMode `json:"mode"`
	Stake  int64    `json:"stake" binding:"required,min=1"`
	Won    bool     `json:"won"`
}

type GameSettleResponse struct {
	GameID  string `json:"game_id"`
	Payout  Payout `json:"payout"`
	Credit  int64  `json:"credit"`
	Balance int64  `json:"balance"`
}

// Staked reports whether the mode moves coins. Local and AI games are free.
func (m GameMode) Staked() bool {
	return m == "" || m == GameModeOnline
}
