package models

// SyncRequest is the body of POST /transactions/sync.
type SyncRequest struct {
	Transactions []LedgerEntry `json:"transactions"`
}

// SyncResponse carries the authoritative balance after the batch was applied.
// ServerBalance is nil when the server chose not to report one.
type SyncResponse struct {
	ServerBalance *int64   `json:"serverBalance,omitempty"`
	Applied       []string `json:"applied,omitempty"`
}

// BalanceUpdatedEvent is pushed over the realtime channel as "balance_updated".
type BalanceUpdatedEvent struct {
	Coins int64 `json:"coins"`
}

const EventBalanceUpdated = "balance_updated"

// RealtimeMessage is the envelope of every websocket frame.
type RealtimeMessage struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id,omitempty"`
	GameID string `json:"game_id,omitempty"`
	Data   any    `json:"data"`
}
