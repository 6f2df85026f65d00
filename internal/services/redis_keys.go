package services

import "time"

const (
	KeyUserInfo     = "user:%d:info"
	KeyWallet       = "wallet:%d"
	KeyAppliedTx    = "user:%d:applied_tx"
	KeySettledGames = "user:%d:settled_games"
	KeyRateLimit    = "ratelimit:%d:%s"

	TTLUserInfo  = 30 * 24 * time.Hour // 30 days
	TTLAppliedTx = 30 * 24 * time.Hour // retries older than this are not deduped

	DefaultRateLimitSync = 60 // Max 60 syncs per minute
)
