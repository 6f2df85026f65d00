package models

import "time"

type EntryKind string

const (
	EntryKindDebit  EntryKind = "DEBIT"
	EntryKindCredit EntryKind = "CREDIT"
)

type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusCompleted EntryStatus = "COMPLETED"
)

// Common reasons used by the game screens. Reason is free text, these are not exhaustive.
const (
	ReasonGameBet    = "game_bet"
	ReasonGameWin    = "game_win"
	ReasonGameRefund = "game_refund"
	ReasonReward     = "reward"
	ReasonDailyBonus = "daily_bonus"
	ReasonPurchase   = "purchase"
)

// MaxLogEntries is the cap of the local transaction log.
const MaxLogEntries = 50

// Metadata is passed through to the server untouched.
type Metadata map[string]any

// LedgerEntry is immutable once created except for Status and Synced.
type LedgerEntry struct {
	ID            string      `json:"id"`
	Kind          EntryKind   `json:"kind"`
	Amount        int64       `json:"amount"`
	Reason        string      `json:"reason"`
	Metadata      Metadata    `json:"metadata,omitempty"`
	BalanceBefore int64       `json:"balanceBefore"`
	BalanceAfter  int64       `json:"balanceAfter"`
	CreatedAt     time.Time   `json:"createdAt"`
	Status        EntryStatus `json:"status"`
	Synced        bool        `json:"synced"`
}

// Delta is the signed effect of the entry on the balance.
func (e *LedgerEntry) Delta() int64 {
	if e.Kind == EntryKindDebit {
		return -e.Amount
	}
	return e.Amount
}

// MarkSynced records server acceptance. Debits that were pending become final.
func (e *LedgerEntry) MarkSynced() {
	e.Synced = true
	if e.Status == EntryStatusPending {
		e.Status = EntryStatusCompleted
	}
}

// MutationResult is returned by debit and credit.
type MutationResult struct {
	NewBalance int64        `json:"newBalance"`
	Entry      *LedgerEntry `json:"entry"`
}

// PrependEntry puts entry at the head of a newest-first log and evicts the
// oldest entries beyond MaxLogEntries.
func PrependEntry(log []LedgerEntry, entry LedgerEntry) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(log)+1)
	out = append(out, entry)
	out = append(out, log...)
	return CapLog(out)
}

func CapLog(log []LedgerEntry) []LedgerEntry {
	if len(log) > MaxLogEntries {
		return log[:MaxLogEntries]
	}
	return log
}

// PendingOldestFirst returns copies of the unsynced entries in creation order.
func PendingOldestFirst(log []LedgerEntry) []LedgerEntry {
	var pending []LedgerEntry
	for i := len(log) - 1; i >= 0; i-- {
		if !log[i].Synced {
			pending = append(pending, log[i])
		}
	}
	return pending
}
