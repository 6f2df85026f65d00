package ledger

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"coin-ledger/internal/models"
)

type SyncStatus string

const (
	SyncSkippedNoToken  SyncStatus = "skipped_no_token"
	SyncSkippedInFlight SyncStatus = "skipped_in_flight"
	SyncNothingPending  SyncStatus = "nothing_pending"
	SyncCompleted       SyncStatus = "completed"
	SyncFailed          SyncStatus = "failed"
)

type SyncResult struct {
	Status        SyncStatus
	Sent          int
	ServerBalance *int64
	Err           error
}

// Syncer pushes pending entries to the backend and reconciles the local
// balance with the server's. It is best effort: failures are logged and left
// for the next run.
type Syncer struct {
	store    Store
	api      BackendAPI
	logger   *slog.Logger
	inFlight atomic.Bool

	// serverBalance stores the balance a sync returns. Defaults to the store.
	serverBalance BalanceHandler
}

func NewSyncer(store Store, api BackendAPI, logger *slog.Logger) *Syncer {
	s := &Syncer{
		store:  store,
		api:    api,
		logger: logger,
	}
	s.serverBalance = func(ctx context.Context, coins int64) error {
		return s.store.WriteBalance(ctx, coins)
	}
	return s
}

// OnServerBalance replaces how a returned server balance is stored. The
// BalanceContext uses it to update the store and memory in one step.
func (s *Syncer) OnServerBalance(h BalanceHandler) {
	s.serverBalance = h
}

// InFlight reports whether a sync is running right now.
func (s *Syncer) InFlight() bool {
	return s.inFlight.Load()
}

// Sync returns immediately when there is no token or another sync is running.
func (s *Syncer) Sync(ctx context.Context, token string) SyncResult {
	if token == "" {
		return SyncResult{Status: SyncSkippedNoToken}
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return SyncResult{Status: SyncSkippedInFlight}
	}
	defer s.inFlight.Store(false)

	entries, err := s.store.ReadLog(ctx)
	if err != nil {
		return s.fail(ctx, "read pending entries", 0, err)
	}

	pending := models.PendingOldestFirst(entries)
	if len(pending) == 0 {
		return SyncResult{Status: SyncNothingPending}
	}

	resp, err := s.api.SyncTransactions(ctx, token, pending)
	if err != nil {
		return s.fail(ctx, "send pending entries", len(pending), err)
	}

	sent := make(map[string]struct{}, len(pending))
	for _, e := range pending {
		sent[e.ID] = struct{}{}
	}

	// only the batch that was sent; entries added meanwhile stay pending
	err = s.store.UpdateLog(ctx, func(log []models.LedgerEntry) ([]models.LedgerEntry, error) {
		for i := range log {
			if _, ok := sent[log[i].ID]; ok {
				log[i].MarkSynced()
			}
		}
		return log, nil
	})
	if err != nil {
		return s.fail(ctx, "mark entries synced", len(pending), err)
	}

	result := SyncResult{Status: SyncCompleted, Sent: len(pending)}

	if resp != nil && resp.ServerBalance != nil {
		if err := s.serverBalance(ctx, *resp.ServerBalance); err != nil {
			return s.fail(ctx, "store server balance", len(pending), err)
		}
		balance := *resp.ServerBalance
		result.ServerBalance = &balance
	}

	s.logger.InfoContext(ctx, "ledger synced", "pending", len(pending), "server_balance", result.ServerBalance)

	return result
}

func (s *Syncer) fail(ctx context.Context, step string, sent int, err error) SyncResult {
	s.logger.ErrorContext(ctx, "ledger sync failed", "step", step, "pending", sent, "err", err)
	return SyncResult{Status: SyncFailed, Sent: sent, Err: err}
}

// Run syncs every interval until ctx is done. onResult may be nil.
func (s *Syncer) Run(ctx context.Context, interval time.Duration, token func() string, onResult func(SyncResult)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result := s.Sync(ctx, token())
			if onResult != nil {
				onResult(result)
			}
		case <-ctx.Done():
			return
		}
	}
}
