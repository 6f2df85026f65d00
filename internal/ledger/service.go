package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"coin-ledger/internal/models"
)

// Service applies debits and credits optimistically: the local balance and
// log are durably updated before the call returns, the server learns about
// them later through the Syncer.
type Service struct {
	store  Store
	api    BackendAPI
	logger *slog.Logger
	now    func() time.Time

	// mu serializes entry creation so createdAt stays strictly increasing.
	mu            sync.Mutex
	lastCreatedAt time.Time
	seeded        bool
}

func NewService(store Store, api BackendAPI, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		api:    api,
		logger: logger,
		now:    time.Now,
	}
}

// GetBalance prefers the server value when a token is given and falls back to
// the last stored balance on any network failure.
func (s *Service) GetBalance(ctx context.Context, token string) (int64, error) {
	if token != "" {
		coins, err := s.api.FetchBalance(ctx, token)
		if err == nil {
			if err := s.store.WriteBalance(ctx, coins); err != nil {
				return 0, err
			}
			return coins, nil
		}
		s.logger.WarnContext(ctx, "balance fetch failed, using local balance", "err", err)
	}

	return s.store.ReadBalance(ctx)
}

func (s *Service) Debit(ctx context.Context, currentBalance, amount int64, reason string, metadata models.Metadata) (*models.MutationResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit %d: %w", amount, models.ErrInvalidAmount)
	}
	if currentBalance < amount {
		return nil, models.NewInsufficientFundsError(currentBalance, amount)
	}

	return s.apply(ctx, models.EntryKindDebit, currentBalance, amount, reason, metadata)
}

func (s *Service) Credit(ctx context.Context, currentBalance, amount int64, reason string, metadata models.Metadata) (*models.MutationResult, error) {
	if amount < 0 {
		return nil, fmt.Errorf("credit %d: %w", amount, models.ErrInvalidAmount)
	}
	if currentBalance > math.MaxInt64-amount {
		return nil, fmt.Errorf("credit %d on %d overflows: %w", amount, currentBalance, models.ErrInvalidAmount)
	}

	return s.apply(ctx, models.EntryKindCredit, currentBalance, amount, reason, metadata)
}

// ComputeNetWinnings predicts a payout for display; the credit itself comes from the server.
func (s *Service) ComputeNetWinnings(stake int64, payoutRatio float64) (models.Payout, error) {
	return models.ComputeNetWinnings(stake, payoutRatio)
}

// History returns up to limit entries, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]models.LedgerEntry, error) {
	entries, err := s.store.ReadLog(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Pending returns the unsynced entries oldest first.
func (s *Service) Pending(ctx context.Context) ([]models.LedgerEntry, error) {
	entries, err := s.store.ReadLog(ctx)
	if err != nil {
		return nil, err
	}
	return models.PendingOldestFirst(entries), nil
}

func (s *Service) apply(ctx context.Context, kind models.EntryKind, currentBalance, amount int64, reason string, metadata models.Metadata) (*models.MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt, err := s.nextCreatedAt(ctx)
	if err != nil {
		return nil, err
	}

	entry := models.LedgerEntry{
		ID:            models.GenerateEntryID(createdAt),
		Kind:          kind,
		Amount:        amount,
		Reason:        reason,
		Metadata:      metadata,
		BalanceBefore: currentBalance,
		CreatedAt:     createdAt,
		Synced:        false,
	}
	entry.BalanceAfter = currentBalance + entry.Delta()

	// debits can still be reversed by the server, credits are final once granted
	if kind == models.EntryKindDebit {
		entry.Status = models.EntryStatusPending
	} else {
		entry.Status = models.EntryStatusCompleted
	}

	if err := s.store.AppendEntry(ctx, entry, entry.BalanceAfter); err != nil {
		return nil, err
	}
	s.lastCreatedAt = createdAt

	s.logger.DebugContext(ctx, "ledger entry recorded",
		"entry_id", entry.ID,
		"kind", entry.Kind,
		"amount", entry.Amount,
		"balance", entry.BalanceAfter,
	)

	return &models.MutationResult{NewBalance: entry.BalanceAfter, Entry: &entry}, nil
}

// nextCreatedAt must be called with mu held.
func (s *Service) nextCreatedAt(ctx context.Context) (time.Time, error) {
	if !s.seeded {
		entries, err := s.store.ReadLog(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if len(entries) > 0 {
			s.lastCreatedAt = entries[0].CreatedAt
		}
		s.seeded = true
	}

	now := s.now().UTC()
	if !now.After(s.lastCreatedAt) {
		now = s.lastCreatedAt.Add(time.Microsecond)
	}
	return now, nil
}
