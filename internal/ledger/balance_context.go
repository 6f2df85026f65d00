package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coin-ledger/internal/models"
)

type State string

const (
	StateIdle     State = "IDLE"
	StateMutating State = "MUTATING"
)

// BalanceContext is the single UI-facing entry point of the ledger. It keeps
// the current balance in memory, serializes debits and credits, fires
// feedback, notifies subscribers and kicks off background syncs.
type BalanceContext struct {
	service  *Service
	syncer   *Syncer
	feedback *Feedback
	logger   *slog.Logger

	// mutateMu serializes debit, credit and server overrides so no two
	// mutations read the same stale balance.
	mutateMu sync.Mutex

	mu      sync.RWMutex
	balance int64
	state   State
	token   string

	subsMu  sync.Mutex
	subs    map[int]chan int64
	nextSub int

	background sync.WaitGroup
}

// NewBalanceContext takes over how syncer stores server balances, so one
// syncer serves one context.
func NewBalanceContext(service *Service, syncer *Syncer, feedback *Feedback, token string, logger *slog.Logger) *BalanceContext {
	c := &BalanceContext{
		service:  service,
		syncer:   syncer,
		feedback: feedback,
		logger:   logger,
		state:    StateIdle,
		token:    token,
		subs:     make(map[int]chan int64),
	}
	syncer.OnServerBalance(c.ApplyServerBalance)
	return c
}

func (c *BalanceContext) Balance() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balance
}

func (c *BalanceContext) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Syncing reports the background sync state. It never blocks mutations.
func (c *BalanceContext) Syncing() bool {
	return c.syncer.InFlight()
}

func (c *BalanceContext) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken is called on login and logout. An empty token keeps the ledger local only.
func (c *BalanceContext) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Load seeds the balance from the server, or from local storage when offline.
func (c *BalanceContext) Load(ctx context.Context) (int64, error) {
	c.mutateMu.Lock()
	defer c.mutateMu.Unlock()

	balance, err := c.service.GetBalance(ctx, c.Token())
	if err != nil {
		return 0, err
	}

	c.setBalance(balance)
	return balance, nil
}

func (c *BalanceContext) Debit(ctx context.Context, amount int64, reason string, metadata models.Metadata) (*models.MutationResult, error) {
	return c.mutate(ctx, models.EntryKindDebit, amount, reason, metadata)
}

func (c *BalanceContext) Credit(ctx context.Context, amount int64, reason string, metadata models.Metadata) (*models.MutationResult, error) {
	return c.mutate(ctx, models.EntryKindCredit, amount, reason, metadata)
}

func (c *BalanceContext) mutate(ctx context.Context, kind models.EntryKind, amount int64, reason string, metadata models.Metadata) (*models.MutationResult, error) {
	c.mutateMu.Lock()
	defer c.mutateMu.Unlock()

	c.setState(StateMutating)
	defer c.setState(StateIdle)

	var (
		result *models.MutationResult
		err    error
	)
	if kind == models.EntryKindDebit {
		result, err = c.service.Debit(ctx, c.Balance(), amount, reason, metadata)
	} else {
		result, err = c.service.Credit(ctx, c.Balance(), amount, reason, metadata)
	}
	if err != nil {
		return nil, err
	}

	c.setBalance(result.NewBalance)
	c.feedback.BalanceChanged(ctx, FeedbackEvent{Kind: kind, Amount: amount, Balance: result.NewBalance})
	c.syncInBackground(ctx)

	return result, nil
}

// ApplyServerBalance handles a balance_updated push or a balance returned by
// a sync. The server always wins; store and memory change under mutateMu.
func (c *BalanceContext) ApplyServerBalance(ctx context.Context, coins int64) error {
	c.mutateMu.Lock()
	defer c.mutateMu.Unlock()

	if err := c.service.store.WriteBalance(ctx, coins); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "server balance applied", "coins", coins)
	c.setBalance(coins)
	return nil
}

// Sync runs one reconciliation. A returned server balance reaches memory
// through ApplyServerBalance.
func (c *BalanceContext) Sync(ctx context.Context) SyncResult {
	return c.syncer.Sync(ctx, c.Token())
}

// OnForeground refreshes from the server and flushes pending entries. It is
// called when the app returns to the foreground or a balance screen gains focus.
func (c *BalanceContext) OnForeground(ctx context.Context) error {
	if _, err := c.Load(ctx); err != nil {
		return err
	}
	c.syncInBackground(ctx)
	return nil
}

// RunSync syncs periodically until ctx is done.
func (c *BalanceContext) RunSync(ctx context.Context, interval time.Duration) {
	c.syncer.Run(ctx, interval, c.Token, nil)
}

// Subscribe returns a channel that receives the latest balance on every
// change. A slow reader only ever misses intermediate values.
func (c *BalanceContext) Subscribe() (<-chan int64, func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan int64, 1)
	c.subs[id] = ch

	cancel := func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Wait blocks until background syncs started by mutations have finished.
func (c *BalanceContext) Wait() {
	c.background.Wait()
}

func (c *BalanceContext) syncInBackground(ctx context.Context) {
	if c.Token() == "" {
		return
	}

	ctx = context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		c.Sync(ctx)
	}()
}

func (c *BalanceContext) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *BalanceContext) setBalance(balance int64) {
	c.mu.Lock()
	c.balance = balance
	c.mu.Unlock()

	c.notify(balance)
}

func (c *BalanceContext) notify(balance int64) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for _, ch := range c.subs {
		select {
		case ch <- balance:
		default:
			// drop the stale value and keep the latest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- balance:
			default:
			}
		}
	}
}
