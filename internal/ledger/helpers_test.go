package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"coin-ledger/internal/logging"
	"coin-ledger/internal/models"
)

const testToken = "token-123"

// MockBackendAPI is a testify mock of the HTTP backend.
type MockBackendAPI struct {
	mock.Mock
}

func (m *MockBackendAPI) FetchBalance(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBackendAPI) SyncTransactions(ctx context.Context, token string, entries []models.LedgerEntry) (*models.SyncResponse, error) {
	args := m.Called(ctx, token, entries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncResponse), args.Error(1)
}

type MockAudioPlayer struct {
	mock.Mock
}

func (m *MockAudioPlayer) Play(ctx context.Context, sound Sound) error {
	args := m.Called(ctx, sound)
	return args.Error(0)
}

type countingHaptics struct {
	mu    sync.Mutex
	count int
}

func (h *countingHaptics) Impact(context.Context) {
	h.mu.Lock()
	h.count++
	h.mu.Unlock()
}

func (h *countingHaptics) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func setupTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "test"), mr
}

type ledgerFixture struct {
	store   *RedisStore
	mr      *miniredis.Miniredis
	api     *MockBackendAPI
	service *Service
	syncer  *Syncer
}

func setupLedger(t *testing.T) *ledgerFixture {
	t.Helper()

	store, mr := setupTestStore(t)
	api := &MockBackendAPI{}
	logger := logging.Discard()

	return &ledgerFixture{
		store:   store,
		mr:      mr,
		api:     api,
		service: NewService(store, api, logger),
		syncer:  NewSyncer(store, api, logger),
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func entryIDs(entries []models.LedgerEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
