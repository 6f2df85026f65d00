package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"coin-ledger/internal/config"
	"coin-ledger/internal/models"
)

const (
	KeyBalance = "ledger:%s:balance"
	KeyLog     = "ledger:%s:log"

	maxUpdateRetries = 5
)

var errLogContention = errors.New("log changed concurrently too many times")

// Store is the durable local state of the ledger.
type Store interface {
	ReadBalance(ctx context.Context) (int64, error)
	WriteBalance(ctx context.Context, value int64) error
	ReadLog(ctx context.Context) ([]models.LedgerEntry, error)
	WriteLog(ctx context.Context, entries []models.LedgerEntry) error
	// AppendEntry puts entry at the head of the log and stores balance in one step.
	AppendEntry(ctx context.Context, entry models.LedgerEntry, balance int64) error
	// UpdateLog rewrites the log in place. fn must not reorder or drop entries.
	UpdateLog(ctx context.Context, fn func([]models.LedgerEntry) ([]models.LedgerEntry, error)) error
}

// RedisStore keeps one profile's balance and transaction log in redis.
type RedisStore struct {
	client  *redis.Client
	profile string
}

func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func NewRedisStore(client *redis.Client, profile string) *RedisStore {
	return &RedisStore{
		client:  client,
		profile: profile,
	}
}

func (s *RedisStore) balanceKey() string {
	return fmt.Sprintf(KeyBalance, s.profile)
}

func (s *RedisStore) logKey() string {
	return fmt.Sprintf(KeyLog, s.profile)
}

// ReadBalance returns 0 when no balance was ever written.
func (s *RedisStore) ReadBalance(ctx context.Context) (int64, error) {
	raw, err := s.client.Get(ctx, s.balanceKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, &models.StorageError{Op: "read balance", Err: err}
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &models.StorageError{Op: "read balance", Err: fmt.Errorf("corrupt value %q: %w", raw, err)}
	}

	return value, nil
}

func (s *RedisStore) WriteBalance(ctx context.Context, value int64) error {
	if value < 0 {
		return &models.StorageError{Op: "write balance", Err: fmt.Errorf("negative balance %d", value)}
	}
	if err := s.client.Set(ctx, s.balanceKey(), strconv.FormatInt(value, 10), 0).Err(); err != nil {
		return &models.StorageError{Op: "write balance", Err: err}
	}
	return nil
}

func (s *RedisStore) ReadLog(ctx context.Context) ([]models.LedgerEntry, error) {
	entries, err := decodeLog(s.client.Get(ctx, s.logKey()))
	if err != nil {
		return nil, &models.StorageError{Op: "read log", Err: err}
	}
	return entries, nil
}

func (s *RedisStore) WriteLog(ctx context.Context, entries []models.LedgerEntry) error {
	data, err := json.Marshal(models.CapLog(entries))
	if err != nil {
		return &models.StorageError{Op: "write log", Err: err}
	}
	if err := s.client.Set(ctx, s.logKey(), data, 0).Err(); err != nil {
		return &models.StorageError{Op: "write log", Err: err}
	}
	return nil
}

func (s *RedisStore) AppendEntry(ctx context.Context, entry models.LedgerEntry, balance int64) error {
	if balance < 0 {
		return &models.StorageError{Op: "append entry", Err: fmt.Errorf("negative balance %d", balance)}
	}

	return s.watchLog(ctx, "append entry", func(entries []models.LedgerEntry) ([]models.LedgerEntry, error) {
		return models.PrependEntry(entries, entry), nil
	}, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, s.balanceKey(), strconv.FormatInt(balance, 10), 0)
	})
}

func (s *RedisStore) UpdateLog(ctx context.Context, fn func([]models.LedgerEntry) ([]models.LedgerEntry, error)) error {
	return s.watchLog(ctx, "update log", fn, nil)
}

// watchLog runs a read-modify-write of the log under WATCH so a concurrent
// writer forces a retry instead of a lost update. Errors returned by fn are
// passed through as is.
func (s *RedisStore) watchLog(
	ctx context.Context,
	op string,
	fn func([]models.LedgerEntry) ([]models.LedgerEntry, error),
	extra func(redis.Pipeliner),
) error {
	key := s.logKey()
	var fnErr error

	txf := func(tx *redis.Tx) error {
		entries, err := decodeLog(tx.Get(ctx, key))
		if err != nil {
			return err
		}

		updated, err := fn(entries)
		if err != nil {
			fnErr = err
			return err
		}

		data, err := json.Marshal(models.CapLog(updated))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if extra != nil {
				extra(pipe)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if fnErr != nil {
			return fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return &models.StorageError{Op: op, Err: err}
	}

	return &models.StorageError{Op: op, Err: errLogContention}
}

func decodeLog(cmd *redis.StringCmd) ([]models.LedgerEntry, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.LedgerEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []models.LedgerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal log: %w", err)
	}
	return entries, nil
}

// Clear removes the profile's local state, used on logout.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.balanceKey(), s.logKey()).Err(); err != nil {
		return &models.StorageError{Op: "clear", Err: err}
	}
	return nil
}
