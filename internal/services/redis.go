package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"coin-ledger/internal/config"
	"coin-ledger/internal/ledger"
	"coin-ledger/internal/models"
)

var ErrAlreadySettled = errors.New("game already settled")

// RedisService holds the authoritative wallets of the reference backend.
type RedisService struct {
	client        *redis.Client
	startingCoins int64
}

func NewRedisService(ctx context.Context, cfg *config.Config) (*RedisService, error) {
	client, err := ledger.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisServiceFromClient(client, cfg.StartingCoins), nil
}

func NewRedisServiceFromClient(client *redis.Client, startingCoins int64) *RedisService {
	return &RedisService{
		client:        client,
		startingCoins: startingCoins,
	}
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) StoreUser(ctx context.Context, user *models.User) error {
	key := fmt.Sprintf(KeyUserInfo, user.ID)

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, TTLUserInfo).Err()
}

func (s *RedisService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	key := fmt.Sprintf(KeyUserInfo, userID)

	data, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return &models.User{ID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

// GetWallet creates the wallet with the starting coins on first access.
func (s *RedisService) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	data, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		wallet := models.NewWallet(userID, s.startingCoins)
		if err := s.SaveWallet(ctx, wallet); err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		return wallet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}

	return &wallet, nil
}

func (s *RedisService) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	key := fmt.Sprintf(KeyWallet, wallet.UserID)

	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}

	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *RedisService) DeleteWallet(ctx context.Context, userID int64) error {
	return s.client.Del(ctx,
		fmt.Sprintf(KeyWallet, userID),
		fmt.Sprintf(KeyAppliedTx, userID),
		fmt.Sprintf(KeySettledGames, userID),
	).Err()
}

// applyTransactionsScript applies a batch in order. An entry id already in
// the applied set is skipped, so a retried sync never double-charges.
// Debits floor the wallet at zero.
var applyTransactionsScript = redis.NewScript(`
	local walletKey = KEYS[1]
	local appliedKey = KEYS[2]
	local userID = tonumber(ARGV[1])
	local starting = tonumber(ARGV[2])
	local ttl = tonumber(ARGV[3])
	local now = ARGV[4]

	local wallet
	local data = redis.call("GET", walletKey)
	if data then
		wallet = cjson.decode(data)
	else
		wallet = {user_id = userID, coins = starting, total_staked = 0, total_won = 0}
	end

	local applied = {}
	for i = 5, #ARGV, 3 do
		local id = ARGV[i]
		local kind = ARGV[i + 1]
		local amount = tonumber(ARGV[i + 2])

		if redis.call("SADD", appliedKey, id) == 1 then
			if kind == "DEBIT" then
				wallet.coins = wallet.coins - amount
				if wallet.coins < 0 then
					wallet.coins = 0
				end
				wallet.total_staked = wallet.total_staked + amount
			else
				wallet.coins = wallet.coins + amount
			end
			applied[#applied + 1] = id
		end
	end

	redis.call("EXPIRE", appliedKey, ttl)
	wallet.updated_at = now
	redis.call("SET", walletKey, cjson.encode(wallet))

	local reply = {wallet.coins}
	for _, id in ipairs(applied) do
		reply[#reply + 1] = id
	end
	return reply
`)

// ApplyTransactions returns the resulting balance and the ids applied by this call.
func (s *RedisService) ApplyTransactions(ctx context.Context, userID int64, entries []models.LedgerEntry) (int64, []string, error) {
	walletKey := fmt.Sprintf(KeyWallet, userID)
	appliedKey := fmt.Sprintf(KeyAppliedTx, userID)

	args := []any{userID, s.startingCoins, int64(TTLAppliedTx.Seconds()), time.Now().UTC().Format(time.RFC3339Nano)}
	for _, e := range entries {
		if e.ID == "" || e.Amount < 0 {
			return 0, nil, fmt.Errorf("entry %q amount %d: %w", e.ID, e.Amount, models.ErrInvalidEntry)
		}
		if e.Kind != models.EntryKindDebit && e.Kind != models.EntryKindCredit {
			return 0, nil, fmt.Errorf("entry %q kind %q: %w", e.ID, e.Kind, models.ErrInvalidEntry)
		}
		args = append(args, e.ID, string(e.Kind), e.Amount)
	}

	reply, err := applyTransactionsScript.Run(ctx, s.client, []string{walletKey, appliedKey}, args...).Slice()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to apply transactions: %w", err)
	}

	return parseBalanceReply(reply)
}

// creditScript pays out a settled game once per game id.
var creditScript = redis.NewScript(`
	local walletKey = KEYS[1]
	local settledKey = KEYS[2]
	local userID = tonumber(ARGV[1])
	local starting = tonumber(ARGV[2])
	local gameID = ARGV[3]
	local amount = tonumber(ARGV[4])
	local now = ARGV[5]

	if redis.call("SADD", settledKey, gameID) == 0 then
		return redis.error_reply("game already settled")
	end

	local wallet
	local data = redis.call("GET", walletKey)
	if data then
		wallet = cjson.decode(data)
	else
		wallet = {user_id = userID, coins = starting, total_staked = 0, total_won = 0}
	end

	wallet.coins = wallet.coins + amount
	wallet.total_won = wallet.total_won + amount
	wallet.updated_at = now

	redis.call("SET", walletKey, cjson.encode(wallet))
	return {wallet.coins}
`)

func (s *RedisService) CreditGame(ctx context.Context, userID int64, gameID string, amount int64) (int64, error) {
	walletKey := fmt.Sprintf(KeyWallet, userID)
	settledKey := fmt.Sprintf(KeySettledGames, userID)

	reply, err := creditScript.Run(ctx, s.client, []string{walletKey, settledKey},
		userID, s.startingCoins, gameID, amount, time.Now().UTC().Format(time.RFC3339Nano)).Slice()
	if err != nil {
		if strings.Contains(err.Error(), ErrAlreadySettled.Error()) {
			return 0, ErrAlreadySettled
		}
		return 0, fmt.Errorf("failed to credit game: %w", err)
	}

	coins, _, err := parseBalanceReply(reply)
	return coins, err
}

func (s *RedisService) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func parseBalanceReply(reply []any) (int64, []string, error) {
	if len(reply) == 0 {
		return 0, nil, errors.New("empty script reply")
	}

	coins, ok := reply[0].(int64)
	if !ok {
		return 0, nil, fmt.Errorf("unexpected balance type %T", reply[0])
	}

	ids := make([]string, 0, len(reply)-1)
	for _, v := range reply[1:] {
		id, ok := v.(string)
		if !ok {
			return 0, nil, fmt.Errorf("unexpected id type %T", v)
		}
		ids = append(ids, id)
	}

	return coins, ids, nil
}
