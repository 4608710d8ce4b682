package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// ErrBalanceNotCached is returned when no snapshot is cached for the owner.
var ErrBalanceNotCached = errors.New("balance not found in cache")

// BalanceCacheRepository caches balance snapshots in Redis for the read path.
// Snapshots may lag the ledger by at most the expiration.
type BalanceCacheRepository struct {
	client *redis.Client
	exp    time.Duration // expiration duration for cached balances
}

// NewBalanceCacheRepository creates a new cache repository with the given TTL.
func NewBalanceCacheRepository(client *redis.Client, expiration time.Duration) *BalanceCacheRepository {
	return &BalanceCacheRepository{
		client: client,
		exp:    expiration,
	}
}

func balanceKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("wallet_balance:%s", ownerID)
}

// setBalanceScript stores a snapshot unless the cached one is newer.
// KEYS[1] is the balance hash; ARGV holds the version, the JSON snapshot and the TTL in ms.
var setBalanceScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and current > ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// snapshotVersion orders snapshots of one owner by the time of the last balance
// mutation. It is zero-padded so Redis compares it as a string.
func snapshotVersion(balance models.Balance) string {
	var nanos int64
	if !balance.UpdatedAt.IsZero() {
		nanos = balance.UpdatedAt.UnixNano()
	}
	return fmt.Sprintf("%020d", nanos)
}

// GetBalance fetches the cached balance snapshot of an owner.
func (r *BalanceCacheRepository) GetBalance(ctx context.Context, ownerID uuid.UUID) (models.Balance, error) {
	key := balanceKey(ownerID)

	val, err := r.client.HGet(ctx, key, "data").Result()
	if err != nil {
		logger.Log.Infow(
			"balance cache get",
			"key", key,
			"result", val,
			"error", err,
		)
		if err == redis.Nil {
			return models.Balance{}, ErrBalanceNotCached
		}
		return models.Balance{}, err
	}

	var balance models.Balance
	if err := json.Unmarshal([]byte(val), &balance); err != nil {
		logger.Log.Infow(
			"balance cache decode",
			"key", key,
			"value", val,
			"result", nil,
			"error", err,
		)
		return models.Balance{}, err
	}

	logger.Log.Infow(
		"balance cache get",
		"key", key,
		"value", val,
		"result", balance,
		"error", nil,
	)

	return balance, nil
}

// SetBalance caches a balance snapshot with expiration. A snapshot older than
// the cached one is dropped, so a late writer cannot roll the cache back.
func (r *BalanceCacheRepository) SetBalance(ctx context.Context, balance models.Balance) error {
	key := balanceKey(balance.OwnerID)

	data, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	stored, err := setBalanceScript.Run(ctx, r.client, []string{key},
		snapshotVersion(balance), data, r.exp.Milliseconds()).Int()

	logger.Log.Infow(
		"balance cache set",
		"key", key,
		"balance", balance,
		"result", stored == 1,
		"error", err,
	)

	return err
}
