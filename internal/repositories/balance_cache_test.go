package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestBalanceCacheRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}
	ctx := context.Background()

	// Start Redis container
	req := testcontainers.ContainerRequest{
		Image:        "redis:7.0-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer redisC.Terminate(ctx)

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	})
	defer rdb.Close()

	require.NoError(t, rdb.Ping(ctx).Err())

	repo := NewBalanceCacheRepository(rdb, 2*time.Second)

	t.Run("Set and Get balance", func(t *testing.T) {
		balance := models.Balance{
			OwnerID:          uuid.New(),
			TotalBalance:     decimal.RequireFromString("1000.50"),
			AvailableBalance: decimal.RequireFromString("500.25"),
			BlockedBalance:   decimal.RequireFromString("500.25"),
			UpdatedAt:        time.Now().UTC().Truncate(time.Millisecond),
		}

		require.NoError(t, repo.SetBalance(ctx, balance))

		got, err := repo.GetBalance(ctx, balance.OwnerID)
		require.NoError(t, err)
		assert.Equal(t, balance.OwnerID, got.OwnerID)
		assert.True(t, balance.TotalBalance.Equal(got.TotalBalance))
		assert.True(t, balance.AvailableBalance.Equal(got.AvailableBalance))
		assert.True(t, balance.BlockedBalance.Equal(got.BlockedBalance))
		assert.True(t, balance.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("Get missing key returns ErrBalanceNotCached", func(t *testing.T) {
		_, err := repo.GetBalance(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrBalanceNotCached)
	})

	t.Run("Cached value expires", func(t *testing.T) {
		balance := models.ZeroBalance(uuid.New())
		require.NoError(t, repo.SetBalance(ctx, balance))

		// Wait for expiration (2s)
		time.Sleep(3 * time.Second)

		_, err := repo.GetBalance(ctx, balance.OwnerID)
		assert.ErrorIs(t, err, ErrBalanceNotCached)
	})

	t.Run("Older snapshot does not overwrite newer", func(t *testing.T) {
		ownerID := uuid.New()
		now := time.Now().UTC().Truncate(time.Millisecond)

		newer := models.ZeroBalance(ownerID)
		newer.TotalBalance = decimal.RequireFromString("300")
		newer.AvailableBalance = decimal.RequireFromString("300")
		newer.UpdatedAt = now

		older := models.ZeroBalance(ownerID)
		older.TotalBalance = decimal.RequireFromString("100")
		older.AvailableBalance = decimal.RequireFromString("100")
		older.UpdatedAt = now.Add(-time.Second)

		require.NoError(t, repo.SetBalance(ctx, newer))
		// Запоздалая запись со старым снимком игнорируется
		require.NoError(t, repo.SetBalance(ctx, older))

		got, err := repo.GetBalance(ctx, ownerID)
		require.NoError(t, err)
		assert.True(t, newer.TotalBalance.Equal(got.TotalBalance), "got %s", got.TotalBalance)

		newest := newer
		newest.TotalBalance = decimal.RequireFromString("250")
		newest.AvailableBalance = decimal.RequireFromString("250")
		newest.UpdatedAt = now.Add(time.Second)
		require.NoError(t, repo.SetBalance(ctx, newest))

		got, err = repo.GetBalance(ctx, ownerID)
		require.NoError(t, err)
		assert.True(t, newest.TotalBalance.Equal(got.TotalBalance), "got %s", got.TotalBalance)
	})

	t.Run("Zero balance is replaced by any mutation", func(t *testing.T) {
		ownerID := uuid.New()
		require.NoError(t, repo.SetBalance(ctx, models.ZeroBalance(ownerID)))

		funded := models.ZeroBalance(ownerID)
		funded.TotalBalance = decimal.RequireFromString("10")
		funded.AvailableBalance = decimal.RequireFromString("10")
		funded.UpdatedAt = time.Now()
		require.NoError(t, repo.SetBalance(ctx, funded))

		got, err := repo.GetBalance(ctx, ownerID)
		require.NoError(t, err)
		assert.True(t, funded.TotalBalance.Equal(got.TotalBalance))
	})

	t.Run("Corrupted value returns error", func(t *testing.T) {
		ownerID := uuid.New()
		require.NoError(t, rdb.HSet(ctx, balanceKey(ownerID), "version", "0", "data", "not-json").Err())

		_, err := repo.GetBalance(ctx, ownerID)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrBalanceNotCached)
	})
}
