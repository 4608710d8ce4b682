package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/facades"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/repositories"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var configKeys = []string{
	"APP_HOST", "APP_PORT", "APP_LOG_LEVEL", "STORAGE",
	"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
	"POSTGRES_MAX_OPEN_CONNS", "POSTGRES_MAX_IDLE_CONNS", "POSTGRES_LOCK_TIMEOUT",
	"REDIS_HOST", "REDIS_PORT", "REDIS_DB", "REDIS_PASSWORD", "REDIS_POOL_SIZE", "REDIS_MIN_IDLE_CONNS", "REDIS_EXP_SECOND",
	"KAFKA_BROKERS", "KAFKA_TRANSACTIONS_TOPIC", "KAFKA_ALERTS_TOPIC",
	"GRPC_HOST", "GRPC_PORT", "JWT_SECRET_KEY", "JWT_EXP_SECOND",
	"SETTLEMENT_WORKERS", "SETTLEMENT_RAIL_TIMEOUT", "SETTLEMENT_RETRY_BUDGET", "SETTLEMENT_INITIAL_BACKOFF",
	"SETTLEMENT_MAX_BACKOFF", "SETTLEMENT_POLL_INTERVAL", "SETTLEMENT_SWEEP_BATCH",
	"RAIL_LATENCY", "RAIL_FAILURE_RATE", "RAIL_TIMEOUT_RATE", "RAIL_CALLBACK_SECRET",
}

// resetFlags resets the global flag.CommandLine to avoid "flag redefined" panic
func resetFlags() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
}

// resetEnv blanks every variable parseConfig reads; blank values fall back to defaults
func resetEnv(t *testing.T) {
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestParseFlags_Default(t *testing.T) {
	resetFlags()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd"}
	assert.Equal(t, "config.env", parseFlags())
}

func TestParseFlags_Custom(t *testing.T) {
	resetFlags()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "-c", "myconfig.env"}
	assert.Equal(t, "myconfig.env", parseFlags())
}

func TestPrintBuildInfo_Output(t *testing.T) {
	// Capture stdout
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	buildVersion = "v1.0.0"
	buildCommit = "abcd1234"
	buildDate = "2025-09-26"

	printBuildInfo()

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	output := buf.String()
	assert.Contains(t, output, "Version: v1.0.0")
	assert.Contains(t, output, "Commit: abcd1234")
	assert.Contains(t, output, "Build: 2025-09-26")
}

func TestParseConfig_Defaults(t *testing.T) {
	resetEnv(t)

	cfg, err := parseConfig("nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.AppHost)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.Storage)

	assert.Equal(t, 5432, cfg.PgPort)
	assert.Equal(t, 16, cfg.PgMaxOpenConns)
	assert.Equal(t, 8, cfg.PgMaxIdleConns)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)

	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, 6379, cfg.RedisPort)
	assert.Equal(t, time.Minute, cfg.RedisExp)

	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "wallet.transactions", cfg.KafkaTransactionsTopic)
	assert.Equal(t, "wallet.alerts", cfg.KafkaAlertsTopic)

	assert.Equal(t, "50051", cfg.GRPCPort)
	assert.Equal(t, "my_super_secret_key", cfg.JWTSecret)
	assert.Equal(t, time.Minute, cfg.JWTExp)

	assert.Equal(t, services.SettlementConfig{
		Workers:        4,
		RailTimeout:    5 * time.Second,
		RetryBudget:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		PollInterval:   10 * time.Second,
		SweepBatch:     100,
	}, cfg.Settlement)

	assert.Equal(t, 200*time.Millisecond, cfg.RailLatency)
	assert.Zero(t, cfg.RailFailureRate)
	assert.Empty(t, cfg.RailSecret)
}

func TestParseConfig_CustomEnv(t *testing.T) {
	resetEnv(t)
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_LOG_LEVEL", "debug")
	t.Setenv("STORAGE", "MEMORY")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("POSTGRES_LOCK_TIMEOUT", "750ms")
	t.Setenv("REDIS_HOST", "redis.example.com")
	t.Setenv("REDIS_EXP_SECOND", "120")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("GRPC_PORT", "50052")
	t.Setenv("JWT_EXP_SECOND", "300")
	t.Setenv("SETTLEMENT_WORKERS", "8")
	t.Setenv("SETTLEMENT_RETRY_BUDGET", "3")
	t.Setenv("SETTLEMENT_RAIL_TIMEOUT", "2s")
	t.Setenv("RAIL_FAILURE_RATE", "0.25")
	t.Setenv("RAIL_CALLBACK_SECRET", "rail-secret")

	cfg, err := parseConfig("nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.AppHost)
	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, 5433, cfg.PgPort)
	assert.Equal(t, 750*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, "redis.example.com", cfg.RedisHost)
	assert.Equal(t, 2*time.Minute, cfg.RedisExp)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "50052", cfg.GRPCPort)
	assert.Equal(t, 5*time.Minute, cfg.JWTExp)
	assert.Equal(t, 8, cfg.Settlement.Workers)
	assert.Equal(t, 3, cfg.Settlement.RetryBudget)
	assert.Equal(t, 2*time.Second, cfg.Settlement.RailTimeout)
	assert.Equal(t, 0.25, cfg.RailFailureRate)
	assert.Equal(t, "rail-secret", cfg.RailSecret)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"POSTGRES_PORT", "not-a-port"},
		{"SETTLEMENT_RAIL_TIMEOUT", "soon"},
		{"RAIL_FAILURE_RATE", "often"},
		{"STORAGE", "mongodb"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			resetEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := parseConfig("nonexistent.env")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestParseConfig_FromFile(t *testing.T) {
	resetEnv(t)
	for _, key := range configKeys {
		// godotenv.Load never overrides variables that are already set
		os.Unsetenv(key)
	}

	path := t.TempDir() + "/test.env"
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=7070\nSTORAGE=memory\nSETTLEMENT_WORKERS=2\n"), 0o600))

	cfg, err := parseConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.AppPort)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, 2, cfg.Settlement.Workers)
}

type testServer struct {
	handler http.Handler
	tokens  *jwt.JWT
}

func newTestServer(t *testing.T, railSecret string) testServer {
	store := repositories.NewMemoryLedgerRepository(time.Second)
	rail := facades.NewSimulatedRail(0, facades.AlwaysSucceed)
	engine := services.NewSettlementEngine(store, rail, nil, nil, services.SettlementConfig{
		Workers:        2,
		RailTimeout:    time.Second,
		InitialBackoff: 10 * time.Millisecond,
		PollInterval:   50 * time.Millisecond,
	})
	wallet := services.NewWalletService(store, nil, engine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	t.Cleanup(func() {
		cancel()
		engine.Wait()
	})

	tokens := jwt.New(jwt.WithSecretKey("test-secret"), jwt.WithExpiration(time.Minute))
	return testServer{
		handler: newRouter(wallet, engine, tokens, railSecret, "http://localhost/swagger/doc.json"),
		tokens:  tokens,
	}
}

func (s testServer) do(t *testing.T, method, path, token, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouter_EndToEnd(t *testing.T) {
	srv := newTestServer(t, "rail-secret")
	ownerID := uuid.New()
	token, err := srv.tokens.Generate(context.Background(), ownerID)
	require.NoError(t, err)

	// Без токена
	rr := srv.do(t, http.MethodGet, "/api/v1/balance", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/v1/wallet/deposit", token, `{"amount":"1000","external_reference":"dep-1"}`, nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	balanceIs := func(total, available, blocked string) func() bool {
		return func() bool {
			rr := srv.do(t, http.MethodGet, "/api/v1/balance", token, "", nil)
			var resp struct {
				Total     decimal.Decimal `json:"total_balance"`
				Available decimal.Decimal `json:"available_balance"`
				Blocked   decimal.Decimal `json:"blocked_balance"`
			}
			if rr.Code != http.StatusOK || json.Unmarshal(rr.Body.Bytes(), &resp) != nil {
				return false
			}
			return resp.Total.Equal(decimal.RequireFromString(total)) &&
				resp.Available.Equal(decimal.RequireFromString(available)) &&
				resp.Blocked.Equal(decimal.RequireFromString(blocked))
		}
	}
	require.Eventually(t, balanceIs("1000", "1000", "0"), 3*time.Second, 10*time.Millisecond)

	rr = srv.do(t, http.MethodPost, "/api/v1/wallet/withdraw", token, `{"amount":"1500"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/v1/wallet/withdraw", token, `{"amount":"300"}`, nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	require.Eventually(t, balanceIs("700", "700", "0"), 3*time.Second, 10*time.Millisecond)

	// Повторный запрос с тем же ключом возвращает ту же транзакцию
	rr = srv.do(t, http.MethodPost, "/api/v1/wallet/deposit", token, `{"amount":"1000","external_reference":"dep-1"}`, nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	rr = srv.do(t, http.MethodPost, "/api/v1/wallet/deposit", token, `{"amount":"5","external_reference":"dep-1"}`, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/v1/wallet/transactions?limit=1", token, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var page models.TransactionPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, models.KindWithdrawal, page.Transactions[0].Kind)
	assert.NotEmpty(t, page.NextCursor)

	rr = srv.do(t, http.MethodPost, "/api/v1/wallet/transactions/"+page.Transactions[0].ID+"/cancel", token, "", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/v1/rail/callback", "", `{"external_reference":"dep-1","outcome":"FAILURE"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/v1/rail/callback", "", `{"external_reference":"dep-1","outcome":"FAILURE"}`,
		map[string]string{railSecretHeader: "rail-secret"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, balanceIs("700", "700", "0")())
}

func TestRailCallbacks_RecordsOutcome(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryLedgerRepository(time.Second)
	rail := facades.NewSimulatedRail(0, nil)
	engine := services.NewSettlementEngine(store, rail, nil, nil, services.SettlementConfig{})
	wallet := services.NewWalletService(store, nil, engine, nil)
	callbacks := railCallbacks{engine: engine, rail: rail}

	owner := uuid.New()
	txn, err := wallet.RequestDeposit(ctx, owner, decimal.RequireFromString("50"), "cb-ref-1", nil)
	require.NoError(t, err)

	// Неизвестная ссылка не должна попадать в симулятор
	err = callbacks.HandleCallback(ctx, "cb-unknown", models.OutcomeSuccess)
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
	_, found, _ := rail.LookupSettlement(ctx, "cb-unknown")
	assert.False(t, found)

	require.NoError(t, callbacks.HandleCallback(ctx, "cb-ref-1", models.OutcomeFailure))

	outcome, found, err := rail.LookupSettlement(ctx, "cb-ref-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.OutcomeFailure, outcome)

	settled, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, settled.Status)

	err = callbacks.HandleCallback(ctx, "cb-ref-1", models.OutcomeSuccess)
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition)
	outcome, _, _ = rail.LookupSettlement(ctx, "cb-ref-1")
	assert.Equal(t, models.OutcomeFailure, outcome)
}

func TestWatchSettlement(t *testing.T) {
	store := repositories.NewMemoryLedgerRepository(time.Second)
	engine := services.NewSettlementEngine(store, facades.NewSimulatedRail(0, nil), nil, nil, services.SettlementConfig{})
	hs := health.NewServer()

	status := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: settlementHealthService})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN
		}
		return resp.Status
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go watchSettlement(watchCtx, hs, engine, 5*time.Millisecond)

	require.Eventually(t, func() bool { return status() == healthpb.HealthCheckResponse_NOT_SERVING }, time.Second, 5*time.Millisecond)

	engineCtx, stopEngine := context.WithCancel(context.Background())
	engine.Start(engineCtx)
	require.Eventually(t, func() bool { return status() == healthpb.HealthCheckResponse_SERVING }, time.Second, 5*time.Millisecond)

	stopEngine()
	require.NoError(t, engine.Wait())
	require.Eventually(t, func() bool { return status() == healthpb.HealthCheckResponse_NOT_SERVING }, time.Second, 5*time.Millisecond)
}

func TestRun_MemoryStorage(t *testing.T) {
	resetEnv(t)
	t.Setenv("STORAGE", "memory")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "0")
	t.Setenv("GRPC_HOST", "127.0.0.1")
	t.Setenv("GRPC_PORT", "0")
	t.Setenv("APP_LOG_LEVEL", "error")

	cfg, err := parseConfig("nonexistent.env")
	require.NoError(t, err)
	cfg.RedisHost = ""

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg) }()

	select {
	case <-time.After(15 * time.Second):
		t.Fatal("run did not stop")
	case err := <-errCh:
		assert.NoError(t, err)
	}
}

// ------------------ Full integration test ------------------
func TestRun_Success(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	// ------------------ Postgres container ------------------
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		Env:          map[string]string{"POSTGRES_PASSWORD": "password", "POSTGRES_DB": "testdb", "POSTGRES_USER": "user"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: pgReq, Started: true})
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// ------------------ Redis container ------------------
	redisReq := testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: redisReq, Started: true})
	require.NoError(t, err)
	defer redisContainer.Terminate(ctx)

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// ------------------ Run ------------------
	resetEnv(t)
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "8086")
	t.Setenv("GRPC_HOST", "127.0.0.1")
	t.Setenv("GRPC_PORT", "0")
	t.Setenv("APP_LOG_LEVEL", "debug")
	t.Setenv("POSTGRES_HOST", pgHost)
	t.Setenv("POSTGRES_PORT", pgPort.Port())
	t.Setenv("POSTGRES_USER", "user")
	t.Setenv("POSTGRES_PASSWORD", "password")
	t.Setenv("POSTGRES_DB", "testdb")
	t.Setenv("REDIS_HOST", redisHost)
	t.Setenv("REDIS_PORT", redisPort.Port())
	t.Setenv("JWT_SECRET_KEY", "testsecret")

	cfg, err := parseConfig("nonexistent.env")
	require.NoError(t, err)

	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(testCtx, cfg) }()

	tokens := jwt.New(jwt.WithSecretKey("testsecret"))
	token, err := tokens.Generate(ctx, uuid.New())
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s/api/v1", cfg.AppHost, cfg.AppPort)
	require.Eventually(t, func() bool {
		req, _ := http.NewRequest(http.MethodPost, baseURL+"/wallet/deposit", strings.NewReader(`{"amount":"250.75"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusAccepted
	}, 5*time.Second, 100*time.Millisecond)

	select {
	case <-time.After(15 * time.Second):
		t.Fatal("test timed out")
	case err := <-errCh:
		require.NoError(t, err)
		t.Log("run completed successfully")
	}
}
