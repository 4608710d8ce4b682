package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/facades"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/handlers"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/middlewares"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/repositories"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

const serviceName = "wallet-ledger"

// settlementHealthService is the gRPC health service name reporting the settlement engine.
const settlementHealthService = "wallet.settlement"

// railSecretHeader authenticates rail callbacks.
const railSecretHeader = "X-Rail-Secret"

// @title gw-wallet-ledger API
// @version 1.0.0
// @description Wallet ledger with asynchronous settlement against a payment rail
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	cfg, err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Starting service Version: %s, Commit: %s, Build: %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// config is the whole process configuration.
type config struct {
	AppHost  string
	AppPort  string
	LogLevel string
	Storage  string // postgres or memory

	PgHost         string
	PgPort         int
	PgUser         string
	PgPassword     string
	PgDB           string
	PgMaxOpenConns int
	PgMaxIdleConns int
	LockTimeout    time.Duration

	RedisHost         string // empty disables the balance cache
	RedisPort         int
	RedisDB           int
	RedisPassword     string
	RedisPoolSize     int
	RedisMinIdleConns int
	RedisExp          time.Duration

	KafkaBrokers           []string // empty disables event publishing
	KafkaTransactionsTopic string
	KafkaAlertsTopic       string

	GRPCHost string
	GRPCPort string

	JWTSecret string
	JWTExp    time.Duration

	Settlement services.SettlementConfig

	RailLatency     time.Duration
	RailFailureRate float64
	RailTimeoutRate float64
	RailSecret      string
}

// envReader reads typed environment values and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) str(key, defaultValue string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultValue
}

func (e *envReader) int(key string, defaultValue int) int {
	raw := e.str(key, strconv.Itoa(defaultValue))
	v, err := strconv.Atoi(raw)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
	return v
}

func (e *envReader) float(key string, defaultValue float64) float64 {
	raw := e.str(key, strconv.FormatFloat(defaultValue, 'f', -1, 64))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
	return v
}

func (e *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	raw := e.str(key, defaultValue.String())
	v, err := time.ParseDuration(raw)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
	return v
}

func (e *envReader) seconds(key string, defaultValue int) time.Duration {
	return time.Duration(e.int(key, defaultValue)) * time.Second
}

// parseConfig loads environment variables from a file and returns the configuration.
func parseConfig(path string) (config, error) {
	_ = godotenv.Load(path)

	env := &envReader{}
	cfg := config{
		// Application config
		AppHost:  env.str("APP_HOST", "localhost"),
		AppPort:  env.str("APP_PORT", "8080"),
		LogLevel: env.str("APP_LOG_LEVEL", "info"),
		Storage:  strings.ToLower(env.str("STORAGE", "postgres")),

		// PostgreSQL config
		PgHost:         env.str("POSTGRES_HOST", "localhost"),
		PgPort:         env.int("POSTGRES_PORT", 5432),
		PgUser:         env.str("POSTGRES_USER", "user"),
		PgPassword:     env.str("POSTGRES_PASSWORD", "password"),
		PgDB:           env.str("POSTGRES_DB", "database"),
		PgMaxOpenConns: env.int("POSTGRES_MAX_OPEN_CONNS", 16),
		PgMaxIdleConns: env.int("POSTGRES_MAX_IDLE_CONNS", 8),
		LockTimeout:    env.duration("POSTGRES_LOCK_TIMEOUT", 2*time.Second),

		// Redis config
		RedisHost:         env.str("REDIS_HOST", "localhost"),
		RedisPort:         env.int("REDIS_PORT", 6379),
		RedisDB:           env.int("REDIS_DB", 0),
		RedisPassword:     env.str("REDIS_PASSWORD", ""),
		RedisPoolSize:     env.int("REDIS_POOL_SIZE", 10),
		RedisMinIdleConns: env.int("REDIS_MIN_IDLE_CONNS", 2),
		RedisExp:          env.seconds("REDIS_EXP_SECOND", 60),

		// Kafka config
		KafkaTransactionsTopic: env.str("KAFKA_TRANSACTIONS_TOPIC", "wallet.transactions"),
		KafkaAlertsTopic:       env.str("KAFKA_ALERTS_TOPIC", "wallet.alerts"),

		// gRPC health config
		GRPCHost: env.str("GRPC_HOST", "localhost"),
		GRPCPort: env.str("GRPC_PORT", "50051"),

		// JWT config
		JWTSecret: env.str("JWT_SECRET_KEY", "my_super_secret_key"),
		JWTExp:    env.seconds("JWT_EXP_SECOND", 60),

		// Settlement config
		Settlement: services.SettlementConfig{
			Workers:        env.int("SETTLEMENT_WORKERS", 4),
			RailTimeout:    env.duration("SETTLEMENT_RAIL_TIMEOUT", 5*time.Second),
			RetryBudget:    env.int("SETTLEMENT_RETRY_BUDGET", 5),
			InitialBackoff: env.duration("SETTLEMENT_INITIAL_BACKOFF", 500*time.Millisecond),
			MaxBackoff:     env.duration("SETTLEMENT_MAX_BACKOFF", 30*time.Second),
			PollInterval:   env.duration("SETTLEMENT_POLL_INTERVAL", 10*time.Second),
			SweepBatch:     env.int("SETTLEMENT_SWEEP_BATCH", 100),
		},

		// Simulated rail config
		RailLatency:     env.duration("RAIL_LATENCY", 200*time.Millisecond),
		RailFailureRate: env.float("RAIL_FAILURE_RATE", 0),
		RailTimeoutRate: env.float("RAIL_TIMEOUT_RATE", 0),
		RailSecret:      env.str("RAIL_CALLBACK_SECRET", ""),
	}

	if brokers := env.str("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if env.err != nil {
		return config{}, env.err
	}
	if cfg.Storage != "postgres" && cfg.Storage != "memory" {
		return config{}, fmt.Errorf("STORAGE: unsupported value %q", cfg.Storage)
	}
	return cfg, nil
}

// openLedgerStore connects the configured ledger storage and returns a closer.
func openLedgerStore(ctx context.Context, cfg config) (services.LedgerStore, func(), error) {
	if cfg.Storage == "memory" {
		logger.Log.Warn("Using in-memory ledger storage, balances are lost on restart")
		return repositories.NewMemoryLedgerRepository(cfg.LockTimeout), func() {}, nil
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PgUser, cfg.PgPassword, cfg.PgHost, cfg.PgPort, cfg.PgDB)
	logger.Log.Infow("Connecting to PostgreSQL", "host", cfg.PgHost, "port", cfg.PgPort, "db", cfg.PgDB)

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("PostgreSQL connection error: %w", err)
	}
	db.SetMaxOpenConns(cfg.PgMaxOpenConns)
	db.SetMaxIdleConns(cfg.PgMaxIdleConns)

	if err := repositories.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("PostgreSQL migration failed: %w", err)
	}
	return repositories.NewLedgerRepository(db, cfg.LockTimeout), func() { db.Close() }, nil
}

// openBalanceCache connects Redis. The cache is optional: without it reads go to the store.
func openBalanceCache(ctx context.Context, cfg config) (services.BalanceCache, func()) {
	if cfg.RedisHost == "" {
		logger.Log.Info("Redis not configured, balance cache disabled")
		return nil, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Log.Warnw("Redis unreachable, balance cache disabled", "error", err)
		rdb.Close()
		return nil, func() {}
	}
	return repositories.NewBalanceCacheRepository(rdb, cfg.RedisExp), func() { rdb.Close() }
}

// newKafkaWriter returns an asynchronous writer without a default topic, or nil
// when no brokers are configured.
func newKafkaWriter(cfg config) *kafka.Writer {
	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Log.Errorw("Failed to deliver events to Kafka", "count", len(messages), "error", err)
			}
		},
	}
}

// railCallbacks settles rail webhooks and records their outcome on the
// simulated rail, so later lookups for the reference agree with the callback.
type railCallbacks struct {
	engine *services.SettlementEngine
	rail   *facades.SimulatedRail
}

func (c railCallbacks) HandleCallback(ctx context.Context, reference string, outcome models.Outcome) error {
	if err := c.engine.HandleCallback(ctx, reference, outcome); err != nil {
		return err
	}
	c.rail.Record(reference, outcome)
	return nil
}

// newRouter wires the HTTP adapter.
func newRouter(
	wallet *services.WalletService,
	callbacks handlers.CallbackApplier,
	tokener middlewares.Tokener,
	railSecret string,
	swaggerURL string,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewares.AuthMiddleware(tokener))
			r.Get("/balance", handlers.NewGetBalanceHandler(wallet))
			r.Post("/wallet/deposit", handlers.NewDepositHandler(wallet))
			r.Post("/wallet/withdraw", handlers.NewWithdrawHandler(wallet))
			r.Get("/wallet/transactions", handlers.NewListTransactionsHandler(wallet))
			r.Post("/wallet/transactions/{id}/cancel", handlers.NewCancelHandler(wallet))
		})

		r.With(middlewares.SecretMiddleware(railSecretHeader, railSecret)).
			Post("/rail/callback", handlers.NewRailCallbackHandler(callbacks))
	})

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	return r
}

// watchSettlement mirrors the engine state into the gRPC health server until ctx is done.
func watchSettlement(ctx context.Context, hs *health.Server, engine *services.SettlementEngine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if engine.Running() {
			status = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus(settlementHealthService, status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// run wires storage, cache, events, the settlement engine and both servers,
// and blocks until ctx is cancelled or a shutdown signal arrives.
func run(ctx context.Context, cfg config) error {
	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel, "service", serviceName, "version", buildVersion); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Sync()
	logger.Log.Infof("Logger initialized with level %s", cfg.LogLevel)

	store, closeStore, err := openLedgerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	cache, closeCache := openBalanceCache(ctx, cfg)
	defer closeCache()

	var writer services.KafkaWriter
	if kw := newKafkaWriter(cfg); kw != nil {
		writer = kw
		defer kw.Close()
	} else {
		logger.Log.Info("Kafka brokers not configured, event publishing disabled")
	}
	events := services.NewEventPublisher(writer, cfg.KafkaTransactionsTopic, cfg.KafkaAlertsTopic)

	rail := facades.NewSimulatedRail(cfg.RailLatency, facades.RandomDecision(cfg.RailFailureRate, cfg.RailTimeoutRate))
	engine := services.NewSettlementEngine(store, rail, cache, events, cfg.Settlement)
	wallet := services.NewWalletService(store, cache, engine, events)

	// The engine outlives the HTTP server so that accepted requests still settle.
	engineCtx, stopEngine := context.WithCancel(context.WithoutCancel(ctx))
	defer stopEngine()
	engine.Start(engineCtx)

	// gRPC health server
	grpcAddr := net.JoinHostPort(cfg.GRPCHost, cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		stopEngine()
		engine.Wait()
		return fmt.Errorf("gRPC listen on %s: %w", grpcAddr, err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	go watchSettlement(engineCtx, healthServer, engine, time.Second)

	errChan := make(chan error, 2)
	go func() {
		logger.Log.Infof("gRPC health server listening on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()

	// HTTP server
	tokens := jwt.New(jwt.WithSecretKey(cfg.JWTSecret), jwt.WithExpiration(cfg.JWTExp))
	swaggerURL := fmt.Sprintf("http://%s:%s/swagger/doc.json", cfg.AppHost, cfg.AppPort)
	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.AppHost, cfg.AppPort),
		Handler: newRouter(wallet, railCallbacks{engine: engine, rail: rail}, tokens, cfg.RailSecret, swaggerURL),
	}

	// Graceful shutdown
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		logger.Log.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr = <-errChan:
		logger.Log.Errorw("Server failed, shutting down", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}

	// Unsettled transactions stay PENDING and are reconciled on the next start.
	logger.Log.Infow("Stopping settlement engine", "backlog", engine.Backlog())
	stopEngine()
	if err := engine.Wait(); err != nil {
		logger.Log.Errorw("Settlement engine stopped with error", "error", err)
	}

	healthServer.Shutdown()
	grpcServer.GracefulStop()

	logger.Log.Info("Service stopped gracefully")
	return serveErr
}
