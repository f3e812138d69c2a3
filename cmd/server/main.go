package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/chatledger/internal/adapter/http"
	"github.com/iho/chatledger/internal/adapter/http/handler"
	"github.com/iho/chatledger/internal/adapter/http/middleware"
	"github.com/iho/chatledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/chatledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/chatledger/internal/adapter/repository/redis"
	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/infrastructure/config"
	"github.com/iho/chatledger/internal/infrastructure/eventpublisher"
	"github.com/iho/chatledger/internal/infrastructure/idgen"
	"github.com/iho/chatledger/internal/infrastructure/logger"
	"github.com/iho/chatledger/internal/infrastructure/metrics"
	"github.com/iho/chatledger/internal/infrastructure/postgres"
	"github.com/iho/chatledger/internal/infrastructure/redis"
	"github.com/iho/chatledger/internal/infrastructure/retry"
	"github.com/iho/chatledger/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// storage is the set of repositories behind the use cases.
type storage struct {
	txManager    usecase.TransactionManager
	clients      usecase.ClientRepository
	accounts     usecase.AccountRepository
	transactions usecase.TransactionRepository
	outbox       usecase.OutboxRepository
	references   usecase.ReferenceRepository
	managers     usecase.ManagerRepository
	check        handler.Check
	close        func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &storage{
			txManager:    memory.NewTxManager(store),
			clients:      memory.NewClientRepository(store),
			accounts:     memory.NewAccountRepository(store),
			transactions: memory.NewTransactionRepository(store),
			outbox:       memory.NewOutboxRepository(store),
			references:   memory.NewReferenceRepository(store),
			managers:     memory.NewManagerRepository(store),
			check:        handler.Check{Name: "storage", Pinger: store},
			close:        func() {},
		}, nil
	}

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, log); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	log.Info().Msg("connected to postgres")

	return &storage{
		txManager:    postgresRepo.NewTxManager(pool),
		clients:      postgresRepo.NewClientRepository(pool),
		accounts:     postgresRepo.NewAccountRepository(pool),
		transactions: postgresRepo.NewTransactionRepository(pool),
		outbox:       postgresRepo.NewOutboxRepository(pool),
		references:   postgresRepo.NewReferenceRepository(pool),
		managers:     postgresRepo.NewManagerRepository(pool),
		check:        handler.Check{Name: "postgres", Pinger: pool},
		close:        pool.Close,
	}, nil
}

// app is the wired service.
type app struct {
	router      http.Handler
	publisher   *eventpublisher.EventPublisher
	rateLimiter *middleware.RateLimiter
	close       func()
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, registry *prometheus.Registry) (*app, error) {
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	closers := []func(){store.close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	m := metrics.New(registry)
	checks := []handler.Check{store.check}

	var (
		cache            usecase.Cache
		idempotencyStore usecase.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { closeRedis(client, log) })
		log.Info().Msg("connected to redis")

		cache = redisRepo.NewCache(client).WithMetrics(m)
		idempotencyStore = redisRepo.NewIdempotencyStore(client).WithMetrics(m)
		checks = append(checks, handler.Check{Name: "redis", Pinger: redis.NewPinger(client)})
	} else {
		log.Info().Msg("redis disabled, manager cache and response replay are off")
	}

	idGen := idgen.NewULIDGenerator()
	retrier := retry.NewRetrier(cfg.MaxRetries, log)
	policy := domain.NewOverdraftPolicy(cfg.AllowNegativeDefault, cfg.NoOverdraftCurrencies)

	ledgerUC := usecase.NewLedgerUseCase(store.txManager, store.accounts, store.transactions, store.outbox, retrier, idGen, m).
		WithTransactionTimeout(cfg.TransactionTimeout)
	accountUC := usecase.NewAccountUseCase(store.txManager, store.clients, store.accounts, store.outbox, idGen, policy, m)
	clientUC := usecase.NewClientUseCase(store.clients)
	statementUC := usecase.NewStatementUseCase(store.accounts, store.clients, store.transactions)
	reconciliationUC := usecase.NewReconciliationUseCase(store.accounts, store.transactions, m)
	referenceUC := usecase.NewReferenceUseCase(store.references)
	managerUC := usecase.NewManagerUseCase(store.managers, cache, cfg.ManagerCacheTTL)

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ClientHandler:         handler.NewClientHandler(clientUC),
		AccountHandler:        handler.NewAccountHandler(accountUC),
		PostingHandler:        handler.NewPostingHandler(ledgerUC),
		StatementHandler:      handler.NewStatementHandler(statementUC),
		DirectoryHandler:      handler.NewDirectoryHandler(referenceUC, managerUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliationUC),
		HealthHandler:         handler.NewHealthHandler(checks...),
		Logger:                log,
		IdempotencyStore:      idempotencyStore,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RateLimiter:           rateLimiter,
		Metrics:               m,
		MetricsHandler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	var publisher *eventpublisher.EventPublisher
	if cfg.OutboxEnabled {
		publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: store.outbox,
			Publisher:  eventpublisher.NewLogPublisher(log),
			Logger:     log,
			Metrics:    m,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxInterval,
			Retention:  cfg.OutboxRetention,
		})
	}

	return &app{
		router:      router,
		publisher:   publisher,
		rateLimiter: rateLimiter,
		close:       closeAll,
	}, nil
}

func closeRedis(client *goredis.Client, log zerolog.Logger) {
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis client")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, log, registry)
	if err != nil {
		return err
	}
	defer a.close()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if a.publisher != nil {
		go func() {
			if err := a.publisher.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("event publisher stopped")
			}
		}()
	}
	if a.rateLimiter != nil {
		go a.rateLimiter.StartCleanup(workerCtx, 10*time.Minute, time.Hour)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      a.router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
