package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/chatledger/internal/adapter/http/handler"
	"github.com/iho/chatledger/internal/adapter/http/middleware"
	"github.com/iho/chatledger/internal/infrastructure/metrics"
	"github.com/iho/chatledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
// IdempotencyStore, RateLimiter, Metrics and MetricsHandler are optional.
type RouterConfig struct {
	ClientHandler         *handler.ClientHandler
	AccountHandler        *handler.AccountHandler
	PostingHandler        *handler.PostingHandler
	StatementHandler      *handler.StatementHandler
	DirectoryHandler      *handler.DirectoryHandler
	ReconciliationHandler *handler.ReconciliationHandler
	HealthHandler         *handler.HealthHandler

	Logger           zerolog.Logger
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		// Clients
		r.Route("/clients", func(r chi.Router) {
			r.Post("/", cfg.ClientHandler.Ensure)
			r.Get("/", cfg.ClientHandler.List)
			r.Put("/by-chat/{chatRef}/city", cfg.ClientHandler.SetCity)

			r.Route("/{clientID}", func(r chi.Router) {
				r.Get("/", cfg.ClientHandler.Get)
				r.Get("/accounts", cfg.AccountHandler.ListByClient)
				r.Post("/accounts", cfg.AccountHandler.Open)
				r.Get("/accounts/{currency}", cfg.AccountHandler.GetByCurrency)
				r.Post("/postings", cfg.PostingHandler.Create)
				r.Get("/transactions", cfg.StatementHandler.ListByClient)
			})
		})

		// Accounts
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/", cfg.AccountHandler.Get)
			r.Post("/deactivate", cfg.AccountHandler.Deactivate)
			r.Post("/reactivate", cfg.AccountHandler.Reactivate)
			r.Put("/overdraft", cfg.AccountHandler.SetOverdraft)
			r.Get("/transactions", cfg.StatementHandler.ListByAccount)
			r.Get("/balance", cfg.StatementHandler.Balance)
			r.Get("/reconciliation", cfg.ReconciliationHandler.Account)
		})

		r.Get("/balances", cfg.AccountHandler.Balances)
		r.Get("/ledger/reconciliation", cfg.ReconciliationHandler.Ledger)

		// Directory
		r.Get("/categories", cfg.DirectoryHandler.ListCategories)
		r.Post("/categories", cfg.DirectoryHandler.CreateCategory)
		r.Get("/actors", cfg.DirectoryHandler.ListActors)
		r.Post("/actors", cfg.DirectoryHandler.CreateActor)
		r.Get("/managers", cfg.DirectoryHandler.ListManagers)
		r.Post("/managers", cfg.DirectoryHandler.AddManager)
		r.Delete("/managers/{userID}", cfg.DirectoryHandler.RemoveManager)
	})

	return r
}
