package gamification

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelgru/gamification/app/eventbus"
	gamificationservice "github.com/angelgru/gamification/app/modules/gamification/application"
	gamificationhandlers "github.com/angelgru/gamification/app/modules/gamification/infrastructure/handlers"
	gamificationdb "github.com/angelgru/gamification/app/modules/gamification/infrastructure/repositories"
	gamificationrouter "github.com/angelgru/gamification/app/modules/gamification/infrastructure/router"
	"github.com/angelgru/gamification/app/observability"
	gamificationmetrics "github.com/angelgru/gamification/app/observability/metrics/gamification"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// StreamName is the JetStream stream covering every gamification subject.
const StreamName = "gamification"

// Config holds the module-level settings.
type Config struct {
	Rules  gamificationservice.RuleConfig
	Router gamificationrouter.Config
	Routes gamificationhandlers.RouteConfig
}

// Module represents the gamification module.
type Module struct {
	GamificationService gamificationservice.Service
	GamificationRouter  *gamificationrouter.GamificationRouter
	cancelFunc          context.CancelFunc
	observability       *observability.Observability
}

// NewGamificationModule creates and initializes a new gamification module.
// A nil db selects the in-memory ledger.
func NewGamificationModule(
	ctx context.Context,
	obs *observability.Observability,
	eventBus eventbus.EventBus,
	router *message.Router,
	httpRouter chi.Router,
	lookup gamificationservice.AttemptLookup,
	db *bun.DB,
	cfg Config,
) (*Module, error) {
	logger := obs.Provider.Logger
	tracer := obs.Registry.Tracer

	logger.InfoContext(ctx, "gamification.NewGamificationModule initializing")

	if err := cfg.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gamification rules: %w", err)
	}

	// 1. Initialize Repository
	var repo gamificationdb.Repository
	if db != nil {
		repo = gamificationdb.NewRepository(db)
	} else {
		logger.WarnContext(ctx, "No database configured, using the in-memory ledger")
		repo = gamificationdb.NewMemoryLedger()
	}

	// 2. Initialize Metrics
	var metrics gamificationmetrics.GamificationMetrics
	if obs.Registry.Prometheus != nil {
		metrics = gamificationmetrics.NewPrometheus(obs.Registry.Prometheus)
	} else {
		metrics = gamificationmetrics.NewNoop()
	}

	// 3. Initialize Service
	service := gamificationservice.NewGamificationService(repo, lookup, cfg.Rules, logger, metrics, tracer, db)

	// 4. Initialize Handlers
	handlers := gamificationhandlers.NewGamificationHandlers(service, logger, tracer)

	// 5. Initialize Router
	gamificationRouter := gamificationrouter.NewGamificationRouter(
		logger,
		router,
		eventBus,
		eventBus,
		tracer,
		obs.Registry.Prometheus,
		cfg.Router,
	)

	if err := eventBus.CreateStream(ctx, StreamName, "gamification.>"); err != nil {
		return nil, fmt.Errorf("failed to ensure gamification stream: %w", err)
	}

	// 6. Configure the router with handlers
	if err := gamificationRouter.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure gamification router: %w", err)
	}

	// 7. Mount the query surface
	if httpRouter != nil {
		gamificationhandlers.RegisterRoutes(httpRouter, handlers, cfg.Routes)
	}

	return &Module{
		GamificationService: service,
		GamificationRouter:  gamificationRouter,
		observability:       obs,
	}, nil
}

// Run starts the gamification module.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting gamification module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Gamification module goroutine stopped")
}

// Close shuts down the gamification module.
func (m *Module) Close() error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping gamification module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if m.GamificationRouter != nil {
		if err := m.GamificationRouter.Close(); err != nil {
			logger.Error("Error closing GamificationRouter from module", "error", err)
			return fmt.Errorf("error closing GamificationRouter: %w", err)
		}
	}

	logger.Info("Gamification module stopped")
	return nil
}
