package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/angelgru/gamification/app/eventbus"
	"github.com/angelgru/gamification/app/modules/gamification"
	gamificationservice "github.com/angelgru/gamification/app/modules/gamification/application"
	"github.com/angelgru/gamification/app/modules/gamification/infrastructure/adapters"
	gamificationhandlers "github.com/angelgru/gamification/app/modules/gamification/infrastructure/handlers"
	gamificationrouter "github.com/angelgru/gamification/app/modules/gamification/infrastructure/router"
	"github.com/angelgru/gamification/app/observability"
	"github.com/angelgru/gamification/app/observability/attr"
	"github.com/angelgru/gamification/config"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App holds every long-lived component of the process.
type App struct {
	Config             *config.Config
	Observability      *observability.Observability
	DB                 *bun.DB
	EventBus           eventbus.EventBus
	Router             *message.Router
	HTTPServer         *http.Server
	MetricsServer      *http.Server
	GamificationModule *gamification.Module
}

// NewApp wires the application from cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	// 1. Observability
	obs, err := observability.Init(ctx, observability.Config{
		ServiceName:     "gamification",
		Environment:     cfg.Observability.Environment,
		Version:         "1.0.0",
		LogLevel:        cfg.Observability.LogLevel,
		OTLPEndpoint:    cfg.Observability.OTLPEndpoint,
		TraceSampleRate: cfg.Observability.TraceSampleRate,
		MetricsAddress:  cfg.Observability.MetricsAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	app.Observability = obs
	logger := obs.Provider.Logger

	// 2. Storage
	if cfg.Storage.Driver == config.StorageDriverPostgres {
		db, err := initDB(ctx, cfg.Postgres.DSN)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.DB = db
		logger.InfoContext(ctx, "Connected to Postgres")
	}

	// 3. Event bus
	eventBus, err := eventbus.NewEventBus(ctx, eventbus.Config{
		URL:        cfg.NATS.URL,
		JetStream:  cfg.NATS.JetStream,
		QueueGroup: cfg.NATS.QueueGroup,
	}, logger)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	app.EventBus = eventBus

	// 4. Watermill router
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: shutdownTimeout}, watermill.NewSlogLogger(logger))
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to create Watermill router: %w", err)
	}
	router.AddMiddleware(middleware.CorrelationID, middleware.Recoverer)
	app.Router = router

	// 5. Attempt lookup
	var lookup gamificationservice.AttemptLookup
	switch cfg.AttemptLookup.Transport {
	case config.LookupTransportHTTP:
		lookup = adapters.NewHTTPAttemptLookup(cfg.AttemptLookup.BaseURL, &http.Client{}, cfg.AttemptLookup.Timeout)
	default:
		lookup = adapters.NewNATSAttemptLookup(eventBus.Conn(), cfg.AttemptLookup.Subject, cfg.AttemptLookup.Timeout)
	}
	logger.InfoContext(ctx, "Attempt lookup configured", attr.String("transport", cfg.AttemptLookup.Transport))

	// 6. Gamification module
	httpRouter := chi.NewRouter()
	httpRouter.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)

	module, err := gamification.NewGamificationModule(ctx, obs, eventBus, router, httpRouter, lookup, app.DB, gamification.Config{
		Rules: gamificationservice.RuleConfig{
			ScorePerEvent:   cfg.Gamification.ScorePerEvent,
			BronzeThreshold: cfg.Gamification.BronzeThreshold,
			SilverThreshold: cfg.Gamification.SilverThreshold,
			GoldThreshold:   cfg.Gamification.GoldThreshold,
			SpecialValue:    cfg.Gamification.SpecialValue,
			LeaderboardSize: cfg.Gamification.LeaderboardSize,
		},
		Router: gamificationrouter.Config{MaxRetries: cfg.Transport.MaxRetries},
		Routes: gamificationhandlers.RouteConfig{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			RateLimit:      cfg.HTTP.RateLimit,
			RateBurst:      cfg.HTTP.RateBurst,
		},
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to initialize gamification module: %w", err)
	}
	app.GamificationModule = module

	app.HTTPServer = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           httpRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", obs.MetricsHandler())
	app.MetricsServer = &http.Server{
		Addr:              cfg.Observability.MetricsAddress,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.InfoContext(ctx, "Application initialized")
	return app, nil
}

func initDB(ctx context.Context, dsn string) (*bun.DB, error) {
	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(pgdb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return db, nil
}

// Run starts the router, the HTTP server and the metrics server and blocks
// until ctx is cancelled or one of them fails.
func (app *App) Run(ctx context.Context) error {
	logger := app.Observability.Provider.Logger
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.GamificationModule.Run(ctx, nil)
		return nil
	})

	g.Go(func() error {
		if err := app.Router.Run(ctx); err != nil {
			return fmt.Errorf("watermill router stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.InfoContext(ctx, "HTTP server listening", attr.String("address", app.HTTPServer.Addr))
		if err := app.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	})

	if app.Config.Observability.MetricsAddress != "" {
		g.Go(func() error {
			logger.InfoContext(ctx, "Metrics server listening", attr.String("address", app.MetricsServer.Addr))
			if err := app.MetricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server stopped: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			app.HTTPServer.Shutdown(shutdownCtx),
			app.MetricsServer.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}

// Close releases every component in reverse construction order.
func (app *App) Close() error {
	var errs []error

	if app.GamificationModule != nil {
		errs = append(errs, app.GamificationModule.Close())
	}
	if app.Router != nil {
		errs = append(errs, app.Router.Close())
	}
	if app.EventBus != nil {
		errs = append(errs, app.EventBus.Close())
	}
	if app.DB != nil {
		errs = append(errs, app.DB.Close())
	}
	if app.Observability != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs = append(errs, app.Observability.Shutdown(shutdownCtx))
	}

	return errors.Join(errs...)
}
