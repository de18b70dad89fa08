package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirinyoku/kara-go/internal/config"
	"github.com/kirinyoku/kara-go/internal/player"
	"github.com/kirinyoku/kara-go/internal/postgres"
	redisx "github.com/kirinyoku/kara-go/internal/redis"
	postgresrepo "github.com/kirinyoku/kara-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/kara-go/internal/repository/redis"
	"github.com/kirinyoku/kara-go/internal/sequencer"
	"github.com/kirinyoku/kara-go/internal/service"
	"github.com/kirinyoku/kara-go/internal/service/query"
	"github.com/kirinyoku/kara-go/internal/service/visits"
	httpgin "github.com/kirinyoku/kara-go/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	runner     *sequencer.Runner
	screen     *player.Remote
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewVisitsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "rl", 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, service.Config{
		Visits: visits.Config{},
		Query:  query.Config{},
	})

	// Initialize the playback sequencer with its screen bridge
	screen := player.NewRemote()
	runner := sequencer.NewRunner(
		services.Query,
		services.Visits,
		pubsub,
		screen,
		logger,
		sequencer.Config{
			GraceDelay:         cfg.Playback.GraceDelay,
			FallbackWelcomeURL: cfg.Playback.FallbackWelcomeURL,
		},
	)

	// Initialize Gin router
	router := httpgin.NewRouter(
		services,
		idempotencyStore,
		runner,
		screen,
		cfg.Auth.JWTSecret,
		logger,
	)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		runner: runner,
		screen: screen,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Start playback sequencer
	g.Go(func() error {
		a.logger.Info("playback sequencer started")
		if err := a.runner.Run(gCtx); err != nil && err != context.Canceled {
			return fmt.Errorf("playback sequencer failed: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		a.screen.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
