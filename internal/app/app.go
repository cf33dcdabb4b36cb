package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yuzuhara/seatbook/internal/config"
	"github.com/yuzuhara/seatbook/internal/notify"
	"github.com/yuzuhara/seatbook/internal/postgres"
	redisx "github.com/yuzuhara/seatbook/internal/redis"
	postgresrepo "github.com/yuzuhara/seatbook/internal/repository/postgres"
	redisrepo "github.com/yuzuhara/seatbook/internal/repository/redis"
	"github.com/yuzuhara/seatbook/internal/service"
	"github.com/yuzuhara/seatbook/internal/service/booking"
	"github.com/yuzuhara/seatbook/internal/service/query"
	"github.com/yuzuhara/seatbook/internal/service/stats"
	httpgin "github.com/yuzuhara/seatbook/internal/transport/http/gin"
	"github.com/yuzuhara/seatbook/internal/uow"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	dispatcher *notify.Dispatcher
	statsSvc   *stats.Service
	pubsub     *redisx.ReservationsPubSub
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

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	atomic := uow.NewUoW(store)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewReservationsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, redisx.RateLimitPrefix(), 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize notifications
	mailer := notify.NewSendGridMailer(cfg.Mail.SendGridAPIKey, cfg.Mail.From, logger)
	dispatcher := notify.NewDispatcher(mailer, logger, notify.DispatcherConfig{})

	// Initialize services
	services := service.NewServices(store, atomic, dispatcher, cache, pubsub, limiter, logger, service.Config{
		Booking: booking.Config{
			CancelCutoff: cfg.Booking.CancelCutoff,
			Location:     cfg.Booking.Location,
		},
		Query:   query.Config{},
		Stats:   stats.Config{Interval: cfg.Stats.Interval},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger, cfg.Auth.JWTSecret)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		dispatcher: dispatcher,
		statsSvc:   services.Stats,
		pubsub:     pubsub,
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

	// Deliver queued notification emails
	g.Go(func() error {
		return ignoreCanceled(a.dispatcher.Run(gCtx))
	})

	// Hourly availability summarizer
	g.Go(func() error {
		return ignoreCanceled(a.statsSvc.Run(gCtx))
	})

	// Refresh summaries for dates touched by committed bookings
	g.Go(func() error {
		return ignoreCanceled(a.pubsub.Subscribe(gCtx, a.statsSvc.RefreshRange))
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
