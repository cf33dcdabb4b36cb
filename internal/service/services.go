package service

import (
	"log/slog"

	"github.com/yuzuhara/seatbook/internal/repository"
	redisrepo "github.com/yuzuhara/seatbook/internal/repository/redis"
	"github.com/yuzuhara/seatbook/internal/service/booking"
	"github.com/yuzuhara/seatbook/internal/service/query"
	"github.com/yuzuhara/seatbook/internal/service/stats"

	redisx "github.com/yuzuhara/seatbook/internal/redis"
)

type Services struct {
	Booking *booking.Service
	Query   *query.Service
	Stats   *stats.Service
}

type Config struct {
	Booking booking.Config
	Query   query.Config
	Stats   stats.Config
}

func NewServices(
	stores repository.Stores,
	atomic repository.Atomic,
	notifier booking.Notifier,
	cache *redisrepo.Cache,
	pubsub *redisx.ReservationsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Booking: booking.New(stores, atomic, notifier, cache, pubsub, limiter, cfg.Booking),
		Query:   query.New(stores, cache, cfg.Query),
		Stats:   stats.New(stores, logger, cfg.Stats),
	}
}
