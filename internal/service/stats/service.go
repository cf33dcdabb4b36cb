package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuzuhara/seatbook/internal/domain"
	"github.com/yuzuhara/seatbook/internal/repository"
)

type Config struct {
	Interval     time.Duration
	WindowMonths int
}

// Service recomputes the coarse per-day availability summaries the calendar
// shows. It only reads the ledger and writes its own summary rows, so it can
// never conflict with booking transactions.
type Service struct {
	stores repository.Stores
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

func New(stores repository.Stores, logger *slog.Logger, cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	if cfg.WindowMonths <= 0 {
		cfg.WindowMonths = 3
	}

	return &Service{
		stores: stores,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run regenerates the rolling window once immediately and then on every tick
// until ctx is cancelled. Errors are logged and never propagated; a missed
// rollup is repaired by the next one.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Generate(ctx); err != nil {
		s.logger.Error("availability rollup failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Generate(ctx); err != nil {
				s.logger.Error("availability rollup failed", "error", err)
			}
		}
	}
}

// Generate overwrites the summary for every date in the rolling forward
// window, one day at a time.
func (s *Service) Generate(ctx context.Context) error {
	const op = "service.stats.Generate"

	now := s.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := day.AddDate(0, s.cfg.WindowMonths, 0)

	for ; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := s.refreshDay(ctx, day); err != nil {
			return fmt.Errorf("%s: %s: %w", op, domain.DateKey(day), err)
		}
	}

	return nil
}

// RefreshRange recomputes just the dates in [fromKey, toKey]. Used by the
// pub/sub listener so a fresh booking shows up on the calendar before the
// next scheduled rollup.
func (s *Service) RefreshRange(ctx context.Context, fromKey, toKey string) {
	const op = "service.stats.RefreshRange"

	from, err := time.Parse("2006-01-02", fromKey)
	if err != nil {
		s.logger.Warn("bad refresh range", "from", fromKey, "to", toKey)
		return
	}
	to, err := time.Parse("2006-01-02", toKey)
	if err != nil || to.Before(from) {
		s.logger.Warn("bad refresh range", "from", fromKey, "to", toKey)
		return
	}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := s.refreshDay(ctx, day); err != nil {
			s.logger.Error("summary refresh failed",
				"op", op, "date", domain.DateKey(day), "error", err)
		}
	}
}

func (s *Service) refreshDay(ctx context.Context, day time.Time) error {
	taken, err := s.stores.Availability().SeatsReservedOn(ctx, day)
	if err != nil {
		return err
	}

	available := len(domain.Seats()) - len(taken)

	return s.stores.Availability().UpsertDay(ctx, domain.DateAvailability{
		Date:           domain.DateKey(day),
		Status:         domain.DateStatusFor(available),
		AvailableSeats: available,
	}, s.now())
}
