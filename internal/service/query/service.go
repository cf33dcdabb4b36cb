package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuzuhara/seatbook/internal/domain"
	redisx "github.com/yuzuhara/seatbook/internal/redis"
	"github.com/yuzuhara/seatbook/internal/repository"
	redisrepo "github.com/yuzuhara/seatbook/internal/repository/redis"
)

type Config struct {
	CalendarTTL time.Duration
	SlotDayTTL  time.Duration
}

// Service serves the read side: reservation lookups, the user's history and
// the cached calendar / slot views. Everything here is read-only against the
// authoritative stores.
type Service struct {
	stores repository.Stores
	cache  *redisrepo.Cache
	cfg    Config
}

func New(stores repository.Stores, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.CalendarTTL <= 0 {
		cfg.CalendarTTL = 60 * time.Second
	}

	if cfg.SlotDayTTL <= 0 {
		cfg.SlotDayTTL = 15 * time.Second
	}

	return &Service{
		stores: stores,
		cache:  cache,
		cfg:    cfg,
	}
}

// GetReservation returns one reservation, owner-only.
//
// Returns:
//   - error: query.ErrReservationNotFound if the reservation is absent.
//   - error: query.ErrNotOwner when the caller does not own it.
func (s *Service) GetReservation(ctx context.Context, userID, id string) (*domain.Reservation, error) {
	const op = "service.query.GetReservation"

	res, err := s.stores.Reservations().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrReservationNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if res.UserID != userID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotOwner)
	}

	return res, nil
}

// ListUserReservations lists the caller's reservations. With no explicit
// statuses the listing covers confirmed and completed bookings, mirroring the
// history page.
func (s *Service) ListUserReservations(
	ctx context.Context,
	userID string,
	statuses []domain.ReservationStatus,
) ([]domain.Reservation, error) {
	const op = "service.query.ListUserReservations"

	if len(statuses) == 0 {
		statuses = []domain.ReservationStatus{
			domain.ReservationConfirmed,
			domain.ReservationCompleted,
		}
	}

	out, err := s.stores.Reservations().ListForUser(ctx, userID, statuses)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Calendar returns the derived per-day availability summaries for
// [fromKey, toKey], both YYYY-MM-DD. Served from cache when possible; the
// summaries themselves are refreshed by the stats job, so staleness here is
// bounded and harmless.
func (s *Service) Calendar(ctx context.Context, fromKey, toKey string) ([]domain.DateAvailability, error) {
	const op = "service.query.Calendar"

	from, err := time.Parse("2006-01-02", fromKey)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidRange)
	}
	to, err := time.Parse("2006-01-02", toKey)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidRange)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidRange)
	}

	if s.cache == nil {
		out, err := s.stores.Availability().Range(ctx, fromKey, toKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return out, nil
	}

	key := redisx.KeyCalendar(fromKey, toKey)

	out, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.CalendarTTL,
		func(ctx context.Context) ([]domain.DateAvailability, error) {
			return s.stores.Availability().Range(ctx, fromKey, toKey)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// SlotsForDate lists every business-hour slot for one seat on one day.
// Stored rows carry their persisted status; hours without a row are reported
// available, since absence of a slot record means the hour was never taken.
func (s *Service) SlotsForDate(
	ctx context.Context,
	seat domain.SeatID,
	day time.Time,
) ([]domain.Slot, error) {
	const op = "service.query.SlotsForDate"

	if !domain.ValidSeatID(seat) {
		return nil, fmt.Errorf("%s:%w", op, ErrUnknownSeat)
	}

	load := func(ctx context.Context) ([]domain.Slot, error) {
		stored, err := s.stores.Slots().ForDay(ctx, seat, day)
		if err != nil {
			return nil, err
		}

		byID := make(map[string]domain.Slot, len(stored))
		for _, sl := range stored {
			byID[sl.ID] = sl
		}

		out := make([]domain.Slot, 0, domain.ClosingHour-domain.OpeningHour)
		for hour := domain.OpeningHour; hour < domain.ClosingHour; hour++ {
			at := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
			id := domain.SlotID(seat, at)
			if sl, ok := byID[id]; ok {
				out = append(out, sl)
				continue
			}
			out = append(out, domain.Slot{
				ID:       id,
				SeatID:   seat,
				StartsAt: at,
				Status:   domain.SlotAvailable,
			})
		}

		return out, nil
	}

	if s.cache == nil {
		out, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return out, nil
	}

	key := redisx.KeySlotDay(string(seat), domain.DateKey(day))

	out, err := redisrepo.GetOrSetJSON(ctx, s.cache, key, s.cfg.SlotDayTTL, load)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
