package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yuzuhara/seatbook/internal/domain"
	redisx "github.com/yuzuhara/seatbook/internal/redis"
	"github.com/yuzuhara/seatbook/internal/repository"
	redisrepo "github.com/yuzuhara/seatbook/internal/repository/redis"
)

// Notifier receives committed reservations for best-effort notification.
// Implementations must not block; dispatch happens after the transaction.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, res *domain.Reservation)
	ReservationCancelled(ctx context.Context, res *domain.Reservation)
}

type Config struct {
	CancelCutoff time.Duration
	// Location is the business timezone. Incoming timestamps are converted
	// here before validation and slot-id derivation, so the same instant
	// always addresses the same slots no matter which offset the client
	// wrote it in.
	Location *time.Location
}

// Service is the booking engine: it owns the check-then-reserve transaction
// and the cancellation flow. All multi-record writes go through the atomic
// unit; nothing here mutates the stores directly.
type Service struct {
	stores   repository.Stores
	atomic   repository.Atomic
	notifier Notifier
	cache    *redisrepo.Cache
	pubsub   *redisx.ReservationsPubSub
	limiter  *redisrepo.SlidingWindowLimiter
	cfg      Config
	now      func() time.Time
}

func New(
	stores repository.Stores,
	atomic repository.Atomic,
	notifier Notifier,
	cache *redisrepo.Cache,
	pubsub *redisx.ReservationsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Service {
	if cfg.CancelCutoff <= 0 {
		cfg.CancelCutoff = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Service{
		stores:   stores,
		atomic:   atomic,
		notifier: notifier,
		cache:    cache,
		pubsub:   pubsub,
		limiter:  limiter,
		cfg:      cfg,
		now:      time.Now,
	}
}

type CreateInput struct {
	UserID      string
	UserName    string
	Email       string
	PhoneNumber string
	SeatID      domain.SeatID
	StartTime   time.Time
	EndTime     time.Time
	Duration    int
	// Price is what the client believes it will pay. The charge is always
	// recomputed from the seat catalog; a mismatch rejects the request.
	Price  *int
	Source domain.ReservationSource
}

// Create books a contiguous run of hourly slots for one seat.
//
// The pre-check outside the transaction is an optimization only; the
// authoritative availability check runs again inside the atomic unit, so two
// concurrent requests for overlapping slots cannot both commit.
//
// Returns:
//   - *domain.Reservation: the committed reservation.
//   - error: booking.ErrSlotsUnavailable if any covered slot is taken.
//   - error: booking.ErrInvalidInput on validation failure.
//   - error: booking.ErrRateLimited when the caller is throttled.
func (s *Service) Create(ctx context.Context, in CreateInput, rlKey string) (*domain.Reservation, error) {
	const op = "service.booking.Create"

	in.StartTime = in.StartTime.In(s.cfg.Location)
	in.EndTime = in.EndTime.In(s.cfg.Location)

	if err := s.validateCreate(in); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, _, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w", op, ErrRateLimited)
		}
	}

	hours := domain.SlotHours(in.StartTime, in.EndTime)

	// Advisory pre-check: fail fast without opening a transaction.
	taken, err := s.stores.Slots().Reserved(ctx, in.SeatID, hours)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if len(taken) > 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrSlotsUnavailable)
	}

	price, _ := domain.Price(in.SeatID, in.Duration)
	now := s.now()

	source := in.Source
	if source == "" {
		source = domain.SourceWeb
	}

	res := &domain.Reservation{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		UserName:    in.UserName,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		SeatID:      in.SeatID,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Duration:    in.Duration,
		Price:       price,
		Number:      domain.NewReservationNumber(),
		Source:      source,
		Status:      domain.ReservationConfirmed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.atomic.Do(ctx, func(
		ctx context.Context,
		tx repository.Stores,
		after func(hook func(context.Context)),
	) error {
		// The check that counts: re-read under the transaction's conflict
		// detection before writing anything.
		taken, err := tx.Slots().Reserved(ctx, in.SeatID, hours)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		if len(taken) > 0 {
			return fmt.Errorf("%s:%w", op, ErrSlotsUnavailable)
		}

		if err := tx.Reservations().Create(ctx, res); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := tx.Slots().Occupy(ctx, in.SeatID, hours, res.ID, in.UserID); err != nil {
			if errors.Is(err, repository.ErrSlotsUnavailable) {
				return fmt.Errorf("%s:%w", op, ErrSlotsUnavailable)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := tx.Users().AppendReservation(ctx, in.UserID, res.ID, now); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			s.afterChange(ctx, res)
			s.notifier.ReservationConfirmed(ctx, res)
		})

		return nil
	})
	if err != nil {
		// A conflict surviving the storage layer's retries means a concurrent
		// writer took the slots first.
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, ErrSlotsUnavailable)
		}
		return nil, err
	}

	return res, nil
}

// Cancel transitions a confirmed reservation to cancelled and releases its
// slots, subject to the cutoff policy.
//
// Returns:
//   - error: booking.ErrReservationNotFound if the reservation is absent.
//   - error: booking.ErrNotOwner when the caller does not own it.
//   - error: booking.ErrNotCancellable when it is not confirmed anymore.
//   - error: booking.ErrTooLateToCancel inside the cutoff window.
func (s *Service) Cancel(ctx context.Context, userID, reservationID string) (*domain.Reservation, error) {
	const op = "service.booking.Cancel"

	res, err := s.stores.Reservations().Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrReservationNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if res.UserID != userID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotOwner)
	}

	if res.Status != domain.ReservationConfirmed {
		return nil, fmt.Errorf("%s:%w", op, ErrNotCancellable)
	}

	now := s.now()
	if res.StartTime.Sub(now) < s.cfg.CancelCutoff {
		return nil, fmt.Errorf("%s:%w", op, ErrTooLateToCancel)
	}

	err = s.atomic.Do(ctx, func(
		ctx context.Context,
		tx repository.Stores,
		after func(hook func(context.Context)),
	) error {
		// Re-read under the transaction: a concurrent cancel must not
		// silently succeed twice.
		cur, err := tx.Reservations().Get(ctx, reservationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrReservationNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}
		if cur.Status != domain.ReservationConfirmed {
			return fmt.Errorf("%s:%w", op, ErrNotCancellable)
		}

		if err := tx.Reservations().SetStatus(ctx, reservationID, domain.ReservationCancelled, now); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := tx.Slots().Release(ctx, reservationID); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		// The notifier must see the record as committed, not as read.
		res.Status = domain.ReservationCancelled
		res.UpdatedAt = now

		after(func(ctx context.Context) {
			s.afterChange(ctx, res)
			s.notifier.ReservationCancelled(ctx, res)
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// CheckAvailability answers whether a seat is free for the whole range. The
// answer is advisory; booking re-checks inside its transaction.
func (s *Service) CheckAvailability(
	ctx context.Context,
	seat domain.SeatID,
	start time.Time,
	duration int,
) (bool, error) {
	const op = "service.booking.CheckAvailability"

	if !domain.ValidSeatID(seat) {
		return false, fmt.Errorf("%s:%w: unknown seat", op, ErrInvalidInput)
	}
	if duration < domain.MinDurationHours || duration > domain.MaxDurationHours {
		return false, fmt.Errorf("%s:%w: duration out of range", op, ErrInvalidInput)
	}

	start = start.In(s.cfg.Location)
	end := start.Add(time.Duration(duration) * time.Hour)

	taken, err := s.stores.Slots().Reserved(ctx, seat, domain.SlotHours(start, end))
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return len(taken) == 0, nil
}

// ResendConfirmation re-dispatches the confirmation mail for an existing
// reservation. Success means the message is queued, not delivered.
func (s *Service) ResendConfirmation(ctx context.Context, userID, reservationID string) error {
	const op = "service.booking.ResendConfirmation"

	res, err := s.stores.Reservations().Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrReservationNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	if res.UserID != userID {
		return fmt.Errorf("%s:%w", op, ErrNotOwner)
	}

	s.notifier.ReservationConfirmed(ctx, res)

	return nil
}

// MarkPaid records the out-of-band payment for a reservation.
func (s *Service) MarkPaid(ctx context.Context, userID, reservationID string, method string) error {
	const op = "service.booking.MarkPaid"

	switch method {
	case "qr", "cash", "online":
	default:
		return fmt.Errorf("%s:%w: unknown payment method", op, ErrInvalidInput)
	}

	res, err := s.stores.Reservations().Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrReservationNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	if res.UserID != userID {
		return fmt.Errorf("%s:%w", op, ErrNotOwner)
	}

	if err := s.stores.Reservations().SetPayment(ctx, reservationID, true, method, s.now()); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) validateCreate(in CreateInput) error {
	if in.UserID == "" || in.UserName == "" || in.Email == "" {
		return fmt.Errorf("%w: missing required fields", ErrInvalidInput)
	}
	if !domain.ValidSeatID(in.SeatID) {
		return fmt.Errorf("%w: unknown seat %q", ErrInvalidInput, in.SeatID)
	}
	if in.Duration < domain.MinDurationHours || in.Duration > domain.MaxDurationHours {
		return fmt.Errorf("%w: duration must be %d-%d hours", ErrInvalidInput,
			domain.MinDurationHours, domain.MaxDurationHours)
	}
	if !domain.HourAligned(in.StartTime) {
		return fmt.Errorf("%w: start time must be hour-aligned", ErrInvalidInput)
	}
	if !in.EndTime.Equal(in.StartTime.Add(time.Duration(in.Duration) * time.Hour)) {
		return fmt.Errorf("%w: end time does not match duration", ErrInvalidInput)
	}
	if in.StartTime.Hour() < domain.OpeningHour ||
		in.StartTime.Hour()+in.Duration > domain.ClosingHour {
		return fmt.Errorf("%w: outside business hours", ErrInvalidInput)
	}
	if in.Price != nil {
		want, _ := domain.Price(in.SeatID, in.Duration)
		if *in.Price != want {
			return fmt.Errorf("%w: price mismatch", ErrInvalidInput)
		}
	}
	return nil
}

// afterChange invalidates cached slot listings for every day the reservation
// touches and nudges the summary refresher.
func (s *Service) afterChange(ctx context.Context, res *domain.Reservation) {
	days := coveredDays(res.StartTime, res.EndTime)

	if s.cache != nil {
		for _, day := range days {
			_ = s.cache.InvalidateSlotDay(ctx, string(res.SeatID), day)
		}
	}

	if s.pubsub != nil {
		_ = s.pubsub.PublishReservationsChanged(ctx, string(res.SeatID), days[0], days[len(days)-1])
	}
}

func coveredDays(start, end time.Time) []string {
	var out []string
	seen := make(map[string]bool)
	for _, h := range domain.SlotHours(start, end) {
		key := domain.DateKey(h)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
