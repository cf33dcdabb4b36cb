package repository

import (
	"context"
	"time"

	"github.com/yuzuhara/seatbook/internal/domain"
)

// Slots is the slot store: the durable mapping from (seat, hour) to
// occupancy. Mutating calls never commit on their own; the caller supplies the
// transactional context through Atomic.
type Slots interface {
	// Reserved returns the hour starts within hours that are already taken
	// (reserved, occupied or under maintenance) for the seat.
	Reserved(ctx context.Context, seat domain.SeatID, hours []time.Time) ([]time.Time, error)
	// Occupy marks every hour as reserved for the reservation. It fails with
	// ErrSlotsUnavailable if any hour is not free.
	Occupy(ctx context.Context, seat domain.SeatID, hours []time.Time, reservationID, userID string) error
	// Release resets every slot held by the reservation back to available.
	// Releasing a reservation that holds no slots is a no-op.
	Release(ctx context.Context, reservationID string) error
	// ForDay lists the stored slot rows for one seat on one calendar day.
	// Hours with no row are available by definition and are not returned.
	ForDay(ctx context.Context, seat domain.SeatID, day time.Time) ([]domain.Slot, error)
}

// Reservations is the reservation ledger.
type Reservations interface {
	Create(ctx context.Context, r *domain.Reservation) error
	Get(ctx context.Context, id string) (*domain.Reservation, error)
	ListForUser(ctx context.Context, userID string, statuses []domain.ReservationStatus) ([]domain.Reservation, error)
	SetStatus(ctx context.Context, id string, status domain.ReservationStatus, at time.Time) error
	SetPayment(ctx context.Context, id string, isPaid bool, method string, at time.Time) error
}

// Users covers the per-user reservation history.
type Users interface {
	// AppendReservation appends the reservation id to the user's history and
	// bumps the counter. A missing user row is not an error; the update is
	// skipped.
	AppendReservation(ctx context.Context, userID, reservationID string, at time.Time) error
}

// Availability holds the derived per-day calendar summaries.
type Availability interface {
	UpsertDay(ctx context.Context, day domain.DateAvailability, at time.Time) error
	Range(ctx context.Context, fromKey, toKey string) ([]domain.DateAvailability, error)
	// SeatsReservedOn returns the seats having at least one confirmed
	// reservation overlapping the given calendar day.
	SeatsReservedOn(ctx context.Context, day time.Time) (map[domain.SeatID]bool, error)
}

// Stores bundles the repositories, either pool-backed or bound to one
// transaction.
type Stores interface {
	Slots() Slots
	Reservations() Reservations
	Users() Users
	Availability() Availability
}

// Atomic runs fn inside a single atomic unit with read-your-writes
// consistency and conflict detection. Hooks registered through after run only
// once the unit has committed.
type Atomic interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Stores, after func(hook func(context.Context))) error) error
}
