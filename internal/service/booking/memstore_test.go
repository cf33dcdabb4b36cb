package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yuzuhara/seatbook/internal/domain"
	"github.com/yuzuhara/seatbook/internal/repository"
)

// memStores is an in-memory repository.Stores used to exercise the booking
// flows without a database. memAtomic gives it snapshot/rollback semantics so
// the all-or-nothing behavior of the real transaction holds.
type memStores struct {
	mu           sync.Mutex
	slots        map[string]domain.Slot
	reservations map[string]domain.Reservation
	history      map[string][]string
	days         map[string]domain.DateAvailability

	// occupyFailAt injects a failure on the nth slot write inside Occupy
	// (1-based). Zero disables the injection.
	occupyFailAt int
	occupyWrites int
}

var errInjected = errors.New("injected failure")

func newMemStores() *memStores {
	return &memStores{
		slots:        make(map[string]domain.Slot),
		reservations: make(map[string]domain.Reservation),
		history:      make(map[string][]string),
		days:         make(map[string]domain.DateAvailability),
	}
}

func (m *memStores) Slots() repository.Slots               { return memSlots{m} }
func (m *memStores) Reservations() repository.Reservations { return memReservations{m} }
func (m *memStores) Users() repository.Users               { return memUsers{m} }
func (m *memStores) Availability() repository.Availability { return memAvailability{m} }

func (m *memStores) snapshot() *memStores {
	s := newMemStores()
	for k, v := range m.slots {
		s.slots[k] = v
	}
	for k, v := range m.reservations {
		s.reservations[k] = v
	}
	for k, v := range m.history {
		s.history[k] = append([]string(nil), v...)
	}
	for k, v := range m.days {
		s.days[k] = v
	}
	return s
}

func (m *memStores) restore(s *memStores) {
	m.slots = s.slots
	m.reservations = s.reservations
	m.history = s.history
	m.days = s.days
}

type memSlots struct{ m *memStores }

func (r memSlots) Reserved(_ context.Context, seat domain.SeatID, hours []time.Time) ([]time.Time, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var taken []time.Time
	for _, h := range hours {
		if s, ok := r.m.slots[domain.SlotID(seat, h)]; ok && s.Status != domain.SlotAvailable {
			taken = append(taken, h)
		}
	}
	return taken, nil
}

func (r memSlots) Occupy(_ context.Context, seat domain.SeatID, hours []time.Time, reservationID, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, h := range hours {
		r.m.occupyWrites++
		if r.m.occupyFailAt > 0 && r.m.occupyWrites == r.m.occupyFailAt {
			return errInjected
		}

		id := domain.SlotID(seat, h)
		if s, ok := r.m.slots[id]; ok && s.Status != domain.SlotAvailable {
			return repository.ErrSlotsUnavailable
		}

		uid, rid := userID, reservationID
		r.m.slots[id] = domain.Slot{
			ID:            id,
			SeatID:        seat,
			StartsAt:      domain.SlotHourStart(h),
			Status:        domain.SlotReserved,
			UserID:        &uid,
			ReservationID: &rid,
		}
	}
	return nil
}

func (r memSlots) Release(_ context.Context, reservationID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for id, s := range r.m.slots {
		if s.ReservationID != nil && *s.ReservationID == reservationID {
			delete(r.m.slots, id)
		}
	}
	return nil
}

func (r memSlots) ForDay(_ context.Context, seat domain.SeatID, day time.Time) ([]domain.Slot, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	key := domain.DateKey(day)
	var out []domain.Slot
	for _, s := range r.m.slots {
		if s.SeatID == seat && domain.DateKey(s.StartsAt) == key {
			out = append(out, s)
		}
	}
	return out, nil
}

type memReservations struct{ m *memStores }

func (r memReservations) Create(_ context.Context, res *domain.Reservation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.reservations[res.ID]; ok {
		return repository.ErrConflict
	}
	r.m.reservations[res.ID] = *res
	return nil
}

func (r memReservations) Get(_ context.Context, id string) (*domain.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	res, ok := r.m.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &res, nil
}

func (r memReservations) ListForUser(_ context.Context, userID string, statuses []domain.ReservationStatus) ([]domain.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []domain.Reservation
	for _, res := range r.m.reservations {
		if res.UserID != userID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, st := range statuses {
				if res.Status == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func (r memReservations) SetStatus(_ context.Context, id string, status domain.ReservationStatus, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	res, ok := r.m.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	res.Status = status
	res.UpdatedAt = at
	r.m.reservations[id] = res
	return nil
}

func (r memReservations) SetPayment(_ context.Context, id string, isPaid bool, method string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	res, ok := r.m.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	res.IsPaid = isPaid
	res.PaymentMethod = &method
	res.UpdatedAt = at
	r.m.reservations[id] = res
	return nil
}

type memUsers struct{ m *memStores }

func (r memUsers) AppendReservation(_ context.Context, userID, reservationID string, _ time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	r.m.history[userID] = append(r.m.history[userID], reservationID)
	return nil
}

type memAvailability struct{ m *memStores }

func (r memAvailability) UpsertDay(_ context.Context, day domain.DateAvailability, _ time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	r.m.days[day.Date] = day
	return nil
}

func (r memAvailability) Range(_ context.Context, fromKey, toKey string) ([]domain.DateAvailability, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []domain.DateAvailability
	for k, v := range r.m.days {
		if k >= fromKey && k <= toKey {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r memAvailability) SeatsReservedOn(_ context.Context, day time.Time) (map[domain.SeatID]bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	taken := make(map[domain.SeatID]bool)
	for _, res := range r.m.reservations {
		if res.Status == domain.ReservationConfirmed &&
			res.StartTime.Before(dayEnd) && res.EndTime.After(dayStart) {
			taken[res.SeatID] = true
		}
	}
	return taken, nil
}

// memAtomic runs the unit against a snapshot boundary: any error restores the
// pre-transaction state, success runs the after-commit hooks.
type memAtomic struct{ m *memStores }

func (a memAtomic) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Stores, after func(hook func(context.Context))) error,
) error {
	a.m.mu.Lock()
	snap := a.m.snapshot()
	a.m.mu.Unlock()

	var hooks []func(context.Context)
	after := func(h func(context.Context)) { hooks = append(hooks, h) }

	if err := fn(ctx, a.m, after); err != nil {
		a.m.mu.Lock()
		a.m.restore(snap)
		a.m.mu.Unlock()
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

// fakeNotifier snapshots the reservations it is handed, so tests can assert
// on the exact record the notifier observed.
type fakeNotifier struct {
	mu        sync.Mutex
	confirmed []domain.Reservation
	cancelled []domain.Reservation
}

func (n *fakeNotifier) ReservationConfirmed(_ context.Context, res *domain.Reservation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, *res)
}

func (n *fakeNotifier) ReservationCancelled(_ context.Context, res *domain.Reservation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, *res)
}
