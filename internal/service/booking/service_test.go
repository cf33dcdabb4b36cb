package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuzuhara/seatbook/internal/domain"
)

func newTestService(t *testing.T) (*Service, *memStores, *fakeNotifier) {
	t.Helper()

	stores := newMemStores()
	notifier := &fakeNotifier{}
	svc := New(stores, memAtomic{stores}, notifier, nil, nil, nil, Config{Location: time.UTC})

	return svc, stores, notifier
}

func intPtr(v int) *int { return &v }

func validInput() CreateInput {
	start := time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC)
	return CreateInput{
		UserID:    "user-1",
		UserName:  "山田太郎",
		Email:     "taro@example.com",
		SeatID:    domain.SeatA,
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Duration:  2,
		Source:    domain.SourceWeb,
	}
}

func TestCreate(t *testing.T) {
	svc, stores, notifier := newTestService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	in := validInput()
	res, err := svc.Create(context.Background(), in, "")
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Len(t, res.Number, 6)
	assert.Equal(t, domain.ReservationConfirmed, res.Status)
	assert.Equal(t, 2000, res.Price, "price comes from the catalog, 1000 yen x 2h")
	assert.False(t, res.IsPaid)

	// Both covered hours are now taken.
	taken, err := stores.Slots().Reserved(context.Background(), domain.SeatA,
		domain.SlotHours(in.StartTime, in.EndTime))
	require.NoError(t, err)
	assert.Len(t, taken, 2)

	// Ledger, history and notification all observed the booking.
	stored, err := stores.Reservations().Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, []string{res.ID}, stores.history["user-1"])
	require.Len(t, notifier.confirmed, 1)
	assert.Equal(t, res.ID, notifier.confirmed[0].ID)
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc, _, _ := newTestService(t)

	first := validInput()
	_, err := svc.Create(context.Background(), first, "")
	require.NoError(t, err)

	t.Run("same range, other user", func(t *testing.T) {
		in := validInput()
		in.UserID = "user-2"
		in.UserName = "佐藤花子"
		in.Email = "hanako@example.com"

		_, err := svc.Create(context.Background(), in, "")
		assert.ErrorIs(t, err, ErrSlotsUnavailable)
	})

	t.Run("partial overlap", func(t *testing.T) {
		in := validInput()
		in.UserID = "user-2"
		in.StartTime = first.StartTime.Add(time.Hour) // 11:00, overlaps hour two
		in.EndTime = in.StartTime.Add(2 * time.Hour)

		_, err := svc.Create(context.Background(), in, "")
		assert.ErrorIs(t, err, ErrSlotsUnavailable)
	})

	t.Run("other seat same hours is fine", func(t *testing.T) {
		in := validInput()
		in.UserID = "user-2"
		in.SeatID = domain.SeatB

		_, err := svc.Create(context.Background(), in, "")
		assert.NoError(t, err)
	})

	t.Run("adjacent range is fine", func(t *testing.T) {
		in := validInput()
		in.UserID = "user-2"
		in.StartTime = first.EndTime // 12:00, no shared hour
		in.EndTime = in.StartTime.Add(2 * time.Hour)

		_, err := svc.Create(context.Background(), in, "")
		assert.NoError(t, err)
	})
}

func TestCreateNormalizesTimezoneOffsets(t *testing.T) {
	svc, _, _ := newTestService(t)

	first := validInput() // 10:00-12:00 UTC
	_, err := svc.Create(context.Background(), first, "")
	require.NoError(t, err)

	// The same two physical hours written at a +02:00 offset must collide
	// with the first booking, not land on fresh slot ids.
	offset := time.FixedZone("UTC+2", 2*60*60)
	in := validInput()
	in.UserID = "user-2"
	in.UserName = "佐藤花子"
	in.Email = "hanako@example.com"
	in.StartTime = first.StartTime.In(offset)
	in.EndTime = first.EndTime.In(offset)

	_, err = svc.Create(context.Background(), in, "")
	assert.ErrorIs(t, err, ErrSlotsUnavailable)

	// And the advisory check agrees regardless of the offset used.
	ok, err := svc.CheckAvailability(context.Background(), first.SeatID,
		first.StartTime.In(offset), first.Duration)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateRollsBackOnPartialFailure(t *testing.T) {
	svc, stores, notifier := newTestService(t)

	// Fail the write for the second of the two covered slots. Nothing of the
	// booking may survive.
	stores.occupyFailAt = 2

	in := validInput()
	_, err := svc.Create(context.Background(), in, "")
	require.Error(t, err)

	assert.Empty(t, stores.reservations)
	assert.Empty(t, stores.history)
	assert.Empty(t, notifier.confirmed)

	taken, err := stores.Slots().Reserved(context.Background(), domain.SeatA,
		domain.SlotHours(in.StartTime, in.EndTime))
	require.NoError(t, err)
	assert.Empty(t, taken, "partially written slots must be rolled back")
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name   string
		mutate func(in *CreateInput)
	}{
		{"missing user id", func(in *CreateInput) { in.UserID = "" }},
		{"missing name", func(in *CreateInput) { in.UserName = "" }},
		{"missing email", func(in *CreateInput) { in.Email = "" }},
		{"unknown seat", func(in *CreateInput) { in.SeatID = "Z" }},
		{"zero duration", func(in *CreateInput) {
			in.Duration = 0
			in.EndTime = in.StartTime
		}},
		{"duration too long", func(in *CreateInput) {
			in.Duration = 9
			in.EndTime = in.StartTime.Add(9 * time.Hour)
		}},
		{"start not hour aligned", func(in *CreateInput) {
			in.StartTime = in.StartTime.Add(30 * time.Minute)
			in.EndTime = in.StartTime.Add(2 * time.Hour)
		}},
		{"end does not match duration", func(in *CreateInput) {
			in.EndTime = in.StartTime.Add(3 * time.Hour)
		}},
		{"before opening", func(in *CreateInput) {
			in.StartTime = time.Date(2025, 3, 17, 8, 0, 0, 0, time.UTC)
			in.EndTime = in.StartTime.Add(2 * time.Hour)
		}},
		{"runs past closing", func(in *CreateInput) {
			in.StartTime = time.Date(2025, 3, 17, 21, 0, 0, 0, time.UTC)
			in.EndTime = in.StartTime.Add(2 * time.Hour)
		}},
		{"price mismatch", func(in *CreateInput) { in.Price = intPtr(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in, "")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	t.Run("matching client price is accepted", func(t *testing.T) {
		in := validInput()
		in.Price = intPtr(2000)

		res, err := svc.Create(context.Background(), in, "")
		require.NoError(t, err)
		assert.Equal(t, 2000, res.Price)
	})

	t.Run("last slot of the day is accepted", func(t *testing.T) {
		in := validInput()
		in.UserID = "user-9"
		in.StartTime = time.Date(2025, 3, 18, 21, 0, 0, 0, time.UTC)
		in.EndTime = in.StartTime.Add(time.Hour)
		in.Duration = 1

		_, err := svc.Create(context.Background(), in, "")
		assert.NoError(t, err)
	})
}

func TestCancel(t *testing.T) {
	svc, stores, notifier := newTestService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	in := validInput()
	res, err := svc.Create(context.Background(), in, "")
	require.NoError(t, err)

	got, err := svc.Cancel(context.Background(), "user-1", res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, got.Status)

	// Slots are free again.
	taken, err := stores.Slots().Reserved(context.Background(), domain.SeatA,
		domain.SlotHours(in.StartTime, in.EndTime))
	require.NoError(t, err)
	assert.Empty(t, taken)

	require.Len(t, notifier.cancelled, 1)
	assert.Equal(t, res.ID, notifier.cancelled[0].ID)
	assert.Equal(t, domain.ReservationCancelled, notifier.cancelled[0].Status,
		"the notifier sees the record as committed")

	// The ledger keeps the record in cancelled state.
	stored, err := stores.Reservations().Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, stored.Status)
}

func TestCancelCutoff(t *testing.T) {
	start := time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{"well before cutoff", start.Add(-48 * time.Hour), nil},
		{"exactly at cutoff", start.Add(-24 * time.Hour), nil},
		{"one second inside cutoff", start.Add(-24*time.Hour + time.Second), ErrTooLateToCancel},
		{"one hour before start", start.Add(-time.Hour), ErrTooLateToCancel},
		{"after start", start.Add(time.Hour), ErrTooLateToCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			svc.now = func() time.Time { return start.Add(-72 * time.Hour) }

			res, err := svc.Create(context.Background(), validInput(), "")
			require.NoError(t, err)

			now := tt.now
			svc.now = func() time.Time { return now }

			_, err = svc.Cancel(context.Background(), "user-1", res.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCancelOwnership(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	res, err := svc.Create(context.Background(), validInput(), "")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), "user-2", res.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestCancelTwice(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	res, err := svc.Create(context.Background(), validInput(), "")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), "user-1", res.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), "user-1", res.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancelNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Cancel(context.Background(), "user-1", "nope")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestCheckAvailabilityRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	in := validInput()
	ctx := context.Background()

	ok, err := svc.CheckAvailability(ctx, in.SeatID, in.StartTime, in.Duration)
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := svc.Create(ctx, in, "")
	require.NoError(t, err)

	ok, err = svc.CheckAvailability(ctx, in.SeatID, in.StartTime, in.Duration)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Cancel(ctx, "user-1", res.ID)
	require.NoError(t, err)

	ok, err = svc.CheckAvailability(ctx, in.SeatID, in.StartTime, in.Duration)
	require.NoError(t, err)
	assert.True(t, ok, "cancelled slots are bookable again")
}

func TestMarkPaid(t *testing.T) {
	svc, stores, _ := newTestService(t)

	res, err := svc.Create(context.Background(), validInput(), "")
	require.NoError(t, err)

	t.Run("unknown method", func(t *testing.T) {
		err := svc.MarkPaid(context.Background(), "user-1", res.ID, "barter")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("not owner", func(t *testing.T) {
		err := svc.MarkPaid(context.Background(), "user-2", res.ID, "cash")
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("records the payment", func(t *testing.T) {
		err := svc.MarkPaid(context.Background(), "user-1", res.ID, "qr")
		require.NoError(t, err)

		stored, err := stores.Reservations().Get(context.Background(), res.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsPaid)
		require.NotNil(t, stored.PaymentMethod)
		assert.Equal(t, "qr", *stored.PaymentMethod)
	})
}

func TestResendConfirmation(t *testing.T) {
	svc, _, notifier := newTestService(t)

	res, err := svc.Create(context.Background(), validInput(), "")
	require.NoError(t, err)
	require.Len(t, notifier.confirmed, 1)

	err = svc.ResendConfirmation(context.Background(), "user-1", res.ID)
	require.NoError(t, err)
	assert.Len(t, notifier.confirmed, 2)

	err = svc.ResendConfirmation(context.Background(), "user-2", res.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	err = svc.ResendConfirmation(context.Background(), "user-1", "nope")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}
