package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuzuhara/seatbook/internal/domain"
)

type fakeMailer struct {
	mu       sync.Mutex
	sent     []Email
	failures int // fail this many sends before succeeding
	calls    int
}

func (m *fakeMailer) Send(_ context.Context, msg Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.calls <= m.failures {
		return errors.New("smtp says no")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testReservation() *domain.Reservation {
	return &domain.Reservation{
		ID:        "res-1",
		UserName:  "山田太郎",
		Email:     "taro@example.com",
		SeatID:    domain.SeatA,
		StartTime: time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC),
		Price:     2000,
		Number:    "AB12CD",
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatcherDelivers(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(mailer, discard(), DispatcherConfig{Backoff: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	d.ReservationConfirmed(ctx, testReservation())

	waitFor(t, func() bool { return mailer.sentCount() == 1 })

	msg := mailer.sent[0]
	assert.Equal(t, "taro@example.com", msg.To)
	assert.Contains(t, msg.Subject, "AB12CD")
	assert.Contains(t, msg.Text, "予約番号")
	assert.Contains(t, msg.Text, "2025/03/17 10:00")
	assert.Contains(t, msg.Text, "2000円")
}

func TestDispatcherRetries(t *testing.T) {
	mailer := &fakeMailer{failures: 2}
	d := NewDispatcher(mailer, discard(), DispatcherConfig{
		MaxRetries: 3,
		Backoff:    time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	d.ReservationCancelled(ctx, testReservation())

	// Two failed attempts, then success on the third.
	waitFor(t, func() bool { return mailer.sentCount() == 1 })
	assert.Equal(t, 3, mailer.calls)
	assert.Contains(t, mailer.sent[0].Subject, "キャンセル")
}

func TestDispatcherGivesUp(t *testing.T) {
	mailer := &fakeMailer{failures: 100}
	d := NewDispatcher(mailer, discard(), DispatcherConfig{
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	d.ReservationConfirmed(ctx, testReservation())

	waitFor(t, func() bool {
		mailer.mu.Lock()
		defer mailer.mu.Unlock()
		return mailer.calls == 2
	})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, mailer.sentCount())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(mailer, discard(), DispatcherConfig{QueueSize: 1})

	// No Run goroutine; the queue fills and the surplus is dropped without
	// blocking the caller.
	res := testReservation()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			d.ReservationConfirmed(context.Background(), res)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	require.Len(t, d.queue, 1)
}
