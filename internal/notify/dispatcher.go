package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/yuzuhara/seatbook/internal/domain"
)

// Dispatcher decouples mail delivery from the booking result: messages are
// queued after the transaction commits and retried with backoff on a worker
// goroutine. A delivery failure can never undo a committed reservation.
type Dispatcher struct {
	mailer     Mailer
	logger     *slog.Logger
	queue      chan Email
	maxRetries int
	backoff    time.Duration
}

type DispatcherConfig struct {
	QueueSize  int
	MaxRetries int
	Backoff    time.Duration
}

func NewDispatcher(mailer Mailer, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}

	return &Dispatcher{
		mailer:     mailer,
		logger:     logger,
		queue:      make(chan Email, cfg.QueueSize),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Run drains the queue until ctx is cancelled. Intended to be started once
// from the application's errgroup.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Email) {
	delay := d.backoff
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		err := d.mailer.Send(ctx, msg)
		if err == nil {
			return
		}

		d.logger.Warn("mail delivery failed",
			"to", msg.To, "subject", msg.Subject, "attempt", attempt, "error", err)

		if attempt == d.maxRetries {
			d.logger.Error("giving up on mail delivery",
				"to", msg.To, "subject", msg.Subject)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (d *Dispatcher) enqueue(msg Email) {
	select {
	case d.queue <- msg:
	default:
		// Dropping beats blocking the request path; the reservation itself
		// already committed.
		d.logger.Error("mail queue full, dropping message",
			"to", msg.To, "subject", msg.Subject)
	}
}

func (d *Dispatcher) ReservationConfirmed(_ context.Context, res *domain.Reservation) {
	d.enqueue(confirmationEmail(res))
}

func (d *Dispatcher) ReservationCancelled(_ context.Context, res *domain.Reservation) {
	d.enqueue(cancellationEmail(res))
}
