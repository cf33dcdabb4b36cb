package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuzuhara/seatbook/internal/repository"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// maxTxAttempts bounds the transparent retry of a serializable transaction
// after a conflict. Once exhausted the caller sees repository.ErrConflict.
const maxTxAttempts = 3

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// RunTx runs fn inside a serializable transaction. On a serialization failure
// or a write conflict the whole function is re-executed on a fresh
// transaction, up to maxTxAttempts; fn must therefore be safe to re-run.
func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTxOnce(ctx, opts, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) && !errors.Is(err, repository.ErrConflict) {
			return err
		}
	}

	return fmt.Errorf("transaction aborted after %d attempts: %w", maxTxAttempts, repository.ErrConflict)
}

func (s *Store) runTxOnce(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Slots() repository.Slots               { return &SlotRepo{pool: s.pool} }
func (s *Store) Reservations() repository.Reservations { return &ReservationRepo{pool: s.pool} }
func (s *Store) Users() repository.Users               { return &UserRepo{pool: s.pool} }
func (s *Store) Availability() repository.Availability { return &AvailabilityRepo{pool: s.pool} }

// Bind returns a view of the repositories bound to a single transaction.
func (s *Store) Bind(db DB) repository.Stores {
	return boundStores{db: db}
}

type boundStores struct {
	db DB
}

func (b boundStores) Slots() repository.Slots               { return &SlotRepo{db: b.db} }
func (b boundStores) Reservations() repository.Reservations { return &ReservationRepo{db: b.db} }
func (b boundStores) Users() repository.Users               { return &UserRepo{db: b.db} }
func (b boundStores) Availability() repository.Availability { return &AvailabilityRepo{db: b.db} }
