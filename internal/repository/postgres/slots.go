package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuzuhara/seatbook/internal/domain"
	"github.com/yuzuhara/seatbook/internal/repository"
)

type SlotRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SlotRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Reserved returns the hour starts among hours whose slot row exists and is
// not available. Missing rows count as free.
//
// Returns:
//   - []time.Time: the conflicting hour starts, empty when the range is free.
func (r *SlotRepo) Reserved(
	ctx context.Context,
	seat domain.SeatID,
	hours []time.Time,
) ([]time.Time, error) {
	const op = "postgres.SlotRepo.Reserved"

	if len(hours) == 0 {
		return nil, nil
	}

	db := r.handle()

	ids := make([]string, len(hours))
	for i, h := range hours {
		ids[i] = domain.SlotID(seat, h)
	}

	rows, err := db.Query(ctx,
		`SELECT starts_at
       	 FROM slots
      	 WHERE seat_id = $1
        	AND id = ANY($2)
        	AND status <> 'available'`,
		string(seat), ids,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var taken []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		taken = append(taken, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return taken, nil
}

// Occupy marks every hour as reserved for the reservation. A slot row that
// already exists in a non-available state makes the whole call fail with
// repository.ErrSlotsUnavailable; no independent commit happens here, the
// supplied transaction decides.
func (r *SlotRepo) Occupy(
	ctx context.Context,
	seat domain.SeatID,
	hours []time.Time,
	reservationID, userID string,
) error {
	const op = "postgres.SlotRepo.Occupy"

	db := r.handle()

	batch := &pgx.Batch{}
	for _, h := range hours {
		batch.Queue(
			`INSERT INTO slots(id, seat_id, starts_at, status, user_id, reservation_id)
			 VALUES ($1, $2, $3, 'reserved', $4, $5)
			 ON CONFLICT (id) DO UPDATE
			 SET status = 'reserved', user_id = $4, reservation_id = $5
			 WHERE slots.status = 'available'`,
			domain.SlotID(seat, h), string(seat), domain.SlotHourStart(h), userID, reservationID,
		)
	}

	br := db.SendBatch(ctx, batch)
	for range hours {
		ct, err := br.Exec()
		if err != nil {
			br.Close()
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		if ct.RowsAffected() != 1 {
			br.Close()
			return fmt.Errorf("%s:%w", op, repository.ErrSlotsUnavailable)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Release resets every slot owned by the reservation to available. Safe to
// repeat; a second call affects zero rows.
func (r *SlotRepo) Release(ctx context.Context, reservationID string) error {
	const op = "postgres.SlotRepo.Release"

	db := r.handle()

	_, err := db.Exec(ctx,
		`UPDATE slots
         SET status = 'available', user_id = NULL, reservation_id = NULL
      	 WHERE reservation_id = $1`,
		reservationID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// ForDay lists the non-available slot rows for one seat on one calendar day.
func (r *SlotRepo) ForDay(
	ctx context.Context,
	seat domain.SeatID,
	day time.Time,
) ([]domain.Slot, error) {
	const op = "postgres.SlotRepo.ForDay"

	db := r.handle()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := db.Query(ctx,
		`SELECT id, seat_id, starts_at, status, user_id, reservation_id
       	 FROM slots
      	 WHERE seat_id = $1
        	AND starts_at >= $2
        	AND starts_at < $3
        	AND status <> 'available'
       	 ORDER BY starts_at`,
		string(seat), dayStart, dayEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Slot
	for rows.Next() {
		var s domain.Slot
		var seatID, status string

		if err := rows.Scan(
			&s.ID,
			&seatID,
			&s.StartsAt,
			&status,
			&s.UserID,
			&s.ReservationID,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		s.SeatID = domain.SeatID(seatID)
		s.Status = domain.SlotStatus(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
