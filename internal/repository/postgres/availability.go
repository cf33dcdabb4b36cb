package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuzuhara/seatbook/internal/domain"
)

type AvailabilityRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AvailabilityRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// UpsertDay overwrites the summary for one calendar date. The rollup is not
// incremental; the new row fully replaces the old one.
func (r *AvailabilityRepo) UpsertDay(
	ctx context.Context,
	day domain.DateAvailability,
	at time.Time,
) error {
	const op = "postgres.AvailabilityRepo.UpsertDay"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO date_availability(date, status, available_seats, updated_at)
       	 VALUES ($1, $2, $3, $4)
       	 ON CONFLICT (date) DO UPDATE
       	 SET status = $2, available_seats = $3, updated_at = $4`,
		day.Date, string(day.Status), day.AvailableSeats, at,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Range lists summaries for fromKey..toKey inclusive, ordered by date. Keys
// use the YYYY-MM-DD format so string ordering is date ordering.
func (r *AvailabilityRepo) Range(
	ctx context.Context,
	fromKey, toKey string,
) ([]domain.DateAvailability, error) {
	const op = "postgres.AvailabilityRepo.Range"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT date, status, available_seats
       	 FROM date_availability
      	 WHERE date >= $1 AND date <= $2
       	 ORDER BY date`,
		fromKey, toKey,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.DateAvailability
	for rows.Next() {
		var d domain.DateAvailability
		var status string

		if err := rows.Scan(&d.Date, &status, &d.AvailableSeats); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		d.Status = domain.DateStatus(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// SeatsReservedOn returns the seats with at least one confirmed reservation
// overlapping the given calendar day. Day granularity only; partial-day
// availability is not reflected.
func (r *AvailabilityRepo) SeatsReservedOn(
	ctx context.Context,
	day time.Time,
) (map[domain.SeatID]bool, error) {
	const op = "postgres.AvailabilityRepo.SeatsReservedOn"

	db := r.handle()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := db.Query(ctx,
		`SELECT DISTINCT seat_id
       	 FROM reservations
      	 WHERE status = 'confirmed'
        	AND start_time < $2
        	AND end_time > $1`,
		dayStart, dayEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	taken := make(map[domain.SeatID]bool)
	for rows.Next() {
		var seatID string
		if err := rows.Scan(&seatID); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		taken[domain.SeatID(seatID)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return taken, nil
}
