package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuzuhara/seatbook/internal/domain"
	"github.com/yuzuhara/seatbook/internal/repository"
)

type ReservationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ReservationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const reservationColumns = `id, user_id, user_name, email, phone_number, seat_id,
	start_time, end_time, duration, price, is_paid, payment_method,
	number, source, status, created_at, updated_at`

// Create inserts the reservation record as-is. The caller owns id, number and
// timestamps.
func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	const op = "postgres.ReservationRepo.Create"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO reservations(
			id, user_id, user_name, email, phone_number, seat_id,
			start_time, end_time, duration, price, is_paid, payment_method,
			number, source, status, created_at, updated_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		res.ID, res.UserID, res.UserName, res.Email, res.PhoneNumber, string(res.SeatID),
		res.StartTime, res.EndTime, res.Duration, res.Price, res.IsPaid, res.PaymentMethod,
		res.Number, string(res.Source), string(res.Status), res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Get retrieves a reservation by id.
//
// Returns:
//   - error: repository.ErrNotFound if no such reservation exists.
func (r *ReservationRepo) Get(ctx context.Context, id string) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.Get"

	db := r.handle()

	row := db.QueryRow(ctx,
		`SELECT `+reservationColumns+`
       	 FROM reservations WHERE id = $1`,
		id,
	)

	res, err := scanReservation(row)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return res, nil
}

// ListForUser lists a user's reservations filtered by status, newest start
// first. An empty statuses slice means no filter.
func (r *ReservationRepo) ListForUser(
	ctx context.Context,
	userID string,
	statuses []domain.ReservationStatus,
) ([]domain.Reservation, error) {
	const op = "postgres.ReservationRepo.ListForUser"

	db := r.handle()

	sts := make([]string, len(statuses))
	for i, s := range statuses {
		sts[i] = string(s)
	}

	query := `SELECT ` + reservationColumns + `
       	 FROM reservations
      	 WHERE user_id = $1
       	 ORDER BY start_time DESC`
	args := []any{userID}
	if len(sts) > 0 {
		query = `SELECT ` + reservationColumns + `
       	 FROM reservations
      	 WHERE user_id = $1 AND status = ANY($2)
       	 ORDER BY start_time DESC`
		args = append(args, sts)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// SetStatus flips the reservation status and refreshes updated_at.
//
// Returns:
//   - error: repository.ErrNotFound if no such reservation exists.
func (r *ReservationRepo) SetStatus(
	ctx context.Context,
	id string,
	status domain.ReservationStatus,
	at time.Time,
) error {
	const op = "postgres.ReservationRepo.SetStatus"

	db := r.handle()

	ct, err := db.Exec(ctx,
		`UPDATE reservations
         SET status = $2, updated_at = $3
      	 WHERE id = $1`,
		id, string(status), at,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// SetPayment records the out-of-band payment state.
func (r *ReservationRepo) SetPayment(
	ctx context.Context,
	id string,
	isPaid bool,
	method string,
	at time.Time,
) error {
	const op = "postgres.ReservationRepo.SetPayment"

	db := r.handle()

	ct, err := db.Exec(ctx,
		`UPDATE reservations
         SET is_paid = $2, payment_method = $3, updated_at = $4
      	 WHERE id = $1`,
		id, isPaid, method, at,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	var res domain.Reservation
	var seatID, source, status string

	if err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.UserName,
		&res.Email,
		&res.PhoneNumber,
		&seatID,
		&res.StartTime,
		&res.EndTime,
		&res.Duration,
		&res.Price,
		&res.IsPaid,
		&res.PaymentMethod,
		&res.Number,
		&source,
		&status,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		return nil, err
	}

	res.SeatID = domain.SeatID(seatID)
	res.Source = domain.ReservationSource(source)
	res.Status = domain.ReservationStatus(status)

	return &res, nil
}
