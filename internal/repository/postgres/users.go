package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// AppendReservation appends the reservation id to the user's history and
// increments the counter. Accounts are owned by the identity provider; a user
// row that does not exist yet is skipped, not an error.
func (r *UserRepo) AppendReservation(
	ctx context.Context,
	userID, reservationID string,
	at time.Time,
) error {
	const op = "postgres.UserRepo.AppendReservation"

	db := r.handle()

	_, err := db.Exec(ctx,
		`UPDATE users
         SET reservation_history = array_append(reservation_history, $2),
             reservation_count = reservation_count + 1,
             updated_at = $3
      	 WHERE id = $1`,
		userID, reservationID, at,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
