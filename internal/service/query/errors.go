package query

import "errors"

var (
	ErrInvalidRange        = errors.New("invalid date range")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrNotOwner            = errors.New("reservation belongs to another user")
	ErrUnknownSeat         = errors.New("unknown seat")
)
