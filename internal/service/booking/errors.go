package booking

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrSlotsUnavailable    = errors.New("requested time is already booked")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrNotOwner            = errors.New("reservation belongs to another user")
	ErrNotCancellable      = errors.New("reservation is not in a cancellable state")
	ErrTooLateToCancel     = errors.New("cancellation window has passed")
	ErrRateLimited         = errors.New("rate limited")
)
