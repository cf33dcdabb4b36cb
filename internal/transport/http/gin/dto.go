package httpgin

import (
	"time"
)

type CreateReservationRequest struct {
	SeatID      string `json:"seat_id" binding:"required"`
	StartTime   string `json:"start_time" binding:"required"` // RFC3339
	EndTime     string `json:"end_time" binding:"required"`   // RFC3339
	Duration    int    `json:"duration" binding:"required,gte=1,lte=8"`
	Price       *int   `json:"price"`
	UserName    string `json:"user_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phone_number"`
	Source      string `json:"source" binding:"omitempty,oneof=web tablet"`
}

type CreateReservationResponse struct {
	ReservationID     string `json:"reservation_id"`
	ReservationNumber string `json:"reservation_number"`
}

type MarkPaidRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required,oneof=qr cash online"`
}

type AvailabilityResponse struct {
	IsAvailable bool `json:"is_available"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
