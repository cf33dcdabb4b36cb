package domain

import (
	"time"
)

type SeatID string

const (
	SeatA SeatID = "A"
	SeatB SeatID = "B"
	SeatC SeatID = "C"
)

// Seat is immutable reference data; the catalog lives in code, not in the
// database.
type Seat struct {
	ID           SeatID `json:"id"`
	Capacity     int    `json:"capacity"`
	PricePerHour int    `json:"price_per_hour"`
	Description  string `json:"description"`
}

var seatCatalog = map[SeatID]Seat{
	SeatA: {ID: SeatA, Capacity: 2, PricePerHour: 1000, Description: "窓側の静かな個人席"},
	SeatB: {ID: SeatB, Capacity: 4, PricePerHour: 1500, Description: "ミーティングに最適な中規模席"},
	SeatC: {ID: SeatC, Capacity: 6, PricePerHour: 2000, Description: "大人数でのディスカッションに向いた大きな席"},
}

func Seats() []Seat {
	return []Seat{seatCatalog[SeatA], seatCatalog[SeatB], seatCatalog[SeatC]}
}

func SeatByID(id SeatID) (Seat, bool) {
	s, ok := seatCatalog[id]
	return s, ok
}

func ValidSeatID(id SeatID) bool {
	_, ok := seatCatalog[id]
	return ok
}

// Price computes the charge for a seat booked for the given number of whole
// hours. Client-supplied prices are never trusted.
func Price(seat SeatID, durationHours int) (int, bool) {
	s, ok := seatCatalog[seat]
	if !ok {
		return 0, false
	}
	return s.PricePerHour * durationHours, true
}

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "available"
	SlotReserved    SlotStatus = "reserved"
	SlotOccupied    SlotStatus = "occupied"
	SlotMaintenance SlotStatus = "maintenance"
)

// Slot is one hour of occupancy for one seat. Absence of a stored slot row is
// equivalent to an available slot.
type Slot struct {
	ID            string     `json:"id"`
	SeatID        SeatID     `json:"seat_id"`
	StartsAt      time.Time  `json:"starts_at"`
	Status        SlotStatus `json:"status"`
	UserID        *string    `json:"user_id,omitempty"`
	ReservationID *string    `json:"reservation_id,omitempty"`
}

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

type ReservationSource string

const (
	SourceWeb    ReservationSource = "web"
	SourceTablet ReservationSource = "tablet"
)

type Reservation struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	UserName      string            `json:"user_name"`
	Email         string            `json:"email"`
	PhoneNumber   string            `json:"phone_number,omitempty"`
	SeatID        SeatID            `json:"seat_id"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	Duration      int               `json:"duration"`
	Price         int               `json:"price"`
	IsPaid        bool              `json:"is_paid"`
	PaymentMethod *string           `json:"payment_method"`
	Number        string            `json:"reservation_number"`
	Source        ReservationSource `json:"source"`
	Status        ReservationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type DateStatus string

const (
	DateAvailable DateStatus = "available"
	DateLimited   DateStatus = "limited"
	DateFull      DateStatus = "full"
)

// DateAvailability is a derived per-day rollup for calendar display. It is
// never consulted for booking decisions.
type DateAvailability struct {
	Date           string     `json:"date"` // YYYY-MM-DD
	Status         DateStatus `json:"status"`
	AvailableSeats int        `json:"available_seats"`
}

// DateStatusFor maps a free-seat count to a calendar status.
func DateStatusFor(availableSeats int) DateStatus {
	switch {
	case availableSeats <= 0:
		return DateFull
	case availableSeats < len(seatCatalog):
		return DateLimited
	default:
		return DateAvailable
	}
}
