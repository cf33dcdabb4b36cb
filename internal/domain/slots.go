package domain

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	OpeningHour = 9
	ClosingHour = 22

	MinDurationHours = 1
	MaxDurationHours = 8
)

const slotTimeLayout = "2006-01-02T15:04:05"

// SlotID returns the persisted slot key for a seat and an hour. The timestamp
// is truncated to the hour in its own location, so any two requests addressing
// the same wall-clock hour produce the same key.
//
// Format: {seat}-{YYYY-MM-DDTHH:00:00}
func SlotID(seat SeatID, t time.Time) string {
	return fmt.Sprintf("%s-%s", seat, SlotHourStart(t).Format(slotTimeLayout))
}

// SlotHourStart zeroes minutes, seconds and sub-second precision, keeping the
// wall-clock hour.
func SlotHourStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// SlotHours returns the ordered hour-start times covering the half-open
// interval [start, end). The sequence is anchored to the start's hour, so a
// two hour booking from 10:00 yields 10:00 and 11:00.
func SlotHours(start, end time.Time) []time.Time {
	var out []time.Time
	for cur := SlotHourStart(start); cur.Before(end); cur = cur.Add(time.Hour) {
		out = append(out, cur)
	}
	return out
}

// SlotIDs maps SlotHours onto persisted slot keys for a single seat.
func SlotIDs(seat SeatID, start, end time.Time) []string {
	hours := SlotHours(start, end)
	ids := make([]string, len(hours))
	for i, h := range hours {
		ids[i] = SlotID(seat, h)
	}
	return ids
}

// HourAligned reports whether t sits exactly on an hour boundary.
func HourAligned(t time.Time) bool {
	return t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

const numberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReservationNumber generates the short human-facing reservation number:
// six uppercase alphanumeric characters. Uniqueness is not enforced anywhere;
// with a 36^6 space the accepted collision probability is negligible and
// lookups always go by reservation id.
func NewReservationNumber() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = numberAlphabet[int(b[i])%len(numberAlphabet)]
	}
	return string(b)
}

// DateKey formats a calendar-day key for availability summaries.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
