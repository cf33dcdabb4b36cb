package redisx

import "fmt"

const ns = "seatbook:v1"

func KeyCalendar(fromKey, toKey string) string {
	return fmt.Sprintf("%s:calendar:%s:%s", ns, fromKey, toKey)
}

func KeySlotDay(seat, dateKey string) string {
	return fmt.Sprintf("%s:slots:%s:%s", ns, seat, dateKey)
}

// RateLimitPrefix namespaces the sliding-window limiter keys.
func RateLimitPrefix() string {
	return ns + ":rl"
}

func ChannelReservationsChanged() string {
	return ns + ":reservations:changed"
}
