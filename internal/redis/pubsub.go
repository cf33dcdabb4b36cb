package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReservationsPubSub fans out the fact that reservations changed for a span
// of calendar dates. Subscribers use it to refresh derived availability
// summaries without waiting for the next scheduled rollup.
type ReservationsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewReservationsPubSub(rdb *redis.Client) *ReservationsPubSub {
	return &ReservationsPubSub{
		rdb:     rdb,
		channel: ChannelReservationsChanged(),
	}
}

type reservationsChangedMsg struct {
	Type     string `json:"type"`
	SeatID   string `json:"seat_id"`
	FromDate string `json:"from_date"` // YYYY-MM-DD
	ToDate   string `json:"to_date"`   // YYYY-MM-DD
	TsUnix   int64  `json:"ts_unix"`
}

func (p *ReservationsPubSub) PublishReservationsChanged(
	ctx context.Context,
	seatID, fromDate, toDate string,
) error {
	msg := reservationsChangedMsg{
		Type:     "reservations_changed",
		SeatID:   seatID,
		FromDate: fromDate,
		ToDate:   toDate,
		TsUnix:   time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *ReservationsPubSub) Subscribe(
	ctx context.Context,
	handler func(ctx context.Context, fromDate, toDate string),
) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev reservationsChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.FromDate != "" && ev.ToDate != "" {
				handler(ctx, ev.FromDate, ev.ToDate)
			}
		}
	}
}
