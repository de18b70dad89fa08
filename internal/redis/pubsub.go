package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// VisitsPubSub is the realtime change feed: every mutation of a visit (or of
// a song inside it) publishes a message here, and the playback screen's
// sequencer re-derives its queue snapshot on each one. Delivery is
// at-least-once from the subscriber's point of view; consumers must treat
// messages as "something changed", not as state.
type VisitsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewVisitsPubSub(rdb *redis.Client) *VisitsPubSub {
	return &VisitsPubSub{
		rdb:     rdb,
		channel: ChannelVisitsChanged(),
	}
}

type visitChangedMsg struct {
	Type    string `json:"type"`
	VisitID string `json:"visit_id"`
	TableID int64  `json:"table_id"`
	TsUnix  int64  `json:"ts_unix"`
}

func (p *VisitsPubSub) PublishVisitChanged(ctx context.Context, visitID string, tableID int64) error {
	msg := visitChangedMsg{
		Type:    "visit_changed",
		VisitID: visitID,
		TableID: tableID,
		TsUnix:  time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks, invoking handler for every change message until ctx is
// cancelled. Unsubscription is the cancellation of ctx.
func (p *VisitsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, visitID string, tableID int64)) error {
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
			var ev visitChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.VisitID != "" {
				handler(ctx, ev.VisitID, ev.TableID)
			}
		}
	}
}
