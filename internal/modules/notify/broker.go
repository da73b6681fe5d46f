// README: Notification broker backed by Redis Pub/Sub on a fixed topic.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"bistro/internal/logger"
)

const topic = "orders"

// subscriberBuffer bounds how far a slow viewer can fall behind before
// events are dropped for that viewer (the stream is at-most-once anyway).
const subscriberBuffer = 64

// Broker decouples mutation publishers from tracking-page subscribers. It
// holds no per-viewer state; each subscriber gets every event verbatim.
type Broker struct {
	redis *redis.Client
	log   *logger.Logger
}

func NewBroker(rdb *redis.Client, log *logger.Logger) *Broker {
	return &Broker{redis: rdb, log: log}
}

// Publish sends an event to the topic. Delivery is best-effort: a publish
// failure is logged and swallowed so the originating mutation still commits.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("event_marshal_failed", "dropping unencodable event", err)
		return
	}
	if err := b.redis.Publish(ctx, topic, body).Err(); err != nil {
		b.log.Error("event_publish_failed", "dropping event, viewers will re-sync via pull", err,
			slog.String("event_type", string(ev.Type)))
	}
}

// Subscribe registers a viewer on the topic. The returned channel closes
// when the context is cancelled or close is called; close is idempotent and
// releases the underlying Redis subscription promptly.
func (b *Broker) Subscribe(ctx context.Context) (<-chan Event, func()) {
	sub := b.redis.Subscribe(ctx, topic)
	out := make(chan Event, subscriberBuffer)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Error("event_decode_failed", "skipping malformed event", err)
					continue
				}
				select {
				case out <- ev:
				default:
					// Slow viewer; drop rather than block the fan-out.
				}
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
