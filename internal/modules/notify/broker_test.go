// README: Broker tests against a real Redis (skipped without one).
package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"bistro/internal/logger"
	"bistro/internal/types"
)

func setupBroker(t *testing.T) *Broker {
	t.Helper()

	redisAddr := os.Getenv("BISTRO_REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("BISTRO_REDIS_ADDR not set; skipping integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewBroker(rdb, logger.New("notify-test"))
}

func TestPublishSubscribe(t *testing.T) {
	b := setupBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, closeSub := b.Subscribe(ctx)
	defer closeSub()

	// Redis delivers only to established subscriptions; give the round trip
	// a moment before publishing.
	time.Sleep(200 * time.Millisecond)

	want := Event{
		Type:    EventOrderStatus,
		OrderID: types.ID("o_pubsub"),
		Payload: map[string]any{"status": "PREPARING"},
		At:      time.Now().UTC(),
	}
	b.Publish(ctx, want)

	select {
	case got, ok := <-events:
		if !ok {
			t.Fatal("subscription closed before delivery")
		}
		if got.Type != want.Type {
			t.Errorf("expected type %s, got %s", want.Type, got.Type)
		}
		if got.OrderID != want.OrderID {
			t.Errorf("expected order %s, got %s", want.OrderID, got.OrderID)
		}
		if got.Payload["status"] != "PREPARING" {
			t.Errorf("unexpected payload: %+v", got.Payload)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestEverySubscriberGetsEveryEvent(t *testing.T) {
	b := setupBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, closeFirst := b.Subscribe(ctx)
	defer closeFirst()
	second, closeSecond := b.Subscribe(ctx)
	defer closeSecond()

	time.Sleep(200 * time.Millisecond)
	b.Publish(ctx, Event{Type: EventDriverLocation, DriverID: "d_fanout", At: time.Now().UTC()})

	for name, ch := range map[string]<-chan Event{"first": first, "second": second} {
		select {
		case got, ok := <-ch:
			if !ok {
				t.Fatalf("%s subscription closed before delivery", name)
			}
			if got.DriverID != "d_fanout" {
				t.Errorf("%s: unexpected driver id %s", name, got.DriverID)
			}
		case <-ctx.Done():
			t.Fatalf("%s: timed out waiting for event", name)
		}
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	b := setupBroker(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, closeSub := b.Subscribe(ctx)
	defer closeSub()

	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancel")
		}
	}
}
