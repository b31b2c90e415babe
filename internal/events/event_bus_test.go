package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus(nil, Config{NumWorkers: 2, BufferSize: 10})
	defer bus.Stop()

	var mu sync.Mutex
	received := 0
	done := make(chan struct{}, 1)
	bus.Subscribe(EventTypeTradeAction, func(e Event) error {
		mu.Lock()
		received++
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	bus.Publish(NewTradeActionEvent("BTC-USD", "buy", "100.00", 1.0, nil, nil, "trend_following", "trending(bullish)", 0.8, "test"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if received != 1 {
		t.Fatalf("expected 1 event received, got %d", received)
	}
}

func TestPublishSyncDeliversImmediately(t *testing.T) {
	bus := NewBus(nil, DefaultConfig())
	defer bus.Stop()

	received := false
	bus.Subscribe(EventTypeHeartbeat, func(e Event) error {
		received = true
		return nil
	}, SubscriptionOptions{Async: false})

	bus.PublishSync(NewHeartbeatEvent(3))
	if !received {
		t.Fatalf("expected synchronous publish to deliver before returning")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(nil, DefaultConfig())
	defer bus.Stop()

	received := false
	sub := bus.Subscribe(EventTypeHeartbeat, func(e Event) error {
		received = true
		return nil
	}, SubscriptionOptions{Async: false})
	bus.Unsubscribe(sub)

	bus.PublishSync(NewHeartbeatEvent(1))
	if received {
		t.Fatalf("expected unsubscribed handler not to be invoked")
	}
}

func TestPublishNeverBlocksOnFullBuffer(t *testing.T) {
	bus := NewBus(nil, Config{NumWorkers: 1, BufferSize: 1})
	bus.Stop()

	for i := 0; i < 10; i++ {
		bus.Publish(NewHeartbeatEvent(i))
	}
	stats := bus.GetStats()
	if stats.EventsDropped == 0 {
		t.Fatalf("expected overflow publishes to be dropped, stats: %+v", stats)
	}
}
