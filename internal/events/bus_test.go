package events

import (
	"testing"
	"time"
)

func TestBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(TopicCoinsUpdated, 1)
	defer cancel()

	bus.Publish(Event{Topic: TopicCoinsUpdated, UserID: 42, Value: 50})

	select {
	case event := <-ch:
		if event.UserID != 42 || event.Value != 50 {
			t.Errorf("unexpected event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	coins, cancelCoins := bus.Subscribe(TopicCoinsUpdated, 1)
	defer cancelCoins()

	bus.Publish(Event{Topic: TopicClothingChanged, UserID: 42})

	select {
	case event := <-coins:
		t.Fatalf("coins subscriber received foreign event %+v", event)
	default:
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(TopicCoinsUpdated, 1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Topic: TopicCoinsUpdated, Value: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(TopicClothingChanged, 1)
	cancel()

	if _, open := <-ch; open {
		t.Error("expected channel closed after cancel")
	}

	// Publishing after cancel must not panic on the closed channel.
	bus.Publish(Event{Topic: TopicClothingChanged})
}
