package events

import (
	"testing"
	"time"
)

func drain(s *Subscriber) []Event {
	var got []Event
	for {
		select {
		case e, ok := <-s.C:
			if !ok {
				return got
			}
			got = append(got, e)
		case <-time.After(50 * time.Millisecond):
			return got
		}
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()
	defer b.Close()

	s1 := b.Subscribe()
	s2 := b.Subscribe()

	b.Publish(Event{Kind: OfferCreated, OfferID: "o-1"})
	b.Publish(Event{Kind: OfferResolved, OfferID: "o-1", Outcome: OutcomeAccepted})

	for i, s := range []*Subscriber{s1, s2} {
		got := drain(s)
		if len(got) != 2 {
			t.Fatalf("subscriber %d received %d events, want 2", i, len(got))
		}
		if got[0].Kind != OfferCreated || got[1].Outcome != OutcomeAccepted {
			t.Errorf("subscriber %d got unexpected events: %+v", i, got)
		}
		if got[0].At.IsZero() {
			t.Errorf("subscriber %d event missing timestamp", i)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	defer b.Close()

	s := b.Subscribe()
	b.Unsubscribe(s)

	if _, ok := <-s.C; ok {
		t.Fatal("channel still open after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Kind: ListingRemoved, ListingID: "l-1"})
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBus()
	defer b.Close()

	s := b.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			b.Publish(Event{Kind: OfferCreated})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	if got := drain(s); len(got) == 0 {
		t.Fatal("expected at least some buffered events")
	}
}

func TestCloseIsTerminal(t *testing.T) {
	b := NewBus()
	s := b.Subscribe()
	b.Close()

	if _, ok := <-s.C; ok {
		t.Fatal("channel still open after Close")
	}

	b.Publish(Event{Kind: OfferCreated})

	late := b.Subscribe()
	if _, ok := <-late.C; ok {
		t.Fatal("subscription after Close should be closed immediately")
	}
}
