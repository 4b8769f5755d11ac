package server

import (
	"context"
	"testing"
	"time"

	"github.com/coolbeans/labtrail/pkg/watch"
)

func TestHubBroadcast(t *testing.T) {
	input := make(chan watch.Event)
	h := NewHub(input)

	sub1 := h.Subscribe()
	sub2 := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Start(ctx)
		close(done)
	}()

	sent := watch.Event{Kind: watch.EventIngested, ReportID: "abc123def456", Measurements: 3}
	input <- sent

	for i, sub := range []<-chan watch.Event{sub1, sub2} {
		select {
		case got := <-sub:
			if got.ReportID != sent.ReportID || got.Kind != sent.Kind {
				t.Errorf("subscriber %d got %+v, want %+v", i, got, sent)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}

	cancel()
	<-done

	// All subscriber channels close when the hub stops.
	if _, open := <-sub1; open {
		t.Error("subscriber channel still open after hub stopped")
	}
}

func TestHubInputClose(t *testing.T) {
	input := make(chan watch.Event)
	h := NewHub(input)
	sub := h.Subscribe()

	done := make(chan struct{})
	go func() {
		h.Start(context.Background())
		close(done)
	}()

	close(input)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop after input closed")
	}
	if _, open := <-sub; open {
		t.Error("subscriber channel still open")
	}
}

func TestHubNilInput(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("hub with nil input did not stop on cancel")
	}
	if _, open := <-sub; open {
		t.Error("subscriber channel still open")
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub(nil)
	h.Subscribe() // never drained

	for i := 0; i <= subscriberBuffer; i++ {
		h.broadcast(watch.Event{Kind: watch.EventIngested})
	}

	if got := h.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe()
	keep := h.Subscribe()

	h.Unsubscribe(sub)
	if _, open := <-sub; open {
		t.Error("unsubscribed channel not closed")
	}

	// Remaining subscriber still receives.
	h.broadcast(watch.Event{Kind: watch.EventDuplicate})
	select {
	case got := <-keep:
		if got.Kind != watch.EventDuplicate {
			t.Errorf("kind = %s, want %s", got.Kind, watch.EventDuplicate)
		}
	default:
		t.Error("remaining subscriber did not receive broadcast")
	}

	// Double unsubscribe is a no-op.
	h.Unsubscribe(sub)
}
