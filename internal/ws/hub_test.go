package ws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tumalove/tumalove-backend/internal/models"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(ctx)
	go hub.Run()
	return hub
}

func event(checkoutID, status string) Event {
	return Event{
		EventType: "UPDATE",
		New: &models.Transaction{
			CheckoutRequestID: checkoutID,
			Status:            status,
		},
	}
}

func TestHub_SubscriberReceivesMatchingEvents(t *testing.T) {
	hub := runHub(t)

	ch, cancel := hub.Subscribe("ws_CO_1")
	defer cancel()

	hub.Publish(event("ws_CO_1", models.TransactionStatusCompleted))

	select {
	case e := <-ch:
		assert.Equal(t, "ws_CO_1", e.New.CheckoutRequestID)
		assert.Equal(t, models.TransactionStatusCompleted, e.New.Status)
	case <-time.After(time.Second):
		t.Fatal("expected an event for the subscribed checkout id")
	}
}

func TestHub_SubscriberIgnoresOtherCheckoutIDs(t *testing.T) {
	hub := runHub(t)

	ch, cancel := hub.Subscribe("ws_CO_mine")
	defer cancel()

	hub.Publish(event("ws_CO_other", models.TransactionStatusCompleted))

	select {
	case e := <-ch:
		t.Fatalf("unexpected event for %s", e.New.CheckoutRequestID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_CancelledSubscriptionReceivesNothing(t *testing.T) {
	hub := runHub(t)

	ch, cancel := hub.Subscribe("ws_CO_2")
	cancel()

	hub.Publish(event("ws_CO_2", models.TransactionStatusFailed))

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("cancelled subscription must not receive events")
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	hub := runHub(t)

	_, cancel := hub.Subscribe("ws_CO_3")
	cancel()
	cancel()
}

func TestHub_MultipleSubscribersSameCheckoutID(t *testing.T) {
	hub := runHub(t)

	ch1, cancel1 := hub.Subscribe("ws_CO_4")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("ws_CO_4")
	defer cancel2()

	hub.Publish(event("ws_CO_4", models.TransactionStatusCompleted))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			assert.Equal(t, models.TransactionStatusCompleted, e.New.Status)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i+1)
		}
	}
}

func TestHub_PublishNilTransactionIsDropped(t *testing.T) {
	hub := runHub(t)

	ch, cancel := hub.Subscribe("ws_CO_5")
	defer cancel()

	hub.Publish(Event{EventType: "UPDATE"})

	select {
	case <-ch:
		t.Fatal("nil-payload events must be dropped")
	case <-time.After(50 * time.Millisecond):
	}
}
