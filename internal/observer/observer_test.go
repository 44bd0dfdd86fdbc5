package observer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tumalove/tumalove-backend/internal/models"
	"github.com/tumalove/tumalove-backend/internal/ws"
)

type stubStatuses struct {
	mu       sync.Mutex
	tx       *models.Transaction
	err      error
	getCalls int
}

func (s *stubStatuses) GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.tx
	return &cp, nil
}

func (s *stubStatuses) set(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tx.Status = status
}

func (s *stubStatuses) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

type stubPush struct {
	mu        sync.Mutex
	ch        chan ws.Event
	cancelled bool
}

func (s *stubPush) Subscribe(checkoutID string) (<-chan ws.Event, func()) {
	return s.ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancelled = true
	}
}

func (s *stubPush) wasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func pendingTx(checkoutID string) *models.Transaction {
	return &models.Transaction{
		CheckoutRequestID: checkoutID,
		Status:            models.TransactionStatusPending,
		Amount:            1000,
	}
}

func newTestObserver(statuses StatusSource, push PushSource) *Observer {
	o := New(statuses, push)
	o.pollInterval = 10 * time.Millisecond
	o.timeout = 300 * time.Millisecond
	return o
}

func TestObserver_PushEventWins(t *testing.T) {
	statuses := &stubStatuses{tx: pendingTx("ws_CO_1")}
	push := &stubPush{ch: make(chan ws.Event, 1)}
	o := newTestObserver(statuses, push)

	completed := pendingTx("ws_CO_1")
	completed.Status = models.TransactionStatusCompleted
	push.ch <- ws.Event{EventType: "UPDATE", New: completed}

	result, err := o.Await(context.Background(), "ws_CO_1")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, "push", result.Source)
	assert.True(t, push.wasCancelled())
}

func TestObserver_PollDetectsTerminal(t *testing.T) {
	statuses := &stubStatuses{tx: pendingTx("ws_CO_2")}
	push := &stubPush{ch: make(chan ws.Event)}
	o := newTestObserver(statuses, push)

	go func() {
		time.Sleep(30 * time.Millisecond)
		statuses.set(models.TransactionStatusFailed)
	}()

	result, err := o.Await(context.Background(), "ws_CO_2")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "poll", result.Source)
	assert.True(t, push.wasCancelled())
}

func TestObserver_AlreadyTerminalBeforeWatch(t *testing.T) {
	tx := pendingTx("ws_CO_3")
	tx.Status = models.TransactionStatusCompleted
	statuses := &stubStatuses{tx: tx}
	push := &stubPush{ch: make(chan ws.Event)}
	o := newTestObserver(statuses, push)

	result, err := o.Await(context.Background(), "ws_CO_3")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	// The initial poll resolves it; no ticker cycles needed.
	assert.Equal(t, 1, statuses.calls())
}

func TestObserver_ReviewKeepsWatching(t *testing.T) {
	tx := pendingTx("ws_CO_7")
	tx.Status = models.TransactionStatusReview
	statuses := &stubStatuses{tx: tx}
	push := &stubPush{ch: make(chan ws.Event, 1)}
	o := newTestObserver(statuses, push)
	o.timeout = 80 * time.Millisecond

	// A flagged attempt must not resolve the watch, on the initial poll,
	// by ticker, or by push event. The payer sees it time out like any
	// still-pending payment.
	push.ch <- ws.Event{EventType: "UPDATE", New: tx}

	start := time.Now()
	result, err := o.Await(context.Background(), "ws_CO_7")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, result.Outcome)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.True(t, push.wasCancelled())
}

func TestObserver_TimeoutYieldsUnknown(t *testing.T) {
	statuses := &stubStatuses{tx: pendingTx("ws_CO_4")}
	push := &stubPush{ch: make(chan ws.Event)}
	o := newTestObserver(statuses, push)
	o.timeout = 50 * time.Millisecond

	start := time.Now()
	result, err := o.Await(context.Background(), "ws_CO_4")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, result.Outcome)
	assert.NotNil(t, result.Transaction)
	assert.Equal(t, models.TransactionStatusPending, result.Transaction.Status)
	assert.True(t, push.wasCancelled())
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestObserver_ContextCancellation(t *testing.T) {
	statuses := &stubStatuses{tx: pendingTx("ws_CO_5")}
	push := &stubPush{ch: make(chan ws.Event)}
	o := newTestObserver(statuses, push)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := o.Await(ctx, "ws_CO_5")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeUnknown, result.Outcome)
	assert.True(t, push.wasCancelled())
}

func TestObserver_NonTerminalEventsKeepWatching(t *testing.T) {
	statuses := &stubStatuses{tx: pendingTx("ws_CO_6")}
	push := &stubPush{ch: make(chan ws.Event, 4)}
	o := newTestObserver(statuses, push)
	o.timeout = 100 * time.Millisecond

	// Pending updates must not end the watch.
	push.ch <- ws.Event{EventType: "UPDATE", New: pendingTx("ws_CO_6")}
	push.ch <- ws.Event{EventType: "UPDATE", New: pendingTx("ws_CO_6")}

	result, err := o.Await(context.Background(), "ws_CO_6")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, result.Outcome)
}
