package observer

import (
	"context"
	"time"

	"github.com/tumalove/tumalove-backend/internal/models"
	"github.com/tumalove/tumalove-backend/internal/ws"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 150 * time.Second
)

// Outcome classifies how a watch ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeUnknown means the watch window closed without a terminal
	// status. The payment may still settle later; the caller should tell
	// the user to check their M-Pesa messages.
	OutcomeUnknown Outcome = "unknown"
)

// Result is the final observation of one payment attempt.
type Result struct {
	Outcome     Outcome
	Transaction *models.Transaction
	// Source records which channel produced the terminal observation,
	// "push" or "poll". Diagnostic only.
	Source string
}

type StatusSource interface {
	GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error)
}

type PushSource interface {
	Subscribe(checkoutID string) (<-chan ws.Event, func())
}

// Observer watches a payment attempt over two redundant channels: hub push
// events and periodic polling. Whichever channel observes a terminal status
// first wins; everything is torn down immediately after, so later events
// for the same attempt are inert.
type Observer struct {
	statuses StatusSource
	push     PushSource

	pollInterval time.Duration
	timeout      time.Duration
}

func New(statuses StatusSource, push PushSource) *Observer {
	return &Observer{
		statuses:     statuses,
		push:         push,
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
	}
}

// Await blocks until the transaction reaches a terminal status, the watch
// window expires, or ctx ends. It always returns a Result; the error is
// non-nil only when even the status lookups failed.
func (o *Observer) Await(ctx context.Context, checkoutID string) (*Result, error) {
	events, cancel := o.push.Subscribe(checkoutID)
	defer cancel()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(o.timeout)
	defer deadline.Stop()

	// Initial poll: the attempt may already be terminal, in which case no
	// further event will ever arrive.
	if tx, err := o.statuses.GetByCheckoutID(ctx, checkoutID); err == nil {
		if result := terminalResult(tx, "poll"); result != nil {
			return result, nil
		}
	}

	var lastSeen *models.Transaction
	var lastErr error

	for {
		select {
		case event := <-events:
			if event.New == nil {
				continue
			}
			lastSeen = event.New
			if result := terminalResult(event.New, "push"); result != nil {
				return result, nil
			}

		case <-ticker.C:
			tx, err := o.statuses.GetByCheckoutID(ctx, checkoutID)
			if err != nil {
				lastErr = err
				continue
			}
			lastSeen = tx
			if result := terminalResult(tx, "poll"); result != nil {
				return result, nil
			}

		case <-deadline.C:
			return &Result{Outcome: OutcomeUnknown, Transaction: lastSeen}, lastErr

		case <-ctx.Done():
			return &Result{Outcome: OutcomeUnknown, Transaction: lastSeen}, ctx.Err()
		}
	}
}

// terminalResult ends the watch only on COMPLETED or FAILED. REVIEW is
// terminal for automation but must look like PENDING to the payer, so a
// flagged attempt keeps the watch open until the window closes.
func terminalResult(tx *models.Transaction, source string) *Result {
	switch tx.Status {
	case models.TransactionStatusCompleted:
		return &Result{Outcome: OutcomeCompleted, Transaction: tx, Source: source}
	case models.TransactionStatusFailed:
		return &Result{Outcome: OutcomeFailed, Transaction: tx, Source: source}
	default:
		return nil
	}
}
