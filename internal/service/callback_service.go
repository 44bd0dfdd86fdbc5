package service

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/tumalove/tumalove-backend/internal/logger"
	"github.com/tumalove/tumalove-backend/internal/models"
	"github.com/tumalove/tumalove-backend/internal/mpesa"
	"github.com/tumalove/tumalove-backend/internal/pkg/apperror"
	"github.com/tumalove/tumalove-backend/internal/repository"
	"github.com/tumalove/tumalove-backend/internal/validation"
	"github.com/tumalove/tumalove-backend/internal/ws"
)

// CallbackOutcome describes how a callback delivery was resolved.
type CallbackOutcome string

const (
	OutcomeCompleted        CallbackOutcome = "success"
	OutcomeFailureLogged    CallbackOutcome = "failure_logged"
	OutcomeAlreadyProcessed CallbackOutcome = "already_processed"
	OutcomeFlaggedForReview CallbackOutcome = "flagged_for_review"
)

type TransactionStore interface {
	GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error)
	MarkFailed(ctx context.Context, checkoutID, reason string, resultCode int) (bool, error)
	MarkReview(ctx context.Context, checkoutID string, callbackAmount float64, callbackPhone string) (bool, error)
	AppendMetadata(ctx context.Context, checkoutID string, patch json.RawMessage) error
}

type LedgerCaller interface {
	ProcessPaymentCallback(ctx context.Context, checkoutID, receiptNumber string, amount float64, phone string) (*repository.ProcedureResult, error)
}

type AuditWriter interface {
	Insert(ctx context.Context, eventType string, creatorID *uuid.UUID, details any, severity string) error
}

type EventPublisher interface {
	Publish(event ws.Event)
}

// CallbackService settles payment attempts from Daraja callbacks. It is
// safe under concurrent delivery of the same callback: the terminal-status
// checks here are a fast path, and the authoritative exactly-once guarantee
// is the ledger procedure's own conditional update, so two racing
// deliveries cannot both credit even across processor instances.
type CallbackService struct {
	transactions TransactionStore
	ledger       LedgerCaller
	audit        AuditWriter
	events       EventPublisher
}

func NewCallbackService(transactions TransactionStore, ledger LedgerCaller, audit AuditWriter, events EventPublisher) *CallbackService {
	return &CallbackService{
		transactions: transactions,
		ledger:       ledger,
		audit:        audit,
		events:       events,
	}
}

// HandleCallback processes one webhook delivery. The returned error is
// classified so the HTTP layer can decide between acknowledging (stop
// provider retries) and signalling a retryable failure:
//   - validation errors (malformed payload): acknowledged, never retried
//   - not found: the callback refers to a charge this system never made
//   - transient errors (ledger unreachable): provider should retry
func (s *CallbackService) HandleCallback(ctx context.Context, raw []byte) (outcome CallbackOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.auditError(ctx, fmt.Sprintf("panic: %v", r), string(debug.Stack()))
			outcome = ""
			err = apperror.New(apperror.ErrCodeTransient, "callback processing failed")
		}
	}()

	notice, parseErr := mpesa.ParseCallback(raw)
	if parseErr != nil {
		s.auditError(ctx, parseErr.Error(), "")
		return "", apperror.Wrap(parseErr, apperror.ErrCodeValidation, "malformed callback payload")
	}

	tx, lookupErr := s.transactions.GetByCheckoutID(ctx, notice.CheckoutRequestID)
	if lookupErr != nil {
		if lookupErr == repository.ErrTransactionNotFound {
			// A callback for a request this system never created. Log and
			// stop; fabricating a record would let an attacker mint credits.
			logger.Log.WithField("checkout_id", notice.CheckoutRequestID).
				Warn("callback for unknown transaction")
			return "", apperror.ErrTransactionNotFound
		}
		return "", apperror.Wrap(lookupErr, apperror.ErrCodeTransient, "transaction lookup failed")
	}

	// Idempotency gate: callbacks are delivered more than once. Anything
	// already terminal is acknowledged without further mutation.
	if models.IsTerminalStatus(tx.Status) {
		return OutcomeAlreadyProcessed, nil
	}

	if !notice.Succeeded() {
		return s.handleFailure(ctx, tx, notice)
	}
	return s.handleSuccess(ctx, tx, notice)
}

func (s *CallbackService) handleFailure(ctx context.Context, tx *models.Transaction, notice *mpesa.SettlementNotice) (CallbackOutcome, error) {
	updated, err := s.transactions.MarkFailed(ctx, tx.CheckoutRequestID, notice.ResultDesc, notice.ResultCode)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeTransient, "failed to record failure")
	}
	if !updated {
		return OutcomeAlreadyProcessed, nil
	}

	s.auditEvent(ctx, models.AuditEventPaymentFailed, tx.CreatorID, models.AuditSeverityLow, map[string]any{
		"checkout_id": tx.CheckoutRequestID,
		"reason":      notice.ResultDesc,
		"code":        notice.ResultCode,
		"amount":      tx.Amount,
	})
	s.publishUpdate(ctx, tx.CheckoutRequestID)

	return OutcomeFailureLogged, nil
}

func (s *CallbackService) handleSuccess(ctx context.Context, tx *models.Transaction, notice *mpesa.SettlementNotice) (CallbackOutcome, error) {
	// A success callback without a receipt is malformed or spoofed. Never
	// complete a transaction without one.
	if notice.ReceiptNumber == "" {
		s.auditError(ctx, "success callback missing MpesaReceiptNumber", tx.CheckoutRequestID)
		return "", apperror.New(apperror.ErrCodeInternal, "callback missing receipt number")
	}

	// Fraud check: the settled amount and payer must match what was
	// requested. A mismatched callback must never move money automatically.
	if tx.Amount != notice.Amount ||
		validation.NormalizePhone(tx.PhoneNumber) != validation.NormalizePhone(notice.PhoneNumber) {
		return s.flagForReview(ctx, tx, notice)
	}

	result, err := s.ledger.ProcessPaymentCallback(ctx, tx.CheckoutRequestID, notice.ReceiptNumber, notice.Amount, notice.PhoneNumber)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeTransient, "ledger credit failed")
	}
	if !result.Success {
		if result.AlreadyProcessed {
			return OutcomeAlreadyProcessed, nil
		}
		return "", apperror.New(apperror.ErrCodeTransient, "ledger credit rejected: "+result.Error)
	}

	// Supplementary audit metadata. Best-effort: the money already moved
	// and this write must not undo or block that.
	patch, _ := json.Marshal(map[string]any{
		"callback_data": map[string]any{
			"receipt_number":   notice.ReceiptNumber,
			"transaction_date": mpesa.FormatTransactionDate(notice.TransactionDate),
			"full_callback":    notice.RawPayload,
		},
		"completed_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err := s.transactions.AppendMetadata(ctx, tx.CheckoutRequestID, patch); err != nil {
		logger.Log.WithError(err).WithField("checkout_id", tx.CheckoutRequestID).
			Error("failed to persist callback metadata")
	}

	s.auditEvent(ctx, models.AuditEventPaymentCompleted, tx.CreatorID, models.AuditSeverityLow, map[string]any{
		"checkout_id": tx.CheckoutRequestID,
		"receipt":     notice.ReceiptNumber,
		"amount":      notice.Amount,
	})
	s.publishUpdate(ctx, tx.CheckoutRequestID)

	return OutcomeCompleted, nil
}

func (s *CallbackService) flagForReview(ctx context.Context, tx *models.Transaction, notice *mpesa.SettlementNotice) (CallbackOutcome, error) {
	updated, err := s.transactions.MarkReview(ctx, tx.CheckoutRequestID, notice.Amount, notice.PhoneNumber)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeTransient, "failed to flag transaction")
	}
	if !updated {
		return OutcomeAlreadyProcessed, nil
	}

	s.auditEvent(ctx, models.AuditEventCallbackMismatch, tx.CreatorID, models.AuditSeverityHigh, map[string]any{
		"checkout_id":     tx.CheckoutRequestID,
		"original_amount": tx.Amount,
		"callback_amount": notice.Amount,
		"original_phone":  tx.PhoneNumber,
		"callback_phone":  notice.PhoneNumber,
	})

	// No push event here: the payer must not learn the attempt was
	// flagged. To their client it stays indistinguishable from PENDING.
	return OutcomeFlaggedForReview, nil
}

func (s *CallbackService) publishUpdate(ctx context.Context, checkoutID string) {
	if s.events == nil {
		return
	}
	current, err := s.transactions.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		logger.Log.WithError(err).WithField("checkout_id", checkoutID).
			Error("failed to load transaction for push event")
		return
	}
	s.events.Publish(ws.Event{EventType: "UPDATE", New: current})
}

func (s *CallbackService) auditEvent(ctx context.Context, eventType string, creatorID uuid.UUID, severity string, details map[string]any) {
	if err := s.audit.Insert(ctx, eventType, &creatorID, details, severity); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Error("failed to write audit entry")
	}
}

func (s *CallbackService) auditError(ctx context.Context, message, detail string) {
	if err := s.audit.Insert(ctx, models.AuditEventCallbackError, nil, map[string]any{
		"error":     message,
		"detail":    detail,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, models.AuditSeverityCritical); err != nil {
		logger.Log.WithError(err).Error("failed to write audit entry")
	}
}
