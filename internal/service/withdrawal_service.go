package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tumalove/tumalove-backend/internal/logger"
	"github.com/tumalove/tumalove-backend/internal/models"
	"github.com/tumalove/tumalove-backend/internal/pkg/apperror"
	"github.com/tumalove/tumalove-backend/internal/repository"
)

type WithdrawalStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, withinDays int) ([]models.Withdrawal, error)
	ListPending(ctx context.Context) ([]models.Withdrawal, error)
}

type WithdrawalLedger interface {
	RequestWithdrawal(ctx context.Context, creatorID uuid.UUID, amount float64, idempotencyKey string) (*repository.ProcedureResult, error)
	CompleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID, mpesaReference *string) (*repository.ProcedureResult, error)
}

type BalanceReader interface {
	GetByCreator(ctx context.Context, creatorID uuid.UUID) (*models.CreatorBalance, error)
}

// WithdrawalService handles creator payout requests and their operator
// approval. Balance movement lives entirely in the ledger procedures; this
// layer validates, rate-limits and audits.
type WithdrawalService struct {
	withdrawals WithdrawalStore
	ledger      WithdrawalLedger
	balances    BalanceReader
	creators    CreatorFinder
	audit       AuditWriter
	guard       RateGuard
}

func NewWithdrawalService(
	withdrawals WithdrawalStore,
	ledger WithdrawalLedger,
	balances BalanceReader,
	creators CreatorFinder,
	audit AuditWriter,
	guard RateGuard,
) *WithdrawalService {
	return &WithdrawalService{
		withdrawals: withdrawals,
		ledger:      ledger,
		balances:    balances,
		creators:    creators,
		audit:       audit,
		guard:       guard,
	}
}

// WithdrawalRequest is one payout request. IdempotencyKey is supplied by
// the client so a retried submission cannot create a second withdrawal.
type WithdrawalRequest struct {
	CreatorID      uuid.UUID
	Amount         float64
	IdempotencyKey string
	ClientKey      string
}

// Request creates a PENDING withdrawal. The balance guard and the
// idempotency-key uniqueness are enforced inside request_withdrawal, so
// two concurrent submissions of the same key yield one row.
func (s *WithdrawalService) Request(ctx context.Context, req WithdrawalRequest) (*models.Withdrawal, error) {
	if err := s.guard.Allow(ctx, ActionWithdrawal, req.ClientKey); err != nil {
		return nil, err
	}

	if req.Amount < models.MinWithdrawalAmount {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("minimum withdrawal is %.0f KES", models.MinWithdrawalAmount))
	}
	if req.IdempotencyKey == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "idempotency key is required")
	}

	creator, err := s.creators.GetByID(ctx, req.CreatorID)
	if err != nil {
		return nil, apperror.ErrCreatorNotFound
	}
	if creator.MpesaNumber == nil || *creator.MpesaNumber == "" {
		return nil, apperror.New(apperror.ErrCodeValidation,
			"add an M-Pesa number to your profile before withdrawing")
	}

	// Early read for a friendly error message; the authoritative check is
	// the guarded update inside the procedure.
	balance, err := s.balances.GetByCreator(ctx, req.CreatorID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeTransient, "balance lookup failed")
	}
	if balance.AvailableBalance < req.Amount {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("insufficient balance: available %.2f KES", balance.AvailableBalance))
	}

	result, err := s.ledger.RequestWithdrawal(ctx, req.CreatorID, req.Amount, req.IdempotencyKey)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeTransient, "withdrawal request failed")
	}
	if !result.Success {
		if result.WithdrawalID != nil {
			// The key was seen before; hand back the original request
			// unchanged instead of erroring.
			return s.withdrawals.GetByID(ctx, *result.WithdrawalID)
		}
		return nil, apperror.New(apperror.ErrCodeValidation, result.Error)
	}
	if result.WithdrawalID == nil {
		return nil, apperror.New(apperror.ErrCodeInternal, "withdrawal procedure returned no id")
	}

	withdrawal, err := s.withdrawals.GetByID(ctx, *result.WithdrawalID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load created withdrawal")
	}

	s.auditEvent(ctx, models.AuditEventWithdrawalRequested, req.CreatorID, models.AuditSeverityMedium, map[string]any{
		"withdrawal_id": withdrawal.ID,
		"amount":        req.Amount,
	})

	return withdrawal, nil
}

// Approve settles one pending withdrawal. The status CAS and balance debit
// run in a single guarded statement, so a second concurrent approval is a
// no-op rather than a double debit. Viewers cannot approve.
func (s *WithdrawalService) Approve(ctx context.Context, actorRole string, withdrawalID uuid.UUID, mpesaReference *string) (*models.Withdrawal, error) {
	if actorRole != models.RoleAdmin && actorRole != models.RoleOperator {
		return nil, apperror.ErrForbidden
	}

	withdrawal, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		if err == repository.ErrWithdrawalNotFound {
			return nil, apperror.ErrWithdrawalNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeTransient, "withdrawal lookup failed")
	}

	result, err := s.ledger.CompleteWithdrawal(ctx, withdrawalID, mpesaReference)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeTransient, "withdrawal completion failed")
	}
	if !result.Success && !result.AlreadyProcessed {
		return nil, apperror.New(apperror.ErrCodeConflict, result.Error)
	}

	settled, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load settled withdrawal")
	}

	if result.Success {
		s.auditEvent(ctx, models.AuditEventWithdrawalCompleted, withdrawal.CreatorID, models.AuditSeverityMedium, map[string]any{
			"withdrawal_id": withdrawalID,
			"amount":        withdrawal.Amount,
		})
	}

	return settled, nil
}

// History returns a creator's withdrawals; withinDays <= 0 means all.
func (s *WithdrawalService) History(ctx context.Context, creatorID uuid.UUID, withinDays int) ([]models.Withdrawal, error) {
	return s.withdrawals.ListByCreator(ctx, creatorID, withinDays)
}

// Queue returns the pending approval queue, oldest first.
func (s *WithdrawalService) Queue(ctx context.Context) ([]models.Withdrawal, error) {
	return s.withdrawals.ListPending(ctx)
}

// Balance returns the creator's current ledger aggregate.
func (s *WithdrawalService) Balance(ctx context.Context, creatorID uuid.UUID) (*models.CreatorBalance, error) {
	balance, err := s.balances.GetByCreator(ctx, creatorID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeTransient, "balance lookup failed")
	}
	return balance, nil
}

func (s *WithdrawalService) auditEvent(ctx context.Context, eventType string, creatorID uuid.UUID, severity string, details map[string]any) {
	if err := s.audit.Insert(ctx, eventType, &creatorID, details, severity); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Error("failed to write audit entry")
	}
}
