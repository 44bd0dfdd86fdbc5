package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tumalove/tumalove-backend/internal/models"
	"github.com/tumalove/tumalove-backend/internal/mpesa"
	"github.com/tumalove/tumalove-backend/internal/pkg/apperror"
	"github.com/tumalove/tumalove-backend/internal/repository"
	"github.com/tumalove/tumalove-backend/internal/validation"
)

// Action classes for the rate limiter.
const (
	ActionPayment    = "payment"
	ActionWithdrawal = "withdrawal"
)

type ChargeRequester interface {
	RequestCharge(ctx context.Context, phone string, amount float64, reference, description string) (*mpesa.ChargeResult, error)
}

type TransactionCreator interface {
	Create(ctx context.Context, t *models.Transaction) (*models.Transaction, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error)
}

type CreatorFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Creator, error)
}

type RateGuard interface {
	Allow(ctx context.Context, action, clientKey string) error
}

// TipRequest is the validated-and-normalized input of one payment attempt.
// ClientKey identifies the caller for rate limiting (typically the IP).
type TipRequest struct {
	PhoneNumber   string
	Amount        float64
	CreatorID     uuid.UUID
	SupporterName string
	Message       string
	ClientKey     string
}

// PaymentService initiates STK push charges and records the resulting
// PENDING transactions.
type PaymentService struct {
	creators     CreatorFinder
	transactions TransactionCreator
	charger      ChargeRequester
	guard        RateGuard
}

func NewPaymentService(creators CreatorFinder, transactions TransactionCreator, charger ChargeRequester, guard RateGuard) *PaymentService {
	return &PaymentService{
		creators:     creators,
		transactions: transactions,
		charger:      charger,
		guard:        guard,
	}
}

// InitiateTip validates the request, submits the charge and creates the
// PENDING transaction keyed by the checkout request id. The rate limiter
// runs before any network call; a rejected charge leaves no row behind.
func (s *PaymentService) InitiateTip(ctx context.Context, req TipRequest) (*models.Transaction, error) {
	if err := s.guard.Allow(ctx, ActionPayment, req.ClientKey); err != nil {
		return nil, err
	}

	phone, err := validation.ValidatePhone(req.PhoneNumber)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateTipAmount(req.Amount); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	if _, err := s.creators.GetByID(ctx, req.CreatorID); err != nil {
		return nil, apperror.ErrCreatorNotFound
	}

	// The charge payload must never carry empty identity fields.
	supporterName := req.SupporterName
	if supporterName == "" {
		supporterName = "Anonymous"
	}

	reference := fmt.Sprintf("tip_%s_%d", req.CreatorID, time.Now().UnixMilli())

	charge, err := s.charger.RequestCharge(ctx, phone, req.Amount, reference, "Tip Payment")
	if err != nil {
		if errors.Is(err, mpesa.ErrRejected) {
			return nil, apperror.Wrap(err, apperror.ErrCodeProviderRejected, translateProviderError(err))
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeTransient, "payment service temporarily unavailable, please try again")
	}

	fee := models.ComputePlatformFee(req.Amount)
	metadata, _ := json.Marshal(map[string]any{
		"account_reference": reference,
		"stk_initiated_at":  time.Now().UTC().Format(time.RFC3339),
	})

	created, err := s.transactions.Create(ctx, &models.Transaction{
		CreatorID:         req.CreatorID,
		CheckoutRequestID: charge.CheckoutRequestID,
		MerchantRequestID: charge.MerchantRequestID,
		Amount:            req.Amount,
		PlatformFee:       fee,
		NetAmount:         req.Amount - fee,
		PhoneNumber:       phone,
		SupporterName:     supporterName,
		SupporterMessage:  req.Message,
		Metadata:          metadata,
	})
	if err != nil {
		// The prompt is already on the payer's device; surface the checkout
		// id so the callback can still be reconciled manually.
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal,
			fmt.Sprintf("failed to record transaction %s", charge.CheckoutRequestID))
	}

	return created, nil
}

// GetStatus is the polling channel: the current state of one payment
// attempt by checkout request id.
func (s *PaymentService) GetStatus(ctx context.Context, checkoutID string) (*models.Transaction, error) {
	tx, err := s.transactions.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeTransient, "transaction lookup failed")
	}
	return tx, nil
}

// ListCreatorTransactions returns recent tips for the dashboard.
func (s *PaymentService) ListCreatorTransactions(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.transactions.ListByCreator(ctx, creatorID, limit, offset)
}

// translateProviderError maps raw Daraja rejection reasons to short
// user-safe messages.
func translateProviderError(err error) string {
	msg := err.Error()
	switch {
	case containsFold(msg, "insufficient"):
		return "insufficient M-Pesa balance"
	case containsFold(msg, "invalid phone"), containsFold(msg, "invalid msisdn"):
		return "the phone number was not accepted, please check it"
	default:
		return "payment was not accepted, please try again"
	}
}
