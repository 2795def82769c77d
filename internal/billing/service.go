package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/metrics"
	"github.com/nekogravitycat/facility-booking-backend/internal/notification"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/clock"
)

// ResourceConfirmer transitions a reservation to confirmed once its
// charge is fully paid. Implementations run inside the payment
// transaction and must use the supplied Querier.
type ResourceConfirmer interface {
	ConfirmPaid(ctx context.Context, q db.Querier, referenceID string) error
}

// OpenChargeInput describes a charge to open for a reservation or as
// a manual entry. A single pending installment covering the full
// amount is created alongside the charge.
type OpenChargeInput struct {
	UserID        string
	ReferenceType ReferenceType
	ReferenceID   *string
	Description   string
	Amount        decimal.Decimal
	DueDate       *time.Time
}

type StartPaymentInput struct {
	InstallmentID string
	Provider      string
	Method        string
}

type Service interface {
	// OpenCharge runs inside the caller's transaction so the charge is
	// created atomically with the reservation it bills.
	OpenCharge(ctx context.Context, q db.Querier, in OpenChargeInput) (*Charge, error)
	ReviseOpenCharge(ctx context.Context, q db.Querier, refType ReferenceType, refID string, amount decimal.Decimal, description string) error
	CancelByReference(ctx context.Context, q db.Querier, refType ReferenceType, refID string) error

	GetCharge(ctx context.Context, id string) (*Charge, []Installment, error)
	ListCharges(ctx context.Context, filter ChargeFilter) ([]Charge, int, error)

	StartPayment(ctx context.Context, in StartPaymentInput) (*Payment, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	ApprovePayment(ctx context.Context, id string) error
	CancelPayment(ctx context.Context, id string) error
	ExpireOverdue(ctx context.Context) (int, error)

	HandleWebhook(ctx context.Context, provider string, r *http.Request) error

	RegisterConfirmer(refType ReferenceType, c ResourceConfirmer)
	Gateway(provider string) (PaymentGateway, error)
}

type service struct {
	db         db.DB
	repo       Repository
	gateways   map[string]PaymentGateway
	confirmers map[ReferenceType]ResourceConfirmer
	notifier   notification.Notifier
	clock      clock.Clock
	paymentTTL time.Duration
	logger     zerolog.Logger
}

func NewService(database db.DB, repo Repository, notifier notification.Notifier, clk clock.Clock, paymentTTL time.Duration, logger zerolog.Logger, gateways ...PaymentGateway) Service {
	gw := make(map[string]PaymentGateway, len(gateways))
	for _, g := range gateways {
		gw[g.Provider()] = g
	}
	return &service{
		db:         database,
		repo:       repo,
		gateways:   gw,
		confirmers: make(map[ReferenceType]ResourceConfirmer),
		notifier:   notifier,
		clock:      clk,
		paymentTTL: paymentTTL,
		logger:     logger.With().Str("component", "billing").Logger(),
	}
}

// RegisterConfirmer wires a reservation domain into the payment
// approval cascade. Must be called during startup, before requests are
// served.
func (s *service) RegisterConfirmer(refType ReferenceType, c ResourceConfirmer) {
	s.confirmers[refType] = c
}

func (s *service) Gateway(provider string) (PaymentGateway, error) {
	g, ok := s.gateways[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return g, nil
}

func (s *service) OpenCharge(ctx context.Context, q db.Querier, in OpenChargeInput) (*Charge, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	charge := &Charge{
		UserID:        in.UserID,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		Description:   in.Description,
		TotalAmount:   in.Amount,
		PaidAmount:    decimal.Zero,
		Status:        ChargePending,
		DueDate:       in.DueDate,
	}
	if err := s.repo.CreateCharge(ctx, q, charge); err != nil {
		return nil, err
	}

	inst := &Installment{
		ChargeID:          charge.ID,
		SequenceNumber:    1,
		TotalInstallments: 1,
		Amount:            in.Amount,
		PaidAmount:        decimal.Zero,
		Status:            InstallmentPending,
		DueDate:           in.DueDate,
	}
	if err := s.repo.CreateInstallment(ctx, q, inst); err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyNewCharge(ctx, charge.UserID, charge.Description, charge.TotalAmount, ""); err != nil {
		s.logger.Warn().Err(err).Str("charge_id", charge.ID).Msg("new charge notification failed")
	}
	return charge, nil
}

// ReviseOpenCharge resizes the pending charge tied to a reservation
// after the reservation's price changed. Charges that already
// collected money cannot be revised.
func (s *service) ReviseOpenCharge(ctx context.Context, q db.Querier, refType ReferenceType, refID string, amount decimal.Decimal, description string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	charge, err := s.repo.GetChargeByReference(ctx, q, refType, refID)
	if err != nil {
		return err
	}
	if charge.Status != ChargePending || !charge.PaidAmount.IsZero() {
		return ErrInvalidState
	}

	installments, err := s.repo.ListInstallmentsByCharge(ctx, q, charge.ID)
	if err != nil {
		return err
	}
	for i := range installments {
		inst := &installments[i]
		if inst.Status != InstallmentPending {
			continue
		}
		pending, err := s.repo.HasPendingPayment(ctx, q, inst.ID)
		if err != nil {
			return err
		}
		if pending {
			return ErrInvalidState
		}
		inst.Amount = amount
		if err := s.repo.UpdateInstallment(ctx, q, inst); err != nil {
			return err
		}
	}

	charge.TotalAmount = amount
	charge.Description = description
	query, args, err := psql.Update("charges").
		Set("total_amount", amount).
		Set("description", description).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": charge.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revise charge query: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("revise charge: %w", err)
	}
	return nil
}

// CancelByReference voids the pending charge of a cancelled
// reservation: installments and pending payments go with it. A charge
// that is already paid is left untouched.
func (s *service) CancelByReference(ctx context.Context, q db.Querier, refType ReferenceType, refID string) error {
	charge, err := s.repo.GetChargeByReference(ctx, q, refType, refID)
	if err != nil {
		if errors.Is(err, ErrChargeNotFound) {
			return nil
		}
		return err
	}
	if charge.Status != ChargePending {
		return nil
	}

	installments, err := s.repo.ListInstallmentsByCharge(ctx, q, charge.ID)
	if err != nil {
		return err
	}
	for i := range installments {
		inst := &installments[i]
		if inst.Status != InstallmentPending {
			continue
		}
		inst.Status = InstallmentCancelled
		if err := s.repo.UpdateInstallment(ctx, q, inst); err != nil {
			return err
		}
	}

	charge.Status = ChargeCancelled
	return s.repo.UpdateCharge(ctx, q, charge)
}

func (s *service) GetCharge(ctx context.Context, id string) (*Charge, []Installment, error) {
	charge, err := s.repo.GetCharge(ctx, s.db, id)
	if err != nil {
		return nil, nil, err
	}
	installments, err := s.repo.ListInstallmentsByCharge(ctx, s.db, charge.ID)
	if err != nil {
		return nil, nil, err
	}
	return charge, installments, nil
}

func (s *service) ListCharges(ctx context.Context, filter ChargeFilter) ([]Charge, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.repo.ListCharges(ctx, s.db, filter)
}

// StartPayment opens a provider checkout for a pending installment. At
// most one pending payment may exist per installment at a time.
func (s *service) StartPayment(ctx context.Context, in StartPaymentInput) (*Payment, error) {
	gateway, err := s.Gateway(in.Provider)
	if err != nil {
		return nil, err
	}

	var payment *Payment
	err = s.db.WithinTx(ctx, func(q db.Querier) error {
		inst, err := s.repo.GetInstallmentForUpdate(ctx, q, in.InstallmentID)
		if err != nil {
			return err
		}
		if inst.Status != InstallmentPending {
			return ErrInvalidState
		}
		pending, err := s.repo.HasPendingPayment(ctx, q, inst.ID)
		if err != nil {
			return err
		}
		if pending {
			return ErrInvalidState
		}

		charge, err := s.repo.GetCharge(ctx, q, inst.ChargeID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		expiresAt := now.Add(s.paymentTTL)
		remaining := inst.Amount.Sub(inst.PaidAmount)

		payment = &Payment{
			InstallmentID: inst.ID,
			Provider:      in.Provider,
			Method:        in.Method,
			Amount:        remaining,
			Status:        PaymentPending,
			ExpiresAt:     &expiresAt,
		}
		if err := s.repo.CreatePayment(ctx, q, payment); err != nil {
			return err
		}

		checkout, err := gateway.CreateCheckout(ctx, CheckoutRequest{
			PaymentID:   payment.ID,
			Amount:      remaining,
			Description: charge.Description,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			return fmt.Errorf("create checkout: %w", err)
		}
		payment.ExternalTransactionID = checkout.ExternalTransactionID
		payment.CheckoutURL = checkout.CheckoutURL
		return s.repo.UpdatePayment(ctx, q, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("payment_id", payment.ID).
		Str("provider", payment.Provider).
		Str("installment_id", payment.InstallmentID).
		Msg("payment started")
	return payment, nil
}

func (s *service) GetPayment(ctx context.Context, id string) (*Payment, error) {
	return s.repo.GetPayment(ctx, s.db, id)
}

// ApprovePayment settles a pending payment and cascades the money up:
// installment, then charge, then the reservation the charge bills.
func (s *service) ApprovePayment(ctx context.Context, id string) error {
	var notify *Charge
	err := s.db.WithinTx(ctx, func(q db.Querier) error {
		payment, err := s.repo.GetPaymentForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		paid, err := s.approveLocked(ctx, q, payment)
		if err != nil {
			return err
		}
		notify = paid
		return nil
	})
	if err != nil {
		metrics.IncPayment("rejected")
		return err
	}
	metrics.IncPayment("approved")
	s.notifyPaid(ctx, notify)
	return nil
}

// approveLocked applies an approval to an already row-locked pending
// payment. Returns the charge when this approval completed it.
func (s *service) approveLocked(ctx context.Context, q db.Querier, payment *Payment) (*Charge, error) {
	now := s.clock.Now()
	if payment.Expired(now) {
		payment.Status = PaymentExpired
		if err := s.repo.UpdatePayment(ctx, q, payment); err != nil {
			return nil, err
		}
		return nil, ErrInvalidState
	}
	if payment.Status != PaymentPending {
		return nil, ErrInvalidState
	}

	// Validate the whole chain before mutating anything, so a stale
	// approval never leaves partial writes behind when the caller acks
	// it instead of rolling back.
	inst, err := s.repo.GetInstallmentForUpdate(ctx, q, payment.InstallmentID)
	if err != nil {
		return nil, err
	}
	if inst.Status != InstallmentPending {
		return nil, ErrInvalidState
	}
	charge, err := s.repo.GetChargeForUpdate(ctx, q, inst.ChargeID)
	if err != nil {
		return nil, err
	}
	if charge.Status != ChargePending {
		return nil, ErrInvalidState
	}

	payment.Status = PaymentApproved
	if err := s.repo.UpdatePayment(ctx, q, payment); err != nil {
		return nil, err
	}

	inst.PaidAmount = inst.PaidAmount.Add(payment.Amount)
	if inst.PaidAmount.GreaterThanOrEqual(inst.Amount) {
		inst.Status = InstallmentPaid
	}
	if err := s.repo.UpdateInstallment(ctx, q, inst); err != nil {
		return nil, err
	}

	charge.PaidAmount = charge.PaidAmount.Add(payment.Amount)
	chargePaid := charge.PaidAmount.GreaterThanOrEqual(charge.TotalAmount)
	if chargePaid {
		charge.Status = ChargePaid
	}
	if err := s.repo.UpdateCharge(ctx, q, charge); err != nil {
		return nil, err
	}

	if chargePaid && charge.ReferenceType != RefManual && charge.ReferenceID != nil {
		confirmer, ok := s.confirmers[charge.ReferenceType]
		if !ok {
			return nil, fmt.Errorf("no confirmer registered for reference type %q", charge.ReferenceType)
		}
		if err := confirmer.ConfirmPaid(ctx, q, *charge.ReferenceID); err != nil {
			return nil, fmt.Errorf("confirm %s %s: %w", charge.ReferenceType, *charge.ReferenceID, err)
		}
	}
	if chargePaid {
		return charge, nil
	}
	return nil, nil
}

// CancelPayment voids a pending payment. When it was the installment's
// last non-cancelled payment the installment and its charge are
// cascade-cancelled with it.
func (s *service) CancelPayment(ctx context.Context, id string) error {
	err := s.db.WithinTx(ctx, func(q db.Querier) error {
		payment, err := s.repo.GetPaymentForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if payment.Status != PaymentPending {
			return ErrInvalidState
		}
		return s.cancelLocked(ctx, q, payment)
	})
	if err != nil {
		return err
	}
	metrics.IncPayment("cancelled")
	return nil
}

// cancelLocked voids an already row-locked pending payment and, when no
// other non-cancelled payment remains for the installment, cascades the
// cancellation to the installment and its charge.
func (s *service) cancelLocked(ctx context.Context, q db.Querier, payment *Payment) error {
	payment.Status = PaymentCancelled
	if err := s.repo.UpdatePayment(ctx, q, payment); err != nil {
		return err
	}

	live, err := s.repo.HasLivePayment(ctx, q, payment.InstallmentID, payment.ID)
	if err != nil {
		return err
	}
	if live {
		return nil
	}

	inst, err := s.repo.GetInstallmentForUpdate(ctx, q, payment.InstallmentID)
	if err != nil {
		return err
	}
	if inst.Status != InstallmentPending {
		return nil
	}
	inst.Status = InstallmentCancelled
	if err := s.repo.UpdateInstallment(ctx, q, inst); err != nil {
		return err
	}

	charge, err := s.repo.GetChargeForUpdate(ctx, q, inst.ChargeID)
	if err != nil {
		return err
	}
	if charge.Status != ChargePending {
		return nil
	}
	charge.Status = ChargeCancelled
	return s.repo.UpdateCharge(ctx, q, charge)
}

// ExpireOverdue sweeps pending payments past their deadline. Runs on a
// schedule; expiry is also applied lazily when a stale payment is
// touched.
func (s *service) ExpireOverdue(ctx context.Context) (int, error) {
	var expired int
	err := s.db.WithinTx(ctx, func(q db.Querier) error {
		now := s.clock.Now()
		payments, err := s.repo.ListOverduePayments(ctx, q, now, 100)
		if err != nil {
			return err
		}
		for i := range payments {
			p := &payments[i]
			p.Status = PaymentExpired
			if err := s.repo.UpdatePayment(ctx, q, p); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.Info().Int("count", expired).Msg("expired overdue payments")
		for i := 0; i < expired; i++ {
			metrics.IncPayment("expired")
		}
	}
	return expired, nil
}

func (s *service) notifyPaid(ctx context.Context, charge *Charge) {
	if charge == nil {
		return
	}
	if err := s.notifier.NotifyChargeApproved(ctx, charge.UserID, charge.Description, charge.TotalAmount); err != nil {
		s.logger.Warn().Err(err).Str("charge_id", charge.ID).Msg("charge approved notification failed")
	}
}
