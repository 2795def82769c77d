package billing

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/facility-booking-backend/internal/db/dbtest"
	"github.com/nekogravitycat/facility-booking-backend/internal/notification"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/clock"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, gateways ...PaymentGateway) (*service, *mockRepository) {
	t.Helper()
	repo := &mockRepository{}
	svc := NewService(
		dbtest.Stub{},
		repo,
		notification.NewLogNotifier(zerolog.Nop()),
		clock.Fixed(testNow),
		30*time.Minute,
		zerolog.Nop(),
		gateways...,
	).(*service)
	return svc, repo
}

func TestOpenCharge(t *testing.T) {
	svc, repo := newTestService(t)
	refID := "res-1"

	repo.On("CreateCharge", mock.Anything, nil, mock.MatchedBy(func(c *Charge) bool {
		return c.Status == ChargePending && c.TotalAmount.Equal(decimal.NewFromInt(160))
	})).Run(func(args mock.Arguments) {
		args.Get(2).(*Charge).ID = "charge-1"
	}).Return(nil)

	repo.On("CreateInstallment", mock.Anything, nil, mock.MatchedBy(func(inst *Installment) bool {
		return inst.ChargeID == "charge-1" &&
			inst.SequenceNumber == 1 &&
			inst.TotalInstallments == 1 &&
			inst.Amount.Equal(decimal.NewFromInt(160)) &&
			inst.Status == InstallmentPending
	})).Return(nil)

	charge, err := svc.OpenCharge(context.Background(), nil, OpenChargeInput{
		UserID:        "user-1",
		ReferenceType: RefCourtBooking,
		ReferenceID:   &refID,
		Description:   "Court booking",
		Amount:        decimal.NewFromInt(160),
	})
	require.NoError(t, err)
	assert.Equal(t, "charge-1", charge.ID)
	repo.AssertExpectations(t)
}

func TestOpenChargeRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.OpenCharge(context.Background(), nil, OpenChargeInput{
		UserID: "user-1",
		Amount: decimal.Zero,
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestStartPayment(t *testing.T) {
	gw := &mockGateway{name: "sandbox"}
	svc, repo := newTestService(t, gw)

	inst := &Installment{ID: "inst-1", ChargeID: "charge-1", Amount: decimal.NewFromInt(160), PaidAmount: decimal.Zero, Status: InstallmentPending}
	repo.On("GetInstallmentForUpdate", mock.Anything, nil, "inst-1").Return(inst, nil)
	repo.On("HasPendingPayment", mock.Anything, nil, "inst-1").Return(false, nil)
	repo.On("GetCharge", mock.Anything, nil, "charge-1").Return(&Charge{ID: "charge-1", Description: "Court booking"}, nil)
	repo.On("CreatePayment", mock.Anything, nil, mock.MatchedBy(func(p *Payment) bool {
		return p.Status == PaymentPending &&
			p.Amount.Equal(decimal.NewFromInt(160)) &&
			p.ExpiresAt != nil && p.ExpiresAt.Equal(testNow.Add(30*time.Minute))
	})).Run(func(args mock.Arguments) {
		args.Get(2).(*Payment).ID = "pay-1"
	}).Return(nil)
	gw.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(req CheckoutRequest) bool {
		return req.PaymentID == "pay-1" && req.Amount.Equal(decimal.NewFromInt(160))
	})).Return(Checkout{ExternalTransactionID: "sbx_1", CheckoutURL: "https://pay.example/sbx_1"}, nil)
	repo.On("UpdatePayment", mock.Anything, nil, mock.MatchedBy(func(p *Payment) bool {
		return p.ExternalTransactionID == "sbx_1" && p.CheckoutURL == "https://pay.example/sbx_1"
	})).Return(nil)

	payment, err := svc.StartPayment(context.Background(), StartPaymentInput{
		InstallmentID: "inst-1",
		Provider:      "sandbox",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-1", payment.ID)
	assert.Equal(t, "sbx_1", payment.ExternalTransactionID)
	repo.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestStartPaymentUnknownProvider(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.StartPayment(context.Background(), StartPaymentInput{
		InstallmentID: "inst-1",
		Provider:      "stripe",
	})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestStartPaymentRejectsSecondPending(t *testing.T) {
	gw := &mockGateway{name: "sandbox"}
	svc, repo := newTestService(t, gw)

	inst := &Installment{ID: "inst-1", ChargeID: "charge-1", Amount: decimal.NewFromInt(160), Status: InstallmentPending}
	repo.On("GetInstallmentForUpdate", mock.Anything, nil, "inst-1").Return(inst, nil)
	repo.On("HasPendingPayment", mock.Anything, nil, "inst-1").Return(true, nil)

	_, err := svc.StartPayment(context.Background(), StartPaymentInput{
		InstallmentID: "inst-1",
		Provider:      "sandbox",
	})
	assert.ErrorIs(t, err, ErrInvalidState)
	repo.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartPaymentRejectsPaidInstallment(t *testing.T) {
	gw := &mockGateway{name: "sandbox"}
	svc, repo := newTestService(t, gw)

	inst := &Installment{ID: "inst-1", Status: InstallmentPaid}
	repo.On("GetInstallmentForUpdate", mock.Anything, nil, "inst-1").Return(inst, nil)

	_, err := svc.StartPayment(context.Background(), StartPaymentInput{
		InstallmentID: "inst-1",
		Provider:      "sandbox",
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestApprovePaymentCascades(t *testing.T) {
	svc, repo := newTestService(t)
	confirmer := &mockConfirmer{}
	svc.RegisterConfirmer(RefCourtBooking, confirmer)

	refID := "booking-1"
	expires := testNow.Add(10 * time.Minute)
	payment := &Payment{ID: "pay-1", InstallmentID: "inst-1", Amount: decimal.NewFromInt(160), Status: PaymentPending, ExpiresAt: &expires}
	inst := &Installment{ID: "inst-1", ChargeID: "charge-1", Amount: decimal.NewFromInt(160), PaidAmount: decimal.Zero, Status: InstallmentPending}
	charge := &Charge{
		ID: "charge-1", UserID: "user-1",
		ReferenceType: RefCourtBooking, ReferenceID: &refID,
		TotalAmount: decimal.NewFromInt(160), PaidAmount: decimal.Zero,
		Status: ChargePending,
	}

	repo.On("GetPaymentForUpdate", mock.Anything, nil, "pay-1").Return(payment, nil)
	repo.On("UpdatePayment", mock.Anything, nil, mock.MatchedBy(func(p *Payment) bool {
		return p.Status == PaymentApproved
	})).Return(nil)
	repo.On("GetInstallmentForUpdate", mock.Anything, nil, "inst-1").Return(inst, nil)
	repo.On("UpdateInstallment", mock.Anything, nil, mock.MatchedBy(func(i *Installment) bool {
		return i.Status == InstallmentPaid && i.PaidAmount.Equal(decimal.NewFromInt(160))
	})).Return(nil)
	repo.On("GetChargeForUpdate", mock.Anything, nil, "charge-1").Return(charge, nil)
	repo.On("UpdateCharge", mock.Anything, nil, mock.MatchedBy(func(c *Charge) bool {
		return c.Status == ChargePaid && c.PaidAmount.Equal(decimal.NewFromInt(160))
	})).Return(nil)
	confirmer.On("ConfirmPaid", mock.Anything, nil, "booking-1").Return(nil)

	err := svc.ApprovePayment(context.Background(), "pay-1")
	require.NoError(t, err)
	repo.AssertExpectations(t)
	confirmer.AssertExpectations(t)
}

func TestApprovePaymentRejectsNonPending(t *testing.T) {
	svc, repo := newTestService(t)

	payment := &Payment{ID: "pay-1", Status: PaymentApproved}
	repo.On("GetPaymentForUpdate", mock.Anything, nil, "pay-1").Return(payment, nil)

	err := svc.ApprovePayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrInvalidState)
	repo.AssertNotCalled(t, "UpdateCharge", mock.Anything, mock.Anything, mock.Anything)
}

func TestApprovePaymentExpiresStalePending(t *testing.T) {
	svc, repo := newTestService(t)

	expires := testNow.Add(-time.Minute)
	payment := &Payment{ID: "pay-1", Status: PaymentPending, ExpiresAt: &expires}
	repo.On("GetPaymentForUpdate", mock.Anything, nil, "pay-1").Return(payment, nil)
	repo.On("UpdatePayment", mock.Anything, nil, mock.MatchedBy(func(p *Payment) bool {
		return p.Status == PaymentExpired
	})).Return(nil)

	err := svc.ApprovePayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrInvalidState)
	repo.AssertExpectations(t)
}

func TestApprovePaymentRejectsCancelledCharge(t *testing.T) {
	svc, repo := newTestService(t)

	expires := testNow.Add(10 * time.Minute)
	payment := &Payment{ID: "pay-1", InstallmentID: "inst-1", Amount: decimal.NewFromInt(160), Status: PaymentPending, ExpiresAt: &expires}
	repo.On("GetPaymentForUpdate", mock.Anything, nil, "pay-1").Return(payment, nil)
	repo.On("GetInstallmentForUpdate", mock.Anything, nil, "inst-1").
		Return(&Installment{ID: "inst-1", ChargeID: "charge-1", Status: InstallmentPending}, nil)
	repo.On("GetChargeForUpdate", mock.Anything, nil, "charge-1").
		Return(&Charge{ID: "charge-1", Status: ChargeCancelled}, nil)

	err := svc.ApprovePayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrInvalidState)
	repo.AssertNotCalled(t, "UpdatePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelPaymentCascadesWhenLast(t *testing.T) {
	svc, repo := newTestService(t)

	payment := &Payment{ID: "pay-1", InstallmentID: "inst-1", Status: PaymentPending}
	repo.On("GetPaymentForUpdate", mock.Anything, nil, "pay-1").Return(payment, nil)
	repo.On("UpdatePayment", mock.Anything, nil, mock.MatchedBy(func(p *Payment) bool {
		return p.Status == PaymentCancelled
	})).Return(nil)
	repo.On("HasLivePayment", mock.Anything, nil, "inst-1", "pay-1").Return(false, nil)
	repo.On("GetInstallmentForUpdate", mock.Anything, nil, "inst-1").
		Return(&Installment{ID: "inst-1", ChargeID: "charge-1", Status: InstallmentPending}, nil)
	repo.On("UpdateInstallment", mock.Anything, nil, mock.MatchedBy(func(i *Installment) bool {
		return i.Status == InstallmentCancelled
	})).Return(nil)
	repo.On("GetChargeForUpdate", mock.Anything, nil, "charge-1").
		Return(&Charge{ID: "charge-1", Status: ChargePending}, nil)
	repo.On("UpdateCharge", mock.Anything, nil, mock.MatchedBy(func(c *Charge) bool {
		return c.Status == ChargeCancelled
	})).Return(nil)

	require.NoError(t, svc.CancelPayment(context.Background(), "pay-1"))
	repo.AssertExpectations(t)
}

func TestCancelPaymentKeepsInstallmentWhileOthersLive(t *testing.T) {
	svc, repo := newTestService(t)

	payment := &Payment{ID: "pay-2", InstallmentID: "inst-1", Status: PaymentPending}
	repo.On("GetPaymentForUpdate", mock.Anything, nil, "pay-2").Return(payment, nil)
	repo.On("UpdatePayment", mock.Anything, nil, mock.MatchedBy(func(p *Payment) bool {
		return p.Status == PaymentCancelled
	})).Return(nil)
	repo.On("HasLivePayment", mock.Anything, nil, "inst-1", "pay-2").Return(true, nil)

	require.NoError(t, svc.CancelPayment(context.Background(), "pay-2"))
	repo.AssertNotCalled(t, "GetInstallmentForUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelPaymentRejectsApproved(t *testing.T) {
	svc, repo := newTestService(t)

	payment := &Payment{ID: "pay-1", Status: PaymentApproved}
	repo.On("GetPaymentForUpdate", mock.Anything, nil, "pay-1").Return(payment, nil)

	err := svc.CancelPayment(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelByReference(t *testing.T) {
	svc, repo := newTestService(t)

	refID := "booking-1"
	charge := &Charge{ID: "charge-1", ReferenceType: RefCourtBooking, ReferenceID: &refID, Status: ChargePending}
	repo.On("GetChargeByReference", mock.Anything, nil, RefCourtBooking, "booking-1").Return(charge, nil)
	repo.On("ListInstallmentsByCharge", mock.Anything, nil, "charge-1").Return([]Installment{
		{ID: "inst-1", ChargeID: "charge-1", Status: InstallmentPending},
	}, nil)
	repo.On("UpdateInstallment", mock.Anything, nil, mock.MatchedBy(func(i *Installment) bool {
		return i.Status == InstallmentCancelled
	})).Return(nil)
	repo.On("UpdateCharge", mock.Anything, nil, mock.MatchedBy(func(c *Charge) bool {
		return c.Status == ChargeCancelled
	})).Return(nil)

	require.NoError(t, svc.CancelByReference(context.Background(), nil, RefCourtBooking, "booking-1"))
	repo.AssertExpectations(t)
}

func TestCancelByReferenceNoChargeIsNoop(t *testing.T) {
	svc, repo := newTestService(t)

	repo.On("GetChargeByReference", mock.Anything, nil, RefCourtBooking, "booking-1").Return(nil, ErrChargeNotFound)

	require.NoError(t, svc.CancelByReference(context.Background(), nil, RefCourtBooking, "booking-1"))
}

func TestCancelByReferencePaidChargeUntouched(t *testing.T) {
	svc, repo := newTestService(t)

	refID := "booking-1"
	charge := &Charge{ID: "charge-1", ReferenceID: &refID, Status: ChargePaid}
	repo.On("GetChargeByReference", mock.Anything, nil, RefCourtBooking, "booking-1").Return(charge, nil)

	require.NoError(t, svc.CancelByReference(context.Background(), nil, RefCourtBooking, "booking-1"))
	repo.AssertNotCalled(t, "UpdateCharge", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviseOpenCharge(t *testing.T) {
	svc, repo := newTestService(t)

	refID := "booking-1"
	charge := &Charge{ID: "charge-1", ReferenceID: &refID, Status: ChargePending, PaidAmount: decimal.Zero}
	repo.On("GetChargeByReference", mock.Anything, mock.Anything, RefCourtBooking, "booking-1").Return(charge, nil)
	repo.On("ListInstallmentsByCharge", mock.Anything, mock.Anything, "charge-1").Return([]Installment{
		{ID: "inst-1", ChargeID: "charge-1", Status: InstallmentPending, Amount: decimal.NewFromInt(160)},
	}, nil)
	repo.On("HasPendingPayment", mock.Anything, mock.Anything, "inst-1").Return(false, nil)
	repo.On("UpdateInstallment", mock.Anything, mock.Anything, mock.MatchedBy(func(i *Installment) bool {
		return i.Amount.Equal(decimal.NewFromInt(240))
	})).Return(nil)

	// The charge row update goes straight through the querier; the stub
	// accepts it.
	err := svc.ReviseOpenCharge(context.Background(), dbtest.Stub{}, RefCourtBooking, "booking-1", decimal.NewFromInt(240), "Court booking (updated)")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestReviseOpenChargeRejectsInFlightPayment(t *testing.T) {
	svc, repo := newTestService(t)

	refID := "booking-1"
	charge := &Charge{ID: "charge-1", ReferenceID: &refID, Status: ChargePending, PaidAmount: decimal.Zero}
	repo.On("GetChargeByReference", mock.Anything, nil, RefCourtBooking, "booking-1").Return(charge, nil)
	repo.On("ListInstallmentsByCharge", mock.Anything, nil, "charge-1").Return([]Installment{
		{ID: "inst-1", ChargeID: "charge-1", Status: InstallmentPending, Amount: decimal.NewFromInt(160)},
	}, nil)
	repo.On("HasPendingPayment", mock.Anything, nil, "inst-1").Return(true, nil)

	err := svc.ReviseOpenCharge(context.Background(), nil, RefCourtBooking, "booking-1", decimal.NewFromInt(240), "Court booking (updated)")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExpireOverdue(t *testing.T) {
	svc, repo := newTestService(t)

	expires := testNow.Add(-time.Hour)
	repo.On("ListOverduePayments", mock.Anything, nil, testNow, 100).Return([]Payment{
		{ID: "pay-1", Status: PaymentPending, ExpiresAt: &expires},
		{ID: "pay-2", Status: PaymentPending, ExpiresAt: &expires},
	}, nil)
	repo.On("UpdatePayment", mock.Anything, nil, mock.MatchedBy(func(p *Payment) bool {
		return p.Status == PaymentExpired
	})).Return(nil).Twice()

	count, err := svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	repo.AssertExpectations(t)
}
