package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateCharge(ctx context.Context, q db.Querier, c *Charge) error {
	args := m.Called(ctx, q, c)
	return args.Error(0)
}

func (m *mockRepository) GetCharge(ctx context.Context, q db.Querier, id string) (*Charge, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Charge), args.Error(1)
}

func (m *mockRepository) GetChargeForUpdate(ctx context.Context, q db.Querier, id string) (*Charge, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Charge), args.Error(1)
}

func (m *mockRepository) GetChargeByReference(ctx context.Context, q db.Querier, refType ReferenceType, refID string) (*Charge, error) {
	args := m.Called(ctx, q, refType, refID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Charge), args.Error(1)
}

func (m *mockRepository) ListCharges(ctx context.Context, q db.Querier, filter ChargeFilter) ([]Charge, int, error) {
	args := m.Called(ctx, q, filter)
	var charges []Charge
	if args.Get(0) != nil {
		charges = args.Get(0).([]Charge)
	}
	return charges, args.Int(1), args.Error(2)
}

func (m *mockRepository) UpdateCharge(ctx context.Context, q db.Querier, c *Charge) error {
	args := m.Called(ctx, q, c)
	return args.Error(0)
}

func (m *mockRepository) CreateInstallment(ctx context.Context, q db.Querier, inst *Installment) error {
	args := m.Called(ctx, q, inst)
	return args.Error(0)
}

func (m *mockRepository) GetInstallment(ctx context.Context, q db.Querier, id string) (*Installment, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Installment), args.Error(1)
}

func (m *mockRepository) GetInstallmentForUpdate(ctx context.Context, q db.Querier, id string) (*Installment, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Installment), args.Error(1)
}

func (m *mockRepository) ListInstallmentsByCharge(ctx context.Context, q db.Querier, chargeID string) ([]Installment, error) {
	args := m.Called(ctx, q, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Installment), args.Error(1)
}

func (m *mockRepository) UpdateInstallment(ctx context.Context, q db.Querier, inst *Installment) error {
	args := m.Called(ctx, q, inst)
	return args.Error(0)
}

func (m *mockRepository) CreatePayment(ctx context.Context, q db.Querier, p *Payment) error {
	args := m.Called(ctx, q, p)
	return args.Error(0)
}

func (m *mockRepository) GetPayment(ctx context.Context, q db.Querier, id string) (*Payment, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *mockRepository) GetPaymentForUpdate(ctx context.Context, q db.Querier, id string) (*Payment, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *mockRepository) GetPaymentByExternalID(ctx context.Context, q db.Querier, provider, externalID string) (*Payment, error) {
	args := m.Called(ctx, q, provider, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *mockRepository) HasPendingPayment(ctx context.Context, q db.Querier, installmentID string) (bool, error) {
	args := m.Called(ctx, q, installmentID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) HasLivePayment(ctx context.Context, q db.Querier, installmentID, excludeID string) (bool, error) {
	args := m.Called(ctx, q, installmentID, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) UpdatePayment(ctx context.Context, q db.Querier, p *Payment) error {
	args := m.Called(ctx, q, p)
	return args.Error(0)
}

func (m *mockRepository) ListOverduePayments(ctx context.Context, q db.Querier, now time.Time, limit int) ([]Payment, error) {
	args := m.Called(ctx, q, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Payment), args.Error(1)
}

func (m *mockRepository) UpsertWebhookEvent(ctx context.Context, q db.Querier, ev *WebhookEvent) (*WebhookEvent, error) {
	args := m.Called(ctx, q, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*WebhookEvent), args.Error(1)
}

func (m *mockRepository) MarkWebhookProcessed(ctx context.Context, q db.Querier, id string, at time.Time) error {
	args := m.Called(ctx, q, id, at)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
	name string
}

func (m *mockGateway) Provider() string { return m.name }

func (m *mockGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Checkout), args.Error(1)
}

func (m *mockGateway) ParseWebhook(r *http.Request) (ProviderEvent, error) {
	args := m.Called(r)
	return args.Get(0).(ProviderEvent), args.Error(1)
}

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) ConfirmPaid(ctx context.Context, q db.Querier, referenceID string) error {
	args := m.Called(ctx, q, referenceID)
	return args.Error(0)
}
