package billing

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/apperror"
)

var (
	ErrChargeNotFound      = apperror.New(http.StatusNotFound, "charge not found")
	ErrInstallmentNotFound = apperror.New(http.StatusNotFound, "installment not found")
	ErrPaymentNotFound     = apperror.New(http.StatusNotFound, "payment not found")
	ErrInvalidState        = apperror.New(http.StatusConflict, "operation not allowed in current payment state")
	ErrInvalidAmount       = apperror.New(http.StatusBadRequest, "amount must be positive")
	ErrUnknownProvider     = apperror.New(http.StatusBadRequest, "unknown payment provider")
)

// ReferenceType names the billable entity a charge points at. Manual
// charges carry an empty reference.
type ReferenceType string

const (
	RefCourtBooking    ReferenceType = "court_booking"
	RefPersonalSession ReferenceType = "personal_session"
	RefEnrollment      ReferenceType = "enrollment"
	RefManual          ReferenceType = ""
)

type ChargeStatus string

const (
	ChargePending   ChargeStatus = "pending"
	ChargePaid      ChargeStatus = "paid"
	ChargeCancelled ChargeStatus = "cancelled"
)

type InstallmentStatus string

const (
	InstallmentPending   InstallmentStatus = "pending"
	InstallmentPaid      InstallmentStatus = "paid"
	InstallmentCancelled InstallmentStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentExpired   PaymentStatus = "expired"
)

// Charge is one billable event. It reaches paid only through approved
// payments on its installments, and a reservation is confirmed only as
// a side effect of its charge reaching paid.
type Charge struct {
	ID            string
	UserID        string
	ReferenceType ReferenceType
	ReferenceID   *string
	Description   string
	TotalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
	Status        ChargeStatus
	DueDate       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Installment is one due amount of a charge. Creation paths only ever
// produce a single installment today; the sequence fields exist for
// forward compatibility.
type Installment struct {
	ID                string
	ChargeID          string
	SequenceNumber    int
	TotalInstallments int
	Amount            decimal.Decimal
	PaidAmount        decimal.Decimal
	Status            InstallmentStatus
	DueDate           *time.Time
}

// Payment is one attempt to settle an installment with an external
// provider.
type Payment struct {
	ID                    string
	InstallmentID         string
	Provider              string
	Method                string
	Amount                decimal.Decimal
	Status                PaymentStatus
	ExternalTransactionID string
	CheckoutURL           string
	ExpiresAt             *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Expired reports whether a pending payment is past its deadline.
func (p *Payment) Expired(now time.Time) bool {
	return p.Status == PaymentPending && p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// WebhookEvent records one provider delivery for idempotent dispatch:
// a given external event id is applied at most once.
type WebhookEvent struct {
	ID              string
	Provider        string
	ExternalEventID string
	Payload         []byte
	Processed       bool
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// ChargeFilter defines parameters for listing charges.
type ChargeFilter struct {
	UserID        string
	Status        string
	ReferenceType string
	Page          int
	PageSize      int
}
