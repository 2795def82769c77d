package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// EventType classifies a provider webhook after parsing.
type EventType string

const (
	EventApproved  EventType = "payment.approved"
	EventCancelled EventType = "payment.cancelled"
)

// CheckoutRequest carries what the provider needs to open a checkout.
type CheckoutRequest struct {
	PaymentID   string
	Amount      decimal.Decimal
	Description string
	ExpiresAt   time.Time
}

// Checkout is the provider's answer to a checkout request.
type Checkout struct {
	ExternalTransactionID string
	CheckoutURL           string
}

// ProviderEvent is a webhook payload normalized across providers.
type ProviderEvent struct {
	ExternalEventID       string
	ExternalTransactionID string
	Type                  EventType
	Raw                   []byte
}

// PaymentGateway abstracts an external payment provider. ParseWebhook
// must verify the request's authenticity before returning an event.
type PaymentGateway interface {
	Provider() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
	ParseWebhook(r *http.Request) (ProviderEvent, error)
}
