// Package notification defines the outbound notification capability.
// Delivery (push/email) happens in an external system; everything here
// is fire-and-forget and failures are logged, never propagated into
// the financial transaction that triggered them.
package notification

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Notifier interface {
	NotifyChargeApproved(ctx context.Context, userID, description string, amount decimal.Decimal) error
	NotifyNewCharge(ctx context.Context, userID, description string, amount decimal.Decimal, checkoutLink string) error
}

// LogNotifier writes notifications to the structured log. Stands in for
// the real delivery channel in development and tests.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) NotifyChargeApproved(ctx context.Context, userID, description string, amount decimal.Decimal) error {
	n.log.Info().
		Str("user_id", userID).
		Str("description", description).
		Str("amount", amount.StringFixed(2)).
		Msg("charge approved")
	return nil
}

func (n *LogNotifier) NotifyNewCharge(ctx context.Context, userID, description string, amount decimal.Decimal, checkoutLink string) error {
	n.log.Info().
		Str("user_id", userID).
		Str("description", description).
		Str("amount", amount.StringFixed(2)).
		Str("checkout_link", checkoutLink).
		Msg("new charge")
	return nil
}
