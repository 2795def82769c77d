package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/metrics"
)

// HandleWebhook ingests one provider delivery. Providers retry on
// non-2xx, so deliveries that can never succeed (bad payload,
// duplicate event, unknown transaction) are acknowledged after
// logging; only transient failures bubble up as errors.
func (s *service) HandleWebhook(ctx context.Context, provider string, r *http.Request) error {
	gateway, err := s.Gateway(provider)
	if err != nil {
		return err
	}

	event, err := gateway.ParseWebhook(r)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", provider).Msg("webhook rejected")
		metrics.IncWebhook("malformed")
		return nil
	}

	var notify *Charge
	var result string
	err = s.db.WithinTx(ctx, func(q db.Querier) error {
		stored, err := s.repo.UpsertWebhookEvent(ctx, q, &WebhookEvent{
			Provider:        provider,
			ExternalEventID: event.ExternalEventID,
			Payload:         event.Raw,
		})
		if err != nil {
			return err
		}
		if stored.Processed {
			result = "duplicate"
			return nil
		}

		notify, result, err = s.applyProviderEvent(ctx, q, provider, event)
		if err != nil {
			return err
		}
		return s.repo.MarkWebhookProcessed(ctx, q, stored.ID, s.clock.Now())
	})
	if err != nil {
		metrics.IncWebhook("error")
		return err
	}

	metrics.IncWebhook(result)
	s.notifyPaid(ctx, notify)
	s.logger.Info().
		Str("provider", provider).
		Str("event_id", event.ExternalEventID).
		Str("result", result).
		Msg("webhook handled")
	return nil
}

func (s *service) applyProviderEvent(ctx context.Context, q db.Querier, provider string, event ProviderEvent) (*Charge, string, error) {
	payment, err := s.repo.GetPaymentByExternalID(ctx, q, provider, event.ExternalTransactionID)
	if errors.Is(err, ErrPaymentNotFound) {
		s.logger.Warn().
			Str("provider", provider).
			Str("transaction_id", event.ExternalTransactionID).
			Msg("webhook references unknown transaction")
		return nil, "unmatched", nil
	}
	if err != nil {
		return nil, "", err
	}

	switch event.Type {
	case EventApproved:
		charge, err := s.approveLocked(ctx, q, payment)
		if errors.Is(err, ErrInvalidState) {
			// Late approval of an expired or already-settled payment.
			s.logger.Warn().Str("payment_id", payment.ID).Msg("webhook approval ignored, payment not pending")
			return nil, "stale", nil
		}
		if err != nil {
			return nil, "", err
		}
		metrics.IncPayment("approved")
		return charge, "approved", nil
	case EventCancelled:
		if payment.Status != PaymentPending {
			return nil, "stale", nil
		}
		if err := s.cancelLocked(ctx, q, payment); err != nil {
			return nil, "", err
		}
		metrics.IncPayment("cancelled")
		return nil, "cancelled", nil
	default:
		s.logger.Warn().Str("type", string(event.Type)).Msg("webhook event type not handled")
		return nil, "unhandled", nil
	}
}
