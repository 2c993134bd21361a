package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paydesk/payments-backend/db"
	"github.com/paydesk/payments-backend/metrics"
	stripeapi "github.com/stripe/stripe-go/v76"
	"go.vocdoni.io/dvote/log"
)

// webhook outcomes reported to metrics
const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeFailed    = "failed"
	outcomeInvalid   = "invalid"
)

// paymentIntentStatuses maps the handled event types to the status they set.
var paymentIntentStatuses = map[stripeapi.EventType]db.PaymentStatus{
	stripeapi.EventTypePaymentIntentSucceeded:               db.StatusSucceeded,
	stripeapi.EventTypePaymentIntentPaymentFailed:           db.StatusFailed,
	stripeapi.EventTypePaymentIntentCanceled:                db.StatusCanceled,
	stripeapi.EventTypePaymentIntentProcessing:              db.StatusProcessing,
	stripeapi.EventTypePaymentIntentAmountCapturableUpdated: db.StatusRequiresCapture,
}

// HandleWebhookEvent validates a webhook delivery and applies it once. The
// event is recorded as processed only after it was applied, so a failed
// delivery is applied again when Stripe retries it.
func (s *Service) HandleWebhookEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.client.ValidateWebhookEvent(payload, signatureHeader)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", outcomeInvalid).Inc()
		return err
	}
	eventType := string(event.Type)

	processed, err := s.events.EventExists(ctx, event.ID)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(eventType, outcomeFailed).Inc()
		return fmt.Errorf("failed to check event %s: %w", event.ID, err)
	}
	if processed {
		log.Debugw("stripe webhook: event already processed, skipping", "eventId", event.ID)
		metrics.WebhookEvents.WithLabelValues(eventType, outcomeDuplicate).Inc()
		return nil
	}

	handled, err := s.HandleEvent(ctx, event)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(eventType, outcomeFailed).Inc()
		return err
	}

	if err := s.events.MarkProcessed(ctx, event.ID, eventType); err != nil && !errors.Is(err, db.ErrAlreadyExists) {
		metrics.WebhookEvents.WithLabelValues(eventType, outcomeFailed).Inc()
		return fmt.Errorf("failed to mark event %s as processed: %w", event.ID, err)
	}
	outcome := outcomeProcessed
	if !handled {
		outcome = outcomeIgnored
	}
	metrics.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
	return nil
}

// HandleEvent applies a validated event. It reports false for event types
// the gateway does not act on.
func (s *Service) HandleEvent(ctx context.Context, event *stripeapi.Event) (bool, error) {
	status, ok := paymentIntentStatuses[event.Type]
	if !ok {
		log.Debugw("stripe webhook: unhandled event type", "type", event.Type, "eventId", event.ID)
		return false, nil
	}
	pi, err := parsePaymentIntentFromEvent(event)
	if err != nil {
		return false, err
	}

	unlock := s.lockManager.LockPayment(pi.ID)
	defer unlock()

	payment, err := s.applyIntent(pi, status)
	if errors.Is(err, db.ErrInvalidData) {
		// redelivering an incomplete object cannot succeed
		return false, NewStripeError(CodeInvalidEvent,
			fmt.Sprintf("event %s carries an incomplete payment intent", event.ID), err)
	}
	if err != nil {
		return false, fmt.Errorf("failed to apply event %s to payment %s: %w", event.ID, pi.ID, err)
	}
	log.Infow("stripe webhook: payment updated",
		"eventId", event.ID,
		"type", event.Type,
		"paymentId", payment.ID,
		"status", payment.Status)

	switch event.Type {
	case stripeapi.EventTypePaymentIntentSucceeded:
		if payment.Status == db.StatusSucceeded {
			s.sendReceipt(ctx, payment)
		}
	case stripeapi.EventTypePaymentIntentAmountCapturableUpdated:
		if payment.Status == db.StatusRequiresCapture {
			s.sendHoldNotice(ctx, payment)
		}
	}
	return true, nil
}

// parsePaymentIntentFromEvent extracts the PaymentIntent carried by an event.
func parsePaymentIntentFromEvent(event *stripeapi.Event) (*stripeapi.PaymentIntent, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, NewStripeError(CodeInvalidEvent, fmt.Sprintf("event %s has no data", event.ID), nil)
	}
	var pi stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, NewStripeError(CodeInvalidEvent,
			fmt.Sprintf("failed to parse payment intent from event %s", event.ID), err)
	}
	if pi.ID == "" {
		return nil, NewStripeError(CodeInvalidEvent, fmt.Sprintf("event %s has no payment intent id", event.ID), nil)
	}
	return &pi, nil
}
