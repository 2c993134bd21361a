package api

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/paydesk/payments-backend/api/apicommon"
	"github.com/paydesk/payments-backend/errors"
	"github.com/paydesk/payments-backend/stripe"
	"go.vocdoni.io/dvote/log"
)

// stripeWebhookHandler godoc
//
//	@Summary		Handle Stripe webhook events
//	@Description	Process PaymentIntent events sent by Stripe. Events are verified with the Stripe-Signature header
//	@Description	and applied once. Invalid events return 400, failures that Stripe should retry return 500.
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		string	true	"Stripe webhook payload"
//	@Success		200		{string}	string	"OK"
//	@Failure		400		{object}	errors.Error	"Invalid signature or event"
//	@Failure		500		{object}	errors.Error	"Processing failed, Stripe retries"
//	@Router			/stripe/webhook [post]
func (a *API) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, apicommon.MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		errors.ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	signatureHeader := r.Header.Get("Stripe-Signature")
	if signatureHeader == "" {
		errors.ErrWebhookValidation.With("missing Stripe-Signature header").Write(w)
		return
	}

	if err := a.payments.HandleWebhookEvent(r.Context(), payload, signatureHeader); err != nil {
		switch {
		case stderrors.Is(err, stripe.ErrWebhookValidation):
			errors.ErrWebhookValidation.Write(w)
		case stderrors.Is(err, stripe.ErrInvalidEvent):
			errors.ErrWebhookValidation.WithErr(err).Write(w)
		default:
			log.Warnw("stripe webhook: failed to process event", "error", err)
			errors.ErrStripeWebhookError.WithErr(err).Write(w)
		}
		return
	}
	apicommon.HTTPWriteOK(w)
}
