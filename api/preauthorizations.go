package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/paydesk/payments-backend/api/apicommon"
	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/errors"
)

// createPreAuthorizationHandler godoc
//
//	@Summary		Create a pre-authorization
//	@Description	Place a hold on a card for the given amount. The hold is captured later, released with the
//	@Description	cancel endpoint, or expires after the hold period.
//	@Tags			preauthorizations
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.CardPaymentRequest	true	"Card hold"
//	@Success		201		{object}	apicommon.Payment
//	@Failure		400		{object}	errors.Error	"Invalid amount, currency or card"
//	@Failure		401		{object}	errors.Error	"Unauthorized"
//	@Failure		402		{object}	errors.Error	"Card declined"
//	@Router			/preauthorizations [post]
func (a *API) createPreAuthorizationHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := cardRequest(w, r)
	if !ok {
		return
	}
	payment, err := a.payments.PreAuthorize(r.Context(), req)
	if err != nil {
		paymentError(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSONStatus(w, http.StatusCreated, apicommon.PaymentFromDB(payment))
}

// capturePreAuthorizationHandler godoc
//
//	@Summary		Capture a pre-authorization
//	@Description	Convert a hold into a charge. Without an amount the whole authorized amount is captured, a
//	@Description	smaller amount releases the rest of the hold.
//	@Tags			preauthorizations
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			paymentId	path		string						true	"PaymentIntent id"
//	@Param			request		body		apicommon.CaptureRequest	false	"Amount to capture"
//	@Success		200			{object}	apicommon.Payment
//	@Failure		400			{object}	errors.Error	"Invalid amount or not a pre-authorization"
//	@Failure		404			{object}	errors.Error	"Payment not found"
//	@Failure		409			{object}	errors.Error	"Hold expired or not capturable"
//	@Router			/preauthorizations/{paymentId}/capture [post]
func (a *API) capturePreAuthorizationHandler(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	req := &apicommon.CaptureRequest{}
	if r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, apicommon.MaxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			errors.ErrMalformedBody.WithErr(err).Write(w)
			return
		}
		if len(body) > 0 && !decodeJSON(w, body, req) {
			return
		}
	}

	var amount *int64
	if req.Amount != nil {
		payment, err := a.payments.Payment(r.Context(), paymentID)
		if err != nil {
			paymentError(err).Write(w)
			return
		}
		cur, err := currency.Lookup(payment.Currency)
		if err != nil {
			paymentError(err).Write(w)
			return
		}
		if err := currency.ValidateAmount(*req.Amount, cur); err != nil {
			errors.ErrInvalidAmount.WithErr(err).Write(w)
			return
		}
		minor := currency.ToMinorUnits(*req.Amount, cur)
		amount = &minor
	}

	payment, err := a.payments.CapturePreAuthorization(r.Context(), paymentID, amount)
	if err != nil {
		paymentError(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, apicommon.PaymentFromDB(payment))
}

// cancelPreAuthorizationHandler godoc
//
//	@Summary		Cancel a pre-authorization
//	@Description	Release a hold that was not captured.
//	@Tags			preauthorizations
//	@Produce		json
//	@Security		BearerAuth
//	@Param			paymentId	path		string	true	"PaymentIntent id"
//	@Success		200			{object}	apicommon.Payment
//	@Failure		400			{object}	errors.Error	"Not a pre-authorization"
//	@Failure		404			{object}	errors.Error	"Payment not found"
//	@Failure		409			{object}	errors.Error	"Hold already captured or canceled"
//	@Router			/preauthorizations/{paymentId}/cancel [post]
func (a *API) cancelPreAuthorizationHandler(w http.ResponseWriter, r *http.Request) {
	payment, err := a.payments.CancelPreAuthorization(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		paymentError(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, apicommon.PaymentFromDB(payment))
}
