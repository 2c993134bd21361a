package api

import (
	stderrors "errors"

	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/db"
	"github.com/paydesk/payments-backend/errors"
	"github.com/paydesk/payments-backend/stripe"
	stripeapi "github.com/stripe/stripe-go/v76"
)

// declineData is sent as the data of a card decline error.
type declineData struct {
	Code        string `json:"code"`
	DeclineCode string `json:"declineCode,omitempty"`
}

// paymentError maps the errors returned by the payment service to API
// errors.
func paymentError(err error) errors.Error {
	var apiErr errors.Error
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	var se *stripe.StripeError
	isStripeErr := stderrors.As(err, &se)
	switch {
	case stderrors.Is(err, currency.ErrUnsupportedCurrency):
		return errors.ErrUnsupportedCurrency.WithErr(err)
	case stderrors.Is(err, stripe.ErrPaymentNotFound), stderrors.Is(err, db.ErrNotFound):
		return errors.ErrPaymentNotFound
	case stderrors.Is(err, stripe.ErrNotAPreAuthorization):
		return errors.ErrNotAPreAuthorization
	case stderrors.Is(err, stripe.ErrPreAuthorizationExpire):
		return errors.ErrPreAuthorizationExpire
	case stderrors.Is(err, stripe.ErrPreAuthorizationState):
		return errors.ErrPreAuthorizationState.With(se.Message)
	case stderrors.Is(err, stripe.ErrCaptureAmountExceeded):
		return errors.ErrCaptureAmountExceeded
	case stderrors.Is(err, stripe.ErrBankDebitUnsupported):
		return errors.ErrBankDebitUnsupported.With(se.Message)
	case stderrors.Is(err, stripe.ErrInvalidRequest):
		return errors.ErrInvalidData.With(se.Message)
	case stripe.IsCardError(err):
		if se.Code == string(stripeapi.ErrorCodeCardDeclined) || se.DeclineCode != "" {
			return errors.ErrCardDeclined.With(se.Message).WithData(declineData{
				Code:        se.Code,
				DeclineCode: se.DeclineCode,
			})
		}
		return errors.ErrInvalidCardDetails.With(se.Message).WithData(declineData{Code: se.Code})
	case stripe.IsInvalidRequestError(err):
		return errors.ErrStripeInvalidRequest.With(se.Message)
	case stripe.IsTemporaryError(err):
		return errors.ErrStripeUnavailable.WithErr(err)
	case isStripeErr:
		return errors.ErrStripeError.WithErr(err)
	case stderrors.Is(err, db.ErrInvalidData):
		return errors.ErrInvalidData.WithErr(err)
	}
	return errors.ErrGenericInternalServerError.WithErr(err)
}
