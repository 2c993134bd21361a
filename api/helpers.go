package api

import (
	"encoding/json"
	"net/http"

	"github.com/paydesk/payments-backend/api/apicommon"
	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/errors"
	"github.com/paydesk/payments-backend/validator"
	"github.com/shopspring/decimal"
	"go.vocdoni.io/dvote/log"
)

var requestValidator = validator.New()

// decodeBody decodes the JSON body of the request into v and checks its
// validate tags, writing the error response when either fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, apicommon.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errors.ErrMalformedBody.WithErr(err).Write(w)
		return false
	}
	if err := requestValidator.Validate(v); err != nil {
		log.Debugw("validation errors", "errors", err.Error())
		errors.ErrInvalidData.WithErr(err).Write(w)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, body []byte, v any) bool {
	if err := json.Unmarshal(body, v); err != nil {
		errors.ErrMalformedBody.WithErr(err).Write(w)
		return false
	}
	return true
}

// checkAmount validates the amount and currency of a request before it
// reaches Stripe.
func checkAmount(w http.ResponseWriter, amount decimal.Decimal, code string) bool {
	cur, err := currency.Lookup(code)
	if err != nil {
		errors.ErrUnsupportedCurrency.Withf("%q", code).Write(w)
		return false
	}
	if err := currency.ValidateAmount(amount, cur); err != nil {
		errors.ErrInvalidAmount.WithErr(err).Write(w)
		return false
	}
	return true
}
