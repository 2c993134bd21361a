package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/paydesk/payments-backend/api/apicommon"
	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/errors"
)

// currenciesHandler godoc
//
//	@Summary		List supported currencies
//	@Description	List the currencies the gateway accepts with their minor unit exponent, country, clearance time
//	@Description	and bank debit rail.
//	@Tags			currencies
//	@Produce		json
//	@Success		200	{object}	apicommon.CurrenciesResponse
//	@Router			/currencies [get]
func (*API) currenciesHandler(w http.ResponseWriter, _ *http.Request) {
	apicommon.HTTPWriteJSON(w, &apicommon.CurrenciesResponse{Currencies: currency.All()})
}

// bankDetailsHandler godoc
//
//	@Summary		List bank details
//	@Description	List the bank account details payers use to send a transfer, for every supported currency.
//	@Tags			currencies
//	@Produce		json
//	@Success		200	{object}	apicommon.BankDetailsResponse
//	@Router			/bank-details [get]
func (a *API) bankDetailsHandler(w http.ResponseWriter, _ *http.Request) {
	apicommon.HTTPWriteJSON(w, &apicommon.BankDetailsResponse{BankDetails: a.bankTable.List()})
}

// bankDetailsByCurrencyHandler godoc
//
//	@Summary		Get bank details of a currency
//	@Description	Get the country and bank account details payers use to send a transfer in the given currency.
//	@Tags			currencies
//	@Produce		json
//	@Param			currency	path		string	true	"Currency code"
//	@Success		200			{object}	currency.BankDetails
//	@Failure		404			{object}	errors.Error	"Currency not supported"
//	@Router			/bank-details/{currency} [get]
func (a *API) bankDetailsByCurrencyHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "currency")
	details, err := a.bankTable.Get(code)
	if err != nil {
		errors.ErrBankDetailsNotFound.Withf("%q", code).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, details)
}
