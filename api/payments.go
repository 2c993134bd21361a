package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/paydesk/payments-backend/api/apicommon"
	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/db"
	"github.com/paydesk/payments-backend/errors"
	"github.com/paydesk/payments-backend/stripe"
)

// balanceHandler godoc
//
//	@Summary		Get the account balance
//	@Description	Get the available and pending balance of the Stripe account per currency, in major units.
//	@Tags			payments
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	stripe.Balance
//	@Failure		401	{object}	errors.Error	"Unauthorized"
//	@Failure		502	{object}	errors.Error	"Stripe error"
//	@Failure		503	{object}	errors.Error	"Stripe unavailable"
//	@Router			/balance [get]
func (a *API) balanceHandler(w http.ResponseWriter, r *http.Request) {
	balance, err := a.payments.Balance(r.Context())
	if err != nil {
		paymentError(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, balance)
}

// quoteHandler godoc
//
//	@Summary		Quote a payment
//	@Description	Estimate the processing fee and the clearance time of an amount, and warn when it exceeds the
//	@Description	available balance in the same currency.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.QuoteRequest	true	"Amount and currency"
//	@Success		200		{object}	currency.Quote
//	@Failure		400		{object}	errors.Error	"Invalid amount or currency"
//	@Failure		401		{object}	errors.Error	"Unauthorized"
//	@Router			/payments/quote [post]
func (a *API) quoteHandler(w http.ResponseWriter, r *http.Request) {
	req := &apicommon.QuoteRequest{}
	if !decodeBody(w, r, req) || !checkAmount(w, req.Amount, req.Currency) {
		return
	}
	quote, err := a.payments.Quote(r.Context(), req.Amount, req.Currency)
	if err != nil {
		paymentError(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, quote)
}

// cardRequest converts the body of a card payment into the service request.
func cardRequest(w http.ResponseWriter, r *http.Request) (*stripe.PaymentRequest, bool) {
	operatorID, ok := apicommon.OperatorFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return nil, false
	}
	req := &apicommon.CardPaymentRequest{}
	if !decodeBody(w, r, req) || !checkAmount(w, req.Amount, req.Currency) {
		return nil, false
	}
	if req.Card == nil && req.PaymentMethodID == "" {
		errors.ErrInvalidCardDetails.With("card details or a payment method id are required").Write(w)
		return nil, false
	}
	payment := &stripe.PaymentRequest{
		Amount:          req.Amount,
		Currency:        req.Currency,
		PaymentMethodID: req.PaymentMethodID,
		Description:     req.Description,
		ReceiptEmail:    req.ReceiptEmail,
		ReceiptPhone:    req.ReceiptPhone,
		OperatorID:      operatorID,
	}
	if req.Card != nil {
		if req.Card.Number == "" || req.Card.ExpMonth < 1 || req.Card.ExpMonth > 12 || req.Card.ExpYear < 1 {
			errors.ErrInvalidCardDetails.With("card number and expiration are required").Write(w)
			return nil, false
		}
		payment.Card = stripe.CardDetails{
			Number:   strings.ReplaceAll(req.Card.Number, " ", ""),
			CVC:      req.Card.CVC,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
		}
	}
	return payment, true
}

// createCardPaymentHandler godoc
//
//	@Summary		Make a card payment
//	@Description	Create and confirm a PaymentIntent that charges a card immediately. A declined card returns 402
//	@Description	with the Stripe decline code in the error data.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.CardPaymentRequest	true	"Card payment"
//	@Success		201		{object}	apicommon.Payment
//	@Failure		400		{object}	errors.Error	"Invalid amount, currency or card"
//	@Failure		401		{object}	errors.Error	"Unauthorized"
//	@Failure		402		{object}	errors.Error	"Card declined"
//	@Failure		502		{object}	errors.Error	"Stripe error"
//	@Router			/payments/card [post]
func (a *API) createCardPaymentHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := cardRequest(w, r)
	if !ok {
		return
	}
	payment, err := a.payments.CreateCardPayment(r.Context(), req)
	if err != nil {
		paymentError(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSONStatus(w, http.StatusCreated, apicommon.PaymentFromDB(payment))
}

// createBankPaymentHandler godoc
//
//	@Summary		Make a bank payment
//	@Description	Debit a bank account through the debit rail of the currency (ACH for USD, SEPA for EUR). The
//	@Description	payment stays processing until Stripe reports the outcome through the webhook.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		apicommon.BankPaymentRequest	true	"Bank payment"
//	@Success		201		{object}	apicommon.Payment
//	@Failure		400		{object}	errors.Error	"Invalid amount, currency or account"
//	@Failure		401		{object}	errors.Error	"Unauthorized"
//	@Failure		502		{object}	errors.Error	"Stripe error"
//	@Router			/payments/bank [post]
func (a *API) createBankPaymentHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := apicommon.OperatorFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	req := &apicommon.BankPaymentRequest{}
	if !decodeBody(w, r, req) || !checkAmount(w, req.Amount, req.Currency) {
		return
	}
	if req.AccountHolderName == "" || req.AccountNumber == "" {
		errors.ErrInvalidBankDetails.With("account holder name and account number are required").Write(w)
		return
	}
	payment, err := a.payments.CreateBankPayment(r.Context(), &stripe.BankPaymentRequest{
		Amount:        req.Amount,
		Currency:      req.Currency,
		HolderName:    req.AccountHolderName,
		AccountNumber: req.AccountNumber,
		RoutingNumber: req.RoutingNumber,
		Description:   req.Description,
		ReceiptEmail:  req.ReceiptEmail,
		ReceiptPhone:  req.ReceiptPhone,
		OperatorID:    operatorID,
	})
	if err != nil {
		paymentError(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSONStatus(w, http.StatusCreated, apicommon.PaymentFromDB(payment))
}

// paymentsHandler godoc
//
//	@Summary		List payments
//	@Description	List the payments known to the gateway, newest first. Results can be filtered by kind, status,
//	@Description	currency and operator.
//	@Tags			payments
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind		query		string	false	"payment or preauthorization"
//	@Param			status		query		string	false	"Payment status"
//	@Param			currency	query		string	false	"Currency code"
//	@Param			operatorId	query		string	false	"Operator id"
//	@Param			page		query		integer	false	"Page number (default: 1)"
//	@Param			pageSize	query		integer	false	"Number of items per page (default: 10)"
//	@Success		200			{object}	apicommon.PaymentsResponse
//	@Failure		400			{object}	errors.Error	"Invalid filter"
//	@Failure		401			{object}	errors.Error	"Unauthorized"
//	@Router			/payments [get]
func (a *API) paymentsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := db.PaymentFilter{
		Kind:       db.PaymentKind(query.Get("kind")),
		Status:     db.PaymentStatus(query.Get("status")),
		OperatorID: query.Get("operatorId"),
	}
	if filter.Kind != "" && !db.IsValidKind(string(filter.Kind)) {
		errors.ErrInvalidPaymentFilter.Withf("unknown kind %q", filter.Kind).Write(w)
		return
	}
	if filter.Status != "" && !db.IsValidStatus(string(filter.Status)) {
		errors.ErrInvalidPaymentFilter.Withf("unknown status %q", filter.Status).Write(w)
		return
	}
	if code := query.Get("currency"); code != "" {
		cur, err := currency.Lookup(code)
		if err != nil {
			errors.ErrInvalidPaymentFilter.WithErr(err).Write(w)
			return
		}
		filter.Currency = string(cur.Code)
	}
	for param, dst := range map[string]*int{"page": &filter.Page, "pageSize": &filter.PageSize} {
		raw := query.Get(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errors.ErrMalformedURLParam.Withf("invalid %s %q", param, raw).Write(w)
			return
		}
		*dst = n
	}
	filter = filter.Normalize()

	pages, payments, err := a.payments.Payments(r.Context(), filter)
	if err != nil {
		paymentError(err).Write(w)
		return
	}
	res := &apicommon.PaymentsResponse{
		Payments: make([]*apicommon.Payment, 0, len(payments)),
		Pagination: &apicommon.Pagination{
			Page:       filter.Page,
			PageSize:   filter.PageSize,
			TotalPages: pages,
		},
	}
	for i := range payments {
		res.Payments = append(res.Payments, apicommon.PaymentFromDB(&payments[i]))
	}
	apicommon.HTTPWriteJSON(w, res)
}

// paymentHandler godoc
//
//	@Summary		Get a payment
//	@Description	Get the current status of a payment. The PaymentIntent is read from Stripe and the local record
//	@Description	updated with it.
//	@Tags			payments
//	@Produce		json
//	@Security		BearerAuth
//	@Param			paymentId	path		string	true	"PaymentIntent id"
//	@Success		200			{object}	apicommon.Payment
//	@Failure		401			{object}	errors.Error	"Unauthorized"
//	@Failure		404			{object}	errors.Error	"Payment not found"
//	@Router			/payments/{paymentId} [get]
func (a *API) paymentHandler(w http.ResponseWriter, r *http.Request) {
	payment, err := a.payments.Payment(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		paymentError(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, apicommon.PaymentFromDB(payment))
}
