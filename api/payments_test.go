package api

import (
	"encoding/json"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/paydesk/payments-backend/api/apicommon"
	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/errors"
	"github.com/paydesk/payments-backend/stripe"
	"github.com/paydesk/payments-backend/test"
	"github.com/shopspring/decimal"
)

func cardPayment(amount, code, number string) *apicommon.CardPaymentRequest {
	return &apicommon.CardPaymentRequest{
		Amount:   decimal.RequireFromString(amount),
		Currency: code,
		Card: &apicommon.CardInfo{
			Number:   number,
			CVC:      "123",
			ExpMonth: 12,
			ExpYear:  2035,
		},
		Description:  "order 1234",
		ReceiptEmail: "payer@example.com",
	}
}

func decodePayment(c *qt.C, body []byte) *apicommon.Payment {
	payment := &apicommon.Payment{}
	c.Assert(json.Unmarshal(body, payment), qt.IsNil, qt.Commentf("body: %s", body))
	return payment
}

func TestCardPaymentHandler(t *testing.T) {
	c := qt.New(t)
	token := testToken(c, "operator-card")

	body, code := testRequest(c, http.MethodPost, token, cardPayment("12.50", "usd", test.CardSucceeds), cardPaymentEndpoint)
	c.Assert(code, qt.Equals, http.StatusCreated, qt.Commentf("body: %s", body))
	payment := decodePayment(c, body)
	c.Assert(payment.ID, qt.Not(qt.Equals), "")
	c.Assert(payment.Status, qt.Equals, "succeeded")
	c.Assert(payment.Kind, qt.Equals, "payment")
	c.Assert(payment.Method, qt.Equals, "card")
	c.Assert(payment.Currency, qt.Equals, "USD")
	c.Assert(payment.Amount.Equal(decimal.RequireFromString("12.50")), qt.IsTrue)
	c.Assert(payment.AmountReceived.Equal(payment.Amount), qt.IsTrue)
	c.Assert(payment.OperatorID, qt.Equals, "operator-card")
	c.Assert(payment.ClearanceTime, qt.Equals, currency.ClearanceTime("USD"))
	c.Assert(payment.ExpiresAt, qt.IsNil)

	// amounts can also be sent as JSON numbers
	body, code = testRequest(c, http.MethodPost, token,
		`{"amount": 1500, "currency": "JPY", "card": {"number": "4242 4242 4242 4242", "cvc": "123", "expMonth": 1, "expYear": 2035}}`,
		cardPaymentEndpoint)
	c.Assert(code, qt.Equals, http.StatusCreated, qt.Commentf("body: %s", body))
	c.Assert(decodePayment(c, body).Amount.Equal(decimal.NewFromInt(1500)), qt.IsTrue)

	t.Run("Declined", func(*testing.T) {
		body, code := testRequest(c, http.MethodPost, token, cardPayment("40", "EUR", test.CardDeclined), cardPaymentEndpoint)
		c.Assert(code, qt.Equals, http.StatusPaymentRequired)
		res := struct {
			Code int         `json:"code"`
			Data declineData `json:"data"`
		}{}
		c.Assert(json.Unmarshal(body, &res), qt.IsNil)
		c.Assert(res.Code, qt.Equals, errors.ErrCardDeclined.Code)
		c.Assert(res.Data.Code, qt.Equals, "card_declined")
		c.Assert(res.Data.DeclineCode, qt.Equals, "insufficient_funds")
	})

	t.Run("InvalidRequests", func(*testing.T) {
		for _, tc := range []struct {
			name string
			body any
			code int
		}{
			{"malformed body", "{invalid", errors.ErrMalformedBody.Code},
			{"unsupported currency", cardPayment("10", "XYZ", test.CardSucceeds), errors.ErrUnsupportedCurrency.Code},
			{"too many decimals", cardPayment("10.555", "USD", test.CardSucceeds), errors.ErrInvalidAmount.Code},
			{"decimals in JPY", cardPayment("10.5", "JPY", test.CardSucceeds), errors.ErrInvalidAmount.Code},
			{"negative amount", cardPayment("-1", "USD", test.CardSucceeds), errors.ErrInvalidAmount.Code},
			{"zero amount", cardPayment("0", "USD", test.CardSucceeds), errors.ErrInvalidAmount.Code},
			{"amount above maximum", cardPayment("1000000", "USD", test.CardSucceeds), errors.ErrInvalidAmount.Code},
			{"no card", &apicommon.CardPaymentRequest{Amount: decimal.NewFromInt(10), Currency: "USD"}, errors.ErrInvalidCardDetails.Code},
			{"bad expiry", &apicommon.CardPaymentRequest{
				Amount:   decimal.NewFromInt(10),
				Currency: "USD",
				Card:     &apicommon.CardInfo{Number: test.CardSucceeds, ExpMonth: 13, ExpYear: 2035},
			}, errors.ErrInvalidCardDetails.Code},
			{"short card number", cardPayment("10", "USD", "4242"), errors.ErrInvalidCardDetails.Code},
			{"bad receipt email", &apicommon.CardPaymentRequest{
				Amount:          decimal.NewFromInt(10),
				Currency:        "USD",
				PaymentMethodID: "pm_card_visa",
				ReceiptEmail:    "payer-at-example",
			}, errors.ErrInvalidData.Code},
			{"bad receipt phone", &apicommon.CardPaymentRequest{
				Amount:          decimal.NewFromInt(10),
				Currency:        "USD",
				PaymentMethodID: "pm_card_visa",
				ReceiptPhone:    "555-0100",
			}, errors.ErrInvalidData.Code},
			{"letters in cvc", `{"amount": "10", "currency": "USD", "card": {"number": "4242424242424242", "cvc": "12a", "expMonth": 1, "expYear": 2035}}`, errors.ErrInvalidData.Code},
		} {
			body, status := testRequest(c, http.MethodPost, token, tc.body, cardPaymentEndpoint)
			c.Assert(status, qt.Equals, http.StatusBadRequest, qt.Commentf("%s: %s", tc.name, body))
			c.Assert(errorCode(c, body), qt.Equals, tc.code, qt.Commentf(tc.name))
		}
	})
}

func TestBankPaymentHandler(t *testing.T) {
	c := qt.New(t)
	token := testToken(c, "operator-bank")

	req := &apicommon.BankPaymentRequest{
		Amount:            decimal.RequireFromString("99.99"),
		Currency:          "USD",
		AccountHolderName: "Jane Doe",
		AccountNumber:     "000123456789",
		RoutingNumber:     "110000000",
	}
	body, code := testRequest(c, http.MethodPost, token, req, bankPaymentEndpoint)
	c.Assert(code, qt.Equals, http.StatusCreated, qt.Commentf("body: %s", body))
	payment := decodePayment(c, body)
	c.Assert(payment.Method, qt.Equals, "bank_transfer")
	c.Assert(payment.Status, qt.Equals, "processing")
	c.Assert(payment.AmountReceived.IsZero(), qt.IsTrue)

	// no debit rail for GBP
	req.Currency = "GBP"
	body, code = testRequest(c, http.MethodPost, token, req, bankPaymentEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, errors.ErrBankDebitUnsupported.Code)

	req.Currency = "EUR"
	req.AccountNumber = ""
	body, code = testRequest(c, http.MethodPost, token, req, bankPaymentEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, errors.ErrInvalidBankDetails.Code)
}

func TestPaymentHandler(t *testing.T) {
	c := qt.New(t)
	token := testToken(c, "operator-status")

	body, code := testRequest(c, http.MethodPost, token, &apicommon.BankPaymentRequest{
		Amount:            decimal.NewFromInt(20),
		Currency:          "EUR",
		AccountHolderName: "Jane Doe",
		AccountNumber:     "DE89370400440532013000",
	}, bankPaymentEndpoint)
	c.Assert(code, qt.Equals, http.StatusCreated, qt.Commentf("body: %s", body))
	created := decodePayment(c, body)

	body, code = testRequest(c, http.MethodGet, token, nil, "/payments/"+created.ID)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(decodePayment(c, body).Status, qt.Equals, "processing")

	// the debit clears on the Stripe side
	testStripe.SetIntentStatus(created.ID, "succeeded")
	body, code = testRequest(c, http.MethodGet, token, nil, "/payments/"+created.ID)
	c.Assert(code, qt.Equals, http.StatusOK)
	payment := decodePayment(c, body)
	c.Assert(payment.Status, qt.Equals, "succeeded")
	c.Assert(payment.AmountReceived.Equal(decimal.NewFromInt(20)), qt.IsTrue)

	body, code = testRequest(c, http.MethodGet, token, nil, "/payments/pi_unknown")
	c.Assert(code, qt.Equals, http.StatusNotFound)
	c.Assert(errorCode(c, body), qt.Equals, errors.ErrPaymentNotFound.Code)
}

func TestPaymentsHandler(t *testing.T) {
	c := qt.New(t)
	operatorID := "operator-list"
	token := testToken(c, operatorID)

	for _, amount := range []string{"1", "2", "3"} {
		_, code := testRequest(c, http.MethodPost, token, cardPayment(amount, "CAD", test.CardSucceeds), cardPaymentEndpoint)
		c.Assert(code, qt.Equals, http.StatusCreated)
	}
	_, code := testRequest(c, http.MethodPost, token, cardPayment("4", "CAD", test.CardSucceeds), preAuthorizationsEndpoint)
	c.Assert(code, qt.Equals, http.StatusCreated)

	list := func(query string) *apicommon.PaymentsResponse {
		body, code := testRequest(c, http.MethodGet, token, nil, paymentsEndpoint+"?operatorId="+operatorID+query)
		c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", body))
		res := &apicommon.PaymentsResponse{}
		c.Assert(json.Unmarshal(body, res), qt.IsNil)
		return res
	}

	res := list("")
	c.Assert(res.Payments, qt.HasLen, 4)
	c.Assert(res.Pagination.Page, qt.Equals, 1)
	c.Assert(res.Pagination.TotalPages, qt.Equals, 1)

	res = list("&kind=preauthorization")
	c.Assert(res.Payments, qt.HasLen, 1)
	c.Assert(res.Payments[0].Status, qt.Equals, "requires_capture")

	res = list("&status=succeeded&currency=cad&pageSize=2&page=2")
	c.Assert(res.Payments, qt.HasLen, 1)
	c.Assert(res.Pagination.PageSize, qt.Equals, 2)
	c.Assert(res.Pagination.TotalPages, qt.Equals, 2)

	for query, code := range map[string]int{
		"?kind=refund":      errors.ErrInvalidPaymentFilter.Code,
		"?status=done":      errors.ErrInvalidPaymentFilter.Code,
		"?currency=XYZ":     errors.ErrInvalidPaymentFilter.Code,
		"?page=zero":        errors.ErrMalformedURLParam.Code,
		"?pageSize=-1":      errors.ErrMalformedURLParam.Code,
		"?kind=payment&x=1": 0,
	} {
		body, status := testRequest(c, http.MethodGet, token, nil, paymentsEndpoint+query)
		if code == 0 {
			c.Assert(status, qt.Equals, http.StatusOK)
			continue
		}
		c.Assert(status, qt.Equals, http.StatusBadRequest, qt.Commentf("query %s", query))
		c.Assert(errorCode(c, body), qt.Equals, code)
	}
}

func TestBalanceAndQuoteHandlers(t *testing.T) {
	c := qt.New(t)
	token := testToken(c, "operator-balance")
	testStripe.SetBalance("chf", 10000, 2500)

	body, code := testRequest(c, http.MethodGet, token, nil, balanceEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	balance := &stripe.Balance{}
	c.Assert(json.Unmarshal(body, balance), qt.IsNil)
	c.Assert(balance.AvailableIn("CHF").Equal(decimal.NewFromInt(100)), qt.IsTrue)

	body, code = testRequest(c, http.MethodPost, token, &apicommon.QuoteRequest{
		Amount:   decimal.RequireFromString("150.00"),
		Currency: "CHF",
	}, quoteEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	quote := &currency.Quote{}
	c.Assert(json.Unmarshal(body, quote), qt.IsNil)
	c.Assert(quote.Currency, qt.Equals, currency.CHF)
	c.Assert(quote.ExceedsBalance, qt.IsTrue)
	c.Assert(quote.Warning, qt.Not(qt.Equals), "")
	c.Assert(quote.Total.GreaterThan(quote.Amount), qt.IsTrue)
	c.Assert(quote.ClearanceTime, qt.Equals, currency.ClearanceTime("CHF"))

	body, code = testRequest(c, http.MethodPost, token, &apicommon.QuoteRequest{
		Amount:   decimal.RequireFromString("1.5"),
		Currency: "XYZ",
	}, quoteEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, errors.ErrUnsupportedCurrency.Code)
}
