package stripe

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/paydesk/payments-backend/test"
	stripeapi "github.com/stripe/stripe-go/v76"
)

func testConfig(backendURL string) *Config {
	conf := NewConfig(test.StripeTestKey, test.StripeWebhookSecret)
	conf.BackendURL = backendURL
	conf.RetryBackoff = time.Millisecond
	conf.RequestsPerSecond = 1000
	conf.Burst = 100
	// breaker errors accumulate across calls, keep it closed unless a test
	// exercises it
	conf.BreakerErrors = 50
	return conf
}

func newTestClient(c *qt.C) (*Client, *test.StripeServer) {
	server := test.NewStripeServer()
	c.Cleanup(server.Close)
	client, err := NewClient(testConfig(server.URL))
	c.Assert(err, qt.IsNil)
	return client, server
}

func TestClientBalance(t *testing.T) {
	c := qt.New(t)
	client, server := newTestClient(c)
	server.SetBalance("usd", 123456, 700)

	balance, err := client.Balance(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(balance.Available, qt.HasLen, 1)
	c.Assert(balance.Available[0].Amount, qt.Equals, int64(123456))
	c.Assert(string(balance.Available[0].Currency), qt.Equals, "usd")
	c.Assert(balance.Pending[0].Amount, qt.Equals, int64(700))
}

func TestClientRetriesServerErrors(t *testing.T) {
	c := qt.New(t)
	client, server := newTestClient(c)

	server.FailNext(2)
	_, err := client.Balance(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(server.Requests("GET /v1/balance"), qt.Equals, 3)

	// more failures than retries surface the last error
	server.FailNext(DefaultMaxRetries + 1)
	_, err = client.Balance(context.Background())
	c.Assert(err, qt.IsNotNil)
	c.Assert(IsRetryableError(err), qt.IsTrue)
	c.Assert(server.Requests("GET /v1/balance"), qt.Equals, 3+DefaultMaxRetries+1)
}

func TestClientIdempotencyKey(t *testing.T) {
	c := qt.New(t)
	client, server := newTestClient(c)
	ctx := context.Background()

	pm, err := client.CreateCardPaymentMethod(ctx, CardDetails{
		Number: test.CardSucceeds, CVC: "123", ExpMonth: 12, ExpYear: 2035,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(server.LastHeaders().Get("Idempotency-Key"), qt.Not(qt.Equals), "")

	server.FailNext(1)
	pi, err := client.CreatePaymentIntent(ctx, &PaymentIntentRequest{
		Amount:             1250,
		Currency:           "usd",
		PaymentMethod:      pm.ID,
		PaymentMethodTypes: []string{"card"},
		Confirm:            true,
		Metadata:           map[string]string{"kind": "payment"},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(pi.Status, qt.Equals, stripeapi.PaymentIntentStatusSucceeded)
	c.Assert(pi.Metadata["kind"], qt.Equals, "payment")
	c.Assert(server.Requests("POST /v1/payment_intents"), qt.Equals, 2)
	key := server.LastHeaders().Get("Idempotency-Key")
	c.Assert(key, qt.Not(qt.Equals), "")

	// reads carry no idempotency key
	got, err := client.GetPaymentIntent(ctx, pi.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.AmountReceived, qt.Equals, int64(1250))
	c.Assert(server.LastHeaders().Get("Idempotency-Key"), qt.Equals, "")
}

func TestClientCardDeclineIsNotRetried(t *testing.T) {
	c := qt.New(t)
	client, server := newTestClient(c)
	ctx := context.Background()

	pm, err := client.CreateCardPaymentMethod(ctx, CardDetails{
		Number: test.CardDeclined, CVC: "123", ExpMonth: 1, ExpYear: 2035,
	})
	c.Assert(err, qt.IsNil)
	_, err = client.CreatePaymentIntent(ctx, &PaymentIntentRequest{
		Amount:        5000,
		Currency:      "eur",
		PaymentMethod: pm.ID,
		Confirm:       true,
	})
	c.Assert(err, qt.IsNotNil)
	c.Assert(IsCardError(err), qt.IsTrue)
	var se *StripeError
	c.Assert(errors.As(err, &se), qt.IsTrue)
	c.Assert(se.Code, qt.Equals, "card_declined")
	c.Assert(se.DeclineCode, qt.Equals, "insufficient_funds")
	c.Assert(server.Requests("POST /v1/payment_intents"), qt.Equals, 1)

	_, err = client.CreatePaymentIntent(ctx, &PaymentIntentRequest{Currency: "eur"})
	c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
}

func TestClientBreakerOpens(t *testing.T) {
	c := qt.New(t)
	server := test.NewStripeServer()
	c.Cleanup(server.Close)
	conf := testConfig(server.URL)
	conf.MaxRetries = 1
	conf.BreakerErrors = 2
	conf.BreakerTimeout = time.Minute
	client, err := NewClient(conf)
	c.Assert(err, qt.IsNil)

	server.FailNext(100)
	_, err = client.Balance(context.Background())
	c.Assert(IsRetryableError(err), qt.IsTrue)
	c.Assert(server.Requests("GET /v1/balance"), qt.Equals, 2)

	// the open breaker fails fast without reaching Stripe
	_, err = client.Balance(context.Background())
	c.Assert(err, qt.ErrorIs, ErrServiceUnavailable)
	c.Assert(IsTemporaryError(err), qt.IsTrue)
	c.Assert(server.Requests("GET /v1/balance"), qt.Equals, 2)
}

func TestClientBreakerIgnoresClientErrors(t *testing.T) {
	c := qt.New(t)
	server := test.NewStripeServer()
	c.Cleanup(server.Close)
	conf := testConfig(server.URL)
	conf.BreakerErrors = 2
	client, err := NewClient(conf)
	c.Assert(err, qt.IsNil)

	for range 5 {
		_, err := client.GetPaymentIntent(context.Background(), "pi_missing")
		c.Assert(IsInvalidRequestError(err), qt.IsTrue)
	}
	server.SetBalance("eur", 10, 0)
	_, err = client.Balance(context.Background())
	c.Assert(err, qt.IsNil)
}

func TestValidateWebhookEvent(t *testing.T) {
	c := qt.New(t)
	client, _ := newTestClient(c)

	payload, signature := test.SignedEvent("evt_1", stripeapi.EventTypePaymentIntentSucceeded,
		map[string]any{"id": "pi_1", "object": "payment_intent"})
	event, err := client.ValidateWebhookEvent(payload, signature)
	c.Assert(err, qt.IsNil)
	c.Assert(event.ID, qt.Equals, "evt_1")
	c.Assert(event.Type, qt.Equals, stripeapi.EventTypePaymentIntentSucceeded)

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = ' '
	_, err = client.ValidateWebhookEvent(tampered, signature)
	c.Assert(err, qt.ErrorIs, ErrWebhookValidation)

	_, err = client.ValidateWebhookEvent(payload, "")
	c.Assert(err, qt.ErrorIs, ErrWebhookValidation)
}
