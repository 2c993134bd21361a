package stripe

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/db"
	"github.com/paydesk/payments-backend/test"
	"github.com/shopspring/decimal"
)

func TestBalanceAndQuote(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	env.stripe.SetBalance("usd", 150000, 2500)
	env.stripe.SetBalance("jpy", 9000, 0)

	balance, err := env.service.Balance(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(balance.Available, qt.HasLen, 2)
	// sorted by currency code
	c.Assert(balance.Available[0].Currency, qt.Equals, "JPY")
	c.Assert(balance.Available[0].Amount.Equal(decimal.NewFromInt(9000)), qt.IsTrue)
	c.Assert(balance.AvailableIn("usd").String(), qt.Equals, "1500")
	c.Assert(balance.AvailableIn("EUR").IsZero(), qt.IsTrue)

	quote, err := env.service.Quote(ctx, decimal.RequireFromString("100"), "USD")
	c.Assert(err, qt.IsNil)
	c.Assert(quote.EstimatedFee.String(), qt.Equals, "3.2")
	c.Assert(quote.ExceedsBalance, qt.IsFalse)

	quote, err = env.service.Quote(ctx, decimal.RequireFromString("10"), "EUR")
	c.Assert(err, qt.IsNil)
	c.Assert(quote.ExceedsBalance, qt.IsTrue)
	c.Assert(quote.Warning, qt.Not(qt.Equals), "")

	_, err = env.service.Quote(ctx, decimal.RequireFromString("10"), "XYZ")
	c.Assert(err, qt.ErrorIs, currency.ErrUnsupportedCurrency)
	_, err = env.service.Quote(ctx, decimal.RequireFromString("-1"), "USD")
	c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
}

func TestCreateCardPayment(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	payment, err := env.service.CreateCardPayment(ctx, cardRequest("12.50", "usd", test.CardSucceeds))
	c.Assert(err, qt.IsNil)
	c.Assert(payment.Kind, qt.Equals, db.KindPayment)
	c.Assert(payment.Method, qt.Equals, db.MethodCard)
	c.Assert(payment.Amount, qt.Equals, int64(1250))
	c.Assert(payment.Currency, qt.Equals, "USD")
	c.Assert(payment.Status, qt.Equals, db.StatusSucceeded)
	c.Assert(payment.ExpiresAt.IsZero(), qt.IsTrue)

	stored, err := env.db.Payment(payment.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.OperatorID, qt.Equals, "operator-1")
	c.Assert(stored.AmountReceived, qt.Equals, int64(1250))

	// zero decimal currencies are sent as they are
	payment, err = env.service.CreateCardPayment(ctx, cardRequest("1000", "JPY", test.CardSucceeds))
	c.Assert(err, qt.IsNil)
	c.Assert(payment.Amount, qt.Equals, int64(1000))

	_, err = env.service.CreateCardPayment(ctx, cardRequest("10.005", "USD", test.CardSucceeds))
	c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
	_, err = env.service.CreateCardPayment(ctx, cardRequest("10", "BRL", test.CardSucceeds))
	c.Assert(err, qt.ErrorIs, currency.ErrUnsupportedCurrency)

	req := cardRequest("10", "USD", "")
	_, err = env.service.CreateCardPayment(ctx, req)
	c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
}

func TestCreateCardPaymentDeclined(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)

	_, err := env.service.CreateCardPayment(context.Background(), cardRequest("40", "EUR", test.CardDeclined))
	c.Assert(IsCardError(err), qt.IsTrue)

	pages, payments, err := env.db.Payments(db.PaymentFilter{})
	c.Assert(err, qt.IsNil)
	c.Assert(pages, qt.Equals, 0)
	c.Assert(payments, qt.HasLen, 0)
}

func TestCreateBankPayment(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	req := &BankPaymentRequest{
		Amount:        decimal.RequireFromString("99.99"),
		Currency:      "EUR",
		HolderName:    "Jane Doe",
		AccountNumber: "DE89370400440532013000",
		OperatorID:    "operator-1",
	}
	payment, err := env.service.CreateBankPayment(ctx, req)
	c.Assert(err, qt.IsNil)
	c.Assert(payment.Method, qt.Equals, db.MethodBankTransfer)
	c.Assert(payment.Status, qt.Equals, db.StatusProcessing)
	c.Assert(payment.Amount, qt.Equals, int64(9999))
	c.Assert(env.stripe.Requests("POST /v1/tokens"), qt.Equals, 1)

	req.Currency = "GBP"
	_, err = env.service.CreateBankPayment(ctx, req)
	c.Assert(err, qt.ErrorIs, ErrBankDebitUnsupported)
	c.Assert(env.stripe.Requests("POST /v1/tokens"), qt.Equals, 1)

	req.Currency = "USD"
	req.AccountNumber = ""
	_, err = env.service.CreateBankPayment(ctx, req)
	c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
}

func TestPreAuthorizeAndCapture(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	hold, err := env.service.PreAuthorize(ctx, cardRequest("10.00", "USD", test.CardSucceeds))
	c.Assert(err, qt.IsNil)
	c.Assert(hold.Kind, qt.Equals, db.KindPreAuthorization)
	c.Assert(hold.Status, qt.Equals, db.StatusRequiresCapture)
	c.Assert(hold.CaptureMethod, qt.Equals, "manual")
	c.Assert(hold.AmountCapturable, qt.Equals, int64(1000))
	c.Assert(hold.ExpiresAt.Sub(hold.CreatedAt), qt.Equals, DefaultPreAuthHold)

	tooMuch := int64(1001)
	_, err = env.service.CapturePreAuthorization(ctx, hold.ID, &tooMuch)
	c.Assert(err, qt.ErrorIs, ErrCaptureAmountExceeded)

	partial := int64(600)
	captured, err := env.service.CapturePreAuthorization(ctx, hold.ID, &partial)
	c.Assert(err, qt.IsNil)
	c.Assert(captured.Status, qt.Equals, db.StatusSucceeded)
	c.Assert(captured.AmountReceived, qt.Equals, int64(600))
	c.Assert(captured.AmountCapturable, qt.Equals, int64(0))
	c.Assert(captured.CapturedAt.IsZero(), qt.IsFalse)

	_, err = env.service.CapturePreAuthorization(ctx, hold.ID, nil)
	c.Assert(err, qt.ErrorIs, ErrPreAuthorizationState)
	_, err = env.service.CancelPreAuthorization(ctx, hold.ID)
	c.Assert(err, qt.ErrorIs, ErrPreAuthorizationState)

	payment, err := env.service.CreateCardPayment(ctx, cardRequest("5", "USD", test.CardSucceeds))
	c.Assert(err, qt.IsNil)
	_, err = env.service.CapturePreAuthorization(ctx, payment.ID, nil)
	c.Assert(err, qt.ErrorIs, ErrNotAPreAuthorization)
	_, err = env.service.CapturePreAuthorization(ctx, "pi_unknown", nil)
	c.Assert(err, qt.ErrorIs, ErrPaymentNotFound)
}

func TestCancelPreAuthorization(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	hold, err := env.service.PreAuthorize(ctx, cardRequest("25", "EUR", test.CardSucceeds))
	c.Assert(err, qt.IsNil)

	canceled, err := env.service.CancelPreAuthorization(ctx, hold.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(canceled.Status, qt.Equals, db.StatusCanceled)
	c.Assert(canceled.CanceledAt.IsZero(), qt.IsFalse)
	c.Assert(canceled.AmountCapturable, qt.Equals, int64(0))

	_, err = env.service.CapturePreAuthorization(ctx, hold.ID, nil)
	c.Assert(err, qt.ErrorIs, ErrPreAuthorizationState)
}

func TestPreAuthorizationExpires(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	hold, err := env.service.PreAuthorize(ctx, cardRequest("30", "USD", test.CardSucceeds))
	c.Assert(err, qt.IsNil)

	n, err := env.service.ExpirePreAuthorizations(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)

	env.clock.Advance(DefaultPreAuthHold + time.Minute)
	_, err = env.service.CapturePreAuthorization(ctx, hold.ID, nil)
	c.Assert(err, qt.ErrorIs, ErrPreAuthorizationExpire)

	n, err = env.service.ExpirePreAuthorizations(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
	stored, err := env.db.Payment(hold.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Status, qt.Equals, db.StatusExpired)

	// a refresh from Stripe does not revive the hold
	refreshed, err := env.service.Payment(ctx, hold.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(refreshed.Status, qt.Equals, db.StatusExpired)

	n, err = env.service.ExpirePreAuthorizations(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
}

func TestPreAuthorizationCapturedAfterLocalExpiry(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	hold, err := env.service.PreAuthorize(ctx, cardRequest("42", "USD", test.CardSucceeds))
	c.Assert(err, qt.IsNil)
	env.clock.Advance(DefaultPreAuthHold + time.Minute)
	n, err := env.service.ExpirePreAuthorizations(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)

	// Stripe still captured the hold, and it is the system of record
	env.stripe.SetIntentStatus(hold.ID, "succeeded")
	refreshed, err := env.service.Payment(ctx, hold.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(refreshed.Status, qt.Equals, db.StatusSucceeded)
	c.Assert(refreshed.AmountReceived, qt.Equals, int64(4200))
}

func TestPaymentStatus(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	payment, err := env.service.CreateBankPayment(ctx, &BankPaymentRequest{
		Amount:        decimal.RequireFromString("20"),
		Currency:      "USD",
		HolderName:    "John Doe",
		AccountNumber: "000123456789",
		RoutingNumber: "110000000",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(payment.Status, qt.Equals, db.StatusProcessing)

	env.stripe.SetIntentStatus(payment.ID, "succeeded")
	refreshed, err := env.service.Payment(ctx, payment.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(refreshed.Status, qt.Equals, db.StatusSucceeded)
	c.Assert(refreshed.AmountReceived, qt.Equals, int64(2000))
	c.Assert(refreshed.CreatedAt.Equal(payment.CreatedAt.Truncate(time.Millisecond)), qt.IsTrue)

	_, err = env.service.Payment(ctx, "pi_missing")
	c.Assert(err, qt.ErrorIs, ErrPaymentNotFound)
	_, err = env.service.Payment(ctx, "")
	c.Assert(err, qt.ErrorIs, ErrPaymentNotFound)
}

func TestPaymentsList(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	for range 3 {
		_, err := env.service.CreateCardPayment(ctx, cardRequest("1", "USD", test.CardSucceeds))
		c.Assert(err, qt.IsNil)
	}
	_, err := env.service.PreAuthorize(ctx, cardRequest("2", "EUR", test.CardSucceeds))
	c.Assert(err, qt.IsNil)

	pages, payments, err := env.service.Payments(ctx, db.PaymentFilter{PageSize: 2, Page: 1})
	c.Assert(err, qt.IsNil)
	c.Assert(pages, qt.Equals, 2)
	c.Assert(payments, qt.HasLen, 2)

	_, payments, err = env.service.Payments(ctx, db.PaymentFilter{Currency: "eur"})
	c.Assert(err, qt.IsNil)
	c.Assert(payments, qt.HasLen, 1)
	c.Assert(payments[0].Kind, qt.Equals, db.KindPreAuthorization)

	_, payments, err = env.service.Payments(ctx, db.PaymentFilter{Kind: db.KindPayment, Status: db.StatusSucceeded})
	c.Assert(err, qt.IsNil)
	c.Assert(payments, qt.HasLen, 3)
}
