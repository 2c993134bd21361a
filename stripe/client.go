package stripe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/eapache/go-resiliency/retrier"
	"github.com/google/uuid"
	"github.com/paydesk/payments-backend/metrics"
	stripeapi "github.com/stripe/stripe-go/v76"
	stripeclient "github.com/stripe/stripe-go/v76/client"
	stripewebhook "github.com/stripe/stripe-go/v76/webhook"
	"go.vocdoni.io/dvote/log"
	"golang.org/x/time/rate"
)

// Client wraps the Stripe API client. Every call waits on a rate limiter,
// runs inside a circuit breaker and is retried with exponential backoff when
// the failure is transient.
type Client struct {
	config  *Config
	api     *stripeclient.API
	limiter *rate.Limiter
	breaker *breaker.Breaker
	retrier *retrier.Retrier
}

// CardDetails are the raw card fields used to create a card PaymentMethod.
type CardDetails struct {
	Number   string
	CVC      string
	ExpMonth int64
	ExpYear  int64
}

// BankAccountDetails are the fields used to tokenize a bank account.
type BankAccountDetails struct {
	HolderName    string
	HolderType    string
	AccountNumber string
	RoutingNumber string
	Country       string
	Currency      string
}

// PaymentIntentRequest holds the parameters of a new PaymentIntent. Amount
// is in minor units and Currency in the lower case form Stripe expects.
type PaymentIntentRequest struct {
	Amount             int64
	Currency           string
	PaymentMethod      string
	PaymentMethodTypes []string
	ManualCapture      bool
	Confirm            bool
	ReceiptEmail       string
	Description        string
	Metadata           map[string]string
}

// NewClient creates a new Stripe client with the given configuration. The
// client does not touch the stripe-go global key or backends.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, ErrInvalidConfiguration
	}
	if err := config.Validate(); err != nil {
		return nil, NewStripeError(ErrInvalidConfiguration.Code, err.Error(), nil)
	}
	backendConfig := &stripeapi.BackendConfig{
		// retries are handled by the retrier so they share the breaker
		MaxNetworkRetries: stripeapi.Int64(0),
		LeveledLogger:     &leveledLogger{},
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
	}
	if config.BackendURL != "" {
		backendConfig.URL = stripeapi.String(config.BackendURL)
	}
	backends := &stripeapi.Backends{
		API:     stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendConfig),
		Connect: stripeapi.GetBackendWithConfig(stripeapi.ConnectBackend, &stripeapi.BackendConfig{LeveledLogger: &leveledLogger{}}),
		Uploads: stripeapi.GetBackendWithConfig(stripeapi.UploadsBackend, &stripeapi.BackendConfig{LeveledLogger: &leveledLogger{}}),
	}
	return &Client{
		config:  config,
		api:     stripeclient.New(config.APIKey, backends),
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		breaker: breaker.New(config.BreakerErrors, config.BreakerSuccesses, config.BreakerTimeout),
		retrier: retrier.New(retrier.ExponentialBackoff(config.MaxRetries, config.RetryBackoff), retryClassifier{}),
	}, nil
}

// retryClassifier retries only the errors IsRetryableError accepts.
type retryClassifier struct{}

func (retryClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case IsRetryableError(err):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

// do runs a Stripe call through the limiter, the breaker and the retrier.
// Only retryable failures count against the breaker, so a burst of card
// declines does not open it.
func (c *Client) do(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	start := time.Now()
	attempt := 0
	err := c.retrier.RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		var clientErr error
		if err := c.breaker.Run(func() error {
			err := call(ctx)
			if err == nil {
				return nil
			}
			se := fromAPIError(fmt.Sprintf("%s failed", operation), err)
			if IsRetryableError(se) {
				log.Warnw("stripe call failed", "operation", operation, "attempt", attempt, "code", se.Code)
				return se
			}
			clientErr = se
			return nil
		}); err != nil {
			return fromAPIError(fmt.Sprintf("%s failed", operation), err)
		}
		return clientErr
	})
	metrics.ObserveStripeCall(operation, start, err)
	return err
}

// newParams returns request params bound to the context. Mutating calls get
// an idempotency key that is reused by every retry of the same call.
func newParams(ctx context.Context, mutating bool) stripeapi.Params {
	p := stripeapi.Params{Context: ctx}
	if mutating {
		p.SetIdempotencyKey(uuid.NewString())
	}
	return p
}

// Balance returns the balance of the Stripe account.
func (c *Client) Balance(ctx context.Context) (*stripeapi.Balance, error) {
	var balance *stripeapi.Balance
	params := &stripeapi.BalanceParams{Params: newParams(ctx, false)}
	err := c.do(ctx, "balance", func(context.Context) (err error) {
		balance, err = c.api.Balance.Get(params)
		return err
	})
	return balance, err
}

// CreateCardPaymentMethod creates a card PaymentMethod from raw card details.
func (c *Client) CreateCardPaymentMethod(ctx context.Context, card CardDetails) (*stripeapi.PaymentMethod, error) {
	var pm *stripeapi.PaymentMethod
	params := &stripeapi.PaymentMethodParams{
		Params: newParams(ctx, true),
		Type:   stripeapi.String(string(stripeapi.PaymentMethodTypeCard)),
		Card: &stripeapi.PaymentMethodCardParams{
			Number:   stripeapi.String(strings.ReplaceAll(card.Number, " ", "")),
			CVC:      stripeapi.String(card.CVC),
			ExpMonth: stripeapi.Int64(card.ExpMonth),
			ExpYear:  stripeapi.Int64(card.ExpYear),
		},
	}
	err := c.do(ctx, "create_payment_method", func(context.Context) (err error) {
		pm, err = c.api.PaymentMethods.New(params)
		return err
	})
	return pm, err
}

// CreateBankAccountToken tokenizes a bank account so it can be debited.
func (c *Client) CreateBankAccountToken(ctx context.Context, account BankAccountDetails) (*stripeapi.Token, error) {
	var token *stripeapi.Token
	bank := &stripeapi.BankAccountParams{
		AccountHolderName: stripeapi.String(account.HolderName),
		AccountHolderType: stripeapi.String(account.HolderType),
		AccountNumber:     stripeapi.String(account.AccountNumber),
		Country:           stripeapi.String(account.Country),
		Currency:          stripeapi.String(account.Currency),
	}
	if account.RoutingNumber != "" {
		bank.RoutingNumber = stripeapi.String(account.RoutingNumber)
	}
	params := &stripeapi.TokenParams{
		Params:      newParams(ctx, true),
		BankAccount: bank,
	}
	err := c.do(ctx, "create_bank_token", func(context.Context) (err error) {
		token, err = c.api.Tokens.New(params)
		return err
	})
	return token, err
}

// CreatePaymentIntent creates, and optionally confirms, a PaymentIntent.
func (c *Client) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*stripeapi.PaymentIntent, error) {
	if req == nil || req.Amount <= 0 || req.Currency == "" {
		return nil, ErrInvalidRequest
	}
	params := &stripeapi.PaymentIntentParams{
		Params:   newParams(ctx, true),
		Amount:   stripeapi.Int64(req.Amount),
		Currency: stripeapi.String(req.Currency),
		Confirm:  stripeapi.Bool(req.Confirm),
	}
	if req.PaymentMethod != "" {
		params.PaymentMethod = stripeapi.String(req.PaymentMethod)
	}
	if len(req.PaymentMethodTypes) > 0 {
		params.PaymentMethodTypes = stripeapi.StringSlice(req.PaymentMethodTypes)
	}
	if req.ManualCapture {
		params.CaptureMethod = stripeapi.String(string(stripeapi.PaymentIntentCaptureMethodManual))
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripeapi.String(req.ReceiptEmail)
	}
	if req.Description != "" {
		params.Description = stripeapi.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	var pi *stripeapi.PaymentIntent
	err := c.do(ctx, "create_payment_intent", func(context.Context) (err error) {
		pi, err = c.api.PaymentIntents.New(params)
		return err
	})
	return pi, err
}

// GetPaymentIntent retrieves a PaymentIntent by id.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*stripeapi.PaymentIntent, error) {
	var pi *stripeapi.PaymentIntent
	params := &stripeapi.PaymentIntentParams{Params: newParams(ctx, false)}
	err := c.do(ctx, "get_payment_intent", func(context.Context) (err error) {
		pi, err = c.api.PaymentIntents.Get(id, params)
		return err
	})
	return pi, err
}

// CapturePaymentIntent captures a held PaymentIntent. A nil amount captures
// the full capturable amount.
func (c *Client) CapturePaymentIntent(ctx context.Context, id string, amount *int64) (*stripeapi.PaymentIntent, error) {
	params := &stripeapi.PaymentIntentCaptureParams{Params: newParams(ctx, true)}
	if amount != nil {
		params.AmountToCapture = stripeapi.Int64(*amount)
	}
	var pi *stripeapi.PaymentIntent
	err := c.do(ctx, "capture_payment_intent", func(context.Context) (err error) {
		pi, err = c.api.PaymentIntents.Capture(id, params)
		return err
	})
	return pi, err
}

// CancelPaymentIntent cancels a PaymentIntent, releasing any held amount.
func (c *Client) CancelPaymentIntent(ctx context.Context, id string,
	reason stripeapi.PaymentIntentCancellationReason,
) (*stripeapi.PaymentIntent, error) {
	params := &stripeapi.PaymentIntentCancelParams{Params: newParams(ctx, true)}
	if reason != "" {
		params.CancellationReason = stripeapi.String(string(reason))
	}
	var pi *stripeapi.PaymentIntent
	err := c.do(ctx, "cancel_payment_intent", func(context.Context) (err error) {
		pi, err = c.api.PaymentIntents.Cancel(id, params)
		return err
	})
	return pi, err
}

// ValidateWebhookEvent validates and parses a webhook event
func (c *Client) ValidateWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	event, err := stripewebhook.ConstructEvent(payload, signatureHeader, c.config.WebhookSecret)
	if err != nil {
		return nil, NewStripeError(CodeWebhookValidation, "webhook signature validation failed", err)
	}
	return &event, nil
}

// leveledLogger routes stripe-go logs to the service logger.
type leveledLogger struct{}

func (*leveledLogger) Debugf(format string, v ...any) { log.Debugf("stripe: "+format, v...) }
func (*leveledLogger) Infof(format string, v ...any)  { log.Debugf("stripe: "+format, v...) }
func (*leveledLogger) Warnf(format string, v ...any)  { log.Warnf("stripe: "+format, v...) }
func (*leveledLogger) Errorf(format string, v ...any) { log.Warnf("stripe: "+format, v...) }
