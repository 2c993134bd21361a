package api

const (
	// GET /ping to check the service is alive
	pingEndpoint = "/ping"
	// GET /metrics to scrape the Prometheus metrics
	metricsEndpoint = "/metrics"

	// auth routes

	// POST /auth/refresh to refresh the JWT token
	authRefreshTokenEndpoint = "/auth/refresh"

	// payment routes

	// GET /balance to get the Stripe account balance
	balanceEndpoint = "/balance"
	// POST /payments/quote to estimate the fee and clearance time of an amount
	quoteEndpoint = "/payments/quote"
	// POST /payments/card to charge a card
	cardPaymentEndpoint = "/payments/card"
	// POST /payments/bank to debit a bank account
	bankPaymentEndpoint = "/payments/bank"
	// GET /payments to list the payments
	paymentsEndpoint = "/payments"
	// GET /payments/{paymentId} to get the status of a payment
	paymentEndpoint = "/payments/{paymentId}"

	// pre-authorization routes

	// POST /preauthorizations to place a hold on a card
	preAuthorizationsEndpoint = "/preauthorizations"
	// POST /preauthorizations/{paymentId}/capture to charge a hold
	preAuthorizationCaptureEndpoint = "/preauthorizations/{paymentId}/capture"
	// POST /preauthorizations/{paymentId}/cancel to release a hold
	preAuthorizationCancelEndpoint = "/preauthorizations/{paymentId}/cancel"

	// currency routes

	// GET /currencies to list the supported currencies
	currenciesEndpoint = "/currencies"
	// GET /bank-details to list the bank details of every currency
	bankDetailsEndpoint = "/bank-details"
	// GET /bank-details/{currency} to get the bank details of a currency
	bankDetailsCurrencyEndpoint = "/bank-details/{currency}"

	// POST /stripe/webhook to receive Stripe events
	stripeWebhookEndpoint = "/stripe/webhook"
)
