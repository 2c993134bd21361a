// Package api provides the HTTP API of the payment gateway
//
//	@title						Paydesk Payments API
//	@version					1.0
//	@description				API for making card and bank payments, pre-authorizations and bank details lookups through Stripe.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the operator JWT token.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/metrics"
	"github.com/paydesk/payments-backend/stripe"
	"go.vocdoni.io/dvote/log"
)

const jwtExpiration = 12 * time.Hour

// Config holds the dependencies of the API.
type Config struct {
	Host   string
	Port   int
	Secret string
	// Payments is the Stripe payment service
	Payments *stripe.Service
	// BankTable holds the bank details shown per currency, the default
	// table is used when nil
	BankTable *currency.BankTable
}

// API type represents the API HTTP server with JWT authentication capabilities.
type API struct {
	auth      *jwtauth.JWTAuth
	host      string
	port      int
	secret    string
	payments  *stripe.Service
	bankTable *currency.BankTable
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) *API {
	if conf == nil {
		return nil
	}
	bankTable := conf.BankTable
	if bankTable == nil {
		bankTable = currency.DefaultBankTable()
	}
	return &API{
		auth:      jwtauth.New("HS256", []byte(conf.Secret), nil),
		host:      conf.Host,
		port:      conf.Port,
		secret:    conf.Secret,
		payments:  conf.Payments,
		bankTable: bankTable,
	}
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", a.host, a.port), a.initRouter()); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// Handler returns the router with every route and middleware, to be served
// by the caller.
func (a *API) Handler() http.Handler {
	return a.initRouter()
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	r.Use(middleware.Timeout(45 * time.Second))

	// protected routes
	r.Group(func(r chi.Router) {
		// seek, verify and validate JWT tokens
		r.Use(jwtauth.Verifier(a.auth))
		// handle valid JWT tokens
		r.Use(a.authenticator)
		// refresh the token
		a.route(r, http.MethodPost, authRefreshTokenEndpoint, a.refreshTokenHandler)
		// account balance
		a.route(r, http.MethodGet, balanceEndpoint, a.balanceHandler)
		// fee and clearance estimate
		a.route(r, http.MethodPost, quoteEndpoint, a.quoteHandler)
		// card payment
		a.route(r, http.MethodPost, cardPaymentEndpoint, a.createCardPaymentHandler)
		// bank account debit
		a.route(r, http.MethodPost, bankPaymentEndpoint, a.createBankPaymentHandler)
		// list payments
		a.route(r, http.MethodGet, paymentsEndpoint, a.paymentsHandler)
		// payment status
		a.route(r, http.MethodGet, paymentEndpoint, a.paymentHandler)
		// PRE-AUTHORIZATION ROUTES
		a.route(r, http.MethodPost, preAuthorizationsEndpoint, a.createPreAuthorizationHandler)
		a.route(r, http.MethodPost, preAuthorizationCaptureEndpoint, a.capturePreAuthorizationHandler)
		a.route(r, http.MethodPost, preAuthorizationCancelEndpoint, a.cancelPreAuthorizationHandler)
	})

	// Public routes
	r.Group(func(r chi.Router) {
		a.route(r, http.MethodGet, pingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
			if _, err := w.Write([]byte(".")); err != nil {
				log.Warnw("failed to write ping response", "error", err)
			}
		})
		// prometheus metrics
		log.Infow("new route", "method", "GET", "path", metricsEndpoint)
		r.Method(http.MethodGet, metricsEndpoint, metrics.Handler())
		// supported currencies
		a.route(r, http.MethodGet, currenciesEndpoint, a.currenciesHandler)
		// bank details
		a.route(r, http.MethodGet, bankDetailsEndpoint, a.bankDetailsHandler)
		a.route(r, http.MethodGet, bankDetailsCurrencyEndpoint, a.bankDetailsByCurrencyHandler)
		// stripe webhook
		a.route(r, http.MethodPost, stripeWebhookEndpoint, a.stripeWebhookHandler)
	})
	return r
}

// route registers the handler, instrumented with the metrics of its pattern.
func (*API) route(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	log.Infow("new route", "method", method, "path", pattern)
	r.With(metrics.Middleware(pattern)).Method(method, pattern, handler)
}
