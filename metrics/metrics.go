// Package metrics exposes the Prometheus collectors of the gateway and the
// HTTP instrumentation middleware.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpmetrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

const namespace = "paydesk"

var (
	// PaymentsCreated counts PaymentIntents created through the gateway.
	PaymentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_created_total",
		Help:      "PaymentIntents created, by kind, method, currency and resulting status.",
	}, []string{"kind", "method", "currency", "status"})

	// WebhookEvents counts Stripe webhook deliveries by event type and
	// outcome (processed, duplicate, ignored, failed).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Stripe webhook events received, by type and outcome.",
	}, []string{"type", "outcome"})

	// StripeCalls counts calls to the Stripe API by operation and outcome.
	StripeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stripe_api_calls_total",
		Help:      "Stripe API calls, by operation and outcome.",
	}, []string{"operation", "outcome"})

	// StripeLatency observes the duration of Stripe API calls, retries
	// included.
	StripeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stripe_api_duration_seconds",
		Help:      "Duration of Stripe API calls including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

// ObserveStripeCall records the outcome and latency of a Stripe API call.
func ObserveStripeCall(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StripeCalls.WithLabelValues(operation, outcome).Inc()
	StripeLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

var (
	recorderOnce sync.Once
	httpMetrics  middleware.Middleware
)

// Middleware returns a chi compatible middleware that records request
// durations, sizes and in-flight requests labeled with handlerID, the route
// pattern, so path parameters never create new series. The recorder is
// registered once per process.
func Middleware(handlerID string) func(http.Handler) http.Handler {
	recorderOnce.Do(func() {
		httpMetrics = middleware.New(middleware.Config{
			Recorder: httpmetrics.NewRecorder(httpmetrics.Config{Prefix: namespace}),
		})
	})
	return std.HandlerProvider(handlerID, httpMetrics)
}

// Handler returns the HTTP handler serving the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
