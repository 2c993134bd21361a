package stripe

import (
	"fmt"
	"time"

	"github.com/paydesk/payments-backend/migrations"
)

const (
	DefaultRequestsPerSecond = 25
	DefaultBurst             = 10
	DefaultMaxRetries        = 3
	DefaultRetryBackoff      = 200 * time.Millisecond
	DefaultBreakerErrors     = 5
	DefaultBreakerSuccesses  = 2
	DefaultBreakerTimeout    = 30 * time.Second
	// DefaultPreAuthHold is how long Stripe keeps an uncaptured card
	// authorization before releasing it.
	DefaultPreAuthHold = 7 * 24 * time.Hour
	// DefaultEventTTL matches the TTL index of the webhook_events collection.
	DefaultEventTTL = migrations.WebhookEventsTTL
)

// Config holds the complete Stripe configuration
type Config struct {
	APIKey        string `yaml:"api_key" json:"api_key"`
	WebhookSecret string `yaml:"webhook_secret" json:"webhook_secret"`
	// BackendURL overrides the Stripe API URL, mostly to point tests at a
	// fake server.
	BackendURL string `yaml:"backend_url" json:"backend_url"`

	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff      time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	BreakerErrors     int           `yaml:"breaker_errors" json:"breaker_errors"`
	BreakerSuccesses  int           `yaml:"breaker_successes" json:"breaker_successes"`
	BreakerTimeout    time.Duration `yaml:"breaker_timeout" json:"breaker_timeout"`

	PreAuthHold time.Duration `yaml:"preauth_hold" json:"preauth_hold"`
	EventTTL    time.Duration `yaml:"event_ttl" json:"event_ttl"`
}

// NewConfig returns a configuration with the given credentials and the
// default limits.
func NewConfig(apiKey, webhookSecret string) *Config {
	c := &Config{APIKey: apiKey, WebhookSecret: webhookSecret}
	c.setDefaults()
	return c
}

// Validate checks the required fields and fills the zero limits with the
// defaults.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("stripe API key is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("stripe webhook secret is required")
	}
	if c.RequestsPerSecond < 0 || c.Burst < 0 || c.MaxRetries < 0 {
		return fmt.Errorf("stripe rate limits must not be negative")
	}
	c.setDefaults()
	return nil
}

func (c *Config) setDefaults() {
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.Burst == 0 {
		c.Burst = DefaultBurst
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.BreakerErrors == 0 {
		c.BreakerErrors = DefaultBreakerErrors
	}
	if c.BreakerSuccesses == 0 {
		c.BreakerSuccesses = DefaultBreakerSuccesses
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = DefaultBreakerTimeout
	}
	if c.PreAuthHold == 0 {
		c.PreAuthHold = DefaultPreAuthHold
	}
	if c.EventTTL == 0 {
		c.EventTTL = DefaultEventTTL
	}
}
