package db

import (
	"time"
)

// PaymentKind distinguishes immediate payments from card holds.
type PaymentKind string

// PaymentMethod is the rail a payment was made with.
type PaymentMethod string

// PaymentStatus mirrors the PaymentIntent status, extended with the local
// failed and expired states.
type PaymentStatus string

// Payment is the local record of a Stripe PaymentIntent. Amounts are stored
// in the minor unit of the currency, as Stripe reports them.
type Payment struct {
	ID               string        `json:"id" bson:"_id"`
	Kind             PaymentKind   `json:"kind" bson:"kind"`
	Method           PaymentMethod `json:"method" bson:"method"`
	Amount           int64         `json:"amount" bson:"amount"`
	Currency         string        `json:"currency" bson:"currency"`
	Status           PaymentStatus `json:"status" bson:"status"`
	CaptureMethod    string        `json:"captureMethod" bson:"captureMethod"`
	AmountCapturable int64         `json:"amountCapturable" bson:"amountCapturable"`
	AmountReceived   int64         `json:"amountReceived" bson:"amountReceived"`
	FailureMessage   string        `json:"failureMessage,omitempty" bson:"failureMessage,omitempty"`
	Description      string        `json:"description,omitempty" bson:"description,omitempty"`
	ReceiptEmail     string        `json:"receiptEmail,omitempty" bson:"receiptEmail,omitempty"`
	ReceiptPhone     string        `json:"receiptPhone,omitempty" bson:"receiptPhone,omitempty"`
	OperatorID       string        `json:"operatorId,omitempty" bson:"operatorId,omitempty"`
	CreatedAt        time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt" bson:"updatedAt"`
	ExpiresAt        time.Time     `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
	CapturedAt       time.Time     `json:"capturedAt,omitempty" bson:"capturedAt,omitempty"`
	CanceledAt       time.Time     `json:"canceledAt,omitempty" bson:"canceledAt,omitempty"`
	NotifiedAt       time.Time     `json:"notifiedAt,omitempty" bson:"notifiedAt,omitempty"`
}

// IsPreAuthorization reports whether the payment is a manual capture hold.
func (p *Payment) IsPreAuthorization() bool {
	return p.Kind == KindPreAuthorization
}

// Expired reports whether a hold is past its expiration time.
func (p *Payment) Expired(now time.Time) bool {
	return p.IsPreAuthorization() && !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// PaymentUpdate holds the fields of a payment that change after creation.
// Zero values and nil amounts are left untouched; amounts are pointers so
// they can be set to zero.
type PaymentUpdate struct {
	Status           PaymentStatus `bson:"status"`
	AmountCapturable *int64        `bson:"amountCapturable"`
	AmountReceived   *int64        `bson:"amountReceived"`
	FailureMessage   string        `bson:"failureMessage"`
	CapturedAt       time.Time     `bson:"capturedAt"`
	CanceledAt       time.Time     `bson:"canceledAt"`
}

// PaymentFilter selects and paginates payments. Empty fields match any
// value. Page starts at 1.
type PaymentFilter struct {
	Kind       PaymentKind
	Status     PaymentStatus
	Currency   string
	OperatorID string
	Page       int
	PageSize   int
}

// WebhookEvent records a processed Stripe event id.
type WebhookEvent struct {
	ID          string    `bson:"_id"`
	Type        string    `bson:"type"`
	ProcessedAt time.Time `bson:"processedAt"`
}

// MigrationRecord represents a migration record stored in MongoDB
type MigrationRecord struct {
	Version   int       `bson:"version"`
	AppliedAt time.Time `bson:"applied_at"`
}
