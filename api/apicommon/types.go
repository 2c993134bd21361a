package apicommon

//revive:disable:max-public-structs

import (
	"time"

	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/db"
	"github.com/shopspring/decimal"
)

// LoginResponse holds a signed JWT token and its expiration time.
// swagger:model LoginResponse
type LoginResponse struct {
	// JWT authentication token
	Token string `json:"token"`

	// Token expiration time
	Expiry time.Time `json:"expiry"`
}

// CardInfo holds the raw card fields of a card payment.
type CardInfo struct {
	Number   string `json:"number"`
	CVC      string `json:"cvc" validate:"omitempty,numeric,min=3,max=4"`
	ExpMonth int64  `json:"expMonth"`
	ExpYear  int64  `json:"expYear"`
}

// CardPaymentRequest is the body of a card payment or a pre-authorization.
// Either Card or PaymentMethodID must be set. Amount is in major units, as
// a decimal string ("12.50").
// swagger:model CardPaymentRequest
type CardPaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Card            *CardInfo       `json:"card,omitempty"`
	PaymentMethodID string          `json:"paymentMethodId,omitempty"`
	Description     string          `json:"description,omitempty" validate:"max=500"`
	ReceiptEmail    string          `json:"receiptEmail,omitempty" validate:"omitempty,email"`
	ReceiptPhone    string          `json:"receiptPhone,omitempty" validate:"omitempty,phone"`
}

// BankPaymentRequest is the body of a payment debited from a bank account.
// swagger:model BankPaymentRequest
type BankPaymentRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	AccountHolderName string          `json:"accountHolderName"`
	AccountNumber     string          `json:"accountNumber"`
	RoutingNumber     string          `json:"routingNumber,omitempty"`
	Description       string          `json:"description,omitempty" validate:"max=500"`
	ReceiptEmail      string          `json:"receiptEmail,omitempty" validate:"omitempty,email"`
	ReceiptPhone      string          `json:"receiptPhone,omitempty" validate:"omitempty,phone"`
}

// QuoteRequest asks for the fee and clearance estimate of an amount.
// swagger:model QuoteRequest
type QuoteRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// CaptureRequest captures a pre-authorization. A nil amount captures the
// whole authorized amount.
// swagger:model CaptureRequest
type CaptureRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// Payment is the API representation of a payment, with amounts in major
// units.
// swagger:model Payment
type Payment struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	Method           string          `json:"method"`
	Status           string          `json:"status"`
	Currency         string          `json:"currency"`
	Amount           decimal.Decimal `json:"amount"`
	AmountCapturable decimal.Decimal `json:"amountCapturable"`
	AmountReceived   decimal.Decimal `json:"amountReceived"`
	ClearanceTime    string          `json:"clearanceTime"`
	FailureMessage   string          `json:"failureMessage,omitempty"`
	Description      string          `json:"description,omitempty"`
	ReceiptEmail     string          `json:"receiptEmail,omitempty"`
	OperatorID       string          `json:"operatorId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	ExpiresAt        *time.Time      `json:"expiresAt,omitempty"`
	CapturedAt       *time.Time      `json:"capturedAt,omitempty"`
	CanceledAt       *time.Time      `json:"canceledAt,omitempty"`
}

// PaymentFromDB converts a stored payment into its API representation.
func PaymentFromDB(p *db.Payment) *Payment {
	exp := currency.ExponentOf(p.Currency)
	major := func(minor int64) decimal.Decimal {
		return decimal.New(minor, -exp)
	}
	optional := func(t time.Time) *time.Time {
		if t.IsZero() {
			return nil
		}
		return &t
	}
	return &Payment{
		ID:               p.ID,
		Kind:             string(p.Kind),
		Method:           string(p.Method),
		Status:           string(p.Status),
		Currency:         p.Currency,
		Amount:           major(p.Amount),
		AmountCapturable: major(p.AmountCapturable),
		AmountReceived:   major(p.AmountReceived),
		ClearanceTime:    currency.ClearanceTime(p.Currency),
		FailureMessage:   p.FailureMessage,
		Description:      p.Description,
		ReceiptEmail:     p.ReceiptEmail,
		OperatorID:       p.OperatorID,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		ExpiresAt:        optional(p.ExpiresAt),
		CapturedAt:       optional(p.CapturedAt),
		CanceledAt:       optional(p.CanceledAt),
	}
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// PaymentsResponse is a page of payments, newest first.
// swagger:model PaymentsResponse
type PaymentsResponse struct {
	Payments   []*Payment  `json:"payments"`
	Pagination *Pagination `json:"pagination"`
}

// BankDetailsResponse lists the bank details of every supported currency.
type BankDetailsResponse struct {
	BankDetails []currency.BankDetails `json:"bankDetails"`
}

// CurrenciesResponse lists the supported currencies.
type CurrenciesResponse struct {
	Currencies []currency.Currency `json:"currencies"`
}
