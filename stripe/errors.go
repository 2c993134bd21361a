package stripe

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eapache/go-resiliency/breaker"
	stripeapi "github.com/stripe/stripe-go/v76"
)

// StripeError represents a Stripe-specific error. Errors returned by the
// Stripe API keep their type, code, decline code and HTTP status.
type StripeError struct {
	Code        string
	Message     string
	Type        string
	DeclineCode string
	HTTPStatus  int
	Err         error
}

func (e *StripeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stripe error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("stripe error [%s]: %s", e.Code, e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by code, so wrapped API errors can be compared
// with errors.Is.
func (e *StripeError) Is(target error) bool {
	t, ok := target.(*StripeError)
	return ok && t.Code == e.Code
}

// Error codes set by the gateway. API errors keep the Stripe code instead.
const (
	CodeRateLimit           = "rate_limit_error"
	CodeAPIConnection       = "api_connection_error"
	CodeUnavailable         = "service_unavailable"
	CodeWebhookValidation   = "webhook_validation"
	CodeInvalidEvent        = "invalid_event"
	CodeInvalidRequest      = "invalid_request"
	CodeBankDebitNotOffered = "bank_debit_unsupported"
)

// Common Stripe errors
var (
	ErrInvalidEvent           = &StripeError{Code: CodeInvalidEvent, Message: "invalid webhook event"}
	ErrWebhookValidation      = &StripeError{Code: CodeWebhookValidation, Message: "webhook signature validation failed"}
	ErrInvalidConfiguration   = &StripeError{Code: "invalid_configuration", Message: "invalid stripe configuration"}
	ErrServiceUnavailable     = &StripeError{Code: CodeUnavailable, Message: "stripe is temporarily unavailable"}
	ErrInvalidRequest         = &StripeError{Code: CodeInvalidRequest, Message: "invalid payment request"}
	ErrBankDebitUnsupported   = &StripeError{Code: CodeBankDebitNotOffered, Message: "bank debits are not offered for this currency"}
	ErrPaymentNotFound        = &StripeError{Code: "payment_not_found", Message: "payment not found"}
	ErrNotAPreAuthorization   = &StripeError{Code: "not_a_preauthorization", Message: "payment is not a pre-authorization"}
	ErrPreAuthorizationState  = &StripeError{Code: "preauthorization_state", Message: "pre-authorization cannot change in its current status"}
	ErrPreAuthorizationExpire = &StripeError{Code: "preauthorization_expired", Message: "pre-authorization has expired"}
	ErrCaptureAmountExceeded  = &StripeError{Code: "capture_amount_exceeded", Message: "capture amount exceeds the authorized amount"}
)

// NewStripeError creates a new StripeError with the given code, message, and underlying error
func NewStripeError(code, message string, err error) *StripeError {
	return &StripeError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// fromAPIError converts an error returned by stripe-go into a StripeError.
// API errors keep their Stripe code and type, transport errors become
// connection errors and an open breaker becomes service_unavailable.
func fromAPIError(message string, err error) *StripeError {
	if err == nil {
		return nil
	}
	var se *StripeError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, breaker.ErrBreakerOpen) {
		return &StripeError{
			Code:       CodeUnavailable,
			Message:    message,
			HTTPStatus: http.StatusServiceUnavailable,
			Err:        err,
		}
	}
	var apiErr *stripeapi.Error
	if !errors.As(err, &apiErr) {
		return &StripeError{Code: CodeAPIConnection, Message: message, Err: err}
	}
	code := string(apiErr.Code)
	if code == "" {
		code = string(apiErr.Type)
	}
	if apiErr.Code == stripeapi.ErrorCodeRateLimit || apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		code = CodeRateLimit
	}
	return &StripeError{
		Code:        code,
		Message:     message + ": " + apiErr.Msg,
		Type:        string(apiErr.Type),
		DeclineCode: string(apiErr.DeclineCode),
		HTTPStatus:  apiErr.HTTPStatusCode,
		Err:         err,
	}
}

// IsRetryableError determines if an error is retryable: rate limits, Stripe
// server errors and connection failures. Card declines and invalid requests
// are not.
func IsRetryableError(err error) bool {
	var se *StripeError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case CodeRateLimit, CodeAPIConnection:
		return true
	case CodeUnavailable:
		return false
	}
	if se.Type == string(stripeapi.ErrorTypeAPI) {
		return true
	}
	return se.HTTPStatus >= http.StatusInternalServerError
}

// IsTemporaryError determines if an error is temporary, so the caller may try
// again later. It includes an open circuit breaker.
func IsTemporaryError(err error) bool {
	var se *StripeError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case CodeRateLimit, CodeAPIConnection, CodeUnavailable:
		return true
	}
	return false
}

// IsCardError reports whether the error is a card decline or a rejected card
// detail.
func IsCardError(err error) bool {
	var se *StripeError
	return errors.As(err, &se) && se.Type == string(stripeapi.ErrorTypeCard)
}

// IsInvalidRequestError reports whether Stripe rejected the request
// parameters.
func IsInvalidRequestError(err error) bool {
	var se *StripeError
	return errors.As(err, &se) &&
		(se.Type == string(stripeapi.ErrorTypeInvalidRequest) || se.Code == CodeInvalidRequest)
}
