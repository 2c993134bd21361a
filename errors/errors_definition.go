// Package errors provides the API error type and the error codes returned by
// the payment gateway.
//
//nolint:lll
package errors

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the caller's fault,
// and they return HTTP Status 400, 402, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500, 502 or 503.
//
// NEVER change any of the current error codes, only append new errors after
// the current last 4XXXX or 5XXXX of each group. Gaps are not refilled.
// There's no correlation between Code and HTTP Status.
var (
	// Authentication errors (401)
	ErrUnauthorized = Error{Code: 40001, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("authentication required"), LogLevel: "info"}

	// Validation errors (400)
	ErrMalformedBody          = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON request body")}
	ErrMalformedURLParam      = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid URL parameter")}
	ErrInvalidData            = Error{Code: 40037, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid data provided")}
	ErrInvalidAmount          = Error{Code: 40201, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid payment amount")}
	ErrUnsupportedCurrency    = Error{Code: 40202, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("currency not supported")}
	ErrInvalidCardDetails     = Error{Code: 40203, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid card details")}
	ErrInvalidBankDetails     = Error{Code: 40204, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid bank account details")}
	ErrBankDebitUnsupported   = Error{Code: 40205, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("bank debit not available for currency")}
	ErrInvalidPaymentFilter   = Error{Code: 40207, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid payment filter")}
	ErrStripeInvalidRequest   = Error{Code: 40208, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("payment provider rejected the request"), LogLevel: "info"}
	ErrWebhookValidation      = Error{Code: 40209, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("webhook signature validation failed"), LogLevel: "warn"}
	ErrCaptureAmountExceeded  = Error{Code: 40210, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("capture amount exceeds authorized amount")}
	ErrNotAPreAuthorization   = Error{Code: 40211, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("payment is not a pre-authorization")}
	ErrPreAuthorizationState  = Error{Code: 40212, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("pre-authorization is not in a valid state for this operation"), LogLevel: "info"}
	ErrPreAuthorizationExpire = Error{Code: 40213, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("pre-authorization hold has expired"), LogLevel: "info"}

	// Payment declined (402)
	ErrCardDeclined = Error{Code: 40206, HTTPstatus: http.StatusPaymentRequired, Err: fmt.Errorf("card declined"), LogLevel: "info"}

	// Not found errors (404)
	ErrPaymentNotFound     = Error{Code: 40402, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("payment not found")}
	ErrBankDetailsNotFound = Error{Code: 40403, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("bank details not found for currency")}

	// Server errors (500) - These should be used sparingly and only for true internal errors
	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: failed to process response"), LogLevel: "error"}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: operation failed"), LogLevel: "error"}
	ErrStripeError                = Error{Code: 50005, HTTPstatus: http.StatusBadGateway, Err: fmt.Errorf("server error: payment processing failed"), LogLevel: "error"}
	ErrStripeWebhookError         = Error{Code: 50008, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: stripe webhook failed"), LogLevel: "error"}
	ErrStripeUnavailable          = Error{Code: 50009, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("server error: payment provider temporarily unavailable"), LogLevel: "warn"}
)
