package db

import "time"

const (
	// payment kinds
	KindPayment          PaymentKind = "payment"
	KindPreAuthorization PaymentKind = "preauthorization"
	// payment methods
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	// payment statuses, the first seven match the PaymentIntent statuses
	StatusRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	StatusRequiresConfirmation  PaymentStatus = "requires_confirmation"
	StatusRequiresAction        PaymentStatus = "requires_action"
	StatusProcessing            PaymentStatus = "processing"
	StatusRequiresCapture       PaymentStatus = "requires_capture"
	StatusCanceled              PaymentStatus = "canceled"
	StatusSucceeded             PaymentStatus = "succeeded"
	StatusFailed                PaymentStatus = "failed"
	StatusExpired               PaymentStatus = "expired"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultPageSize = 10
	maxPageSize     = 100

	// ResetEnvVar drops every collection on startup when set.
	ResetEnvVar = "PAYDESK_MONGO_RESET_DB"
)

var validKinds = map[PaymentKind]bool{
	KindPayment:          true,
	KindPreAuthorization: true,
}

var validMethods = map[PaymentMethod]bool{
	MethodCard:         true,
	MethodBankTransfer: true,
}

var validStatuses = map[PaymentStatus]bool{
	StatusRequiresPaymentMethod: true,
	StatusRequiresConfirmation:  true,
	StatusRequiresAction:        true,
	StatusProcessing:            true,
	StatusRequiresCapture:       true,
	StatusCanceled:              true,
	StatusSucceeded:             true,
	StatusFailed:                true,
	StatusExpired:               true,
}

// IsValidKind checks if the payment kind is known.
func IsValidKind(k string) bool {
	return validKinds[PaymentKind(k)]
}

// IsValidStatus checks if the payment status is known.
func IsValidStatus(s string) bool {
	return validStatuses[PaymentStatus(s)]
}
