// Package mailtemplates provides the templates of the messages sent to payers
// along with utilities for rendering them.
package mailtemplates

import "github.com/paydesk/payments-backend/notifications"

// ReceiptData fills the payment receipt and hold templates. Amount is already
// formatted in major units.
type ReceiptData struct {
	PaymentID   string
	Amount      string
	Currency    string
	Method      string
	Description string
	Date        string
	ExpiresAt   string
}

// PaymentReceiptNotification is sent once a payment succeeds.
var PaymentReceiptNotification = MailTemplate{
	File: "payment_receipt",
	Placeholder: notifications.Notification{
		Subject: "Payment received: {{.Amount}} {{.Currency}}",
		PlainBody: `We received your payment of {{.Amount}} {{.Currency}}.
Reference: {{.PaymentID}}{{if .Description}}
Description: {{.Description}}{{end}}
Date: {{.Date}}`,
	},
}

// PreAuthorizationHoldNotification is sent when an amount is held on a card
// waiting for capture.
var PreAuthorizationHoldNotification = MailTemplate{
	File: "preauthorization_hold",
	Placeholder: notifications.Notification{
		Subject: "Amount held on your card: {{.Amount}} {{.Currency}}",
		PlainBody: `An amount of {{.Amount}} {{.Currency}} is held on your card and has not been charged yet.
Reference: {{.PaymentID}}
Released if not captured by {{.ExpiresAt}}`,
	},
}
