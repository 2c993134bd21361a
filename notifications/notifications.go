// Package notifications defines the message sent to payers and the interface
// every delivery channel (email, SMS) implements.
package notifications

import "context"

// Notification is a message to a single recipient. Email channels use the
// address fields and both bodies; SMS channels use ToNumber and PlainBody,
// falling back to Body.
type Notification struct {
	ToName         string
	ToAddress      string
	ToNumber       string
	ReplyTo        string
	CCAddress      string
	Subject        string
	Body           string
	PlainBody      string
	EnableTracking bool
}

// NotificationService sends notifications through a channel. New receives
// the channel specific configuration.
type NotificationService interface {
	New(conf any) error
	SendNotification(context.Context, *Notification) error
}
