// Package twilio sends SMS notifications through the Twilio REST API.
package twilio

import (
	"context"
	"fmt"

	"github.com/paydesk/payments-backend/notifications"
	t "github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// maxBodyLength keeps receipts within a few SMS segments.
const maxBodyLength = 480

// Config holds the Twilio credentials and the sender number.
type Config struct {
	AccountSid string
	AuthToken  string
	FromNumber string
}

// SMS is the Twilio implementation of notifications.NotificationService.
type SMS struct {
	config *Config
	client *t.RestClient
}

// New initializes the REST client with the account credentials.
// Read more here: https://www.twilio.com/docs/messaging/quickstart/go
func (s *SMS) New(rawConfig any) error {
	config, ok := rawConfig.(*Config)
	if !ok {
		return fmt.Errorf("invalid Twilio configuration")
	}
	if config.AccountSid == "" || config.AuthToken == "" || config.FromNumber == "" {
		return fmt.Errorf("twilio account sid, auth token and from number are required")
	}
	s.config = config
	s.client = t.NewRestClientWithParams(t.ClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})
	return nil
}

// SendNotification sends the plain body of the notification, or the body
// when no plain version exists, to the recipient number.
func (s *SMS) SendNotification(ctx context.Context, notification *notifications.Notification) error {
	if notification.ToNumber == "" {
		return fmt.Errorf("notification has no phone number")
	}
	body := notification.PlainBody
	if body == "" {
		body = notification.Body
	}
	if len(body) > maxBodyLength {
		body = body[:maxBodyLength]
	}
	params := &api.CreateMessageParams{}
	params.SetTo(notification.ToNumber)
	params.SetFrom(s.config.FromNumber)
	params.SetBody(body)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.client.Api.CreateMessage(params)
		errCh <- err
		close(errCh)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
