// Package smtp provides an SMTP-based implementation of the NotificationService interface
// for sending email notifications.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/google/uuid"
	"github.com/paydesk/payments-backend/notifications"
)

var disableTrackingFilter = []byte(`{"filters":{"clicktrack":{"settings":{"enable":0,"enable_text":false}}}}`)

// Config represents the configuration for the SMTP email service. The
// TestAPIPort is the port of the MailHog API used by tests to read the
// delivered messages.
type Config struct {
	FromName     string
	FromAddress  string
	SMTPUsername string
	SMTPPassword string
	SMTPServer   string
	SMTPPort     int
	TestAPIPort  int
}

// Email is the implementation of the NotificationService interface for the
// SMTP email service.
type Email struct {
	config *Config
	auth   smtp.Auth
}

// New initializes the SMTP email service with the configuration. It sets the
// SMTP auth if the username and password are provided.
func (se *Email) New(rawConfig any) error {
	config, ok := rawConfig.(*Config)
	if !ok {
		return fmt.Errorf("invalid SMTP configuration")
	}
	if _, err := mail.ParseAddress(config.FromAddress); err != nil {
		return fmt.Errorf("could not parse from email: %w", err)
	}
	if config.SMTPServer == "" || config.SMTPPort == 0 {
		return fmt.Errorf("smtp server and port are required")
	}
	se.config = config
	if se.config.SMTPUsername != "" && se.config.SMTPPassword != "" {
		se.auth = smtp.PlainAuth("", se.config.SMTPUsername, se.config.SMTPPassword, se.config.SMTPServer)
	}
	return nil
}

// SendNotification composes a multipart message and sends it through the
// SMTP server. It returns early if the context is done.
func (se *Email) SendNotification(ctx context.Context, notification *notifications.Notification) error {
	body, err := se.composeBody(notification)
	if err != nil {
		return fmt.Errorf("could not compose email body: %w", err)
	}
	recipients := []string{notification.ToAddress}
	if notification.CCAddress != "" {
		recipients = append(recipients, notification.CCAddress)
	}
	server := fmt.Sprintf("%s:%d", se.config.SMTPServer, se.config.SMTPPort)
	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(server, se.auth, se.config.FromAddress, recipients, body)
		close(errCh)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// composeBody creates a multipart/alternative message with a plain text and
// an HTML part.
func (se *Email) composeBody(notification *notifications.Notification) ([]byte, error) {
	to, err := mail.ParseAddress(notification.ToAddress)
	if err != nil {
		return nil, fmt.Errorf("could not parse to email: %w", err)
	}
	if notification.ToName != "" {
		to.Name = notification.ToName
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	var headers bytes.Buffer
	fromAddr := mail.Address{Name: se.config.FromName, Address: se.config.FromAddress}
	fmt.Fprintf(&headers, "From: %s\r\n", fromAddr.String())
	fmt.Fprintf(&headers, "To: %s\r\n", to.String())
	if notification.ReplyTo != "" {
		replyTo, err := mail.ParseAddress(notification.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("could not parse reply-to email: %w", err)
		}
		fmt.Fprintf(&headers, "Reply-To: %s\r\n", replyTo.String())
	}
	if notification.CCAddress != "" {
		cc, err := mail.ParseAddress(notification.CCAddress)
		if err != nil {
			return nil, fmt.Errorf("could not parse cc email: %w", err)
		}
		fmt.Fprintf(&headers, "Cc: %s\r\n", cc.String())
	}
	fmt.Fprintf(&headers, "Subject: %s\r\n", notification.Subject)
	fmt.Fprintf(&headers, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&headers, "Message-ID: <%s@%s>\r\n", uuid.NewString(), se.config.SMTPServer)
	if !notification.EnableTracking {
		fmt.Fprintf(&headers, "X-SMTPAPI: %s\r\n", disableTrackingFilter)
	}
	headers.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&headers, "Content-Type: multipart/alternative; boundary=%q\r\n", writer.Boundary())
	headers.WriteString("\r\n")

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=\"UTF-8\"", notification.PlainBody},
		{"text/html; charset=\"UTF-8\"", notification.Body},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, fmt.Errorf("could not create part: %w", err)
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("could not write part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("could not close writer: %w", err)
	}
	return append(headers.Bytes(), body.Bytes()...), nil
}
