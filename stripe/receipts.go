package stripe

import (
	"context"
	"time"

	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/db"
	"github.com/paydesk/payments-backend/notifications"
	"github.com/paydesk/payments-backend/notifications/mailtemplates"
	"github.com/shopspring/decimal"
	"go.vocdoni.io/dvote/log"
)

const receiptDateLayout = "2006-01-02 15:04 MST"

// sendReceipt notifies the payer of a succeeded payment. The payment is
// marked as notified first so redelivered or concurrent events send a
// single receipt.
func (s *Service) sendReceipt(ctx context.Context, payment *db.Payment) {
	if !s.canNotify(payment) {
		return
	}
	first, err := s.db.MarkPaymentNotified(payment.ID)
	if err != nil {
		log.Warnw("failed to mark payment as notified", "paymentId", payment.ID, "error", err)
		return
	}
	if !first {
		log.Debugw("receipt already sent", "paymentId", payment.ID)
		return
	}
	amount := payment.AmountReceived
	if amount == 0 {
		amount = payment.Amount
	}
	s.notify(ctx, payment, mailtemplates.PaymentReceiptNotification, s.receiptData(payment, amount))
}

// sendHoldNotice tells the payer an amount is held on their card.
func (s *Service) sendHoldNotice(ctx context.Context, payment *db.Payment) {
	if !s.canNotify(payment) {
		return
	}
	amount := payment.AmountCapturable
	if amount == 0 {
		amount = payment.Amount
	}
	s.notify(ctx, payment, mailtemplates.PreAuthorizationHoldNotification, s.receiptData(payment, amount))
}

func (s *Service) canNotify(payment *db.Payment) bool {
	return (s.mail != nil && payment.ReceiptEmail != "") ||
		(s.sms != nil && payment.ReceiptPhone != "")
}

func (s *Service) receiptData(payment *db.Payment, amount int64) *mailtemplates.ReceiptData {
	data := &mailtemplates.ReceiptData{
		PaymentID:   payment.ID,
		Amount:      formatMinor(amount, payment.Currency),
		Currency:    payment.Currency,
		Method:      string(payment.Method),
		Description: payment.Description,
		Date:        s.now().UTC().Format(receiptDateLayout),
	}
	if !payment.ExpiresAt.IsZero() {
		data.ExpiresAt = payment.ExpiresAt.UTC().Format(receiptDateLayout)
	}
	return data
}

// notify renders the template and sends it through every channel the payer
// can be reached on. Delivery errors are logged and never fail the caller.
func (s *Service) notify(ctx context.Context, payment *db.Payment,
	tmpl mailtemplates.MailTemplate, data *mailtemplates.ReceiptData,
) {
	if s.mail != nil && payment.ReceiptEmail != "" {
		n, err := tmpl.ExecTemplate(data)
		if err != nil {
			log.Warnw("could not render mail template, sending plain text", "template", tmpl.File, "error", err)
			n, err = tmpl.ExecPlain(data)
		}
		if err == nil {
			n.ToAddress = payment.ReceiptEmail
			err = s.send(ctx, s.mail, n)
		}
		if err != nil {
			log.Warnw("failed to send email notification", "paymentId", payment.ID, "error", err)
		}
	}
	if s.sms != nil && payment.ReceiptPhone != "" {
		n, err := tmpl.ExecPlain(data)
		if err == nil {
			n.ToNumber = payment.ReceiptPhone
			err = s.send(ctx, s.sms, n)
		}
		if err != nil {
			log.Warnw("failed to send sms notification", "paymentId", payment.ID, "error", err)
		}
	}
}

func (*Service) send(ctx context.Context, svc notifications.NotificationService, n *notifications.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return svc.SendNotification(ctx, n)
}

// formatMinor formats a minor-unit amount in major units with the precision
// of the currency.
func formatMinor(minor int64, code string) string {
	exp := currency.ExponentOf(code)
	return decimal.New(minor, -exp).StringFixed(exp)
}
