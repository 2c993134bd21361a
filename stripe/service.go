// Package stripe wraps the Stripe API to take card and bank payments, place
// and capture card holds, read the account balance and apply the webhook
// events Stripe sends when a PaymentIntent changes.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/paydesk/payments-backend/currency"
	"github.com/paydesk/payments-backend/db"
	"github.com/paydesk/payments-backend/metrics"
	"github.com/paydesk/payments-backend/notifications"
	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v76"
	"go.vocdoni.io/dvote/log"
)

// metadata keys stored on every PaymentIntent created by the gateway, used
// to rebuild the local record when it is missing
const (
	metaKind         = "kind"
	metaMethod       = "method"
	metaOperatorID   = "operatorId"
	metaReceiptPhone = "receiptPhone"
)

// maintenanceInterval is the period of the expiration and lock cleanup loop.
const maintenanceInterval = 5 * time.Minute

// Service provides the payment operations of the gateway on top of the
// Stripe client and the local payment records.
type Service struct {
	client      *Client
	db          *db.MongoStorage
	events      EventStore
	lockManager *LockManager
	config      *Config
	mail        notifications.NotificationService
	sms         notifications.NotificationService
	now         func() time.Time
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithEventStore replaces the MongoDB event store.
func WithEventStore(store EventStore) Option {
	return func(s *Service) { s.events = store }
}

// WithMailer enables email receipts.
func WithMailer(mail notifications.NotificationService) Option {
	return func(s *Service) { s.mail = mail }
}

// WithSMS enables SMS receipts.
func WithSMS(sms notifications.NotificationService) Option {
	return func(s *Service) { s.sms = sms }
}

// WithClock sets the time source used for expirations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Stripe service
func NewService(config *Config, database *db.MongoStorage, opts ...Option) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	s := &Service{
		client:      client,
		db:          database,
		events:      database,
		lockManager: NewLockManager(),
		config:      config,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start runs the maintenance loop until ctx is done, marking held payments
// past their expiration as expired.
func (s *Service) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.ExpirePreAuthorizations(ctx); err != nil {
					log.Warnw("failed to expire preauthorizations", "error", err)
				} else if n > 0 {
					log.Infow("preauthorizations expired", "count", n)
				}
			}
		}
	}()
}

// PaymentRequest describes a card payment or a card hold. Either Card or
// PaymentMethodID must be set.
type PaymentRequest struct {
	Amount          decimal.Decimal
	Currency        string
	Card            CardDetails
	PaymentMethodID string
	Description     string
	ReceiptEmail    string
	ReceiptPhone    string
	OperatorID      string
}

// BankPaymentRequest describes a payment debited from a bank account.
type BankPaymentRequest struct {
	Amount        decimal.Decimal
	Currency      string
	HolderName    string
	AccountNumber string
	RoutingNumber string
	Description   string
	ReceiptEmail  string
	ReceiptPhone  string
	OperatorID    string
}

// BalanceAmount is an amount of the account balance in major units.
type BalanceAmount struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// Balance is the Stripe account balance per currency, as reported by Stripe.
type Balance struct {
	Available []BalanceAmount `json:"available"`
	Pending   []BalanceAmount `json:"pending"`
}

// AvailableIn returns the available amount in the given currency, zero when
// the account holds none.
func (b *Balance) AvailableIn(code string) decimal.Decimal {
	for _, a := range b.Available {
		if strings.EqualFold(a.Currency, code) {
			return a.Amount
		}
	}
	return decimal.Zero
}

// Balance reads the account balance from Stripe and converts it to major
// units.
func (s *Service) Balance(ctx context.Context) (*Balance, error) {
	sb, err := s.client.Balance(ctx)
	if err != nil {
		return nil, err
	}
	return &Balance{
		Available: balanceAmounts(sb.Available),
		Pending:   balanceAmounts(sb.Pending),
	}, nil
}

func balanceAmounts(amounts []*stripeapi.Amount) []BalanceAmount {
	out := make([]BalanceAmount, 0, len(amounts))
	for _, a := range amounts {
		if a == nil {
			continue
		}
		code := strings.ToUpper(string(a.Currency))
		out = append(out, BalanceAmount{
			Currency: code,
			Amount:   decimal.New(a.Amount, -currency.ExponentOf(code)),
		})
	}
	slices.SortFunc(out, func(a, b BalanceAmount) int { return strings.Compare(a.Currency, b.Currency) })
	return out
}

// Quote estimates the fee and clearance time of a payment and checks it
// against the available balance in the same currency.
func (s *Service) Quote(ctx context.Context, amount decimal.Decimal, code string) (*currency.Quote, error) {
	cur, err := currency.Lookup(code)
	if err != nil {
		return nil, err
	}
	if err := currency.ValidateAmount(amount, cur); err != nil {
		return nil, NewStripeError(CodeInvalidRequest, err.Error(), err)
	}
	balance, err := s.Balance(ctx)
	if err != nil {
		return nil, err
	}
	quote := currency.NewQuote(amount, cur, balance.AvailableIn(string(cur.Code)))
	return &quote, nil
}

// CreateCardPayment charges a card immediately.
func (s *Service) CreateCardPayment(ctx context.Context, req *PaymentRequest) (*db.Payment, error) {
	return s.createCardIntent(ctx, req, db.KindPayment)
}

// PreAuthorize places a hold on a card. The amount is captured later with
// CapturePreAuthorization or released with CancelPreAuthorization.
func (s *Service) PreAuthorize(ctx context.Context, req *PaymentRequest) (*db.Payment, error) {
	return s.createCardIntent(ctx, req, db.KindPreAuthorization)
}

func (s *Service) createCardIntent(ctx context.Context, req *PaymentRequest, kind db.PaymentKind) (*db.Payment, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	cur, minor, err := prepareAmount(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	paymentMethod := req.PaymentMethodID
	if paymentMethod == "" {
		if req.Card.Number == "" {
			return nil, NewStripeError(CodeInvalidRequest, "card details or a payment method are required", nil)
		}
		pm, err := s.client.CreateCardPaymentMethod(ctx, req.Card)
		if err != nil {
			return nil, err
		}
		paymentMethod = pm.ID
	}
	pi, err := s.client.CreatePaymentIntent(ctx, &PaymentIntentRequest{
		Amount:             minor,
		Currency:           cur.Lower(),
		PaymentMethod:      paymentMethod,
		PaymentMethodTypes: []string{string(stripeapi.PaymentMethodTypeCard)},
		ManualCapture:      kind == db.KindPreAuthorization,
		Confirm:            true,
		ReceiptEmail:       req.ReceiptEmail,
		Description:        req.Description,
		Metadata:           intentMetadata(kind, db.MethodCard, req.OperatorID, req.ReceiptPhone),
	})
	if err != nil {
		return nil, err
	}
	return s.storeNewPayment(pi)
}

// CreateBankPayment debits a bank account through the debit rail of the
// currency. Currencies without a rail return ErrBankDebitUnsupported.
func (s *Service) CreateBankPayment(ctx context.Context, req *BankPaymentRequest) (*db.Payment, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	cur, minor, err := prepareAmount(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	if cur.BankDebit == "" {
		return nil, NewStripeError(CodeBankDebitNotOffered,
			fmt.Sprintf("bank debits are not offered for %s", cur.Code), nil)
	}
	if req.HolderName == "" || req.AccountNumber == "" {
		return nil, NewStripeError(CodeInvalidRequest, "account holder and account number are required", nil)
	}
	token, err := s.client.CreateBankAccountToken(ctx, BankAccountDetails{
		HolderName:    req.HolderName,
		HolderType:    string(stripeapi.BankAccountAccountHolderTypeIndividual),
		AccountNumber: req.AccountNumber,
		RoutingNumber: req.RoutingNumber,
		Country:       cur.CountryCode,
		Currency:      cur.Lower(),
	})
	if err != nil {
		return nil, err
	}
	pi, err := s.client.CreatePaymentIntent(ctx, &PaymentIntentRequest{
		Amount:             minor,
		Currency:           cur.Lower(),
		PaymentMethod:      token.ID,
		PaymentMethodTypes: []string{cur.BankDebit},
		Confirm:            true,
		ReceiptEmail:       req.ReceiptEmail,
		Description:        req.Description,
		Metadata:           intentMetadata(db.KindPayment, db.MethodBankTransfer, req.OperatorID, req.ReceiptPhone),
	})
	if err != nil {
		return nil, err
	}
	return s.storeNewPayment(pi)
}

// CapturePreAuthorization converts a hold into a charge. A nil amount
// captures the whole authorized amount.
func (s *Service) CapturePreAuthorization(ctx context.Context, id string, amount *int64) (*db.Payment, error) {
	unlock := s.lockManager.LockPayment(id)
	defer unlock()

	payment, err := s.heldPayment(id)
	if err != nil {
		return nil, err
	}
	if payment.Status == db.StatusExpired || payment.Expired(s.now()) {
		return nil, ErrPreAuthorizationExpire
	}
	if payment.Status != db.StatusRequiresCapture {
		return nil, NewStripeError(ErrPreAuthorizationState.Code,
			fmt.Sprintf("cannot capture a pre-authorization in status %s", payment.Status), nil)
	}
	authorized := payment.AmountCapturable
	if authorized == 0 {
		authorized = payment.Amount
	}
	if amount != nil {
		if *amount <= 0 {
			return nil, NewStripeError(CodeInvalidRequest, "capture amount must be positive", nil)
		}
		if *amount > authorized {
			return nil, ErrCaptureAmountExceeded
		}
	}
	pi, err := s.client.CapturePaymentIntent(ctx, id, amount)
	if err != nil {
		return nil, err
	}
	update := updateFromIntent(pi)
	update.CapturedAt = s.now().UTC()
	updated, err := s.db.UpdatePaymentStatus(id, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update captured payment %s: %w", id, err)
	}
	log.Infow("preauthorization captured", "paymentId", id, "amount", pi.AmountReceived, "currency", updated.Currency)
	return updated, nil
}

// CancelPreAuthorization releases a hold that has not been captured.
func (s *Service) CancelPreAuthorization(ctx context.Context, id string) (*db.Payment, error) {
	unlock := s.lockManager.LockPayment(id)
	defer unlock()

	payment, err := s.heldPayment(id)
	if err != nil {
		return nil, err
	}
	switch payment.Status {
	case db.StatusRequiresCapture, db.StatusRequiresPaymentMethod,
		db.StatusRequiresConfirmation, db.StatusRequiresAction, db.StatusFailed:
	default:
		return nil, NewStripeError(ErrPreAuthorizationState.Code,
			fmt.Sprintf("cannot cancel a pre-authorization in status %s", payment.Status), nil)
	}
	pi, err := s.client.CancelPaymentIntent(ctx, id, stripeapi.PaymentIntentCancellationReasonRequestedByCustomer)
	if err != nil {
		return nil, err
	}
	update := updateFromIntent(pi)
	update.Status = db.StatusCanceled
	if update.CanceledAt.IsZero() {
		update.CanceledAt = s.now().UTC()
	}
	updated, err := s.db.UpdatePaymentStatus(id, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update canceled payment %s: %w", id, err)
	}
	log.Infow("preauthorization canceled", "paymentId", id)
	return updated, nil
}

// Payment returns the current state of a payment. The PaymentIntent is read
// from Stripe and the local record refreshed, or created when the payment
// was not made through the gateway.
func (s *Service) Payment(ctx context.Context, id string) (*db.Payment, error) {
	if id == "" {
		return nil, ErrPaymentNotFound
	}
	pi, err := s.client.GetPaymentIntent(ctx, id)
	if err != nil {
		var se *StripeError
		if errors.As(err, &se) && se.Code == string(stripeapi.ErrorCodeResourceMissing) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	unlock := s.lockManager.LockPayment(pi.ID)
	defer unlock()
	return s.applyIntent(pi, "")
}

// Payments lists the local payment records matching the filter, newest
// first, returning the total number of pages.
func (s *Service) Payments(_ context.Context, filter db.PaymentFilter) (int, []db.Payment, error) {
	filter.Currency = strings.ToUpper(filter.Currency)
	return s.db.Payments(filter)
}

// ExpirePreAuthorizations marks as expired the holds still waiting for
// capture after their expiration time. Stripe releases them on its side.
func (s *Service) ExpirePreAuthorizations(ctx context.Context) (int, error) {
	now := s.now()
	held, err := s.db.ExpiredPreAuthorizations(now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, p := range held {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if s.expire(p.ID, now) {
			expired++
		}
	}
	return expired, nil
}

func (s *Service) expire(id string, now time.Time) bool {
	unlock := s.lockManager.LockPayment(id)
	defer unlock()
	// the hold may have been captured since it was listed
	p, err := s.db.Payment(id)
	if err != nil || p.Status != db.StatusRequiresCapture || !p.Expired(now) {
		return false
	}
	if _, err := s.db.UpdatePaymentStatus(id, db.PaymentUpdate{Status: db.StatusExpired}); err != nil {
		log.Warnw("failed to expire preauthorization", "paymentId", id, "error", err)
		return false
	}
	return true
}

// heldPayment loads a pre-authorization by id.
func (s *Service) heldPayment(id string) (*db.Payment, error) {
	payment, err := s.db.Payment(id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidData) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if !payment.IsPreAuthorization() {
		return nil, ErrNotAPreAuthorization
	}
	return payment, nil
}

// storeNewPayment persists the record of a PaymentIntent just created. A
// webhook may have stored the payment first; its status is newer and kept.
func (s *Service) storeNewPayment(pi *stripeapi.PaymentIntent) (*db.Payment, error) {
	unlock := s.lockManager.LockPayment(pi.ID)
	defer unlock()

	payment := s.recordFromIntent(pi)
	payment.CreatedAt = s.now().UTC()
	if payment.IsPreAuthorization() {
		payment.ExpiresAt = payment.CreatedAt.Add(s.config.PreAuthHold)
	}
	stored, err := s.db.Payment(pi.ID)
	switch {
	case err == nil:
		payment.Status = stored.Status
		payment.AmountCapturable = stored.AmountCapturable
		payment.AmountReceived = stored.AmountReceived
		payment.FailureMessage = stored.FailureMessage
		payment.CapturedAt = stored.CapturedAt
		payment.CanceledAt = stored.CanceledAt
		payment.NotifiedAt = stored.NotifiedAt
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}
	if err := s.db.SetPayment(payment); err != nil {
		return nil, fmt.Errorf("failed to store payment %s: %w", pi.ID, err)
	}
	metrics.PaymentsCreated.WithLabelValues(string(payment.Kind), string(payment.Method),
		payment.Currency, string(payment.Status)).Inc()
	log.Infow("payment created",
		"paymentId", payment.ID,
		"kind", payment.Kind,
		"method", payment.Method,
		"amount", payment.Amount,
		"currency", payment.Currency,
		"status", payment.Status)
	return payment, nil
}

// applyIntent brings the local record in line with the PaymentIntent,
// creating it when missing. A non-empty status overrides the one of the
// intent. The caller must hold the payment lock.
func (s *Service) applyIntent(pi *stripeapi.PaymentIntent, status db.PaymentStatus) (*db.Payment, error) {
	stored, err := s.db.Payment(pi.ID)
	if errors.Is(err, db.ErrNotFound) {
		payment := s.recordFromIntent(pi)
		if status != "" {
			payment.Status = status
		}
		if err := s.db.SetPayment(payment); err != nil {
			return nil, fmt.Errorf("failed to store payment %s: %w", pi.ID, err)
		}
		log.Infow("payment imported from stripe", "paymentId", pi.ID, "status", payment.Status)
		return payment, nil
	}
	if err != nil {
		return nil, err
	}
	update := updateFromIntent(pi)
	if status != "" {
		update.Status = status
	}
	if !statusTransitionAllowed(stored.Status, update.Status) {
		log.Debugw("ignoring stale payment update",
			"paymentId", pi.ID, "stored", stored.Status, "received", update.Status)
		return stored, nil
	}
	return s.db.UpdatePaymentStatus(pi.ID, update)
}

// statusTransitionAllowed keeps final statuses from going back when events
// arrive out of order. Expiry is only a local estimate, so an expired hold
// follows Stripe when it reports the hold captured or canceled.
func statusTransitionAllowed(from, to db.PaymentStatus) bool {
	if to == "" || from == to {
		return true
	}
	switch from {
	case db.StatusSucceeded, db.StatusCanceled:
		return false
	case db.StatusExpired:
		return to == db.StatusSucceeded || to == db.StatusProcessing || to == db.StatusCanceled
	}
	return true
}

// recordFromIntent builds a local record from a PaymentIntent, reading the
// kind and method from its metadata or inferring them.
func (s *Service) recordFromIntent(pi *stripeapi.PaymentIntent) *db.Payment {
	p := &db.Payment{
		ID:               pi.ID,
		Kind:             db.KindPayment,
		Method:           db.MethodCard,
		Amount:           pi.Amount,
		Currency:         strings.ToUpper(string(pi.Currency)),
		Status:           statusFromIntent(pi),
		CaptureMethod:    string(pi.CaptureMethod),
		AmountCapturable: pi.AmountCapturable,
		AmountReceived:   pi.AmountReceived,
		FailureMessage:   failureMessage(pi),
		Description:      pi.Description,
		ReceiptEmail:     pi.ReceiptEmail,
		ReceiptPhone:     pi.Metadata[metaReceiptPhone],
		OperatorID:       pi.Metadata[metaOperatorID],
	}
	switch kind := pi.Metadata[metaKind]; {
	case db.IsValidKind(kind):
		p.Kind = db.PaymentKind(kind)
	case pi.CaptureMethod == stripeapi.PaymentIntentCaptureMethodManual:
		p.Kind = db.KindPreAuthorization
	}
	switch method := db.PaymentMethod(pi.Metadata[metaMethod]); {
	case method == db.MethodCard || method == db.MethodBankTransfer:
		p.Method = method
	case len(pi.PaymentMethodTypes) > 0 && pi.PaymentMethodTypes[0] != string(stripeapi.PaymentMethodTypeCard):
		p.Method = db.MethodBankTransfer
	}
	if pi.Created > 0 {
		p.CreatedAt = time.Unix(pi.Created, 0).UTC()
	}
	if pi.CanceledAt > 0 {
		p.CanceledAt = time.Unix(pi.CanceledAt, 0).UTC()
	}
	if p.IsPreAuthorization() && !p.CreatedAt.IsZero() {
		p.ExpiresAt = p.CreatedAt.Add(s.config.PreAuthHold)
	}
	return p
}

func updateFromIntent(pi *stripeapi.PaymentIntent) db.PaymentUpdate {
	update := db.PaymentUpdate{
		Status:           statusFromIntent(pi),
		AmountCapturable: &pi.AmountCapturable,
		AmountReceived:   &pi.AmountReceived,
		FailureMessage:   failureMessage(pi),
	}
	if pi.CanceledAt > 0 {
		update.CanceledAt = time.Unix(pi.CanceledAt, 0).UTC()
	}
	return update
}

// statusFromIntent maps the PaymentIntent status. An intent back to
// requires_payment_method after an attempt is reported as failed.
func statusFromIntent(pi *stripeapi.PaymentIntent) db.PaymentStatus {
	if pi.Status == stripeapi.PaymentIntentStatusRequiresPaymentMethod && pi.LastPaymentError != nil {
		return db.StatusFailed
	}
	if pi.Status == "" {
		return db.StatusRequiresPaymentMethod
	}
	return db.PaymentStatus(pi.Status)
}

func failureMessage(pi *stripeapi.PaymentIntent) string {
	if pi.LastPaymentError == nil {
		return ""
	}
	return pi.LastPaymentError.Msg
}

func intentMetadata(kind db.PaymentKind, method db.PaymentMethod, operatorID, phone string) map[string]string {
	md := map[string]string{
		metaKind:   string(kind),
		metaMethod: string(method),
	}
	if operatorID != "" {
		md[metaOperatorID] = operatorID
	}
	if phone != "" {
		md[metaReceiptPhone] = phone
	}
	return md
}

// prepareAmount validates a major-unit amount and converts it to the minor
// units of the currency.
func prepareAmount(amount decimal.Decimal, code string) (currency.Currency, int64, error) {
	cur, err := currency.Lookup(code)
	if err != nil {
		return currency.Currency{}, 0, err
	}
	if err := currency.ValidateAmount(amount, cur); err != nil {
		return currency.Currency{}, 0, NewStripeError(CodeInvalidRequest, err.Error(), err)
	}
	return cur, currency.ToMinorUnits(amount, cur), nil
}
