package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	// StripeTestKey is the API key accepted by the fake Stripe server.
	StripeTestKey = "sk_test_paydesk"
	// StripeWebhookSecret signs the events built by StripeServer.Event.
	StripeWebhookSecret = "whsec_paydesk"

	// CardSucceeds is a card number whose payments succeed.
	CardSucceeds = "4242424242424242"
	// CardDeclined is a card number declined for insufficient funds.
	CardDeclined = "4000000000009995"
	// CardRequiresAction is a card number that needs 3D Secure.
	CardRequiresAction = "4000002760003184"
)

type fakeIntent struct {
	ID                 string
	Amount             int64
	AmountCapturable   int64
	AmountReceived     int64
	Currency           string
	Status             string
	CaptureMethod      string
	PaymentMethod      string
	PaymentMethodTypes []string
	ReceiptEmail       string
	Description        string
	Metadata           map[string]string
	Created            int64
	CanceledAt         int64
	CancellationReason string
	LastErrorMessage   string
}

// StripeServer is an in-process fake of the subset of the Stripe API used by
// the gateway: balance, payment methods, bank account tokens and
// PaymentIntents. It keeps its state in memory and honors idempotency keys.
type StripeServer struct {
	*httptest.Server

	mu          sync.Mutex
	seq         int
	available   map[string]int64
	pending     map[string]int64
	cards       map[string]string
	intents     map[string]*fakeIntent
	idempotent  map[string][]byte
	failures    int
	requests    map[string]int
	lastHeaders http.Header
}

// NewStripeServer starts a fake Stripe API server. Close it when done.
func NewStripeServer() *StripeServer {
	s := &StripeServer{
		available:  map[string]int64{},
		pending:    map[string]int64{},
		cards:      map[string]string{},
		intents:    map[string]*fakeIntent{},
		idempotent: map[string][]byte{},
		requests:   map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/balance", s.balance)
	mux.HandleFunc("POST /v1/payment_methods", s.createPaymentMethod)
	mux.HandleFunc("POST /v1/tokens", s.createToken)
	mux.HandleFunc("POST /v1/payment_intents", s.createIntent)
	mux.HandleFunc("GET /v1/payment_intents/{id}", s.getIntent)
	mux.HandleFunc("POST /v1/payment_intents/{id}/capture", s.captureIntent)
	mux.HandleFunc("POST /v1/payment_intents/{id}/cancel", s.cancelIntent)
	s.Server = httptest.NewServer(s.middleware(mux))
	return s
}

// SetBalance sets the available and pending balance of a lower case currency
// in minor units.
func (s *StripeServer) SetBalance(currency string, available, pending int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available[currency] = available
	s.pending[currency] = pending
}

// FailNext makes the next n requests fail with a 500 api_error.
func (s *StripeServer) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// Requests returns how many requests reached the given "METHOD /path" route,
// failed ones included.
func (s *StripeServer) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// LastHeaders returns the headers of the last request received.
func (s *StripeServer) LastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeaders.Clone()
}

// SetIntentStatus changes the status of a stored PaymentIntent, simulating an
// asynchronous transition on the Stripe side.
func (s *StripeServer) SetIntentStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pi, ok := s.intents[id]; ok {
		pi.Status = status
		switch status {
		case string(stripeapi.PaymentIntentStatusSucceeded):
			pi.AmountReceived = pi.Amount
			pi.AmountCapturable = 0
		case string(stripeapi.PaymentIntentStatusRequiresPaymentMethod):
			pi.LastErrorMessage = "The bank account could not be debited."
		}
	}
}

// Event returns the JSON payload of an event of the given type whose object
// is the current state of the PaymentIntent, and the Stripe-Signature header
// that signs it with StripeWebhookSecret.
func (s *StripeServer) Event(eventID string, eventType stripeapi.EventType, intentID string) ([]byte, string) {
	s.mu.Lock()
	pi, ok := s.intents[intentID]
	var object map[string]any
	if ok {
		object = pi.render()
	} else {
		object = map[string]any{"id": intentID, "object": "payment_intent"}
	}
	s.mu.Unlock()
	return SignedEvent(eventID, eventType, object)
}

// SignedEvent builds and signs an event payload around the given object.
func SignedEvent(eventID string, eventType stripeapi.EventType, object map[string]any) ([]byte, string) {
	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"api_version": stripeapi.APIVersion,
		"created":     time.Now().Unix(),
		"type":        eventType,
		"livemode":    false,
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		panic(err)
	}
	return payload, SignPayload(payload)
}

// SignPayload returns a Stripe-Signature header for the payload.
func SignPayload(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    StripeWebhookSecret,
		Timestamp: time.Now(),
	}).Header
}

func (s *StripeServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.requests[route]++
		s.lastHeaders = r.Header.Clone()
		fail := s.failures > 0
		if fail {
			s.failures--
		}
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+StripeTestKey {
			writeStripeError(w, http.StatusUnauthorized, "invalid_request_error", "", "", "Invalid API Key provided.")
			return
		}
		if fail {
			writeStripeError(w, http.StatusInternalServerError, "api_error", "", "", "Something went wrong on Stripe's end.")
			return
		}
		key := r.Header.Get("Idempotency-Key")
		if key != "" && r.Method == http.MethodPost {
			s.mu.Lock()
			cached, ok := s.idempotent[route+key]
			s.mu.Unlock()
			if ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				_, _ = w.Write(cached)
				return
			}
			rec := httptest.NewRecorder()
			next.ServeHTTP(rec, r)
			if rec.Code == http.StatusOK {
				s.mu.Lock()
				s.idempotent[route+key] = rec.Body.Bytes()
				s.mu.Unlock()
			}
			for k, v := range rec.Header() {
				w.Header()[k] = v
			}
			w.WriteHeader(rec.Code)
			_, _ = w.Write(rec.Body.Bytes())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *StripeServer) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%06d", prefix, s.seq)
}

func (s *StripeServer) balance(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amounts := func(m map[string]int64) []map[string]any {
		out := []map[string]any{}
		for cur, amount := range m {
			out = append(out, map[string]any{"amount": amount, "currency": cur})
		}
		return out
	}
	writeJSON(w, map[string]any{
		"object":    "balance",
		"livemode":  false,
		"available": amounts(s.available),
		"pending":   amounts(s.pending),
	})
}

func (s *StripeServer) createPaymentMethod(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "", "", err.Error())
		return
	}
	number := r.PostForm.Get("card[number]")
	if r.PostForm.Get("type") != "card" || len(number) < 12 || len(number) > 19 {
		writeStripeError(w, http.StatusPaymentRequired, "card_error", "incorrect_number", "",
			"Your card number is incorrect.")
		return
	}
	expMonth, _ := strconv.Atoi(r.PostForm.Get("card[exp_month]"))
	expYear, _ := strconv.Atoi(r.PostForm.Get("card[exp_year]"))
	if expMonth < 1 || expMonth > 12 {
		writeStripeError(w, http.StatusPaymentRequired, "card_error", "invalid_expiry_month", "",
			"Your card's expiration month is invalid.")
		return
	}
	s.mu.Lock()
	id := s.nextID("pm")
	s.cards[id] = number
	s.mu.Unlock()
	writeJSON(w, map[string]any{
		"id":     id,
		"object": "payment_method",
		"type":   "card",
		"card": map[string]any{
			"last4":     number[len(number)-4:],
			"exp_month": expMonth,
			"exp_year":  expYear,
		},
	})
}

func (s *StripeServer) createToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "", "", err.Error())
		return
	}
	account := r.PostForm.Get("bank_account[account_number]")
	if account == "" || r.PostForm.Get("bank_account[country]") == "" {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "parameter_missing", "",
			"Missing required param: bank_account[account_number].")
		return
	}
	s.mu.Lock()
	id := s.nextID("btok")
	s.mu.Unlock()
	writeJSON(w, map[string]any{
		"id":     id,
		"object": "token",
		"type":   "bank_account",
		"bank_account": map[string]any{
			"id":                  s.nextIDLocked("ba"),
			"object":              "bank_account",
			"country":             r.PostForm.Get("bank_account[country]"),
			"currency":            r.PostForm.Get("bank_account[currency]"),
			"account_holder_name": r.PostForm.Get("bank_account[account_holder_name]"),
			"last4":               account[max(0, len(account)-4):],
		},
	})
}

func (s *StripeServer) nextIDLocked(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID(prefix)
}

func (s *StripeServer) createIntent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "", "", err.Error())
		return
	}
	form := r.PostForm
	amount, err := strconv.ParseInt(form.Get("amount"), 10, 64)
	if err != nil || amount < 1 {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "parameter_invalid_integer", "",
			"This value must be greater than or equal to 1.")
		return
	}
	pi := &fakeIntent{
		Amount:        amount,
		Currency:      form.Get("currency"),
		CaptureMethod: "automatic",
		PaymentMethod: form.Get("payment_method"),
		ReceiptEmail:  form.Get("receipt_email"),
		Description:   form.Get("description"),
		Metadata:      map[string]string{},
		Created:       time.Now().Unix(),
		Status:        string(stripeapi.PaymentIntentStatusRequiresPaymentMethod),
	}
	if cm := form.Get("capture_method"); cm != "" {
		pi.CaptureMethod = cm
	}
	for i := 0; ; i++ {
		t := form.Get(fmt.Sprintf("payment_method_types[%d]", i))
		if t == "" {
			break
		}
		pi.PaymentMethodTypes = append(pi.PaymentMethodTypes, t)
	}
	if len(pi.PaymentMethodTypes) == 0 {
		pi.PaymentMethodTypes = []string{"card"}
	}
	for k, v := range form {
		if strings.HasPrefix(k, "metadata[") && strings.HasSuffix(k, "]") && len(v) > 0 {
			pi.Metadata[strings.TrimSuffix(strings.TrimPrefix(k, "metadata["), "]")] = v[0]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pi.ID = s.nextID("pi")
	if pi.PaymentMethod != "" {
		pi.Status = string(stripeapi.PaymentIntentStatusRequiresConfirmation)
	}
	if form.Get("confirm") == "true" && pi.PaymentMethod != "" {
		if pi.PaymentMethodTypes[0] != "card" {
			pi.Status = string(stripeapi.PaymentIntentStatusProcessing)
		} else {
			switch s.cards[pi.PaymentMethod] {
			case CardDeclined:
				pi.Status = string(stripeapi.PaymentIntentStatusRequiresPaymentMethod)
				pi.LastErrorMessage = "Your card has insufficient funds."
				s.intents[pi.ID] = pi
				writeStripeError(w, http.StatusPaymentRequired, "card_error", "card_declined",
					"insufficient_funds", "Your card has insufficient funds.")
				return
			case CardRequiresAction:
				pi.Status = string(stripeapi.PaymentIntentStatusRequiresAction)
			default:
				if pi.CaptureMethod == string(stripeapi.PaymentIntentCaptureMethodManual) {
					pi.Status = string(stripeapi.PaymentIntentStatusRequiresCapture)
					pi.AmountCapturable = pi.Amount
				} else {
					pi.Status = string(stripeapi.PaymentIntentStatusSucceeded)
					pi.AmountReceived = pi.Amount
				}
			}
		}
	}
	s.intents[pi.ID] = pi
	writeJSON(w, pi.render())
}

func (s *StripeServer) intent(w http.ResponseWriter, r *http.Request) (*fakeIntent, bool) {
	id := r.PathValue("id")
	pi, ok := s.intents[id]
	if !ok {
		writeStripeError(w, http.StatusNotFound, "invalid_request_error", "resource_missing", "",
			fmt.Sprintf("No such payment_intent: '%s'", id))
	}
	return pi, ok
}

func (s *StripeServer) getIntent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pi, ok := s.intent(w, r); ok {
		writeJSON(w, pi.render())
	}
}

func (s *StripeServer) captureIntent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "", "", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pi, ok := s.intent(w, r)
	if !ok {
		return
	}
	if pi.Status != string(stripeapi.PaymentIntentStatusRequiresCapture) {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "payment_intent_unexpected_state", "",
			fmt.Sprintf("This PaymentIntent could not be captured because it has a status of %s.", pi.Status))
		return
	}
	amount := pi.AmountCapturable
	if raw := r.PostForm.Get("amount_to_capture"); raw != "" {
		amount, _ = strconv.ParseInt(raw, 10, 64)
	}
	if amount < 1 || amount > pi.AmountCapturable {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "amount_too_large", "",
			"The amount to capture exceeds the capturable amount.")
		return
	}
	pi.Status = string(stripeapi.PaymentIntentStatusSucceeded)
	pi.AmountReceived = amount
	pi.AmountCapturable = 0
	writeJSON(w, pi.render())
}

func (s *StripeServer) cancelIntent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "", "", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pi, ok := s.intent(w, r)
	if !ok {
		return
	}
	switch stripeapi.PaymentIntentStatus(pi.Status) {
	case stripeapi.PaymentIntentStatusSucceeded, stripeapi.PaymentIntentStatusCanceled,
		stripeapi.PaymentIntentStatusProcessing:
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "payment_intent_unexpected_state", "",
			fmt.Sprintf("This PaymentIntent could not be canceled because it has a status of %s.", pi.Status))
		return
	}
	pi.Status = string(stripeapi.PaymentIntentStatusCanceled)
	pi.AmountCapturable = 0
	pi.CanceledAt = time.Now().Unix()
	pi.CancellationReason = r.PostForm.Get("cancellation_reason")
	writeJSON(w, pi.render())
}

func (pi *fakeIntent) render() map[string]any {
	out := map[string]any{
		"id":                   pi.ID,
		"object":               "payment_intent",
		"amount":               pi.Amount,
		"amount_capturable":    pi.AmountCapturable,
		"amount_received":      pi.AmountReceived,
		"currency":             pi.Currency,
		"status":               pi.Status,
		"capture_method":       pi.CaptureMethod,
		"payment_method_types": pi.PaymentMethodTypes,
		"metadata":             pi.Metadata,
		"created":              pi.Created,
		"livemode":             false,
	}
	if pi.PaymentMethod != "" {
		out["payment_method"] = pi.PaymentMethod
	}
	if pi.ReceiptEmail != "" {
		out["receipt_email"] = pi.ReceiptEmail
	}
	if pi.Description != "" {
		out["description"] = pi.Description
	}
	if pi.CanceledAt != 0 {
		out["canceled_at"] = pi.CanceledAt
		out["cancellation_reason"] = pi.CancellationReason
	}
	if pi.LastErrorMessage != "" {
		out["last_payment_error"] = map[string]any{
			"type":    "card_error",
			"message": pi.LastErrorMessage,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Request-Id", fmt.Sprintf("req_%d", time.Now().UnixNano()))
	_ = json.NewEncoder(w).Encode(v)
}

func writeStripeError(w http.ResponseWriter, status int, errType, code, declineCode, msg string) {
	body := map[string]any{"type": errType, "message": msg}
	if code != "" {
		body["code"] = code
	}
	if declineCode != "" {
		body["decline_code"] = declineCode
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Request-Id", fmt.Sprintf("req_%d", time.Now().UnixNano()))
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": body})
}
