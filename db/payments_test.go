package db

import (
	"fmt"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestSetPayment(t *testing.T) {
	c := qt.New(t)
	resetDB(c)

	c.Assert(testDB.SetPayment(nil), qt.ErrorIs, ErrInvalidData)
	invalid := testPayment("pi_1")
	invalid.Amount = 0
	c.Assert(testDB.SetPayment(invalid), qt.ErrorIs, ErrInvalidData)
	invalid = testPayment("pi_1")
	invalid.Status = "unknown"
	c.Assert(testDB.SetPayment(invalid), qt.ErrorIs, ErrInvalidData)

	payment := testPayment("pi_1")
	c.Assert(testDB.SetPayment(payment), qt.IsNil)
	created := payment.CreatedAt
	c.Assert(created.IsZero(), qt.IsFalse)

	stored, err := testDB.Payment("pi_1")
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Amount, qt.Equals, int64(1250))
	c.Assert(stored.OperatorID, qt.Equals, "operator-1")
	c.Assert(stored.ExpiresAt.IsZero(), qt.IsTrue)

	// replacing keeps the creation time
	replacement := testPayment("pi_1")
	replacement.Description = "updated"
	c.Assert(testDB.SetPayment(replacement), qt.IsNil)
	stored, err = testDB.Payment("pi_1")
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Description, qt.Equals, "updated")
	c.Assert(stored.CreatedAt.Equal(created.Truncate(time.Millisecond)), qt.IsTrue)

	_, err = testDB.Payment("pi_missing")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = testDB.Payment("")
	c.Assert(err, qt.ErrorIs, ErrInvalidData)
}

func TestUpdatePaymentStatus(t *testing.T) {
	c := qt.New(t)
	resetDB(c)

	hold := testPayment("pi_hold")
	hold.Kind = KindPreAuthorization
	hold.Status = StatusRequiresCapture
	hold.CaptureMethod = "manual"
	hold.AmountCapturable = 1250
	hold.FailureMessage = "first attempt failed"
	c.Assert(testDB.SetPayment(hold), qt.IsNil)

	zero, received := int64(0), int64(1000)
	capturedAt := time.Now().UTC()
	updated, err := testDB.UpdatePaymentStatus("pi_hold", PaymentUpdate{
		Status:           StatusSucceeded,
		AmountCapturable: &zero,
		AmountReceived:   &received,
		CapturedAt:       capturedAt,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(updated.Status, qt.Equals, StatusSucceeded)
	c.Assert(updated.AmountCapturable, qt.Equals, int64(0))
	c.Assert(updated.AmountReceived, qt.Equals, int64(1000))
	c.Assert(updated.CapturedAt.IsZero(), qt.IsFalse)
	// zero fields are left untouched
	c.Assert(updated.FailureMessage, qt.Equals, "first attempt failed")
	c.Assert(updated.CanceledAt.IsZero(), qt.IsTrue)

	_, err = testDB.UpdatePaymentStatus("pi_missing", PaymentUpdate{Status: StatusCanceled})
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = testDB.UpdatePaymentStatus("pi_hold", PaymentUpdate{Status: "bogus"})
	c.Assert(err, qt.ErrorIs, ErrInvalidData)
}

func TestMarkPaymentNotified(t *testing.T) {
	c := qt.New(t)
	resetDB(c)
	c.Assert(testDB.SetPayment(testPayment("pi_notify")), qt.IsNil)

	// only one of many concurrent callers wins
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := testDB.MarkPaymentNotified("pi_notify")
			c.Check(err, qt.IsNil)
			if first {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	c.Assert(wins, qt.Equals, 1)

	stored, err := testDB.Payment("pi_notify")
	c.Assert(err, qt.IsNil)
	c.Assert(stored.NotifiedAt.IsZero(), qt.IsFalse)

	_, err = testDB.MarkPaymentNotified("pi_missing")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestPaymentsPagination(t *testing.T) {
	c := qt.New(t)
	resetDB(c)

	for i := range 12 {
		p := testPayment(fmt.Sprintf("pi_%02d", i))
		p.CreatedAt = time.Date(2024, time.March, 1, 0, i, 0, 0, time.UTC)
		if i%3 == 0 {
			p.Currency = "EUR"
			p.Kind = KindPreAuthorization
			p.Status = StatusRequiresCapture
		}
		c.Assert(testDB.SetPayment(p), qt.IsNil)
	}

	pages, payments, err := testDB.Payments(PaymentFilter{})
	c.Assert(err, qt.IsNil)
	c.Assert(pages, qt.Equals, 2)
	c.Assert(payments, qt.HasLen, defaultPageSize)
	// newest first
	c.Assert(payments[0].ID, qt.Equals, "pi_11")

	_, payments, err = testDB.Payments(PaymentFilter{Page: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(payments, qt.HasLen, 2)
	c.Assert(payments[1].ID, qt.Equals, "pi_00")

	pages, payments, err = testDB.Payments(PaymentFilter{Currency: "EUR", PageSize: 3})
	c.Assert(err, qt.IsNil)
	c.Assert(pages, qt.Equals, 2)
	c.Assert(payments, qt.HasLen, 3)
	for _, p := range payments {
		c.Assert(p.Kind, qt.Equals, KindPreAuthorization)
	}

	_, payments, err = testDB.Payments(PaymentFilter{Kind: KindPayment, Status: StatusSucceeded, OperatorID: "operator-1"})
	c.Assert(err, qt.IsNil)
	c.Assert(payments, qt.HasLen, 8)

	_, _, err = testDB.Payments(PaymentFilter{Kind: "refund"})
	c.Assert(err, qt.ErrorIs, ErrInvalidData)
}

func TestExpiredPreAuthorizations(t *testing.T) {
	c := qt.New(t)
	resetDB(c)
	now := time.Now().UTC()

	expired := testPayment("pi_expired")
	expired.Kind = KindPreAuthorization
	expired.Status = StatusRequiresCapture
	expired.ExpiresAt = now.Add(-time.Hour)
	c.Assert(testDB.SetPayment(expired), qt.IsNil)

	active := testPayment("pi_active")
	active.Kind = KindPreAuthorization
	active.Status = StatusRequiresCapture
	active.ExpiresAt = now.Add(time.Hour)
	c.Assert(testDB.SetPayment(active), qt.IsNil)

	captured := testPayment("pi_captured")
	captured.Kind = KindPreAuthorization
	captured.ExpiresAt = now.Add(-time.Hour)
	c.Assert(testDB.SetPayment(captured), qt.IsNil)

	held, err := testDB.ExpiredPreAuthorizations(now)
	c.Assert(err, qt.IsNil)
	c.Assert(held, qt.HasLen, 1)
	c.Assert(held[0].ID, qt.Equals, "pi_expired")
	c.Assert(held[0].Expired(now), qt.IsTrue)
	c.Assert(active.Expired(now), qt.IsFalse)
}
