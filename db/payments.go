package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// SetPayment creates or replaces the payment with the same PaymentIntent id.
// CreatedAt is kept from the stored record when present and UpdatedAt is
// always refreshed.
func (ms *MongoStorage) SetPayment(p *Payment) error {
	if p == nil || p.ID == "" || !validKinds[p.Kind] || !validMethods[p.Method] ||
		!validStatuses[p.Status] || p.Amount <= 0 || p.Currency == "" {
		return ErrInvalidData
	}
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		var stored Payment
		err := ms.payments.FindOne(ctx, bson.M{"_id": p.ID},
			options.FindOne().SetProjection(bson.M{"createdAt": 1})).Decode(&stored)
		switch {
		case err == nil:
			p.CreatedAt = stored.CreatedAt
		case errors.Is(err, mongo.ErrNoDocuments):
			p.CreatedAt = now
		default:
			return fmt.Errorf("failed to get payment %s: %w", p.ID, err)
		}
	}
	p.UpdatedAt = now
	opts := options.Replace().SetUpsert(true)
	if _, err := ms.payments.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts); err != nil {
		return fmt.Errorf("failed to store payment %s: %w", p.ID, err)
	}
	return nil
}

// Payment returns the payment with the given PaymentIntent id.
func (ms *MongoStorage) Payment(id string) (*Payment, error) {
	if id == "" {
		return nil, ErrInvalidData
	}
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	payment := &Payment{}
	if err := ms.payments.FindOne(ctx, bson.M{"_id": id}).Decode(payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment %s: %w", id, err)
	}
	return payment, nil
}

// UpdatePaymentStatus applies the non-zero fields of the update to the
// payment and returns the updated record.
func (ms *MongoStorage) UpdatePaymentStatus(id string, update PaymentUpdate) (*Payment, error) {
	if id == "" || (update.Status != "" && !validStatuses[update.Status]) {
		return nil, ErrInvalidData
	}
	doc, err := dynamicUpdateDocument(update, nil)
	if err != nil {
		return nil, err
	}
	set := doc["$set"].(bson.M)
	set["updatedAt"] = time.Now().UTC()

	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	payment := &Payment{}
	if err := ms.payments.FindOneAndUpdate(ctx, bson.M{"_id": id}, doc, opts).Decode(payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update payment %s: %w", id, err)
	}
	return payment, nil
}

// MarkPaymentNotified sets the notification time of a payment only if it was
// not set before. It returns false when the payment was already notified, so
// concurrent deliveries of the same event send a single receipt.
func (ms *MongoStorage) MarkPaymentNotified(id string) (bool, error) {
	if id == "" {
		return false, ErrInvalidData
	}
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "notifiedAt": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"notifiedAt": time.Now().UTC()}}
	res, err := ms.payments.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment %s as notified: %w", id, err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	count, err := ms.payments.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to count payment %s: %w", id, err)
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// Normalize returns the filter with its page and page size clamped to the
// range Payments accepts.
func (f PaymentFilter) Normalize() PaymentFilter {
	f.Page, f.PageSize, _ = paginate(f.Page, f.PageSize)
	return f
}

// Payments retrieves paginated payments matching the filter, newest first.
// It returns the total number of pages and the payments of the requested
// page.
func (ms *MongoStorage) Payments(filter PaymentFilter) (int, []Payment, error) {
	if (filter.Kind != "" && !validKinds[filter.Kind]) ||
		(filter.Status != "" && !validStatuses[filter.Status]) {
		return 0, nil, ErrInvalidData
	}
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Currency != "" {
		query["currency"] = filter.Currency
	}
	if filter.OperatorID != "" {
		query["operatorId"] = filter.OperatorID
	}

	count, err := ms.payments.CountDocuments(ctx, query)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to count payments: %w", err)
	}
	_, pageSize, skip := paginate(filter.Page, filter.PageSize)

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(int64(pageSize))
	cursor, err := ms.payments.Find(ctx, query, findOptions)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("error closing cursor", "error", err)
		}
	}()

	payments := []Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		return 0, nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return totalPages(count, pageSize), payments, nil
}

// ExpiredPreAuthorizations returns the holds still waiting for capture whose
// expiration time is not after now.
func (ms *MongoStorage) ExpiredPreAuthorizations(now time.Time) ([]Payment, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := bson.M{
		"kind":      KindPreAuthorization,
		"status":    StatusRequiresCapture,
		"expiresAt": bson.M{"$lte": now},
	}
	cursor, err := ms.payments.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired preauthorizations: %w", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("error closing cursor", "error", err)
		}
	}()
	var payments []Payment
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode preauthorizations: %w", err)
	}
	return payments, nil
}
