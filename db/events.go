package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// EventExists reports whether the Stripe event was already processed. The
// records expire through the TTL index on processedAt.
func (ms *MongoStorage) EventExists(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	count, err := ms.webhookEvents.CountDocuments(ctx, bson.M{"_id": eventID})
	if err != nil {
		return false, fmt.Errorf("failed to look up event %s: %w", eventID, err)
	}
	return count > 0, nil
}

// MarkProcessed records a processed Stripe event. It returns ErrAlreadyExists
// when another delivery of the same event was recorded first.
func (ms *MongoStorage) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	if eventID == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	event := WebhookEvent{
		ID:          eventID,
		Type:        eventType,
		ProcessedAt: time.Now().UTC(),
	}
	if _, err := ms.webhookEvents.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("event %s: %w", eventID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to record event %s: %w", eventID, err)
	}
	return nil
}
