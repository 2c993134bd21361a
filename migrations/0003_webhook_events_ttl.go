package migrations

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WebhookEventsTTL is how long processed event ids are kept. Stripe stops
// retrying a delivery after three days.
const WebhookEventsTTL = 72 * time.Hour

func init() {
	AddMigration(3, "webhook_events_ttl", upWebhookEventsTTL, downWebhookEventsTTL)
}

func upWebhookEventsTTL(ctx context.Context, database *mongo.Database) error {
	return replaceIndex(ctx, database.Collection("webhookEvents"),
		[]string{"processedAt_1"},
		[]mongo.IndexModel{{
			Keys: bson.D{{Key: "processedAt", Value: 1}},
			Options: options.Index().
				SetName("processedAt_ttl").
				SetExpireAfterSeconds(int32(WebhookEventsTTL.Seconds())),
		}},
	)
}

func downWebhookEventsTTL(ctx context.Context, database *mongo.Database) error {
	return replaceIndex(ctx, database.Collection("webhookEvents"),
		[]string{"processedAt_ttl"}, nil)
}
