package migrations

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func init() {
	AddMigration(2, "payments_indexes", upPaymentsIndexes, downPaymentsIndexes)
}

var paymentsIndexes = []mongo.IndexModel{
	{
		Keys:    bson.D{{Key: "status", Value: 1}},
		Options: options.Index().SetName("status_1"),
	},
	{
		// listing by kind, newest first
		Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("kind_1_createdAt_-1"),
	},
	{
		Keys:    bson.D{{Key: "currency", Value: 1}},
		Options: options.Index().SetName("currency_1"),
	},
	{
		Keys:    bson.D{{Key: "operatorId", Value: 1}},
		Options: options.Index().SetName("operatorId_1").SetSparse(true),
	},
	{
		// expiration sweep of holds
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetName("expiresAt_1").SetSparse(true),
	},
}

func upPaymentsIndexes(ctx context.Context, database *mongo.Database) error {
	if _, err := database.Collection("payments").Indexes().CreateMany(ctx, paymentsIndexes); err != nil {
		return fmt.Errorf("failed to create payments indexes: %w", err)
	}
	return nil
}

func downPaymentsIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := database.Collection("payments").Indexes()
	for _, idx := range paymentsIndexes {
		if _, err := indexes.DropOne(ctx, *idx.Options.Name); err != nil {
			return fmt.Errorf("failed to drop index %s: %w", *idx.Options.Name, err)
		}
	}
	return nil
}
