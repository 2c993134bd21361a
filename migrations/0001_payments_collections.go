package migrations

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func init() {
	AddMigration(1, "payments_collections", upPaymentsCollections, downPaymentsCollections)
}

var collectionsToCreate = []string{
	"payments",
	"webhookEvents",
	"migrations",
}

var collectionsValidators = map[string]bson.M{
	"payments": paymentsCollectionValidator,
}

var paymentsCollectionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "kind", "method", "amount", "currency", "status", "createdAt"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType":    "string",
				"description": "must be the PaymentIntent id",
				"minLength":   1,
			},
			"kind": bson.M{
				"enum":        []string{"payment", "preauthorization"},
				"description": "must be payment or preauthorization",
			},
			"method": bson.M{
				"enum":        []string{"card", "bank_transfer"},
				"description": "must be card or bank_transfer",
			},
			"amount": bson.M{
				"bsonType":    []string{"int", "long"},
				"description": "must be a positive amount in minor units",
				"minimum":     1,
			},
			"currency": bson.M{
				"bsonType":    "string",
				"description": "must be an upper case ISO 4217 code",
				"pattern":     `^[A-Z]{3}$`,
			},
			"status": bson.M{
				"bsonType":    "string",
				"description": "must be a string and is required",
			},
			"createdAt": bson.M{
				"bsonType": "date",
			},
		},
	},
}

func upPaymentsCollections(ctx context.Context, database *mongo.Database) error {
	current, err := listCollectionsInDB(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to get current collections: %w", err)
	}
	for _, name := range collectionsToCreate {
		validator, hasValidator := collectionsValidators[name]
		if slices.Contains(current, name) {
			if !hasValidator {
				continue
			}
			if err := database.RunCommand(ctx, bson.D{
				{Key: "collMod", Value: name},
				{Key: "validator", Value: validator},
			}).Err(); err != nil {
				return fmt.Errorf("failed to update validator of %s: %w", name, err)
			}
			continue
		}
		opts := options.CreateCollection()
		if hasValidator {
			opts = opts.SetValidator(validator).SetValidationLevel("strict").SetValidationAction("error")
		}
		if err := database.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	return nil
}

// downPaymentsCollections only removes the validator; dropping payment
// records on rollback would lose data.
func downPaymentsCollections(ctx context.Context, database *mongo.Database) error {
	return database.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: "payments"},
		{Key: "validator", Value: bson.M{}},
	}).Err()
}
