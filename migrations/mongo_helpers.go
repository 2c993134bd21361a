package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.vocdoni.io/dvote/log"
)

// listCollectionsInDB returns the names of the collections in the given database.
func listCollectionsInDB(ctx context.Context, database *mongo.Database) ([]string, error) {
	cursor, err := database.ListCollections(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("failed to close collections cursor", "error", err)
		}
	}()
	collections := []bson.D{}
	if err := cursor.All(ctx, &collections); err != nil {
		return nil, err
	}
	names := []string{}
	for _, col := range collections {
		for _, v := range col {
			if v.Key == "name" {
				if name, ok := v.Value.(string); ok {
					names = append(names, name)
				}
			}
		}
	}
	return names, nil
}

// replaceIndex drops the named indexes, ignoring the ones that do not exist,
// and creates the new ones.
func replaceIndex(
	ctx context.Context,
	collection *mongo.Collection,
	oldIndexes []string,
	newIndexes []mongo.IndexModel,
) error {
	for _, name := range oldIndexes {
		if _, err := collection.Indexes().DropOne(ctx, name); err != nil {
			if strings.Contains(err.Error(), "IndexNotFound") || strings.Contains(err.Error(), "ns not found") {
				continue
			}
			return fmt.Errorf("failed to drop index %s for collection %s: %w",
				name, collection.Name(), err)
		}
	}
	for _, index := range newIndexes {
		if _, err := collection.Indexes().CreateOne(ctx, index); err != nil {
			return fmt.Errorf("failed to create index %v on %s: %w",
				index.Keys, collection.Name(), err)
		}
	}
	return nil
}
