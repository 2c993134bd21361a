package db

import (
	"context"
	"fmt"
	"time"

	"github.com/paydesk/payments-backend/migrations"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

const migrationsTimeout = 10 * time.Minute

// RunMigrationsUp executes all pending database migrations in version order
// and records each one in the migrations collection.
func (ms *MongoStorage) RunMigrationsUp() error {
	ctx, cancel := context.WithTimeout(context.Background(), migrationsTimeout)
	defer cancel()

	last, err := lastAppliedMigration(ctx, ms.migrations)
	if err != nil {
		return fmt.Errorf("failed to get last applied migration: %w", err)
	}
	migs := migrations.SortedByVersionAsc()
	if len(migs) == 0 || migs[len(migs)-1].Version <= last {
		log.Debugw("database is up-to-date", "version", last)
		return nil
	}
	log.Infow("starting database migrations", "available", len(migs), "lastApplied", last)

	database := ms.DBClient.Database(ms.database)
	for _, mig := range migs {
		if mig.Version <= last {
			continue
		}
		log.Infow("applying migration", "version", mig.Version, "name", mig.Name)
		if err := mig.Up(ctx, database); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		record := MigrationRecord{Version: mig.Version, AppliedAt: time.Now().UTC()}
		if _, err := ms.migrations.InsertOne(ctx, record); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}
	}
	log.Infow("database migrations completed", "version", migs[len(migs)-1].Version)
	return nil
}

// RunMigrationsDown rolls back the given number of migrations, newest first.
// A non-positive number of steps rolls back every applied migration.
func (ms *MongoStorage) RunMigrationsDown(steps int) error {
	ctx, cancel := context.WithTimeout(context.Background(), migrationsTimeout)
	defer cancel()

	applied, err := appliedMigrations(ctx, ms.migrations)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	if steps <= 0 || steps > len(applied) {
		steps = len(applied)
	}
	log.Infow("rolling back database migrations", "steps", steps)

	registry := migrations.AsMap()
	database := ms.DBClient.Database(ms.database)
	for _, record := range applied[:steps] {
		mig, ok := registry[record.Version]
		if !ok {
			return fmt.Errorf("migration %d not found in registry", record.Version)
		}
		log.Infow("rolling back migration", "version", mig.Version, "name", mig.Name)
		if err := mig.Down(ctx, database); err != nil {
			return fmt.Errorf("failed to rollback migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		if _, err := ms.migrations.DeleteOne(ctx, bson.M{"version": record.Version}); err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", record.Version, err)
		}
	}
	return nil
}

// lastAppliedMigration returns the last applied migration version, 0 when
// none was applied.
func lastAppliedMigration(ctx context.Context, collection *mongo.Collection) (int, error) {
	migs, err := appliedMigrations(ctx, collection)
	if err != nil {
		return 0, err
	}
	if len(migs) == 0 {
		return 0, nil
	}
	return migs[0].Version, nil
}

// appliedMigrations returns applied migration records in descending version
// order.
func appliedMigrations(ctx context.Context, collection *mongo.Collection) ([]MigrationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: -1}})
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("error closing cursor", "error", err)
		}
	}()
	var migs []MigrationRecord
	if err := cursor.All(ctx, &migs); err != nil {
		return nil, fmt.Errorf("failed to decode migrations: %w", err)
	}
	return migs, nil
}
