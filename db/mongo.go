// Package db stores payment records and processed webhook events in MongoDB.
package db

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.vocdoni.io/dvote/log"
)

// MongoStorage uses an external MongoDB service for storing payments and the
// webhook events already handled.
type MongoStorage struct {
	DBClient *mongo.Client
	database string
	keysLock sync.RWMutex

	payments      *mongo.Collection
	webhookEvents *mongo.Collection
	migrations    *mongo.Collection
}

// New connects to MongoDB, applies the pending migrations and returns the
// storage. When the PAYDESK_MONGO_RESET_DB environment variable is set every
// collection is dropped first.
func New(url, database string) (*MongoStorage, error) {
	if url == "" {
		return nil, fmt.Errorf("mongo URL is not defined")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database is not defined")
	}
	log.Infow("connecting to mongodb", "database", database)
	// preparing connection
	opts := options.Client()
	opts.ApplyURI(url)
	opts.SetMaxConnecting(200)
	timeout := time.Second * 10
	opts.ConnectTimeout = &timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	// check if the connection is successful
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	ms := &MongoStorage{
		DBClient:      client,
		database:      database,
		payments:      client.Database(database).Collection("payments"),
		webhookEvents: client.Database(database).Collection("webhookEvents"),
		migrations:    client.Database(database).Collection("migrations"),
	}
	if reset := os.Getenv(ResetEnvVar); reset != "" {
		if err := ms.Reset(); err != nil {
			return nil, err
		}
		return ms, nil
	}
	if err := ms.RunMigrationsUp(); err != nil {
		return nil, err
	}
	return ms, nil
}

// Close disconnects the underlying client.
func (ms *MongoStorage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ms.DBClient.Disconnect(ctx); err != nil {
		log.Warn(err)
	}
}

// Reset drops every collection, including the migrations log, and applies
// all the migrations again.
func (ms *MongoStorage) Reset() error {
	log.Infow("resetting database", "database", ms.database)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, col := range []*mongo.Collection{ms.payments, ms.webhookEvents, ms.migrations} {
		if err := col.Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", col.Name(), err)
		}
	}
	return ms.RunMigrationsUp()
}
