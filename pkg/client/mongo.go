package client

import (
	"context"
	"time"

	"escaperoom/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewMongoClient connects and pings MongoDB, terminating the process on failure.
// Hold confirmation relies on multi-document transactions, so the deployment
// must be a replica set or sharded cluster.
func NewMongoClient(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) *mongo.Client {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	return client
}
