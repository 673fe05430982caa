// Package database owns the process-wide MongoDB connection. It is created
// once by Init and closed by Shutdown; components receive the *mongo.Database
// explicitly.
package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/harentsoaR/clinic-api/internal/config"
)

type Database struct {
	client *mongo.Client
	log    *logrus.Logger
	DB     *mongo.Database
}

func Init(ctx context.Context, cfg config.MongoConfig, log *logrus.Logger) (*Database, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.WithField("database", cfg.Database).Info("Successfully connected to MongoDB")
	return &Database{client: client, log: log, DB: client.Database(cfg.Database)}, nil
}

func (d *Database) Shutdown(ctx context.Context) error {
	if d == nil || d.client == nil {
		return nil
	}
	if err := d.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	d.log.Info("MongoDB connection closed")
	return nil
}
