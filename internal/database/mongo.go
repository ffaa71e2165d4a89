package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Overridden in tests.
var (
	mongoConnect    = mongo.Connect
	mongoPing       = func(ctx context.Context, client *mongo.Client) error { return client.Ping(ctx, readpref.Primary()) }
	mongoDisconnect = func(ctx context.Context, client *mongo.Client) error { return client.Disconnect(ctx) }
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(uri, dbName string) (*MongoDB, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(25).
		SetMinPoolSize(2).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongoConnect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := mongoPing(ctx, client); err != nil {
		_ = mongoDisconnect(context.Background(), client)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &MongoDB{Client: client, Database: client.Database(dbName)}, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	if m.Client == nil {
		return nil
	}
	return mongoDisconnect(ctx, m.Client)
}

func (m *MongoDB) Health(ctx context.Context) error {
	return mongoPing(ctx, m.Client)
}
