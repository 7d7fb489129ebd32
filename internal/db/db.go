// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the chat collections.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, verifies the connection with a ping and returns
// a Client.
func New(ctx context.Context, mongoURI string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database("marketplace_chat"),
	}, nil
}

// UsersCollection returns the user directory collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// MessagesCollection returns the message log collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// TypingCollection returns the typing signal collection.
func (c *Client) TypingCollection() *mongo.Collection {
	return c.db.Collection("typing")
}

// ReadCursorsCollection returns the read watermark collection.
func (c *Client) ReadCursorsCollection() *mongo.Collection {
	return c.db.Collection("read_cursors")
}

// ClosuresCollection returns the thread closure collection.
func (c *Client) ClosuresCollection() *mongo.Collection {
	return c.db.Collection("closures")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes every store relies on. The unique
// keyed indexes on the overlay collections are what makes their upserts
// race-safe under concurrent writers for the same key.
func (c *Client) CreateIndexes(ctx context.Context) error {
	usersIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.UsersCollection().Indexes().CreateOne(ctx, usersIndex); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	messageIndexes := []mongo.IndexModel{
		{
			// conversation fetch: all messages of a pair in time order
			Keys: bson.D{{Key: "pair_key", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			// projector scan: all messages touching one user, newest first
			Keys: bson.D{{Key: "from_email", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "to_email", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	typingIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "from_email", Value: 1}, {Key: "to_email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.TypingCollection().Indexes().CreateOne(ctx, typingIndex); err != nil {
		return fmt.Errorf("failed to create typing index: %w", err)
	}

	cursorsIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "viewer_email", Value: 1}, {Key: "peer_email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.ReadCursorsCollection().Indexes().CreateOne(ctx, cursorsIndex); err != nil {
		return fmt.Errorf("failed to create read_cursors index: %w", err)
	}

	closuresIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_email", Value: 1}, {Key: "peer_email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// ClosedPeers scans both directions
			Keys: bson.D{{Key: "peer_email", Value: 1}},
		},
	}
	if _, err := c.ClosuresCollection().Indexes().CreateMany(ctx, closuresIndexes); err != nil {
		return fmt.Errorf("failed to create closures indexes: %w", err)
	}

	return nil
}
