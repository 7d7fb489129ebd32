// Package data provides DB models and stores.
package data

import (
	"context"
	"time"

	"github.com/sitecrew/chat-api/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore is the append-only message log.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// Insert appends one message and returns the saved record. Emails are
// stored normalized so mixed-case callers always hit the same pair.
// Validation (empty text, same party, role pairing) happens in the service
// layer before this is called.
func (m *MessagesStore) Insert(ctx context.Context, fromEmail, toEmail, text string, createdAt time.Time) (*Message, error) {
	msg := &Message{
		PairKey:   normalize.PairKey(fromEmail, toEmail),
		FromEmail: normalize.Email(fromEmail),
		ToEmail:   normalize.Email(toEmail),
		Text:      text,
		CreatedAt: createdAt,
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// ListBetween returns every message between two users in ascending
// created_at order. Equal timestamps fall back to _id order, which is
// insertion order for ObjectIDs.
func (m *MessagesStore) ListBetween(ctx context.Context, a, b string) ([]*Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := m.coll.Find(ctx, bson.M{"pair_key": normalize.PairKey(a, b)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// ListForUser returns every message sent by or to the given user, newest
// first. The thread projector folds this single scan into per-peer
// summaries.
func (m *MessagesStore) ListForUser(ctx context.Context, email string) ([]*Message, error) {
	u := normalize.Email(email)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	filter := bson.M{
		"$or": bson.A{
			bson.M{"from_email": u},
			bson.M{"to_email": u},
		},
	}

	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
