package data

import (
	"context"
	"errors"
	"time"

	"github.com/sitecrew/chat-api/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// TypingStore holds the directional "is typing" rows. A row is overwritten
// on every signal (updated_at always moves forward so a client repeatedly
// sending true keeps the indicator alive) and is never deleted: staleness
// is a read-time decision made by the service against its freshness window.
type TypingStore struct {
	coll *mongo.Collection
}

// NewTypingStore returns a TypingStore using the given collection.
func NewTypingStore(coll *mongo.Collection) *TypingStore {
	return &TypingStore{coll: coll}
}

// Set upserts the (from, to) row. Last write wins; the signal is purely
// advisory so no merge logic is needed under concurrent writers.
func (t *TypingStore) Set(ctx context.Context, fromEmail, toEmail string, isTyping bool, now time.Time) error {
	filter := bson.M{
		"from_email": normalize.Email(fromEmail),
		"to_email":   normalize.Email(toEmail),
	}
	update := bson.M{
		"$set": bson.M{
			"is_typing":  isTyping,
			"updated_at": now,
		},
	}

	_, err := t.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// Get returns the (from, to) row, or nil when no signal was ever recorded.
func (t *TypingStore) Get(ctx context.Context, fromEmail, toEmail string) (*TypingState, error) {
	filter := bson.M{
		"from_email": normalize.Email(fromEmail),
		"to_email":   normalize.Email(toEmail),
	}

	var state TypingState
	err := t.coll.FindOne(ctx, filter).Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}
