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

// ClosureStore keeps the soft-archive boundaries. A closure has no explicit
// reopen: the projector treats any message newer than the boundary as
// having reopened the pair.
type ClosureStore struct {
	coll *mongo.Collection
}

// NewClosureStore returns a ClosureStore using the given collection.
func NewClosureStore(coll *mongo.Collection) *ClosureStore {
	return &ClosureStore{coll: coll}
}

// Close writes the boundary for both directions of the pair with the same
// timestamp, so closing from one side archives the pair for both
// participants until a new message lands. $max keeps concurrent closes
// race-safe: the latest boundary wins regardless of write order.
func (c *ClosureStore) Close(ctx context.Context, ownerEmail, peerEmail string, now time.Time) error {
	owner := normalize.Email(ownerEmail)
	peer := normalize.Email(peerEmail)

	for _, pair := range [][2]string{{owner, peer}, {peer, owner}} {
		filter := bson.M{
			"owner_email": pair[0],
			"peer_email":  pair[1],
		}
		update := bson.M{
			"$max": bson.M{"closed_at": now},
		}
		if _, err := c.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
			return err
		}
	}
	return nil
}

// ClosedAt returns the boundary for (owner, peer), or the zero time when
// the pair was never closed from that direction.
func (c *ClosureStore) ClosedAt(ctx context.Context, ownerEmail, peerEmail string) (time.Time, error) {
	filter := bson.M{
		"owner_email": normalize.Email(ownerEmail),
		"peer_email":  normalize.Email(peerEmail),
	}

	var cl ThreadClosure
	err := c.coll.FindOne(ctx, filter).Decode(&cl)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return cl.ClosedAt, nil
}

// ClosedPeers returns one boundary per counterpart the viewer has ever
// exchanged a closure with, taking the max timestamp seen across both
// directions (rows where the viewer is the owner or the peer column).
func (c *ClosureStore) ClosedPeers(ctx context.Context, viewerEmail string) (map[string]time.Time, error) {
	v := normalize.Email(viewerEmail)

	filter := bson.M{
		"$or": bson.A{
			bson.M{"owner_email": v},
			bson.M{"peer_email": v},
		},
	}

	cursor, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []ThreadClosure
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	boundaries := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		counterpart := row.PeerEmail
		if counterpart == v {
			counterpart = row.OwnerEmail
		}
		if row.ClosedAt.After(boundaries[counterpart]) {
			boundaries[counterpart] = row.ClosedAt
		}
	}
	return boundaries, nil
}
