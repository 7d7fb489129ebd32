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

// ReadCursorStore keeps the per-(viewer, peer) "read up to here" watermark.
// Unread counts are derived as messages newer than the watermark, so the
// cursor must never move backward.
type ReadCursorStore struct {
	coll *mongo.Collection
}

// NewReadCursorStore returns a ReadCursorStore using the given collection.
func NewReadCursorStore(coll *mongo.Collection) *ReadCursorStore {
	return &ReadCursorStore{coll: coll}
}

// MarkRead upserts last_read_at with $max, so concurrent calls from
// several devices of the same viewer resolve to the latest value by value,
// not by arrival order. A stale write that races in after a newer one is a
// no-op.
func (r *ReadCursorStore) MarkRead(ctx context.Context, viewerEmail, peerEmail string, now time.Time) error {
	filter := bson.M{
		"viewer_email": normalize.Email(viewerEmail),
		"peer_email":   normalize.Email(peerEmail),
	}
	update := bson.M{
		"$max": bson.M{"last_read_at": now},
	}

	_, err := r.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// LastRead returns the watermark for (viewer, peer), or the zero time when
// the viewer has never read this peer.
func (r *ReadCursorStore) LastRead(ctx context.Context, viewerEmail, peerEmail string) (time.Time, error) {
	filter := bson.M{
		"viewer_email": normalize.Email(viewerEmail),
		"peer_email":   normalize.Email(peerEmail),
	}

	var cur ReadCursor
	err := r.coll.FindOne(ctx, filter).Decode(&cur)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return cur.LastReadAt, nil
}
