package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Roles in the marketplace. Messaging is only allowed across roles: a
// builder may message a labourer and vice versa, never same-role pairs.
const (
	RoleBuilder  = "builder"
	RoleLabourer = "labourer"
)

// DirectoryEntry maps to the users collection. It is the read-side view of
// the account system: the messaging core looks up role and display name
// here but never creates or authenticates accounts.
type DirectoryEntry struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Email       string        `bson:"email"`
	Role        string        `bson:"role"`
	DisplayName string        `bson:"display_name"`
	CreatedAt   time.Time     `bson:"created_at"`
}

// Message maps to the messages collection. Immutable once inserted; the
// message log is the source of truth every other view derives from.
type Message struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	PairKey   string        `bson:"pair_key"`
	FromEmail string        `bson:"from_email"`
	ToEmail   string        `bson:"to_email"`
	Text      string        `bson:"text"`
	CreatedAt time.Time     `bson:"created_at"`
}

// TypingState maps to the typing collection, keyed by the ordered
// (from_email, to_email) pair, so direction matters. Rows are upserted on
// every signal and never deleted; staleness is decided at read time.
type TypingState struct {
	FromEmail string    `bson:"from_email"`
	ToEmail   string    `bson:"to_email"`
	IsTyping  bool      `bson:"is_typing"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ReadCursor maps to the read_cursors collection: the "read up to here"
// watermark one viewer keeps per peer.
type ReadCursor struct {
	ViewerEmail string    `bson:"viewer_email"`
	PeerEmail   string    `bson:"peer_email"`
	LastReadAt  time.Time `bson:"last_read_at"`
}

// ThreadClosure maps to the closures collection: the soft-archive boundary
// one participant holds against a peer. Closing writes both directions of
// the pair with the same timestamp.
type ThreadClosure struct {
	OwnerEmail string    `bson:"owner_email"`
	PeerEmail  string    `bson:"peer_email"`
	ClosedAt   time.Time `bson:"closed_at"`
}
