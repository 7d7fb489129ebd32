package data

import (
	"context"
	"errors"
	"time"

	"github.com/sitecrew/chat-api/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ErrNotFound is returned when a directory lookup misses.
var ErrNotFound = errors.New("directory entry not found")

// UsersStore reads the user directory. Accounts themselves are provisioned
// by the account system; the messaging core only resolves role and display
// name from them.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// Lookup resolves a directory entry by email. Returns ErrNotFound when the
// email is unknown.
func (u *UsersStore) Lookup(ctx context.Context, email string) (*DirectoryEntry, error) {
	var entry DirectoryEntry
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Exists reports whether a directory entry exists for the email.
func (u *UsersStore) Exists(ctx context.Context, email string) (bool, error) {
	count, err := u.coll.CountDocuments(ctx, bson.M{"email": normalize.Email(email)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Seed inserts a directory entry. Used by integration tests and local
// development; production entries arrive from the account system.
func (u *UsersStore) Seed(ctx context.Context, email, role, displayName string) (*DirectoryEntry, error) {
	entry := &DirectoryEntry{
		Email:       normalize.Email(email),
		Role:        role,
		DisplayName: displayName,
		CreatedAt:   time.Now(),
	}

	result, err := u.coll.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errors.New("directory entry already exists")
		}
		return nil, err
	}
	entry.ID = result.InsertedID.(bson.ObjectID)
	return entry, nil
}
