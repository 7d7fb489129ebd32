package data

import (
	"context"
	"os"
	"testing"

	"github.com/sitecrew/chat-api/internal/db"
)

// testDB connects to the MongoDB named by MONGODB_URI and skips the test
// when it is unset. Integration tests drop their own collections.
func testDB(t *testing.T) *db.Client {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	c, err := db.New(context.Background(), uri)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}
