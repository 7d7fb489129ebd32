package chat

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/chat-api/internal/data"
	"github.com/sitecrew/chat-api/internal/normalize"
)

var projBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(offset int) time.Time { return projBase.Add(time.Duration(offset) * time.Second) }

func pmsg(from, to, text string, createdAt time.Time) *data.Message {
	return &data.Message{
		PairKey:   normalize.PairKey(from, to),
		FromEmail: normalize.Email(from),
		ToEmail:   normalize.Email(to),
		Text:      text,
		CreatedAt: createdAt,
	}
}

// newestFirst orders messages the way MessagesStore.ListForUser returns
// them: descending by created_at, insertion order on ties.
func newestFirst(msgs ...*data.Message) []*data.Message {
	out := append([]*data.Message(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func noReads(string) (time.Time, error) { return time.Time{}, nil }

func readsAt(marks map[string]time.Time) func(string) (time.Time, error) {
	return func(peer string) (time.Time, error) { return marks[peer], nil }
}

func TestProjectActiveLatestPerPeerAndOrder(t *testing.T) {
	msgs := newestFirst(
		pmsg("bo@x.com", "la@x.com", "first", at(100)),
		pmsg("la@x.com", "bo@x.com", "second", at(200)),
		pmsg("mia@x.com", "bo@x.com", "other thread", at(150)),
	)

	threads, err := projectThreads("bo@x.com", ModeActive, msgs, nil, noReads)
	require.NoError(t, err)
	require.Len(t, threads, 2)

	// each peer contributes exactly one thread, newest conversation first
	assert.Equal(t, "la@x.com", threads[0].PeerEmail)
	assert.Equal(t, "second", threads[0].LastMessageText)
	assert.Equal(t, at(200), threads[0].LastMessageAt)
	assert.Equal(t, "mia@x.com", threads[1].PeerEmail)
}

func TestProjectUnreadCounts(t *testing.T) {
	msgs := newestFirst(
		pmsg("la@x.com", "bo@x.com", "one", at(100)),
		pmsg("la@x.com", "bo@x.com", "two", at(200)),
		pmsg("bo@x.com", "la@x.com", "own message", at(250)),
		pmsg("la@x.com", "bo@x.com", "three", at(300)),
	)

	// bo read up to t=150: two inbound messages after the watermark;
	// bo's own outbound message never counts
	threads, err := projectThreads("bo@x.com", ModeActive, msgs, nil,
		readsAt(map[string]time.Time{"la@x.com": at(150)}))
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, 2, threads[0].UnreadCount)

	// never read: all three inbound count
	threads, err = projectThreads("bo@x.com", ModeActive, msgs, nil, noReads)
	require.NoError(t, err)
	assert.Equal(t, 3, threads[0].UnreadCount)
}

func TestProjectClosureHidesAndReopens(t *testing.T) {
	closed := map[string]time.Time{"la@x.com": at(200)}

	// everything at or before the boundary is archived
	msgs := newestFirst(
		pmsg("la@x.com", "bo@x.com", "before", at(100)),
		pmsg("bo@x.com", "la@x.com", "at boundary", at(200)),
	)
	threads, err := projectThreads("bo@x.com", ModeActive, msgs, closed, noReads)
	require.NoError(t, err)
	assert.Empty(t, threads)

	// one message past the boundary reopens the pair
	msgs = newestFirst(append(msgs, pmsg("la@x.com", "bo@x.com", "after", at(201)))...)
	threads, err = projectThreads("bo@x.com", ModeActive, msgs, closed, noReads)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "after", threads[0].LastMessageText)
	assert.Equal(t, 1, threads[0].UnreadCount, "pre-closure messages never count as unread")
}

func TestProjectUnreadRespectsClosureBoundary(t *testing.T) {
	// unread but archived messages must not count once the pair reopens
	closed := map[string]time.Time{"la@x.com": at(200)}
	msgs := newestFirst(
		pmsg("la@x.com", "bo@x.com", "old unread", at(100)),
		pmsg("la@x.com", "bo@x.com", "new", at(300)),
	)

	threads, err := projectThreads("bo@x.com", ModeActive, msgs, closed, noReads)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, 1, threads[0].UnreadCount)
}

func TestProjectHistoryPlaceholder(t *testing.T) {
	closed := map[string]time.Time{"la@x.com": at(200)}
	msgs := newestFirst(
		pmsg("bo@x.com", "la@x.com", "before close", at(100)),
	)

	threads, err := projectThreads("bo@x.com", ModeHistory, msgs, closed, noReads)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Chat closed", threads[0].LastMessageText)
	assert.Equal(t, at(200), threads[0].LastMessageAt)
	assert.Equal(t, 0, threads[0].UnreadCount)
	assert.Equal(t, normalize.PairKey("bo@x.com", "la@x.com"), threads[0].ThreadID)
}

func TestProjectHistoryRealMessageSupersedesPlaceholder(t *testing.T) {
	closed := map[string]time.Time{"la@x.com": at(200)}
	msgs := newestFirst(
		pmsg("bo@x.com", "la@x.com", "before close", at(100)),
		pmsg("la@x.com", "bo@x.com", "resumed", at(300)),
	)

	threads, err := projectThreads("bo@x.com", ModeHistory, msgs, closed, noReads)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "resumed", threads[0].LastMessageText)
	assert.Equal(t, at(300), threads[0].LastMessageAt)
}

func TestProjectHistoryIgnoresNeverClosedPeers(t *testing.T) {
	msgs := newestFirst(
		pmsg("mia@x.com", "bo@x.com", "open thread", at(100)),
	)

	threads, err := projectThreads("bo@x.com", ModeHistory, msgs, nil, noReads)
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestProjectDualListingAfterReopen(t *testing.T) {
	// a reopened pair lists in active and stays listed in history:
	// history is "ever closed", not "currently closed"
	closed := map[string]time.Time{"la@x.com": at(200)}
	msgs := newestFirst(
		pmsg("la@x.com", "bo@x.com", "resumed", at(300)),
	)

	active, err := projectThreads("bo@x.com", ModeActive, msgs, closed, noReads)
	require.NoError(t, err)
	history, err := projectThreads("bo@x.com", ModeHistory, msgs, closed, noReads)
	require.NoError(t, err)

	require.Len(t, active, 1)
	require.Len(t, history, 1)
	assert.Equal(t, active[0].PeerEmail, history[0].PeerEmail)
	assert.Equal(t, "resumed", history[0].LastMessageText)
}

func TestProjectHistorySortsMixedRealAndPlaceholder(t *testing.T) {
	closed := map[string]time.Time{
		"la@x.com":  at(500), // closed, silent since -> placeholder at 500
		"mia@x.com": at(100), // closed, resumed at 300
	}
	msgs := newestFirst(
		pmsg("mia@x.com", "bo@x.com", "back again", at(300)),
	)

	threads, err := projectThreads("bo@x.com", ModeHistory, msgs, closed, noReads)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "la@x.com", threads[0].PeerEmail)
	assert.Equal(t, "Chat closed", threads[0].LastMessageText)
	assert.Equal(t, "mia@x.com", threads[1].PeerEmail)
	assert.Equal(t, "back again", threads[1].LastMessageText)
}
