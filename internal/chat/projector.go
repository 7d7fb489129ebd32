package chat

import (
	"sort"
	"time"

	"github.com/sitecrew/chat-api/internal/data"
	"github.com/sitecrew/chat-api/internal/normalize"
)

// ThreadMode selects which conversations a projection surfaces.
type ThreadMode string

const (
	// ModeActive lists pairs with messages newer than their closure
	// boundary (or never closed at all).
	ModeActive ThreadMode = "active"
	// ModeHistory lists pairs that were ever closed. A pair that resumed
	// messaging after a close shows up in both modes; that duality is the
	// contract, not a bug.
	ModeHistory ThreadMode = "history"
)

// ParseThreadMode maps the wire view parameter to a mode. An empty value
// means active.
func ParseThreadMode(s string) (ThreadMode, error) {
	switch ThreadMode(s) {
	case "", ModeActive:
		return ModeActive, nil
	case ModeHistory:
		return ModeHistory, nil
	default:
		return "", validationErrorf("unknown thread view %q", s)
	}
}

// closedPlaceholderText is shown for a pair that was closed and has had no
// message since; any real message after the boundary supersedes it.
const closedPlaceholderText = "Chat closed"

// Thread is the derived per-peer conversation summary for one viewer. It
// is computed fresh per request and never persisted.
type Thread struct {
	ThreadID        string
	PeerEmail       string
	PeerName        string
	LastMessageText string
	LastMessageAt   time.Time
	UnreadCount     int
}

// projectThreads folds the viewer's message scan (newest first) into one
// thread per peer.
//
// A message survives the closure filter when it is newer than the pair's
// boundary; that is what makes closing reversible, since the boundary is
// written for both directions and any later message from either side
// clears it. Active mode keeps every surviving pair; history mode keeps
// only pairs with a boundary at all, synthesizing a placeholder for pairs
// closed with nothing since.
//
// Unread counts are computed in active mode only: surviving messages
// addressed to the viewer and newer than the viewer's read watermark for
// that peer. lastRead is called at most once per peer.
func projectThreads(viewer string, mode ThreadMode, msgs []*data.Message, closedAtByPeer map[string]time.Time, lastRead func(peer string) (time.Time, error)) ([]*Thread, error) {
	viewer = normalize.Email(viewer)

	threads := make([]*Thread, 0)
	byPeer := make(map[string]*Thread)
	watermarks := make(map[string]time.Time)

	for _, msg := range msgs {
		peer := msg.FromEmail
		if peer == viewer {
			peer = msg.ToEmail
		}

		closedAt := closedAtByPeer[peer]
		if mode == ModeHistory && closedAt.IsZero() {
			continue
		}
		if !msg.CreatedAt.After(closedAt) {
			continue
		}

		th := byPeer[peer]
		if th == nil {
			// input is newest first, so the first surviving message per
			// peer is the thread summary
			th = &Thread{
				ThreadID:        msg.PairKey,
				PeerEmail:       peer,
				LastMessageText: msg.Text,
				LastMessageAt:   msg.CreatedAt,
			}
			byPeer[peer] = th
			threads = append(threads, th)
		}

		if mode != ModeActive || msg.ToEmail != viewer {
			continue
		}
		wm, ok := watermarks[peer]
		if !ok {
			var err error
			wm, err = lastRead(peer)
			if err != nil {
				return nil, err
			}
			watermarks[peer] = wm
		}
		if msg.CreatedAt.After(wm) {
			th.UnreadCount++
		}
	}

	if mode == ModeHistory {
		// closed pairs with no surviving message still belong in history
		silent := make([]string, 0)
		for peer, closedAt := range closedAtByPeer {
			if !closedAt.IsZero() && byPeer[peer] == nil {
				silent = append(silent, peer)
			}
		}
		sort.Strings(silent)
		for _, peer := range silent {
			threads = append(threads, &Thread{
				ThreadID:        normalize.PairKey(viewer, peer),
				PeerEmail:       peer,
				LastMessageText: closedPlaceholderText,
				LastMessageAt:   closedAtByPeer[peer],
			})
		}
	}

	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastMessageAt.After(threads[j].LastMessageAt)
	})
	return threads, nil
}
