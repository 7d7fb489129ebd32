package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitecrew/chat-api/internal/data"
	"github.com/sitecrew/chat-api/internal/normalize"
)

// In-memory store fakes implementing the service interfaces. They mirror
// the Mongo stores' merge semantics (max-merge cursors and closures,
// last-write typing) so the service tests exercise the same contracts.

type memClock struct {
	mu sync.Mutex
	t  time.Time
}

func newMemClock(start time.Time) *memClock { return &memClock{t: start} }

func (c *memClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *memClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *memClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memLog struct {
	mu   sync.Mutex
	msgs []*data.Message
}

func (m *memLog) Insert(_ context.Context, from, to, text string, createdAt time.Time) (*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := &data.Message{
		PairKey:   normalize.PairKey(from, to),
		FromEmail: normalize.Email(from),
		ToEmail:   normalize.Email(to),
		Text:      text,
		CreatedAt: createdAt,
	}
	m.msgs = append(m.msgs, msg)
	return msg, nil
}

func (m *memLog) ListBetween(_ context.Context, a, b string) ([]*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := normalize.PairKey(a, b)
	var out []*data.Message
	for _, msg := range m.msgs {
		if msg.PairKey == key {
			out = append(out, msg)
		}
	}
	// ascending; insertion order breaks ties
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memLog) ListForUser(_ context.Context, email string) ([]*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := normalize.Email(email)
	var out []*data.Message
	for _, msg := range m.msgs {
		if msg.FromEmail == u || msg.ToEmail == u {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memDirectory struct {
	entries map[string]*data.DirectoryEntry
}

func (d *memDirectory) add(email, role, displayName string) {
	if d.entries == nil {
		d.entries = map[string]*data.DirectoryEntry{}
	}
	e := normalize.Email(email)
	d.entries[e] = &data.DirectoryEntry{Email: e, Role: role, DisplayName: displayName}
}

func (d *memDirectory) Lookup(_ context.Context, email string) (*data.DirectoryEntry, error) {
	entry, ok := d.entries[normalize.Email(email)]
	if !ok {
		return nil, data.ErrNotFound
	}
	return entry, nil
}

type memTyping struct {
	mu   sync.Mutex
	rows map[[2]string]*data.TypingState
}

func (t *memTyping) Set(_ context.Context, from, to string, isTyping bool, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rows == nil {
		t.rows = map[[2]string]*data.TypingState{}
	}
	key := [2]string{normalize.Email(from), normalize.Email(to)}
	t.rows[key] = &data.TypingState{FromEmail: key[0], ToEmail: key[1], IsTyping: isTyping, UpdatedAt: now}
	return nil
}

func (t *memTyping) Get(_ context.Context, from, to string) (*data.TypingState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows[[2]string{normalize.Email(from), normalize.Email(to)}], nil
}

type memCursors struct {
	mu   sync.Mutex
	rows map[[2]string]time.Time
}

func (c *memCursors) MarkRead(_ context.Context, viewer, peer string, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows == nil {
		c.rows = map[[2]string]time.Time{}
	}
	key := [2]string{normalize.Email(viewer), normalize.Email(peer)}
	if now.After(c.rows[key]) {
		c.rows[key] = now
	}
	return nil
}

func (c *memCursors) LastRead(_ context.Context, viewer, peer string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows[[2]string{normalize.Email(viewer), normalize.Email(peer)}], nil
}

type memClosures struct {
	mu   sync.Mutex
	rows map[[2]string]time.Time
}

func (c *memClosures) Close(_ context.Context, owner, peer string, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows == nil {
		c.rows = map[[2]string]time.Time{}
	}
	o, p := normalize.Email(owner), normalize.Email(peer)
	for _, key := range [][2]string{{o, p}, {p, o}} {
		if now.After(c.rows[key]) {
			c.rows[key] = now
		}
	}
	return nil
}

func (c *memClosures) ClosedPeers(_ context.Context, viewer string) (map[string]time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := normalize.Email(viewer)
	out := map[string]time.Time{}
	for key, closedAt := range c.rows {
		counterpart := ""
		switch v {
		case key[0]:
			counterpart = key[1]
		case key[1]:
			counterpart = key[0]
		default:
			continue
		}
		if closedAt.After(out[counterpart]) {
			out[counterpart] = closedAt
		}
	}
	return out, nil
}

// captureNotifier hands dispatched notifications to the test over a
// channel, since dispatch runs on its own goroutine.
type captureNotifier struct {
	ch chan Notification
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{ch: make(chan Notification, 8)}
}

func (n *captureNotifier) Notify(_ context.Context, notification Notification) error {
	n.ch <- notification
	return nil
}

func (n *captureNotifier) wait(timeout time.Duration) (Notification, bool) {
	select {
	case got := <-n.ch:
		return got, true
	case <-time.After(timeout):
		return Notification{}, false
	}
}

type captureSignaler struct {
	mu    sync.Mutex
	calls []string
}

func (s *captureSignaler) Signal(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, email)
}

func (s *captureSignaler) signalled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// fixture bundles a fully-faked service for tests.
type fixture struct {
	svc      *Service
	clock    *memClock
	log      *memLog
	dir      *memDirectory
	typing   *memTyping
	cursors  *memCursors
	closures *memClosures
	notifier *captureNotifier
	signals  *captureSignaler
}

func newFixture() *fixture {
	f := &fixture{
		clock:    newMemClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		log:      &memLog{},
		dir:      &memDirectory{},
		typing:   &memTyping{},
		cursors:  &memCursors{},
		closures: &memClosures{},
		notifier: newCaptureNotifier(),
		signals:  &captureSignaler{},
	}
	f.dir.add("bo@x.com", data.RoleBuilder, "Bo the Builder")
	f.dir.add("la@x.com", data.RoleLabourer, "La the Labourer")
	f.dir.add("bob2@x.com", data.RoleBuilder, "Another Builder")

	f.svc = NewService(Deps{
		Messages:  f.log,
		Directory: f.dir,
		Typing:    f.typing,
		Cursors:   f.cursors,
		Closures:  f.closures,
		Notifier:  f.notifier,
		Signals:   f.signals,
		Clock:     f.clock,
	})
	return f
}
