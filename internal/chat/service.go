// Package chat implements the messaging core: the append-only message log
// joined with the typing, read-cursor and closure overlays into per-viewer
// conversation state.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/sitecrew/chat-api/internal/data"
	"github.com/sitecrew/chat-api/internal/normalize"
)

// typingFreshness is the window after which a typing signal reads as false
// without ever being cleared.
const typingFreshness = 10 * time.Second

// notifyTimeout bounds the fire-and-forget notification dispatch.
const notifyTimeout = 10 * time.Second

// MessageLog is the append-only store of all messages.
type MessageLog interface {
	Insert(ctx context.Context, fromEmail, toEmail, text string, createdAt time.Time) (*data.Message, error)
	ListBetween(ctx context.Context, a, b string) ([]*data.Message, error)
	ListForUser(ctx context.Context, email string) ([]*data.Message, error)
}

// Directory resolves user identities to role and display name. Lookup
// returns data.ErrNotFound for unknown emails.
type Directory interface {
	Lookup(ctx context.Context, email string) (*data.DirectoryEntry, error)
}

// TypingTracker stores the directional typing rows.
type TypingTracker interface {
	Set(ctx context.Context, fromEmail, toEmail string, isTyping bool, now time.Time) error
	Get(ctx context.Context, fromEmail, toEmail string) (*data.TypingState, error)
}

// ReadCursors stores the per-(viewer, peer) read watermarks.
type ReadCursors interface {
	MarkRead(ctx context.Context, viewerEmail, peerEmail string, now time.Time) error
	LastRead(ctx context.Context, viewerEmail, peerEmail string) (time.Time, error)
}

// Closures stores the per-pair soft-archive boundaries.
type Closures interface {
	Close(ctx context.Context, ownerEmail, peerEmail string, now time.Time) error
	ClosedPeers(ctx context.Context, viewerEmail string) (map[string]time.Time, error)
}

// Signaler is an advisory channel telling a connected user that their
// inbox changed. Delivery is best-effort; polling remains the truth.
type Signaler interface {
	Signal(email string)
}

// TypingStatus is the pair-level typing view for one viewer.
type TypingStatus struct {
	MeTyping     bool
	PeerTyping   bool
	EitherTyping bool
}

// Service is the public messaging contract.
type Service struct {
	msgs     MessageLog
	dir      Directory
	typing   TypingTracker
	cursors  ReadCursors
	closures Closures
	notifier Notifier
	signals  Signaler
	clock    Clock
	log      *logrus.Entry
}

// Deps carries the collaborators a Service is wired with. Notifier and
// Signals may be nil; Clock and Log default to the real clock and the
// standard logger.
type Deps struct {
	Messages  MessageLog
	Directory Directory
	Typing    TypingTracker
	Cursors   ReadCursors
	Closures  Closures
	Notifier  Notifier
	Signals   Signaler
	Clock     Clock
	Log       *logrus.Entry
}

// NewService returns a Service wired with the given collaborators.
func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = realClock{}
	}
	if d.Log == nil {
		d.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		msgs:     d.Messages,
		dir:      d.Directory,
		typing:   d.Typing,
		cursors:  d.Cursors,
		closures: d.Closures,
		notifier: d.Notifier,
		signals:  d.Signals,
		clock:    d.Clock,
		log:      d.Log,
	}
}

// SendMessage validates, appends the message, clears the sender's typing
// row and triggers the recipient's notification. The notification and the
// inbox signal run after the append is durable, outside any store call,
// and their failure never fails the send.
func (s *Service) SendMessage(ctx context.Context, from, to, text string) (*data.Message, error) {
	from = normalize.Email(from)
	to = normalize.Email(to)

	if strings.TrimSpace(text) == "" {
		return nil, validationErrorf("message text is empty")
	}
	if to == "" {
		return nil, validationErrorf("recipient email is empty")
	}
	if from == to {
		return nil, validationErrorf("cannot message yourself")
	}

	sender, err := s.lookup(ctx, from)
	if err != nil {
		return nil, err
	}
	recipient, err := s.lookup(ctx, to)
	if err != nil {
		return nil, err
	}
	if sender.Role == recipient.Role {
		return nil, &RoleError{Reason: fmt.Sprintf("a %s cannot message another %s", sender.Role, recipient.Role)}
	}

	now := s.clock.Now()
	msg, err := s.msgs.Insert(ctx, from, to, text, now)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	// sending is an implicit "stopped typing"
	if err := s.typing.Set(ctx, from, to, false, now); err != nil {
		s.log.WithError(err).WithField("from", from).Warn("failed to clear typing after send")
	}

	s.dispatchNotification(sender, msg)
	if s.signals != nil {
		s.signals.Signal(to)
	}
	return msg, nil
}

func (s *Service) dispatchNotification(sender *data.DirectoryEntry, msg *data.Message) {
	if s.notifier == nil {
		return
	}
	n := Notification{
		RecipientEmail: msg.ToEmail,
		Type:           "message_received",
		Title:          fmt.Sprintf("New message from %s", sender.DisplayName),
		Body:           previewText(msg.Text),
		Data:           map[string]string{"fromEmail": msg.FromEmail},
	}
	// Detached from the request: the send already succeeded and must not
	// wait on, or fail with, the dispatcher.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.WithError(err).WithField("recipient", n.RecipientEmail).Warn("notification dispatch failed")
		}
	}()
}

// previewText trims a message body down to notification size, cutting on
// a rune boundary so multi-byte text stays valid UTF-8.
func previewText(text string) string {
	const max = 140
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max-3]) + "..."
}

// GetConversation returns every message between viewer and peer, ascending
// by created_at. The result is identical whichever participant asks.
func (s *Service) GetConversation(ctx context.Context, viewer, peer string) ([]*data.Message, error) {
	return s.msgs.ListBetween(ctx, viewer, peer)
}

// ListThreads projects the viewer's conversations in the given mode and
// decorates each thread with the peer's display name.
func (s *Service) ListThreads(ctx context.Context, viewer string, mode ThreadMode) ([]*Thread, error) {
	viewer = normalize.Email(viewer)

	boundaries, err := s.closures.ClosedPeers(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("load closure boundaries: %w", err)
	}
	msgs, err := s.msgs.ListForUser(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}

	threads, err := projectThreads(viewer, mode, msgs, boundaries, func(peer string) (time.Time, error) {
		return s.cursors.LastRead(ctx, viewer, peer)
	})
	if err != nil {
		return nil, err
	}

	for _, th := range threads {
		entry, err := s.dir.Lookup(ctx, th.PeerEmail)
		if err != nil {
			if !errors.Is(err, data.ErrNotFound) {
				s.log.WithError(err).WithField("peer", th.PeerEmail).Warn("display name lookup failed")
			}
			continue
		}
		th.PeerName = entry.DisplayName
	}
	return threads, nil
}

// SetTyping records the directional typing signal. updated_at always moves
// to now, regardless of value, so repeated true signals keep the indicator
// alive.
func (s *Service) SetTyping(ctx context.Context, from, to string, isTyping bool) error {
	from = normalize.Email(from)
	to = normalize.Email(to)
	if from == to {
		return validationErrorf("cannot signal typing to yourself")
	}
	return s.typing.Set(ctx, from, to, isTyping, s.clock.Now())
}

// GetTyping reads both directional rows for the pair. A row older than the
// freshness window reads as false without being deleted.
func (s *Service) GetTyping(ctx context.Context, viewer, peer string) (TypingStatus, error) {
	me, err := s.typing.Get(ctx, viewer, peer)
	if err != nil {
		return TypingStatus{}, err
	}
	other, err := s.typing.Get(ctx, peer, viewer)
	if err != nil {
		return TypingStatus{}, err
	}

	now := s.clock.Now()
	status := TypingStatus{
		MeTyping:   s.fresh(me, now),
		PeerTyping: s.fresh(other, now),
	}
	status.EitherTyping = status.MeTyping || status.PeerTyping
	return status, nil
}

func (s *Service) fresh(state *data.TypingState, now time.Time) bool {
	return state != nil && state.IsTyping && now.Sub(state.UpdatedAt) <= typingFreshness
}

// MarkRead moves the viewer's watermark for peer up to now. The store
// merges by max, so out-of-order calls from several devices cannot un-read
// already-read messages.
func (s *Service) MarkRead(ctx context.Context, viewer, peer string) error {
	if _, err := s.lookup(ctx, peer); err != nil {
		return err
	}
	return s.cursors.MarkRead(ctx, viewer, peer, s.clock.Now())
}

// CloseThread writes the soft-archive boundary for both directions of the
// pair. There is no reopen call; a new message past the boundary restores
// the pair to both active lists.
func (s *Service) CloseThread(ctx context.Context, owner, peer string) error {
	if _, err := s.lookup(ctx, peer); err != nil {
		return err
	}
	return s.closures.Close(ctx, owner, peer, s.clock.Now())
}

func (s *Service) lookup(ctx context.Context, email string) (*data.DirectoryEntry, error) {
	entry, err := s.dir.Lookup(ctx, email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, &NotFoundError{Email: normalize.Email(email)}
		}
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	return entry, nil
}
