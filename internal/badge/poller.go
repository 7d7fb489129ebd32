// Package badge derives the "any unread messages" boolean a client shows
// on its tab bar. It polls the thread list at a short interval; live
// inbox signals only hint that a poll is worth doing sooner, so polling
// alone is always correct.
package badge

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sitecrew/chat-api/internal/client"
)

// ThreadLister is the slice of the API client the poller needs.
type ThreadLister interface {
	Threads(ctx context.Context, view string) ([]client.Thread, error)
}

// Poller periodically fetches active threads and tracks whether any of
// them carries unread messages.
type Poller struct {
	lister   ThreadLister
	interval time.Duration
	onChange func(hasUnread bool)
	log      *logrus.Entry

	mu        sync.Mutex
	hasUnread bool
}

// New returns a Poller. onChange may be nil; it fires whenever the derived
// boolean flips.
func New(lister ThreadLister, interval time.Duration, onChange func(bool), log *logrus.Entry) *Poller {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Poller{
		lister:   lister,
		interval: interval,
		onChange: onChange,
		log:      log,
	}
}

// HasUnread returns the value derived by the most recent successful poll.
func (p *Poller) HasUnread() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasUnread
}

// Run polls until ctx is cancelled. It polls once immediately so callers
// don't wait a full interval for the first badge state. A failed poll is
// logged and skipped; the next tick retries naturally.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	threads, err := p.lister.Threads(ctx, "active")
	if err != nil {
		if ctx.Err() == nil {
			p.log.WithError(err).Warn("unread badge poll failed; keeping last value")
		}
		return
	}

	unread := false
	for _, th := range threads {
		if th.UnreadCount > 0 {
			unread = true
			break
		}
	}

	p.mu.Lock()
	changed := unread != p.hasUnread
	p.hasUnread = unread
	p.mu.Unlock()

	if changed && p.onChange != nil {
		p.onChange(unread)
	}
}
