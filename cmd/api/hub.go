package main

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// inboxSignal is the advisory payload pushed to connected clients when
// something about their inbox changed. It carries no message content; the
// client reacts by polling.
const inboxSignal = `{"kind":"inbox_update"}`

// signalConn is the minimal interface the hub needs from a websocket
// connection.
type signalConn interface {
	WriteMessage(messageType int, data []byte) error
}

const textMessage = 1 // websocket text frame

// hubConn pairs a socket with the mutex serializing its writes. The
// websocket write methods allow at most one concurrent caller per
// connection, and Signal runs on whatever request goroutine sent the
// message.
type hubConn struct {
	mu   sync.Mutex
	conn signalConn
}

func (h *hubConn) write(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn.WriteMessage(textMessage, data)
}

// SignalHub tracks the open event sockets per user so the server can nudge
// all currently-connected endpoints of a recipient when a message lands.
type SignalHub struct {
	mu     sync.RWMutex
	conns  map[string]map[int64]*hubConn
	nextID int64
	log    *logrus.Entry
}

// NewSignalHub creates a new hub instance.
func NewSignalHub(log *logrus.Entry) *SignalHub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SignalHub{conns: make(map[string]map[int64]*hubConn), log: log}
}

// Register registers a connection for the given email and returns a
// connection id used to unregister it when the socket closes.
func (h *SignalHub) Register(email string, c signalConn) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[email]; !ok {
		h.conns[email] = make(map[int64]*hubConn)
	}

	h.nextID++
	id := h.nextID
	h.conns[email][id] = &hubConn{conn: c}
	return id
}

// Unregister removes a previously-registered connection.
func (h *SignalHub) Unregister(email string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[email]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.conns, email)
		}
	}
}

// Signal nudges every open connection of the given user. Delivery is
// best-effort: a user with no sockets simply polls the change in later,
// and connections that fail to receive are dropped from the hub so broken
// sockets don't accumulate.
func (h *SignalHub) Signal(email string) {
	h.mu.RLock()
	conns := make(map[int64]*hubConn, len(h.conns[email]))
	for id, c := range h.conns[email] {
		conns[id] = c
	}
	h.mu.RUnlock()

	var failedIDs []int64
	for id, c := range conns {
		if err := c.write([]byte(inboxSignal)); err != nil {
			h.log.WithError(err).WithField("email", email).Debug("dropping broken event socket")
			failedIDs = append(failedIDs, id)
		}
	}
	for _, id := range failedIDs {
		h.Unregister(email, id)
	}
}

// Connected reports whether the user has at least one open event socket.
func (h *SignalHub) Connected(email string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[email]) > 0
}
