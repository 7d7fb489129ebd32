// Package client is the Go binding of the chat API, used by the unread
// badge poller and by integration tests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultTimeout bounds every request so a dead service fails cleanly
// instead of hanging a poll loop.
const defaultTimeout = 15 * time.Second

// Message is the wire shape of one chat message.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Thread is the wire shape of one conversation summary.
type Thread struct {
	ThreadID        string    `json:"threadId"`
	PeerEmail       string    `json:"peerEmail"`
	PeerName        string    `json:"peerName,omitempty"`
	LastMessageText string    `json:"lastMessageText"`
	LastMessageAt   time.Time `json:"lastMessageAt"`
	UnreadCount     int       `json:"unreadCount"`
}

// TypingStatus is the wire shape of the pair typing view.
type TypingStatus struct {
	MeTyping     bool `json:"meTyping"`
	PeerTyping   bool `json:"peerTyping"`
	EitherTyping bool `json:"eitherTyping"`
}

// APIError is a non-ok response from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %s (status %d)", e.Message, e.Status)
}

// Client talks to a chat API instance on behalf of one authenticated user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a Client for baseURL authenticating with the given bearer
// token. A non-positive timeout falls back to the default.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// SendMessage posts one message to the peer.
func (c *Client) SendMessage(ctx context.Context, toEmail, text string) error {
	body := map[string]any{"toEmail": toEmail, "text": text}
	var resp struct {
		envelope
	}
	return c.do(ctx, http.MethodPost, "/chat/messages", body, &resp)
}

// Conversation returns the full message history with the peer, ascending
// by creation time.
func (c *Client) Conversation(ctx context.Context, peerEmail string) ([]Message, error) {
	var resp struct {
		envelope
		Messages []Message `json:"messages"`
	}
	path := "/chat/messages/" + url.PathEscape(peerEmail)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Threads returns the caller's conversation summaries for the given view
// ("active" or "history"; empty means active).
func (c *Client) Threads(ctx context.Context, view string) ([]Thread, error) {
	var resp struct {
		envelope
		Threads []Thread `json:"threads"`
	}
	path := "/chat/threads"
	if view != "" {
		path += "?view=" + url.QueryEscape(view)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Threads, nil
}

// MarkRead moves the caller's read watermark for the peer up to now.
func (c *Client) MarkRead(ctx context.Context, peerEmail string) error {
	var resp struct {
		envelope
	}
	return c.do(ctx, http.MethodPost, "/chat/read", map[string]any{"peerEmail": peerEmail}, &resp)
}

// CloseThread soft-archives the conversation with the peer.
func (c *Client) CloseThread(ctx context.Context, peerEmail string) error {
	var resp struct {
		envelope
	}
	return c.do(ctx, http.MethodPost, "/chat/close", map[string]any{"peerEmail": peerEmail}, &resp)
}

// SetTyping reports the caller's typing state towards the peer.
func (c *Client) SetTyping(ctx context.Context, toEmail string, isTyping bool) error {
	var resp struct {
		envelope
	}
	body := map[string]any{"toEmail": toEmail, "isTyping": isTyping}
	return c.do(ctx, http.MethodPost, "/chat/typing", body, &resp)
}

// Typing returns the pair typing view with the peer.
func (c *Client) Typing(ctx context.Context, peerEmail string) (TypingStatus, error) {
	var resp struct {
		envelope
		TypingStatus
	}
	path := "/chat/typing/" + url.PathEscape(peerEmail)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return TypingStatus{}, err
	}
	return resp.TypingStatus, nil
}

// envelope is the common part of every response.
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (e envelope) failed() bool    { return !e.OK }
func (e envelope) message() string { return e.Error }

type failer interface {
	failed() bool
	message() string
}

func (c *Client) do(ctx context.Context, method, path string, body any, out failer) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach chat service: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out.failed() || resp.StatusCode >= 400 {
		msg := out.message()
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	return nil
}
