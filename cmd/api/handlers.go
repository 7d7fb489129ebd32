package main

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sitecrew/chat-api/internal/chat"
	"github.com/sitecrew/chat-api/internal/data"
)

// wireMessage is the JSON shape of one message.
type wireMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// wireThread is the JSON shape of one conversation summary.
type wireThread struct {
	ThreadID        string    `json:"threadId"`
	PeerEmail       string    `json:"peerEmail"`
	PeerName        string    `json:"peerName,omitempty"`
	LastMessageText string    `json:"lastMessageText"`
	LastMessageAt   time.Time `json:"lastMessageAt"`
	UnreadCount     int       `json:"unreadCount"`
}

func toWireMessage(m *data.Message) wireMessage {
	return wireMessage{
		ID:        m.ID.Hex(),
		From:      m.FromEmail,
		To:        m.ToEmail,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}

func toWireThread(t *chat.Thread) wireThread {
	return wireThread{
		ThreadID:        t.ThreadID,
		PeerEmail:       t.PeerEmail,
		PeerName:        t.PeerName,
		LastMessageText: t.LastMessageText,
		LastMessageAt:   t.LastMessageAt,
		UnreadCount:     t.UnreadCount,
	}
}

// respondError maps the service error taxonomy onto HTTP statuses:
// 400 validation, 403 role violation, 404 unknown peer, 500 otherwise.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	var (
		verr  *chat.ValidationError
		rerr  *chat.RoleError
		nferr *chat.NotFoundError
	)
	status := fiber.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.As(err, &verr):
		status, message = fiber.StatusBadRequest, verr.Error()
	case errors.As(err, &rerr):
		status, message = fiber.StatusForbidden, rerr.Error()
	case errors.As(err, &nferr):
		status, message = fiber.StatusNotFound, nferr.Error()
	default:
		s.log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}

	return c.Status(status).JSON(fiber.Map{"ok": false, "error": message})
}

// peerParam reads the :peerEmail path parameter, tolerating URL escaping.
func peerParam(c *fiber.Ctx) string {
	raw := c.Params("peerEmail")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}

// handleSendMessage implements POST /chat/messages.
func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	var req struct {
		ToEmail string `json:"toEmail"`
		Text    string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, &chat.ValidationError{Reason: "malformed request body"})
	}

	msg, err := s.svc.SendMessage(c.UserContext(), claims.Email, req.ToEmail, req.Text)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "message": toWireMessage(msg)})
}

// handleConversation implements GET /chat/messages/:peerEmail.
func (s *Server) handleConversation(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	msgs, err := s.svc.GetConversation(c.UserContext(), claims.Email, peerParam(c))
	if err != nil {
		return s.respondError(c, err)
	}

	wire := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wire = append(wire, toWireMessage(m))
	}
	return c.JSON(fiber.Map{"ok": true, "messages": wire})
}

// handleThreads implements GET /chat/threads?view=active|history.
func (s *Server) handleThreads(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	mode, err := chat.ParseThreadMode(c.Query("view"))
	if err != nil {
		return s.respondError(c, err)
	}

	threads, err := s.svc.ListThreads(c.UserContext(), claims.Email, mode)
	if err != nil {
		return s.respondError(c, err)
	}

	wire := make([]wireThread, 0, len(threads))
	for _, t := range threads {
		wire = append(wire, toWireThread(t))
	}
	return c.JSON(fiber.Map{"ok": true, "threads": wire})
}

// handleMarkRead implements POST /chat/read.
func (s *Server) handleMarkRead(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	var req struct {
		PeerEmail string `json:"peerEmail"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, &chat.ValidationError{Reason: "malformed request body"})
	}

	if err := s.svc.MarkRead(c.UserContext(), claims.Email, req.PeerEmail); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// handleCloseThread implements POST /chat/close.
func (s *Server) handleCloseThread(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	var req struct {
		PeerEmail string `json:"peerEmail"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, &chat.ValidationError{Reason: "malformed request body"})
	}

	if err := s.svc.CloseThread(c.UserContext(), claims.Email, req.PeerEmail); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// handleSetTyping implements POST /chat/typing.
func (s *Server) handleSetTyping(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	var req struct {
		ToEmail  string `json:"toEmail"`
		IsTyping bool   `json:"isTyping"`
	}
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, &chat.ValidationError{Reason: "malformed request body"})
	}

	if err := s.svc.SetTyping(c.UserContext(), claims.Email, req.ToEmail, req.IsTyping); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// handleGetTyping implements GET /chat/typing/:peerEmail.
func (s *Server) handleGetTyping(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	status, err := s.svc.GetTyping(c.UserContext(), claims.Email, peerParam(c))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"ok":           true,
		"meTyping":     status.MeTyping,
		"peerTyping":   status.PeerTyping,
		"eitherTyping": status.EitherTyping,
	})
}
