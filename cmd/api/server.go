package main

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/sitecrew/chat-api/internal/auth"
	"github.com/sitecrew/chat-api/internal/chat"
	"github.com/sitecrew/chat-api/internal/middleware"
)

// Server implements the chat HTTP surface over the messaging service.
type Server struct {
	svc *chat.Service
	hub *SignalHub
	log *logrus.Entry
}

// newServer returns a ready-to-use Server.
func newServer(svc *chat.Service, hub *SignalHub, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{svc: svc, hub: hub, log: log}
}

// newApp mounts the chat routes. Everything under /chat requires a
// verified identity; the write endpoints additionally run behind the
// per-caller rate limiter.
func newApp(srv *Server, jwtMgr *auth.JWTManager, limiter *middleware.LimiterStore) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	chatGroup := app.Group("/chat", requireAuth(jwtMgr))
	limited := middleware.RateLimit(limiter, callerKey)

	chatGroup.Post("/messages", limited, srv.handleSendMessage)
	chatGroup.Get("/messages/:peerEmail", srv.handleConversation)
	chatGroup.Get("/threads", srv.handleThreads)
	chatGroup.Post("/read", srv.handleMarkRead)
	chatGroup.Post("/close", srv.handleCloseThread)
	chatGroup.Post("/typing", limited, srv.handleSetTyping)
	chatGroup.Get("/typing/:peerEmail", srv.handleGetTyping)

	chatGroup.Use("/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	chatGroup.Get("/events", websocket.New(srv.handleEvents))

	return app
}

// handleEvents keeps the socket registered in the hub until the client
// disconnects. The server only ever pushes inbox_update nudges; anything
// the client writes is ignored.
func (s *Server) handleEvents(conn *websocket.Conn) {
	claims, ok := conn.Locals(claimsLocal).(*auth.Claims)
	if !ok {
		_ = conn.Close()
		return
	}

	id := s.hub.Register(claims.Email, conn)
	defer s.hub.Unregister(claims.Email, id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
