package main

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sitecrew/chat-api/internal/auth"
)

// claimsLocal is the request-local key carrying verified identity claims.
const claimsLocal = "authClaims"

// requireAuth verifies the bearer token and stashes its claims in the
// request locals. Every /chat route runs behind it; the handlers trust the
// identity it produces and never authenticate themselves.
func requireAuth(j *auth.JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		const scheme = "Bearer "
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, scheme) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "missing bearer token",
			})
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, scheme))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "missing bearer token",
			})
		}

		claims, err := j.VerifyToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "invalid token",
			})
		}

		c.Locals(claimsLocal, claims)
		return c.Next()
	}
}

// claimsFrom extracts the verified claims stored by requireAuth.
func claimsFrom(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(claimsLocal).(*auth.Claims)
	return claims, ok
}

// callerKey keys the rate limiter by authenticated email, falling back to
// the client IP for anything that slipped past auth.
func callerKey(c *fiber.Ctx) string {
	if claims, ok := claimsFrom(c); ok {
		return "email:" + claims.Email
	}
	return ""
}
