package api

import (
	"crypto/subtle"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// authMiddleware rejects requests lacking a matching bearer token when
// s.config.APIKeys is non-empty, except GET /health and OPTIONS *.
func (s *Server) authMiddleware(c *fiber.Ctx) error {
	if len(s.config.APIKeys) == 0 {
		return c.Next()
	}
	if c.Method() == fiber.MethodOptions || (c.Method() == fiber.MethodGet && c.Path() == "/health") {
		return c.Next()
	}

	header := c.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return unauthorized(c)
	}
	token := header[len(prefix):]

	for _, key := range s.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
			return c.Next()
		}
	}
	return unauthorized(c)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(errorResponse(nil, newError(CodeUnauthorized, "unauthorized")))
}

// rateLimitMiddleware applies the token bucket keyed by Sbp-Agent-Id
// (falling back to the connection's remote IP).
func (s *Server) rateLimitMiddleware(c *fiber.Ctx) error {
	key := c.Get("Sbp-Agent-Id")
	if key == "" {
		key = c.IP()
	}

	allowed, retryAfter := s.limiter.Allow(key)
	if allowed {
		return c.Next()
	}

	retryAfterMS := retryAfter.Milliseconds()
	c.Set("Retry-After", strconv.FormatInt((retryAfterMS+999)/1000, 10))
	return c.Status(fiber.StatusTooManyRequests).JSON(errorResponse(nil, newErrorWithData(
		CodeRateLimited, "rate limit exceeded", map[string]any{"retry_after_ms": retryAfterMS},
	)))
}
