package api

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// requireBearer rejects requests without a valid Authorization header.
func (s *Server) requireBearer(c *fiber.Ctx) error {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "missing bearer token"})
	}

	if s.config.Token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.config.Token)) != 1 {
		s.logger.Debug("rejected bearer token", "path", c.Path())
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "invalid bearer token"})
	}

	return c.Next()
}
