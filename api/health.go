package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stigmergic-labs/sbp/pkg/blackboard"
	"github.com/stigmergic-labs/sbp/pkg/utils"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	stats, err := s.core.Inspect(c.Context(), blackboard.InspectParams{Include: []string{"stats"}})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error"})
	}

	return c.JSON(fiber.Map{
		"status":    "ok",
		"version":   utils.Version,
		"transport": "streamable-http-sse",
		"stats":     stats.Stats,
	})
}
