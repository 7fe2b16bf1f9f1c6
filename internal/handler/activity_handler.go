package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syncboard-api/internal/service"
	"github.com/noah-isme/syncboard-api/internal/utils"
)

// ActivityHandler serves the board activity feed.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler creates an activity handler instance.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register binds activity routes under the provided router group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/latest", h.latest)
}

func (h *ActivityHandler) latest(c *fiber.Ctx) error {
	entries, err := h.service.Latest(c.UserContext())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load activity feed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "latest actions", entries)
}
