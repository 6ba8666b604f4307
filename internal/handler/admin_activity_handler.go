package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/service"
	"github.com/noah-isme/formdesk-api/internal/utils"
)

// AdminActivityHandler exposes activity log endpoints.
type AdminActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewAdminActivityHandler constructs the handler.
func NewAdminActivityHandler(service service.ActivityService, logger zerolog.Logger) *AdminActivityHandler {
	return &AdminActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the router group.
func (h *AdminActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *AdminActivityHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	from, err := parseQueryTime(c, "from", false)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid from date")
	}

	until, err := parseQueryTime(c, "to", true)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid to date")
	}

	response, err := h.service.List(c.UserContext(), dto.ActivityListRequest{
		Page:      page,
		PageSize:  pageSize,
		AccountID: c.Query("user_id"),
		Action:    c.Query("action"),
		From:      from,
		Until:     until,
	})
	if err != nil {
		return respondError(c, h.logger, err, "list activity logs")
	}

	return utils.OK(c, response.Items, "activity logs", response.Pagination)
}
