package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/formdesk-api/internal/service"
	"github.com/noah-isme/formdesk-api/internal/utils"
)

// PermissionHandler lists the permission catalog.
type PermissionHandler struct {
	permissions service.PermissionService
	logger      zerolog.Logger
}

// NewPermissionHandler constructs the handler.
func NewPermissionHandler(permissions service.PermissionService, logger zerolog.Logger) *PermissionHandler {
	return &PermissionHandler{
		permissions: permissions,
		logger:      logger.With().Str("component", "permission_handler").Logger(),
	}
}

// Register attaches catalog routes to the router group.
func (h *PermissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *PermissionHandler) list(c *fiber.Ctx) error {
	catalog, err := h.permissions.Catalog(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "list permission catalog")
	}
	return utils.SendSuccess(c, "permissions", catalog)
}
