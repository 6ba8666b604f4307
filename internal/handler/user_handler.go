package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/service"
	"github.com/noah-isme/formdesk-api/internal/utils"
)

// UserHandler exposes account administration.
type UserHandler struct {
	accounts service.AccountService
	logger   zerolog.Logger
}

// NewUserHandler constructs the admin account handler.
func NewUserHandler(accounts service.AccountService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		logger:   logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register attaches account routes to the router group.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Put("/:id/password", h.updatePassword)
	router.Get("/:id/permissions", h.permissions)
	router.Put("/:id/permissions", h.setPermissions)
}

func (h *UserHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	if pageSize == 0 {
		// legacy clients send ?limit=
		if pageSize, err = parseQueryInt(c, "limit"); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
		}
	}

	response, err := h.accounts.List(c.UserContext(), dto.AccountListRequest{Page: page, PageSize: pageSize})
	if err != nil {
		return respondError(c, h.logger, err, "list users")
	}
	return utils.OK(c, response.Items, "users", response.Pagination)
}

func (h *UserHandler) get(c *fiber.Ctx) error {
	account, err := h.accounts.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "get user")
	}
	return utils.SendSuccess(c, "user", account)
}

func (h *UserHandler) create(c *fiber.Ctx) error {
	var payload dto.AccountCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	account, err := h.accounts.Create(c.UserContext(), actorFromContext(c), payload, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "create user")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "User created successfully", account)
}

func (h *UserHandler) update(c *fiber.Ctx) error {
	var payload dto.AccountUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	account, err := h.accounts.Update(c.UserContext(), actorFromContext(c), c.Params("id"), payload, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "update user")
	}
	return utils.SendSuccess(c, "User updated successfully", account)
}

func (h *UserHandler) delete(c *fiber.Ctx) error {
	if err := h.accounts.Delete(c.UserContext(), actorFromContext(c), c.Params("id"), requestMeta(c)); err != nil {
		return respondError(c, h.logger, err, "delete user")
	}
	return utils.SendSuccess(c, "User deleted successfully", nil)
}

func (h *UserHandler) updatePassword(c *fiber.Ctx) error {
	var payload dto.PasswordUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.accounts.UpdatePassword(c.UserContext(), actorFromContext(c), c.Params("id"), payload, requestMeta(c)); err != nil {
		return respondError(c, h.logger, err, "update password")
	}
	return utils.SendSuccess(c, "Password updated successfully", nil)
}

func (h *UserHandler) permissions(c *fiber.Ctx) error {
	ids, err := h.accounts.Permissions(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "list user permissions")
	}
	return utils.SendSuccess(c, "permissions", ids)
}

func (h *UserHandler) setPermissions(c *fiber.Ctx) error {
	var payload dto.PermissionsUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ids, err := h.accounts.SetPermissions(c.UserContext(), actorFromContext(c), c.Params("id"), payload, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "set user permissions")
	}
	return utils.SendSuccess(c, "Permissions updated successfully", ids)
}
