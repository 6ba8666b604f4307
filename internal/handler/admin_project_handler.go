package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/service"
	"github.com/noah-isme/formdesk-api/internal/utils"
)

// AdminProjectHandler exposes project CRUD to administrators.
type AdminProjectHandler struct {
	projects service.ProjectService
	logger   zerolog.Logger
}

// NewAdminProjectHandler constructs the admin project handler.
func NewAdminProjectHandler(projects service.ProjectService, logger zerolog.Logger) *AdminProjectHandler {
	return &AdminProjectHandler{
		projects: projects,
		logger:   logger.With().Str("component", "admin_project_handler").Logger(),
	}
}

// Register attaches admin project routes to the router group.
func (h *AdminProjectHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *AdminProjectHandler) list(c *fiber.Ctx) error {
	projects, err := h.projects.ListAll(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "list projects")
	}
	return utils.SendSuccess(c, "projects", projects)
}

func (h *AdminProjectHandler) get(c *fiber.Ctx) error {
	project, err := h.projects.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "get project")
	}
	return utils.SendSuccess(c, "project", project)
}

func (h *AdminProjectHandler) create(c *fiber.Ctx) error {
	var payload dto.ProjectCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	project, err := h.projects.Create(c.UserContext(), actorFromContext(c), payload, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "create project")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Project created successfully", project)
}

func (h *AdminProjectHandler) update(c *fiber.Ctx) error {
	var payload dto.ProjectUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	project, err := h.projects.Update(c.UserContext(), actorFromContext(c), c.Params("id"), payload, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "update project")
	}
	return utils.SendSuccess(c, "Project updated successfully", project)
}

func (h *AdminProjectHandler) delete(c *fiber.Ctx) error {
	if err := h.projects.Delete(c.UserContext(), actorFromContext(c), c.Params("id"), requestMeta(c)); err != nil {
		return respondError(c, h.logger, err, "delete project")
	}
	return utils.SendSuccess(c, "Project deleted successfully", nil)
}
