package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/service"
	"github.com/noah-isme/formdesk-api/internal/utils"
)

// ProjectHandler serves the public project catalog and the per-project form documents.
type ProjectHandler struct {
	projects service.ProjectService
	inputs   service.InputService
	logger   zerolog.Logger
}

// NewProjectHandler constructs the project handler.
func NewProjectHandler(projects service.ProjectService, inputs service.InputService, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		inputs:   inputs,
		logger:   logger.With().Str("component", "project_handler").Logger(),
	}
}

// RegisterPublic attaches the anonymous catalog routes.
func (h *ProjectHandler) RegisterPublic(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

// RegisterSession attaches routes that read or write form documents.
func (h *ProjectHandler) RegisterSession(router fiber.Router) {
	router.Get("/:id/last-input", h.lastInput)
	router.Get("/:id/history", h.history)
	router.Post("/:id/input", h.saveInput)
}

func (h *ProjectHandler) list(c *fiber.Ctx) error {
	projects, err := h.projects.ListEnabled(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "list projects")
	}
	return utils.SendSuccess(c, "projects", projects)
}

func (h *ProjectHandler) get(c *fiber.Ctx) error {
	project, err := h.projects.GetEnabled(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "get project")
	}
	return utils.SendSuccess(c, "project", project)
}

func (h *ProjectHandler) lastInput(c *fiber.Ctx) error {
	response, err := h.inputs.LastInput(c.UserContext(), actorFromContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "load last input")
	}
	return utils.SendSuccess(c, "last input", response)
}

func (h *ProjectHandler) history(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	response, err := h.inputs.History(c.UserContext(), actorFromContext(c), c.Params("id"), limit)
	if err != nil {
		return respondError(c, h.logger, err, "load input history")
	}
	return utils.SendSuccess(c, "input history", response)
}

func (h *ProjectHandler) saveInput(c *fiber.Ctx) error {
	var payload dto.SaveInputRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.inputs.Save(c.UserContext(), actorFromContext(c), c.Params("id"), payload.Data, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "save input")
	}
	return utils.SendSuccess(c, "Input saved successfully", response)
}
