package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/service"
	"github.com/noah-isme/formdesk-api/internal/utils"
)

// AuthHandler exposes the sign-in flows and the caller's own profile.
type AuthHandler struct {
	auth   service.AuthService
	inputs service.InputService
	logger zerolog.Logger
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(auth service.AuthService, inputs service.InputService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		inputs: inputs,
		logger: logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterPublic attaches the unauthenticated sign-in routes. Guards run before
// each route, typically a rate limiter.
func (h *AuthHandler) RegisterPublic(router fiber.Router, guards ...fiber.Handler) {
	route := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, guards...), handler)
	}
	router.Post("/login", route(h.login)...)
	router.Post("/register", route(h.register)...)
	router.Post("/google", route(h.google)...)
	router.Post("/guest", route(h.guest)...)
}

// RegisterSession attaches routes that require a session.
func (h *AuthHandler) RegisterSession(router fiber.Router) {
	router.Post("/logout", h.logout)
	router.Get("/verify", h.verify)
	router.Get("/profile", h.profile)
	router.Put("/profile", h.updateProfile)
	router.Get("/inputs", h.inputsForAccount)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.auth.Login(c.UserContext(), payload, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "login")
	}
	return utils.SendSuccess(c, "Login successful", response)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.auth.Register(c.UserContext(), payload, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "register")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Registration successful", response)
}

func (h *AuthHandler) google(c *fiber.Ctx) error {
	var payload dto.GoogleLoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.auth.GoogleLogin(c.UserContext(), payload, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "google login")
	}
	return utils.SendSuccess(c, "Google authentication successful", response)
}

func (h *AuthHandler) guest(c *fiber.Ctx) error {
	var payload dto.GuestLoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.auth.GuestLogin(c.UserContext(), payload, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "guest login")
	}
	return utils.SendSuccess(c, "Guest login successful", response)
}

func (h *AuthHandler) logout(c *fiber.Ctx) error {
	h.auth.Logout(c.UserContext(), actorFromContext(c), requestMeta(c))
	return utils.SendSuccess(c, "Logout successful", nil)
}

func (h *AuthHandler) verify(c *fiber.Ctx) error {
	response, err := h.auth.Verify(c.UserContext(), actorFromContext(c), bearerToken(c))
	if err != nil {
		return respondError(c, h.logger, err, "verify session")
	}
	return utils.SendSuccess(c, "Token is valid", response)
}

func (h *AuthHandler) profile(c *fiber.Ctx) error {
	response, err := h.auth.Profile(c.UserContext(), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "load profile")
	}
	return utils.SendSuccess(c, "profile", response)
}

func (h *AuthHandler) updateProfile(c *fiber.Ctx) error {
	var payload dto.ProfileUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.auth.UpdateProfile(c.UserContext(), actorFromContext(c), payload, requestMeta(c))
	if err != nil {
		return respondError(c, h.logger, err, "update profile")
	}
	return utils.SendSuccess(c, "Profile updated successfully", response)
}

func (h *AuthHandler) inputsForAccount(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	response, err := h.inputs.LatestForAccount(c.UserContext(), actorFromContext(c), limit)
	if err != nil {
		return respondError(c, h.logger, err, "list latest inputs")
	}
	return utils.SendSuccess(c, "latest inputs", response)
}
