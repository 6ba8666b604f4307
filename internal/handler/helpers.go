package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/formdesk-api/internal/middleware"
	"github.com/noah-isme/formdesk-api/internal/service"
	"github.com/noah-isme/formdesk-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// parseQueryTime accepts RFC 3339 timestamps or plain dates. A plain date given for an
// exclusive upper bound covers that whole day.
func parseQueryTime(c *fiber.Ctx, key string, upperBound bool) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, err
	}
	if upperBound {
		parsed = parsed.AddDate(0, 0, 1)
	}
	return &parsed, nil
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		AccountID: middleware.AccountID(c),
		Username:  middleware.Username(c),
		IsAdmin:   middleware.IsAdmin(c),
	}
}

func requestMeta(c *fiber.Ctx) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

func bearerToken(c *fiber.Ctx) string {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(authorization) > 7 && strings.EqualFold(authorization[:7], "bearer ") {
		return strings.TrimSpace(authorization[7:])
	}
	return ""
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindInvalidInput:
		return fiber.StatusBadRequest
	case service.KindAuthenticationFailure, service.KindAccountDisabled:
		return fiber.StatusUnauthorized
	case service.KindForbidden:
		return fiber.StatusForbidden
	case service.KindNotFound:
		return fiber.StatusNotFound
	case service.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the failure envelope for a service error. Store and internal
// failures are logged with their cause; the cause reaches the client only when the
// request allows it.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, operation string) error {
	kind := service.KindOf(err)
	status := statusForKind(kind)

	message := "Internal server error"
	var svcErr *service.Error
	isServiceErr := errors.As(err, &svcErr)
	if isServiceErr && svcErr.Message != "" {
		message = svcErr.Message
	}

	if status >= fiber.StatusInternalServerError {
		requestLogger(logger, c).Error().Err(err).Str("operation", operation).Str("kind", string(kind)).Msg("request failed")
		if exposed, _ := c.Locals(middleware.LocalExposeErrors).(bool); exposed {
			return utils.Fail(c, status, string(kind), message, fiber.Map{"cause": err.Error()})
		}
		return utils.Fail(c, status, string(kind), message, nil)
	}

	if kind == service.KindInvalidInput && !isServiceErr {
		message = err.Error()
	}
	return utils.Fail(c, status, string(kind), message, nil)
}
