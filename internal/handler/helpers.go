package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/internal/middleware"
	"github.com/noah-isme/gema-gradebook/internal/service"
	"github.com/noah-isme/gema-gradebook/internal/utils"
	"github.com/noah-isme/gema-gradebook/pkg/corpus"
	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func auditActorFromContext(c *fiber.Ctx) service.AuditActor {
	return service.AuditActor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
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

// requestContext carries the fiber user context, which holds the request
// span, into the service layer.
func requestContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// errorStatus maps service and scoring errors onto HTTP status codes. The
// message is safe to return to clients; unknown errors collapse to fallback.
func errorStatus(err error, fallback string) (int, string) {
	var rubricErr *rubric.ValidationError
	switch {
	case errors.As(err, &rubricErr):
		return fiber.StatusBadRequest, rubricErr.Message
	case isValidationError(err):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, corpus.ErrInvalidRepositoryURL):
		return fiber.StatusBadRequest, "Invalid GitHub repository URL."
	case errors.Is(err, service.ErrPointsExceedMax):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrActivityTemplateNotFound),
		errors.Is(err, service.ErrSectionNotFound),
		errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrStudentSubmissionNotFound),
		errors.Is(err, service.ErrScanNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, rubric.ErrCorpusUnavailable),
		errors.Is(err, corpus.ErrCloneFailed),
		errors.Is(err, service.ErrTemplateHasNoRubric),
		errors.Is(err, service.ErrStudentNotInSection):
		return fiber.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrFeatureUnavailable):
		return fiber.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "request timed out"
	default:
		return fiber.StatusInternalServerError, fallback
	}
}

// sendServiceError writes the mapped error and logs server-side failures.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	status, message := errorStatus(err, fallback)
	if status >= fiber.StatusInternalServerError {
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg(fallback)
	}
	return utils.SendError(c, status, message)
}
