package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/internal/service"
	"github.com/noah-isme/gema-gradebook/internal/utils"
)

// AuditLogHandler exposes the audit trail of grading actions.
type AuditLogHandler struct {
	service service.AuditService
	logger  zerolog.Logger
}

// NewAuditLogHandler constructs the handler.
func NewAuditLogHandler(service service.AuditService, logger zerolog.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		service: service,
		logger:  logger.With().Str("component", "audit_log_handler").Logger(),
	}
}

// Register attaches audit log routes to the router group.
func (h *AuditLogHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *AuditLogHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	if page <= 0 {
		page = 1
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	if pageSize <= 0 {
		pageSize = 25
	} else if pageSize > 100 {
		pageSize = 100
	}

	actorID, err := parseQueryInt(c, "actor_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid actor id")
	}

	filter := dto.AuditLogFilter{
		Page:       page,
		PageSize:   pageSize,
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}
	if actorID > 0 {
		id := uint(actorID)
		filter.ActorID = &id
	}

	response, err := h.service.List(requestContext(c), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list audit logs")
	}

	return utils.SendSuccess(c, "audit logs", response)
}
