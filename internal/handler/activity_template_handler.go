package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/internal/service"
	"github.com/noah-isme/gema-gradebook/internal/utils"
)

// ActivityTemplateHandler serves activity template management endpoints.
type ActivityTemplateHandler struct {
	service service.ActivityTemplateService
	logger  zerolog.Logger
}

// NewActivityTemplateHandler constructs the handler.
func NewActivityTemplateHandler(service service.ActivityTemplateService, logger zerolog.Logger) *ActivityTemplateHandler {
	return &ActivityTemplateHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_template_handler").Logger(),
	}
}

// Register attaches template endpoints to the router group.
func (h *ActivityTemplateHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/stats", h.stats)
	router.Get("/:id", h.get)
	router.Put("/:id/rubric", h.updateRubric)
}

func (h *ActivityTemplateHandler) create(c *fiber.Ctx) error {
	var payload dto.ActivityTemplateCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	template, err := h.service.Create(requestContext(c), auditActorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create activity template")
	}

	return utils.SendCreated(c, "activity template created", template)
}

func (h *ActivityTemplateHandler) list(c *fiber.Ctx) error {
	var filter dto.ActivityTemplateFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.List(requestContext(c), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list activity templates")
	}

	return utils.SendSuccess(c, "activity templates retrieved", result)
}

func (h *ActivityTemplateHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	template, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load activity template")
	}

	return utils.SendSuccess(c, "activity template retrieved", template)
}

func (h *ActivityTemplateHandler) updateRubric(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ActivityTemplateRubricRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	template, err := h.service.UpdateRubric(requestContext(c), auditActorFromContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update rubric")
	}

	return utils.SendSuccess(c, "rubric updated", template)
}

func (h *ActivityTemplateHandler) stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(requestContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load activity template stats")
	}
	return utils.SendSuccess(c, "activity template stats", stats)
}
