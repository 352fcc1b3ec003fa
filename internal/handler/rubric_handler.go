package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/internal/service"
	"github.com/noah-isme/gema-gradebook/internal/utils"
)

// RubricHandler exposes rubric editing helpers to the template editor.
type RubricHandler struct {
	service service.RubricService
	logger  zerolog.Logger
}

// NewRubricHandler constructs the handler.
func NewRubricHandler(service service.RubricService, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		service: service,
		logger:  logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Register attaches rubric endpoints to the router group.
func (h *RubricHandler) Register(router fiber.Router) {
	router.Post("/validate", h.validate)
	router.Get("/sample", h.sample)
	router.Get("/suggestions", h.suggestions)
	router.Post("/format", h.format)
	router.Post("/convert", h.convert)
}

func (h *RubricHandler) validate(c *fiber.Ctx) error {
	var payload dto.RubricValidateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Validate(payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to validate rubric")
	}

	message := "rubric is valid"
	if !result.IsValid {
		message = "rubric is invalid"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *RubricHandler) sample(c *fiber.Ctx) error {
	doc, err := h.service.Sample(c.Query("schema"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	return utils.SendSuccess(c, "sample rubric", doc)
}

func (h *RubricHandler) suggestions(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "rubric suggestions", h.service.Suggestions())
}

func (h *RubricHandler) format(c *fiber.Ctx) error {
	var payload dto.RubricFormatRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	doc, err := h.service.Format(payload.RubricJSON)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to format rubric")
	}
	return utils.SendSuccess(c, "rubric formatted", doc)
}

func (h *RubricHandler) convert(c *fiber.Ctx) error {
	var payload dto.RubricConvertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	doc, err := h.service.ConvertToJSON(payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to convert rubric")
	}
	return utils.SendSuccess(c, "rubric converted", doc)
}
