package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/internal/service"
	"github.com/noah-isme/gema-gradebook/internal/utils"
)

// StudentSubmissionHandler serves manual grade overrides.
type StudentSubmissionHandler struct {
	service service.StudentSubmissionService
	logger  zerolog.Logger
}

// NewStudentSubmissionHandler constructs the handler.
func NewStudentSubmissionHandler(service service.StudentSubmissionService, logger zerolog.Logger) *StudentSubmissionHandler {
	return &StudentSubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "student_submission_handler").Logger(),
	}
}

// Register attaches submission endpoints to the router group.
func (h *StudentSubmissionHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
}

func (h *StudentSubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load submission")
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *StudentSubmissionHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.StudentSubmissionUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Update(requestContext(c), auditActorFromContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update submission")
	}

	return utils.SendSuccess(c, "submission updated", submission)
}
