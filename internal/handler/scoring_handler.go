package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/internal/service"
	"github.com/noah-isme/gema-gradebook/internal/utils"
	"github.com/noah-isme/gema-gradebook/pkg/corpus"
)

// ScoringHandler exposes the upload, repository and inline scoring surfaces.
type ScoringHandler struct {
	service service.ScoringService
	logger  zerolog.Logger
}

// NewScoringHandler constructs the handler.
func NewScoringHandler(service service.ScoringService, logger zerolog.Logger) *ScoringHandler {
	return &ScoringHandler{
		service: service,
		logger:  logger.With().Str("component", "scoring_handler").Logger(),
	}
}

// Register attaches scoring endpoints to the router group.
func (h *ScoringHandler) Register(router fiber.Router) {
	router.Post("/uploads", h.scoreUpload)
	router.Post("/repositories", h.scanRepository)
	router.Get("/repositories/latest", h.latest)
	router.Post("/evaluate", h.evaluate)
}

// scoreUpload accepts files[] with an optional parallel file_paths[] list
// carrying each file's path relative to the submission root.
func (h *ScoringHandler) scoreUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form is required")
	}

	headers := form.File["files[]"]
	if len(headers) == 0 {
		headers = form.File["files"]
	}
	if len(headers) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "Please upload at least one file.")
	}

	paths := form.Value["file_paths[]"]
	if len(paths) == 0 {
		paths = form.Value["file_paths"]
	}

	uploads := make([]corpus.Upload, 0, len(headers))
	for i, header := range headers {
		relative := ""
		if i < len(paths) {
			relative = paths[i]
		}
		uploads = append(uploads, corpus.FromFileHeader(header, relative))
	}

	archive, _ := strconv.ParseBool(strings.TrimSpace(c.FormValue("archive")))
	result, err := h.service.ScoreUpload(requestContext(c), service.UploadScoreRequest{
		RubricJSON: c.FormValue("rubric_json"),
		Uploads:    uploads,
		Archive:    archive,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to score upload")
	}

	return utils.SendSuccess(c, "upload scored", result)
}

func (h *ScoringHandler) scanRepository(c *fiber.Ctx) error {
	var payload dto.RepositoryScanRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.ScanRepository(requestContext(c), auditActorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to scan repository")
	}

	return utils.SendCreated(c, "repository scanned", result)
}

func (h *ScoringHandler) latest(c *fiber.Ctx) error {
	var query dto.LatestScanQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.Latest(requestContext(c), query)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load repository scan")
	}

	return utils.SendSuccess(c, "repository scan retrieved", result)
}

func (h *ScoringHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Evaluate(requestContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to evaluate rubric")
	}

	return utils.SendSuccess(c, "rubric evaluated", result)
}
