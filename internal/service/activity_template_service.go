package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/internal/models"
	"github.com/noah-isme/gema-gradebook/internal/repository"
	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

// ActivityTemplateService manages activity templates and their rubrics.
type ActivityTemplateService interface {
	Create(ctx context.Context, actor AuditActor, req dto.ActivityTemplateCreateRequest) (dto.ActivityTemplateResponse, error)
	Get(ctx context.Context, id uint) (dto.ActivityTemplateResponse, error)
	List(ctx context.Context, filter dto.ActivityTemplateFilter) (dto.ActivityTemplateListResponse, error)
	UpdateRubric(ctx context.Context, actor AuditActor, id uint, req dto.ActivityTemplateRubricRequest) (dto.ActivityTemplateResponse, error)
	Stats(ctx context.Context) (dto.ActivityTemplateStats, error)
}

type activityTemplateService struct {
	repo      repository.ActivityTemplateRepository
	sections  repository.SectionRepository
	validator *validator.Validate
	audit     AuditRecorder
	logger    zerolog.Logger
}

// NewActivityTemplateService constructs the activity template service.
func NewActivityTemplateService(repo repository.ActivityTemplateRepository, sections repository.SectionRepository, validate *validator.Validate, audit AuditRecorder, logger zerolog.Logger) ActivityTemplateService {
	return &activityTemplateService{
		repo:      repo,
		sections:  sections,
		validator: validate,
		audit:     audit,
		logger:    logger.With().Str("component", "activity_template_service").Logger(),
	}
}

func (s *activityTemplateService) Create(ctx context.Context, actor AuditActor, req dto.ActivityTemplateCreateRequest) (dto.ActivityTemplateResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-gradebook/internal/service/activity_template")
	ctx, span := tracer.Start(ctx, "activity_template.create")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ActivityTemplateResponse{}, err
	}

	section, err := s.sections.GetByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityTemplateResponse{}, ErrSectionNotFound
		}
		return dto.ActivityTemplateResponse{}, err
	}

	rubricJSON, err := normalizeTemplateRubric(req.RubricJSON)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_rubric")
		return dto.ActivityTemplateResponse{}, err
	}

	model := models.ActivityTemplate{
		Name:        strings.TrimSpace(req.Name),
		SectionID:   section.ID,
		Period:      req.Period,
		MaxPoints:   req.MaxPoints,
		Tag:         strings.TrimSpace(req.Tag),
		Description: strings.TrimSpace(req.Description),
		RubricJSON:  rubricJSON,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, &model); err != nil {
		span.RecordError(err)
		return dto.ActivityTemplateResponse{}, err
	}
	model.Section = section

	span.SetAttributes(attribute.Int64("activity_template.id", int64(model.ID)))
	record(ctx, s.audit, s.logger, AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "activity_template.created",
		EntityType: "activity_template",
		EntityID:   &model.ID,
		Metadata:   map[string]interface{}{"name": model.Name, "section_id": model.SectionID, "has_rubric": model.HasRubric()},
	})

	return dto.NewActivityTemplateResponse(model), nil
}

func (s *activityTemplateService) Get(ctx context.Context, id uint) (dto.ActivityTemplateResponse, error) {
	template, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityTemplateResponse{}, ErrActivityTemplateNotFound
		}
		return dto.ActivityTemplateResponse{}, err
	}
	return dto.NewActivityTemplateResponse(template), nil
}

func (s *activityTemplateService) List(ctx context.Context, filter dto.ActivityTemplateFilter) (dto.ActivityTemplateListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.ActivityTemplateListResponse{}, err
	}

	items, total, err := s.repo.List(ctx, repository.ActivityTemplateFilter{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		SectionID:  filter.SectionID,
		Period:     filter.Period,
		ActiveOnly: filter.ActiveOnly,
	})
	if err != nil {
		return dto.ActivityTemplateListResponse{}, err
	}

	return dto.ActivityTemplateListResponse{Items: dto.NewActivityTemplateResponses(items), Total: total}, nil
}

// UpdateRubric replaces the rubric of a template. A blank document removes it.
func (s *activityTemplateService) UpdateRubric(ctx context.Context, actor AuditActor, id uint, req dto.ActivityTemplateRubricRequest) (dto.ActivityTemplateResponse, error) {
	rubricJSON, err := normalizeTemplateRubric(req.RubricJSON)
	if err != nil {
		return dto.ActivityTemplateResponse{}, err
	}

	if err := s.repo.UpdateRubric(ctx, id, rubricJSON); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityTemplateResponse{}, ErrActivityTemplateNotFound
		}
		return dto.ActivityTemplateResponse{}, err
	}

	template, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ActivityTemplateResponse{}, err
	}

	record(ctx, s.audit, s.logger, AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "activity_template.rubric_updated",
		EntityType: "activity_template",
		EntityID:   &template.ID,
		Metadata:   map[string]interface{}{"has_rubric": template.HasRubric()},
	})

	return dto.NewActivityTemplateResponse(template), nil
}

func (s *activityTemplateService) Stats(ctx context.Context) (dto.ActivityTemplateStats, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return dto.ActivityTemplateStats{}, err
	}

	stats := dto.ActivityTemplateStats{
		Total:         counts.Total,
		Active:        counts.Active,
		Inactive:      counts.Total - counts.Active,
		WithRubric:    counts.WithRubric,
		WithoutRubric: counts.Total - counts.WithRubric,
		ByPeriod:      make(map[string]int64, len(models.GradingPeriods)),
		BySection:     make(map[string]int64, len(counts.BySection)),
	}
	for _, period := range models.GradingPeriods {
		stats.ByPeriod[period] = 0
	}
	for _, row := range counts.ByPeriod {
		stats.ByPeriod[row.Label] = row.Count
	}
	for _, row := range counts.BySection {
		stats.BySection[row.Label] = row.Count
	}
	return stats, nil
}

// normalizeTemplateRubric validates a rubric in either schema and returns it
// re-indented. Blank input is stored as no rubric.
func normalizeTemplateRubric(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	if _, _, err := rubric.Parse(raw); err != nil {
		return "", err
	}
	return rubric.Format(raw)
}
