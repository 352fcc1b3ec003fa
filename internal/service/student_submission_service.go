package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/internal/models"
	"github.com/noah-isme/gema-gradebook/internal/repository"
)

// StudentSubmissionService handles manual grade overrides.
type StudentSubmissionService interface {
	Get(ctx context.Context, id uint) (dto.StudentSubmissionResponse, error)
	Update(ctx context.Context, actor AuditActor, id uint, req dto.StudentSubmissionUpdateRequest) (dto.StudentSubmissionResponse, error)
}

type studentSubmissionService struct {
	repo      repository.StudentSubmissionRepository
	validator *validator.Validate
	audit     AuditRecorder
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStudentSubmissionService constructs the submission service.
func NewStudentSubmissionService(repo repository.StudentSubmissionRepository, validate *validator.Validate, audit AuditRecorder, logger zerolog.Logger) StudentSubmissionService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &studentSubmissionService{
		repo:      repo,
		validator: validate,
		audit:     audit,
		sanitizer: sanitizer,
		logger:    logger.With().Str("component", "student_submission_service").Logger(),
		now:       time.Now,
	}
}

func (s *studentSubmissionService) Get(ctx context.Context, id uint) (dto.StudentSubmissionResponse, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentSubmissionResponse{}, ErrStudentSubmissionNotFound
		}
		return dto.StudentSubmissionResponse{}, err
	}
	return dto.NewStudentSubmissionResponse(submission), nil
}

func (s *studentSubmissionService) Update(ctx context.Context, actor AuditActor, id uint, req dto.StudentSubmissionUpdateRequest) (dto.StudentSubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-gradebook/internal/service/student_submission")
	ctx, span := tracer.Start(ctx, "submission.update")
	span.SetAttributes(
		attribute.Int64("submission.id", int64(id)),
		attribute.Int64("submission.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.StudentSubmissionResponse{}, err
	}

	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.StudentSubmissionResponse{}, ErrStudentSubmissionNotFound
		}
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.StudentSubmissionResponse{}, err
	}

	changes := map[string]interface{}{}
	now := s.now().UTC()

	if req.Points != nil {
		if *req.Points > submission.ActivityTemplate.MaxPoints+1e-9 {
			span.SetStatus(codes.Error, "points_exceed_max")
			return dto.StudentSubmissionResponse{}, ErrPointsExceedMax
		}
		submission.Points = *req.Points
		changes["points"] = *req.Points
		if req.Status == nil {
			submission.Status = models.SubmissionStatusGraded
		}
	}
	if req.Status != nil {
		submission.Status = *req.Status
		changes["status"] = *req.Status
	}
	if req.Notes != nil {
		submission.Notes = strings.TrimSpace(s.sanitizer.Sanitize(*req.Notes))
		changes["notes_updated"] = true
	}
	if req.GithubLink != nil {
		submission.GithubLink = strings.TrimSpace(*req.GithubLink)
		changes["github_link"] = submission.GithubLink
	}

	switch submission.Status {
	case models.SubmissionStatusGraded:
		if req.Points != nil || submission.GradedAt == nil {
			submission.GradedAt = &now
		}
	case models.SubmissionStatusSubmitted, models.SubmissionStatusLate:
		if submission.SubmittedAt == nil {
			submission.SubmittedAt = &now
		}
	}

	if err := s.repo.Save(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return dto.StudentSubmissionResponse{}, err
	}

	changes["student_id"] = submission.StudentID
	changes["activity_template_id"] = submission.ActivityTemplateID
	record(ctx, s.audit, s.logger, AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "submission.updated",
		EntityType: "student_submission",
		EntityID:   &submission.ID,
		Metadata:   changes,
	})

	span.SetAttributes(attribute.String("submission.status", submission.Status))
	return dto.NewStudentSubmissionResponse(submission), nil
}
