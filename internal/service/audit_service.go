package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/internal/models"
	"github.com/noah-isme/gema-gradebook/internal/repository"
)

// AuditActor is the authenticated user performing an action.
type AuditActor struct {
	ID   uint
	Role string
}

// AuditEntry captures the details required to persist an audit entry.
type AuditEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// AuditRecorder records audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) (dto.AuditLogResponse, error)
}

// AuditService records and lists audit entries.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, filter dto.AuditLogFilter) (dto.AuditLogListResponse, error)
}

type auditService struct {
	repo   repository.AuditLogRepository
	logger zerolog.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(repo repository.AuditLogRepository, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.With().Str("component", "audit_service").Logger(),
	}
}

func (s *auditService) Record(ctx context.Context, entry AuditEntry) (dto.AuditLogResponse, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return dto.AuditLogResponse{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return dto.AuditLogResponse{}, fmt.Errorf("entity type is required")
	}

	model := models.AuditLog{
		ActorID:    entry.ActorID,
		ActorRole:  normalizeRole(entry.ActorRole),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist audit log")
		return dto.AuditLogResponse{}, err
	}

	return dto.NewAuditLogResponse(model), nil
}

func (s *auditService) List(ctx context.Context, filter dto.AuditLogFilter) (dto.AuditLogListResponse, error) {
	entries, total, err := s.repo.List(ctx, repository.AuditLogFilter{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		ActorID:    filter.ActorID,
		Action:     strings.ToLower(strings.TrimSpace(filter.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(filter.EntityType)),
	})
	if err != nil {
		return dto.AuditLogListResponse{}, err
	}

	items := make([]dto.AuditLogResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewAuditLogResponse(entry))
	}
	return dto.AuditLogListResponse{Items: items, Total: total}, nil
}

// record is a best-effort helper for services that audit their own actions.
func record(ctx context.Context, recorder AuditRecorder, logger zerolog.Logger, entry AuditEntry) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record audit entry")
	}
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
