package dto

import (
	"time"

	"github.com/noah-isme/gema-gradebook/internal/models"
)

// AuditLogFilter describes query string filters for the audit trail.
type AuditLogFilter struct {
	ActorID    *uint  `query:"actor_id"`
	Action     string `query:"action"`
	EntityType string `query:"entity_type"`
	Page       int    `query:"page" validate:"omitempty,gte=1"`
	PageSize   int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// AuditLogResponse serializes one audit entry.
type AuditLogResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// AuditLogListResponse is a page of audit entries.
type AuditLogListResponse struct {
	Items []AuditLogResponse `json:"items"`
	Total int64              `json:"total"`
}

// NewAuditLogResponse converts a model into a DTO.
func NewAuditLogResponse(model models.AuditLog) AuditLogResponse {
	metadata := map[string]interface{}(model.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return AuditLogResponse{
		ID:         model.ID,
		ActorID:    model.ActorID,
		ActorRole:  model.ActorRole,
		Action:     model.Action,
		EntityType: model.EntityType,
		EntityID:   model.EntityID,
		Metadata:   metadata,
		CreatedAt:  model.CreatedAt,
	}
}
