package dto

import (
	"time"

	"github.com/noah-isme/gema-gradebook/internal/models"
)

// ActivityTemplateCreateRequest creates a new activity template.
type ActivityTemplateCreateRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	SectionID   uint    `json:"section_id" validate:"required,gt=0"`
	Period      string  `json:"period" validate:"required,oneof=prelim midterm prefinals finals"`
	MaxPoints   float64 `json:"max_points" validate:"required,gt=0"`
	Tag         string  `json:"tag" validate:"omitempty,max=50"`
	Description string  `json:"description" validate:"omitempty,max=1000"`
	RubricJSON  string  `json:"rubric_json"`
}

// ActivityTemplateRubricRequest replaces a template's rubric.
type ActivityTemplateRubricRequest struct {
	RubricJSON string `json:"rubric_json"`
}

// ActivityTemplateFilter describes query string filters for listing templates.
type ActivityTemplateFilter struct {
	SectionID  *uint  `query:"section_id"`
	Period     string `query:"period" validate:"omitempty,oneof=prelim midterm prefinals finals"`
	ActiveOnly bool   `query:"active_only"`
	Page       int    `query:"page" validate:"omitempty,gte=1"`
	PageSize   int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// ActivityTemplateResponse is returned to API clients.
type ActivityTemplateResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	SectionID   uint      `json:"section_id"`
	SectionName string    `json:"section_name"`
	Period      string    `json:"period"`
	MaxPoints   float64   `json:"max_points"`
	Tag         string    `json:"tag"`
	Description string    `json:"description"`
	RubricJSON  string    `json:"rubric_json"`
	HasRubric   bool      `json:"has_rubric"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ActivityTemplateListResponse is a page of templates.
type ActivityTemplateListResponse struct {
	Items []ActivityTemplateResponse `json:"items"`
	Total int64                      `json:"total"`
}

// ActivityTemplateStats aggregates template counts.
type ActivityTemplateStats struct {
	Total         int64            `json:"total"`
	Active        int64            `json:"active"`
	Inactive      int64            `json:"inactive"`
	WithRubric    int64            `json:"with_rubric"`
	WithoutRubric int64            `json:"without_rubric"`
	ByPeriod      map[string]int64 `json:"by_period"`
	BySection     map[string]int64 `json:"by_section"`
}

// NewActivityTemplateResponse converts a model into a DTO.
func NewActivityTemplateResponse(model models.ActivityTemplate) ActivityTemplateResponse {
	return ActivityTemplateResponse{
		ID:          model.ID,
		Name:        model.Name,
		SectionID:   model.SectionID,
		SectionName: model.Section.Name,
		Period:      model.Period,
		MaxPoints:   model.MaxPoints,
		Tag:         model.Tag,
		Description: model.Description,
		RubricJSON:  model.RubricJSON,
		HasRubric:   model.HasRubric(),
		IsActive:    model.IsActive,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewActivityTemplateResponses converts a slice of models.
func NewActivityTemplateResponses(items []models.ActivityTemplate) []ActivityTemplateResponse {
	responses := make([]ActivityTemplateResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewActivityTemplateResponse(item))
	}
	return responses
}
