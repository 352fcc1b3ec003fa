package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gema-gradebook/internal/models"
)

// StudentSubmissionUpdateRequest overrides a submission grade manually.
type StudentSubmissionUpdateRequest struct {
	Points     *float64 `json:"points" validate:"omitempty,gte=0"`
	Status     *string  `json:"status" validate:"omitempty,oneof=missing submitted graded late"`
	Notes      *string  `json:"notes" validate:"omitempty,max=4000"`
	GithubLink *string  `json:"github_link" validate:"omitempty,url"`
}

// StudentSubmissionResponse is returned to API clients.
type StudentSubmissionResponse struct {
	ID                 uint            `json:"id"`
	StudentID          uint            `json:"student_id"`
	ActivityTemplateID uint            `json:"activity_template_id"`
	Points             float64         `json:"points"`
	Status             string          `json:"status"`
	GithubLink         string          `json:"github_link"`
	SubmittedAt        *time.Time      `json:"submitted_at"`
	GradedAt           *time.Time      `json:"graded_at"`
	Notes              string          `json:"notes"`
	RubricScore        json.RawMessage `json:"rubric_score,omitempty"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewStudentSubmissionResponse converts a model into a DTO.
func NewStudentSubmissionResponse(model models.StudentSubmission) StudentSubmissionResponse {
	response := StudentSubmissionResponse{
		ID:                 model.ID,
		StudentID:          model.StudentID,
		ActivityTemplateID: model.ActivityTemplateID,
		Points:             model.Points,
		Status:             model.Status,
		GithubLink:         model.GithubLink,
		SubmittedAt:        model.SubmittedAt,
		GradedAt:           model.GradedAt,
		Notes:              model.Notes,
		UpdatedAt:          model.UpdatedAt,
	}
	if len(model.RubricScore) > 0 {
		response.RubricScore = json.RawMessage(model.RubricScore)
	}
	return response
}
