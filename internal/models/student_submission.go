package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// SubmissionStatusMissing is the default status before anything is turned in.
	SubmissionStatusMissing = "missing"
	// SubmissionStatusSubmitted indicates work was turned in but not graded.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates the submission has points.
	SubmissionStatusGraded = "graded"
	// SubmissionStatusLate indicates work was turned in after the deadline.
	SubmissionStatusLate = "late"
)

// StudentSubmission is a student's grade for one activity template.
type StudentSubmission struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	StudentID          uint             `gorm:"not null;uniqueIndex:idx_submission_student_template" json:"student_id"`
	ActivityTemplateID uint             `gorm:"not null;uniqueIndex:idx_submission_student_template" json:"activity_template_id"`
	Points             float64          `gorm:"not null;default:0" json:"points"`
	Status             string           `gorm:"size:32;not null;default:missing" json:"status"`
	GithubLink         string           `gorm:"size:500" json:"github_link"`
	SubmittedAt        *time.Time       `json:"submitted_at"`
	GradedAt           *time.Time       `json:"graded_at"`
	Notes              string           `gorm:"type:text" json:"notes"`
	RubricScore        datatypes.JSON   `gorm:"type:json" json:"rubric_score,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	Student            Student          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ActivityTemplate   ActivityTemplate `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsGraded reports whether the submission has a final grade.
func (s StudentSubmission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// ValidSubmissionStatus reports whether status is one of the known values.
func ValidSubmissionStatus(status string) bool {
	switch status {
	case SubmissionStatusMissing, SubmissionStatusSubmitted, SubmissionStatusGraded, SubmissionStatusLate:
		return true
	}
	return false
}
