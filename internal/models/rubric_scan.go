package models

import (
	"time"

	"gorm.io/datatypes"
)

// RubricScan keeps the history of repository scans for a submission.
type RubricScan struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	SubmissionID       uint           `gorm:"not null;index" json:"submission_id"`
	StudentID          uint           `gorm:"not null;index:idx_scan_student_template" json:"student_id"`
	ActivityTemplateID uint           `gorm:"not null;index:idx_scan_student_template" json:"activity_template_id"`
	RepositoryURL      string         `gorm:"size:500;not null" json:"repository_url"`
	Policy             string         `gorm:"size:32;not null" json:"policy"`
	KeywordMode        string         `gorm:"size:32;not null" json:"keyword_mode"`
	TotalScore         float64        `gorm:"not null" json:"total_score"`
	MaxPossibleScore   float64        `gorm:"not null" json:"max_possible_score"`
	Percentage         float64        `gorm:"not null" json:"percentage"`
	Result             datatypes.JSON `gorm:"type:json" json:"result"`
	ScannedAt          time.Time      `gorm:"not null" json:"scanned_at"`
	CreatedAt          time.Time      `json:"created_at"`
}
