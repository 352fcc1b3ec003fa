package models

import (
	"strings"
	"time"
)

// Grading periods an activity can belong to.
const (
	PeriodPrelim    = "prelim"
	PeriodMidterm   = "midterm"
	PeriodPrefinals = "prefinals"
	PeriodFinals    = "finals"
)

// GradingPeriods lists the periods in term order.
var GradingPeriods = []string{PeriodPrelim, PeriodMidterm, PeriodPrefinals, PeriodFinals}

// ActivityTemplate is an activity assigned to every student of a section.
type ActivityTemplate struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	SectionID   uint      `gorm:"not null;index" json:"section_id"`
	Section     Section   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"section"`
	Period      string    `gorm:"size:16;not null;index" json:"period"`
	MaxPoints   float64   `gorm:"not null" json:"max_points"`
	Tag         string    `gorm:"size:50" json:"tag"`
	Description string    `gorm:"size:1000" json:"description"`
	RubricJSON  string    `gorm:"type:text" json:"rubric_json"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasRubric reports whether a rubric has been attached.
func (t ActivityTemplate) HasRubric() bool {
	return strings.TrimSpace(t.RubricJSON) != ""
}
