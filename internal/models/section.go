package models

import "time"

// Section groups students enrolled in the same class.
type Section struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:100;not null;uniqueIndex:idx_section_name_year" json:"name"`
	SchoolYear string    `gorm:"size:20;not null;uniqueIndex:idx_section_name_year" json:"school_year"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
