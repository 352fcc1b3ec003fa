package models

import (
	"fmt"
	"strings"
	"time"
)

// Student represents a learner enrolled in a section.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FirstName string    `gorm:"size:100;not null" json:"first_name"`
	LastName  string    `gorm:"size:100;not null" json:"last_name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	SectionID uint      `gorm:"not null;index" json:"section_id"`
	Section   Section   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"section"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName renders "Last, First".
func (s Student) FullName() string {
	return fmt.Sprintf("%s, %s", s.LastName, s.FirstName)
}

// StudentNumber is the local part of the school email.
func (s Student) StudentNumber() string {
	local, _, _ := strings.Cut(s.Email, "@")
	return local
}
