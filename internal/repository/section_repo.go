package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-gradebook/internal/models"
)

// SectionRepository provides access to class sections.
type SectionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Section, error)
	List(ctx context.Context, activeOnly bool) ([]models.Section, error)
}

type sectionRepository struct {
	db *gorm.DB
}

// NewSectionRepository constructs a section repository.
func NewSectionRepository(db *gorm.DB) SectionRepository {
	return &sectionRepository{db: db}
}

func (r *sectionRepository) GetByID(ctx context.Context, id uint) (models.Section, error) {
	var section models.Section
	if err := r.db.WithContext(ctx).First(&section, id).Error; err != nil {
		return models.Section{}, err
	}
	return section, nil
}

func (r *sectionRepository) List(ctx context.Context, activeOnly bool) ([]models.Section, error) {
	query := r.db.WithContext(ctx).Model(&models.Section{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var sections []models.Section
	if err := query.Order("school_year DESC, name ASC").Find(&sections).Error; err != nil {
		return nil, err
	}
	return sections, nil
}
