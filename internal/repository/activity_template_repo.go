package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-gradebook/internal/models"
)

// ActivityTemplateFilter narrows template listings.
type ActivityTemplateFilter struct {
	Page       int
	PageSize   int
	SectionID  *uint
	Period     string
	ActiveOnly bool
}

// GroupCount is a labelled row count.
type GroupCount struct {
	Label string
	Count int64
}

// ActivityTemplateCounts aggregates template totals.
type ActivityTemplateCounts struct {
	Total      int64
	Active     int64
	WithRubric int64
	ByPeriod   []GroupCount
	BySection  []GroupCount
}

// ActivityTemplateRepository persists activity templates.
type ActivityTemplateRepository interface {
	Create(ctx context.Context, template *models.ActivityTemplate) error
	GetByID(ctx context.Context, id uint) (models.ActivityTemplate, error)
	List(ctx context.Context, filter ActivityTemplateFilter) ([]models.ActivityTemplate, int64, error)
	UpdateRubric(ctx context.Context, id uint, rubricJSON string) error
	Counts(ctx context.Context) (ActivityTemplateCounts, error)
}

type activityTemplateRepository struct {
	db *gorm.DB
}

// NewActivityTemplateRepository constructs the template repository.
func NewActivityTemplateRepository(db *gorm.DB) ActivityTemplateRepository {
	return &activityTemplateRepository{db: db}
}

func (r *activityTemplateRepository) Create(ctx context.Context, template *models.ActivityTemplate) error {
	return r.db.WithContext(ctx).Omit("Section").Create(template).Error
}

func (r *activityTemplateRepository) GetByID(ctx context.Context, id uint) (models.ActivityTemplate, error) {
	var template models.ActivityTemplate
	if err := r.db.WithContext(ctx).Preload("Section").First(&template, id).Error; err != nil {
		return models.ActivityTemplate{}, err
	}
	return template, nil
}

func (r *activityTemplateRepository) List(ctx context.Context, filter ActivityTemplateFilter) ([]models.ActivityTemplate, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ActivityTemplate{})

	if filter.SectionID != nil {
		query = query.Where("section_id = ?", *filter.SectionID)
	}
	if filter.Period != "" {
		query = query.Where("period = ?", filter.Period)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var templates []models.ActivityTemplate
	if err := query.Preload("Section").Order("created_at DESC").Order("id DESC").Find(&templates).Error; err != nil {
		return nil, 0, err
	}

	return templates, total, nil
}

func (r *activityTemplateRepository) UpdateRubric(ctx context.Context, id uint, rubricJSON string) error {
	update := r.db.WithContext(ctx).Model(&models.ActivityTemplate{}).
		Where("id = ?", id).
		Update("rubric_json", rubricJSON)
	if update.Error != nil {
		return update.Error
	}
	if update.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *activityTemplateRepository) Counts(ctx context.Context) (ActivityTemplateCounts, error) {
	var counts ActivityTemplateCounts
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.ActivityTemplate{}).Count(&counts.Total).Error; err != nil {
		return ActivityTemplateCounts{}, err
	}
	if err := db.Model(&models.ActivityTemplate{}).Where("is_active = ?", true).Count(&counts.Active).Error; err != nil {
		return ActivityTemplateCounts{}, err
	}
	if err := db.Model(&models.ActivityTemplate{}).
		Where("rubric_json IS NOT NULL AND TRIM(rubric_json) <> ''").
		Count(&counts.WithRubric).Error; err != nil {
		return ActivityTemplateCounts{}, err
	}

	if err := db.Model(&models.ActivityTemplate{}).
		Select("period AS label, COUNT(*) AS count").
		Group("period").
		Order("period").
		Scan(&counts.ByPeriod).Error; err != nil {
		return ActivityTemplateCounts{}, err
	}

	if err := db.Model(&models.ActivityTemplate{}).
		Select("sections.name AS label, COUNT(activity_templates.id) AS count").
		Joins("JOIN sections ON sections.id = activity_templates.section_id").
		Group("sections.name").
		Order("sections.name").
		Scan(&counts.BySection).Error; err != nil {
		return ActivityTemplateCounts{}, err
	}

	return counts, nil
}
