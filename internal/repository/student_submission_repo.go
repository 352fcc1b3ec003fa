package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-gradebook/internal/models"
)

// StudentSubmissionRepository persists per-student grades and scan history.
type StudentSubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.StudentSubmission, error)
	FindByStudentAndTemplate(ctx context.Context, studentID, templateID uint) (models.StudentSubmission, error)
	Save(ctx context.Context, submission *models.StudentSubmission) error
	SaveWithScan(ctx context.Context, submission *models.StudentSubmission, scan *models.RubricScan) error
	LatestScan(ctx context.Context, studentID, templateID uint) (models.RubricScan, error)
	ListScans(ctx context.Context, studentID, templateID uint, limit int) ([]models.RubricScan, error)
}

type studentSubmissionRepository struct {
	db *gorm.DB
}

// NewStudentSubmissionRepository constructs the submission repository.
func NewStudentSubmissionRepository(db *gorm.DB) StudentSubmissionRepository {
	return &studentSubmissionRepository{db: db}
}

func (r *studentSubmissionRepository) GetByID(ctx context.Context, id uint) (models.StudentSubmission, error) {
	var submission models.StudentSubmission
	if err := r.db.WithContext(ctx).Preload("ActivityTemplate").First(&submission, id).Error; err != nil {
		return models.StudentSubmission{}, err
	}
	return submission, nil
}

func (r *studentSubmissionRepository) FindByStudentAndTemplate(ctx context.Context, studentID, templateID uint) (models.StudentSubmission, error) {
	var submission models.StudentSubmission
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND activity_template_id = ?", studentID, templateID).
		First(&submission).Error
	if err != nil {
		return models.StudentSubmission{}, err
	}
	return submission, nil
}

func (r *studentSubmissionRepository) Save(ctx context.Context, submission *models.StudentSubmission) error {
	return r.db.WithContext(ctx).Omit("Student", "ActivityTemplate").Save(submission).Error
}

func (r *studentSubmissionRepository) SaveWithScan(ctx context.Context, submission *models.StudentSubmission, scan *models.RubricScan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Student", "ActivityTemplate").Save(submission).Error; err != nil {
			return err
		}

		scan.SubmissionID = submission.ID
		scan.StudentID = submission.StudentID
		scan.ActivityTemplateID = submission.ActivityTemplateID
		return tx.Create(scan).Error
	})
}

func (r *studentSubmissionRepository) LatestScan(ctx context.Context, studentID, templateID uint) (models.RubricScan, error) {
	var scan models.RubricScan
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND activity_template_id = ?", studentID, templateID).
		Order("scanned_at DESC").
		Order("id DESC").
		First(&scan).Error
	if err != nil {
		return models.RubricScan{}, err
	}
	return scan, nil
}

func (r *studentSubmissionRepository) ListScans(ctx context.Context, studentID, templateID uint, limit int) ([]models.RubricScan, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ? AND activity_template_id = ?", studentID, templateID).
		Order("scanned_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var scans []models.RubricScan
	if err := query.Find(&scans).Error; err != nil {
		return nil, err
	}
	return scans, nil
}
