package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gradebook/internal/models"
	"github.com/noah-isme/gema-gradebook/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrFloat(v float64) *float64 {
	return &v
}

func ptrString(v string) *string {
	return &v
}

type memoryAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *memoryAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryAuditRepo) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.AuditLog, 0, len(m.entries))
	for _, entry := range m.entries {
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		result = append(result, entry)
	}
	return result, int64(len(result)), nil
}

type memorySectionRepo struct {
	sections map[uint]models.Section
}

func (m *memorySectionRepo) GetByID(ctx context.Context, id uint) (models.Section, error) {
	section, ok := m.sections[id]
	if !ok {
		return models.Section{}, gorm.ErrRecordNotFound
	}
	return section, nil
}

func (m *memorySectionRepo) List(ctx context.Context, activeOnly bool) ([]models.Section, error) {
	result := make([]models.Section, 0, len(m.sections))
	for _, section := range m.sections {
		result = append(result, section)
	}
	return result, nil
}

type memoryTemplateRepo struct {
	templates map[uint]models.ActivityTemplate
	counts    repository.ActivityTemplateCounts
}

func newMemoryTemplateRepo(templates ...models.ActivityTemplate) *memoryTemplateRepo {
	repo := &memoryTemplateRepo{templates: make(map[uint]models.ActivityTemplate)}
	for _, template := range templates {
		repo.templates[template.ID] = template
	}
	return repo
}

func (m *memoryTemplateRepo) Create(ctx context.Context, template *models.ActivityTemplate) error {
	template.ID = uint(len(m.templates) + 1)
	m.templates[template.ID] = *template
	return nil
}

func (m *memoryTemplateRepo) GetByID(ctx context.Context, id uint) (models.ActivityTemplate, error) {
	template, ok := m.templates[id]
	if !ok {
		return models.ActivityTemplate{}, gorm.ErrRecordNotFound
	}
	return template, nil
}

func (m *memoryTemplateRepo) List(ctx context.Context, filter repository.ActivityTemplateFilter) ([]models.ActivityTemplate, int64, error) {
	result := make([]models.ActivityTemplate, 0, len(m.templates))
	for _, template := range m.templates {
		if filter.Period != "" && template.Period != filter.Period {
			continue
		}
		result = append(result, template)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, int64(len(result)), nil
}

func (m *memoryTemplateRepo) UpdateRubric(ctx context.Context, id uint, rubricJSON string) error {
	template, ok := m.templates[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	template.RubricJSON = rubricJSON
	m.templates[id] = template
	return nil
}

func (m *memoryTemplateRepo) Counts(ctx context.Context) (repository.ActivityTemplateCounts, error) {
	return m.counts, nil
}

type memoryStudentRepo struct {
	students map[uint]models.Student
}

func (m *memoryStudentRepo) GetByID(ctx context.Context, id uint) (models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return models.Student{}, gorm.ErrRecordNotFound
	}
	return student, nil
}

type memorySubmissionRepo struct {
	submissions map[uint]models.StudentSubmission
	scans       []models.RubricScan
	saveCalls   int
}

func newMemorySubmissionRepo(submissions ...models.StudentSubmission) *memorySubmissionRepo {
	repo := &memorySubmissionRepo{submissions: make(map[uint]models.StudentSubmission)}
	for _, submission := range submissions {
		repo.submissions[submission.ID] = submission
	}
	return repo
}

func (m *memorySubmissionRepo) GetByID(ctx context.Context, id uint) (models.StudentSubmission, error) {
	submission, ok := m.submissions[id]
	if !ok {
		return models.StudentSubmission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (m *memorySubmissionRepo) FindByStudentAndTemplate(ctx context.Context, studentID, templateID uint) (models.StudentSubmission, error) {
	for _, submission := range m.submissions {
		if submission.StudentID == studentID && submission.ActivityTemplateID == templateID {
			return submission, nil
		}
	}
	return models.StudentSubmission{}, gorm.ErrRecordNotFound
}

func (m *memorySubmissionRepo) Save(ctx context.Context, submission *models.StudentSubmission) error {
	m.saveCalls++
	if submission.ID == 0 {
		submission.ID = uint(len(m.submissions) + 1)
	}
	m.submissions[submission.ID] = *submission
	return nil
}

func (m *memorySubmissionRepo) SaveWithScan(ctx context.Context, submission *models.StudentSubmission, scan *models.RubricScan) error {
	if err := m.Save(ctx, submission); err != nil {
		return err
	}
	scan.ID = uint(len(m.scans) + 1)
	scan.SubmissionID = submission.ID
	scan.StudentID = submission.StudentID
	scan.ActivityTemplateID = submission.ActivityTemplateID
	m.scans = append(m.scans, *scan)
	return nil
}

func (m *memorySubmissionRepo) LatestScan(ctx context.Context, studentID, templateID uint) (models.RubricScan, error) {
	for i := len(m.scans) - 1; i >= 0; i-- {
		scan := m.scans[i]
		if scan.StudentID == studentID && scan.ActivityTemplateID == templateID {
			return scan, nil
		}
	}
	return models.RubricScan{}, gorm.ErrRecordNotFound
}

func (m *memorySubmissionRepo) ListScans(ctx context.Context, studentID, templateID uint, limit int) ([]models.RubricScan, error) {
	result := make([]models.RubricScan, 0)
	for i := len(m.scans) - 1; i >= 0; i-- {
		scan := m.scans[i]
		if scan.StudentID == studentID && scan.ActivityTemplateID == templateID {
			result = append(result, scan)
		}
	}
	return result, nil
}
