package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gradebook/internal/database"
	"github.com/noah-isme/gema-gradebook/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedSection(t *testing.T, db *gorm.DB, name string) models.Section {
	t.Helper()
	section := models.Section{Name: name, SchoolYear: "2026-2027", IsActive: true}
	require.NoError(t, db.Create(&section).Error)
	return section
}

func TestActivityTemplateRepositoryListAndCounts(t *testing.T) {
	db := newTestDB(t)
	repo := NewActivityTemplateRepository(db)
	ctx := context.Background()

	alpha := seedSection(t, db, "BSIT 3A")
	beta := seedSection(t, db, "BSIT 3B")

	templates := []models.ActivityTemplate{
		{Name: "Lab 1", SectionID: alpha.ID, Period: models.PeriodPrelim, MaxPoints: 50, IsActive: true, RubricJSON: `[{"name":"x"}]`},
		{Name: "Lab 2", SectionID: alpha.ID, Period: models.PeriodMidterm, MaxPoints: 50, IsActive: true},
		{Name: "Quiz", SectionID: beta.ID, Period: models.PeriodPrelim, MaxPoints: 20, IsActive: false, RubricJSON: "   "},
	}
	for i := range templates {
		require.NoError(t, repo.Create(ctx, &templates[i]))
	}

	items, total, err := repo.List(ctx, ActivityTemplateFilter{SectionID: &alpha.ID})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	require.Equal(t, "BSIT 3A", items[0].Section.Name)

	items, total, err = repo.List(ctx, ActivityTemplateFilter{Period: models.PeriodPrelim, ActiveOnly: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Lab 1", items[0].Name)

	items, total, err = repo.List(ctx, ActivityTemplateFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, items, 1)

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), counts.Total)
	require.Equal(t, int64(2), counts.Active)
	require.Equal(t, int64(1), counts.WithRubric)
	require.Equal(t, []GroupCount{{Label: "midterm", Count: 1}, {Label: "prelim", Count: 2}}, counts.ByPeriod)
	require.Equal(t, []GroupCount{{Label: "BSIT 3A", Count: 2}, {Label: "BSIT 3B", Count: 1}}, counts.BySection)
}

func TestActivityTemplateRepositoryUpdateRubric(t *testing.T) {
	db := newTestDB(t)
	repo := NewActivityTemplateRepository(db)
	ctx := context.Background()

	section := seedSection(t, db, "BSIT 3A")
	template := models.ActivityTemplate{Name: "Lab 1", SectionID: section.ID, Period: models.PeriodFinals, MaxPoints: 100, IsActive: true}
	require.NoError(t, repo.Create(ctx, &template))

	require.NoError(t, repo.UpdateRubric(ctx, template.ID, `[{"title":"A","score":10,"keywords":["x"]}]`))
	stored, err := repo.GetByID(ctx, template.ID)
	require.NoError(t, err)
	require.True(t, stored.HasRubric())

	require.ErrorIs(t, repo.UpdateRubric(ctx, 9999, "[]"), gorm.ErrRecordNotFound)
	_, err = repo.GetByID(ctx, 9999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStudentSubmissionRepositorySaveWithScan(t *testing.T) {
	db := newTestDB(t)
	repo := NewStudentSubmissionRepository(db)
	ctx := context.Background()

	section := seedSection(t, db, "BSIT 3A")
	student := models.Student{FirstName: "Ana", LastName: "Cruz", Email: "2021-0001@school.edu", SectionID: section.ID}
	require.NoError(t, db.Create(&student).Error)
	template := models.ActivityTemplate{Name: "Lab 1", SectionID: section.ID, Period: models.PeriodPrelim, MaxPoints: 50, IsActive: true}
	require.NoError(t, db.Create(&template).Error)

	_, err := repo.FindByStudentAndTemplate(ctx, student.ID, template.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	now := time.Now().UTC()
	submission := models.StudentSubmission{
		StudentID:          student.ID,
		ActivityTemplateID: template.ID,
		Points:             25,
		Status:             models.SubmissionStatusGraded,
		GradedAt:           &now,
		RubricScore:        datatypes.JSON(`{"totalScore":10}`),
	}
	first := models.RubricScan{RepositoryURL: "https://github.com/ana/lab1", Policy: "partial_credit", KeywordMode: "case_insensitive", TotalScore: 10, MaxPossibleScore: 20, Percentage: 50, ScannedAt: now.Add(-time.Minute)}
	require.NoError(t, repo.SaveWithScan(ctx, &submission, &first))
	require.NotZero(t, submission.ID)
	require.Equal(t, submission.ID, first.SubmissionID)

	submission.Points = 50
	second := models.RubricScan{RepositoryURL: "https://github.com/ana/lab1", Policy: "partial_credit", KeywordMode: "case_insensitive", TotalScore: 20, MaxPossibleScore: 20, Percentage: 100, ScannedAt: now}
	require.NoError(t, repo.SaveWithScan(ctx, &submission, &second))

	stored, err := repo.FindByStudentAndTemplate(ctx, student.ID, template.ID)
	require.NoError(t, err)
	require.Equal(t, submission.ID, stored.ID)
	require.Equal(t, 50.0, stored.Points)
	require.True(t, stored.IsGraded())

	latest, err := repo.LatestScan(ctx, student.ID, template.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	scans, err := repo.ListScans(ctx, student.ID, template.ID, 10)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	require.Equal(t, first.ID, scans[1].ID)

	withTemplate, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, "Lab 1", withTemplate.ActivityTemplate.Name)
}

func TestAuditLogRepositoryFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditLogRepository(db)
	ctx := context.Background()

	actor := uint(7)
	require.NoError(t, repo.Create(ctx, &models.AuditLog{ActorID: actor, ActorRole: "teacher", Action: "scoring.repository_scanned", EntityType: "student_submission"}))
	require.NoError(t, repo.Create(ctx, &models.AuditLog{ActorID: 8, ActorRole: "admin", Action: "submission.updated", EntityType: "student_submission"}))

	entries, total, err := repo.List(ctx, AuditLogFilter{ActorID: &actor})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "scoring.repository_scanned", entries[0].Action)

	_, total, err = repo.List(ctx, AuditLogFilter{EntityType: "student_submission", PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
}

func TestStudentRepositoryGetByIDPreloadsSection(t *testing.T) {
	db := newTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	section := seedSection(t, db, "BSIT 3A")
	ana := models.Student{FirstName: "Ana", LastName: "Cruz", Email: "a@school.edu", SectionID: section.ID}
	require.NoError(t, db.Create(&ana).Error)

	student, err := repo.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	require.Equal(t, "Cruz, Ana", student.FullName())
	require.Equal(t, "BSIT 3A", student.Section.Name)
	require.Equal(t, "a", student.StudentNumber())

	_, err = repo.GetByID(ctx, ana.ID+100)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	sections, err := NewSectionRepository(db).List(ctx, true)
	require.NoError(t, err)
	require.Len(t, sections, 1)
}
