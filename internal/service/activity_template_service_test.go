package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/internal/models"
	"github.com/noah-isme/gema-gradebook/internal/repository"
	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

const templateRubric = `[{"title":"Structure","score":30,"files":["*.cs"],"keywords":["class"]}]`

type activityTemplateFixture struct {
	svc       ActivityTemplateService
	templates *memoryTemplateRepo
	audit     *memoryAuditRepo
}

func newActivityTemplateFixture(templates ...models.ActivityTemplate) activityTemplateFixture {
	repo := newMemoryTemplateRepo(templates...)
	sections := &memorySectionRepo{sections: map[uint]models.Section{
		1: {ID: 1, Name: "BSIT 3A", SchoolYear: "2025-2026", IsActive: true},
	}}
	auditRepo := &memoryAuditRepo{}
	svc := NewActivityTemplateService(repo, sections, newValidator(), NewAuditService(auditRepo, testLogger()), testLogger())
	return activityTemplateFixture{svc: svc, templates: repo, audit: auditRepo}
}

func validTemplateRequest() dto.ActivityTemplateCreateRequest {
	return dto.ActivityTemplateCreateRequest{
		Name:       " Lab 1 ",
		SectionID:  1,
		Period:     models.PeriodPrelim,
		MaxPoints:  50,
		RubricJSON: templateRubric,
	}
}

func TestActivityTemplateServiceCreate(t *testing.T) {
	fixture := newActivityTemplateFixture()
	actor := AuditActor{ID: 3, Role: "teacher"}

	resp, err := fixture.svc.Create(context.Background(), actor, validTemplateRequest())
	require.NoError(t, err)
	require.Equal(t, "Lab 1", resp.Name)
	require.Equal(t, "BSIT 3A", resp.SectionName)
	require.True(t, resp.HasRubric)
	require.True(t, resp.IsActive)
	require.Contains(t, resp.RubricJSON, "\n    \"title\": \"Structure\"")

	stored, ok := fixture.templates.templates[resp.ID]
	require.True(t, ok)
	require.Equal(t, resp.RubricJSON, stored.RubricJSON)

	require.Len(t, fixture.audit.entries, 1)
	require.Equal(t, "activity_template.created", fixture.audit.entries[0].Action)
	require.Equal(t, uint(3), fixture.audit.entries[0].ActorID)
}

func TestActivityTemplateServiceCreateFailures(t *testing.T) {
	fixture := newActivityTemplateFixture()
	ctx := context.Background()

	req := validTemplateRequest()
	req.RubricJSON = `[{"name":"Docs","points":10,"keywords":["a"],"files":["b"]}]`
	_, err := fixture.svc.Create(ctx, AuditActor{}, req)
	var validationErr *rubric.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Message, "Current total: 10")

	req = validTemplateRequest()
	req.SectionID = 9
	_, err = fixture.svc.Create(ctx, AuditActor{}, req)
	require.ErrorIs(t, err, ErrSectionNotFound)

	req = validTemplateRequest()
	req.Period = "summer"
	_, err = fixture.svc.Create(ctx, AuditActor{}, req)
	require.Error(t, err)

	require.Empty(t, fixture.templates.templates)
	require.Empty(t, fixture.audit.entries)
}

func TestActivityTemplateServiceCreateWithoutRubric(t *testing.T) {
	fixture := newActivityTemplateFixture()

	req := validTemplateRequest()
	req.RubricJSON = "   "
	resp, err := fixture.svc.Create(context.Background(), AuditActor{}, req)
	require.NoError(t, err)
	require.False(t, resp.HasRubric)
	require.Empty(t, resp.RubricJSON)
}

func TestActivityTemplateServiceUpdateRubric(t *testing.T) {
	fixture := newActivityTemplateFixture(models.ActivityTemplate{ID: 4, Name: "Lab 4", SectionID: 1, Period: models.PeriodMidterm, MaxPoints: 20})
	ctx := context.Background()

	resp, err := fixture.svc.UpdateRubric(ctx, AuditActor{ID: 1, Role: "admin"}, 4, dto.ActivityTemplateRubricRequest{RubricJSON: templateRubric})
	require.NoError(t, err)
	require.True(t, resp.HasRubric)
	require.Equal(t, "activity_template.rubric_updated", fixture.audit.entries[0].Action)

	resp, err = fixture.svc.UpdateRubric(ctx, AuditActor{ID: 1, Role: "admin"}, 4, dto.ActivityTemplateRubricRequest{})
	require.NoError(t, err)
	require.False(t, resp.HasRubric)

	_, err = fixture.svc.UpdateRubric(ctx, AuditActor{}, 99, dto.ActivityTemplateRubricRequest{RubricJSON: templateRubric})
	require.ErrorIs(t, err, ErrActivityTemplateNotFound)

	_, err = fixture.svc.UpdateRubric(ctx, AuditActor{}, 4, dto.ActivityTemplateRubricRequest{RubricJSON: "{"})
	require.Error(t, err)
	require.False(t, fixture.templates.templates[4].HasRubric())
}

func TestActivityTemplateServiceGetAndList(t *testing.T) {
	fixture := newActivityTemplateFixture(
		models.ActivityTemplate{ID: 1, Name: "Quiz", SectionID: 1, Period: models.PeriodPrelim, MaxPoints: 10},
		models.ActivityTemplate{ID: 2, Name: "Exam", SectionID: 1, Period: models.PeriodFinals, MaxPoints: 100},
	)
	ctx := context.Background()

	resp, err := fixture.svc.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "Exam", resp.Name)

	_, err = fixture.svc.Get(ctx, 5)
	require.ErrorIs(t, err, ErrActivityTemplateNotFound)

	list, err := fixture.svc.List(ctx, dto.ActivityTemplateFilter{Period: models.PeriodFinals})
	require.NoError(t, err)
	require.Equal(t, int64(1), list.Total)
	require.Equal(t, "Exam", list.Items[0].Name)

	_, err = fixture.svc.List(ctx, dto.ActivityTemplateFilter{PageSize: 500})
	require.Error(t, err)
}

func TestActivityTemplateServiceStatsFillsPeriods(t *testing.T) {
	fixture := newActivityTemplateFixture()
	fixture.templates.counts = repository.ActivityTemplateCounts{
		Total:      5,
		Active:     4,
		WithRubric: 2,
		ByPeriod:   []repository.GroupCount{{Label: models.PeriodMidterm, Count: 5}},
		BySection:  []repository.GroupCount{{Label: "BSIT 3A", Count: 5}},
	}

	stats, err := fixture.svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Inactive)
	require.Equal(t, int64(3), stats.WithoutRubric)
	require.Len(t, stats.ByPeriod, len(models.GradingPeriods))
	require.Equal(t, int64(0), stats.ByPeriod[models.PeriodPrelim])
	require.Equal(t, int64(5), stats.ByPeriod[models.PeriodMidterm])
	require.Equal(t, int64(5), stats.BySection["BSIT 3A"])
}
