package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

func TestRubricServiceValidate(t *testing.T) {
	svc := NewRubricService(newValidator(), testLogger())

	valid, err := svc.Validate(dto.RubricValidateRequest{
		RubricJSON: `[{"name":"Docs","points":100,"keywords":["usage"],"files":["README.md"]}]`,
	})
	require.NoError(t, err)
	require.True(t, valid.IsValid)
	require.Equal(t, "points", valid.Schema)
	require.Equal(t, 100.0, valid.TotalPoints)
	require.Len(t, valid.Items, 1)

	invalid, err := svc.Validate(dto.RubricValidateRequest{
		RubricJSON: `[{"name":"Docs","points":40,"keywords":["usage"],"files":["README.md"]}]`,
		Schema:     "points",
	})
	require.NoError(t, err)
	require.False(t, invalid.IsValid)
	require.Contains(t, invalid.ErrorMessage, "Current total: 40")
	require.NotNil(t, invalid.Items)

	empty, err := svc.Validate(dto.RubricValidateRequest{})
	require.NoError(t, err)
	require.Equal(t, "Rubric JSON cannot be empty.", empty.ErrorMessage)

	_, err = svc.Validate(dto.RubricValidateRequest{RubricJSON: "[]", Schema: "weights"})
	require.Error(t, err)
}

func TestRubricServiceSample(t *testing.T) {
	svc := NewRubricService(newValidator(), testLogger())

	points, err := svc.Sample("")
	require.NoError(t, err)
	require.Equal(t, "points", points.Schema)
	require.True(t, rubric.ValidateAs(points.RubricJSON, rubric.SchemaPoints).IsValid)

	score, err := svc.Sample("score")
	require.NoError(t, err)
	require.Equal(t, "score", score.Schema)
	require.Contains(t, score.RubricJSON, `"title": "HTML Structure"`)

	_, err = svc.Sample("unknown")
	require.Error(t, err)

	suggestions := svc.Suggestions()
	require.Contains(t, suggestions.FilePatterns, "*.cs")
	require.Contains(t, suggestions.Keywords, "try")
}

func TestRubricServiceFormat(t *testing.T) {
	svc := NewRubricService(newValidator(), testLogger())

	formatted, err := svc.Format(`[{"title":"A","score":1,"files":[],"keywords":[]}]`)
	require.NoError(t, err)
	require.Contains(t, formatted.RubricJSON, "\n  {\n")

	_, err = svc.Format(`[{"title":`)
	var validationErr *rubric.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestRubricServiceConvertToJSON(t *testing.T) {
	svc := NewRubricService(newValidator(), testLogger())

	doc, err := svc.ConvertToJSON(dto.RubricConvertRequest{Items: []dto.RubricItemInput{
		{Name: " Structure ", Points: 60, Keywords: []string{"class"}, Files: []string{"*.cs"}},
		{Name: "Docs", Points: 40, Keywords: []string{"usage"}, Files: []string{"README.md"}},
	}})
	require.NoError(t, err)
	require.Equal(t, "points", doc.Schema)
	require.Contains(t, doc.RubricJSON, `"name": "Structure"`)

	criteria, err := rubric.ParseAs(doc.RubricJSON, rubric.SchemaPoints)
	require.NoError(t, err)
	require.Len(t, criteria, 2)

	_, err = svc.ConvertToJSON(dto.RubricConvertRequest{Items: []dto.RubricItemInput{
		{Name: "Structure", Points: 60, Keywords: []string{"class"}, Files: []string{"*.cs"}},
	}})
	require.ErrorContains(t, err, "Current total: 60")

	_, err = svc.ConvertToJSON(dto.RubricConvertRequest{})
	require.Error(t, err)
}
