package dto

import (
	"time"

	"github.com/noah-isme/gema-gradebook/pkg/ai"
	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

// RepositoryScanRequest asks for a student's repository to be scanned against
// the activity template rubric.
type RepositoryScanRequest struct {
	StudentID          uint   `json:"student_id" validate:"required,gt=0"`
	ActivityTemplateID uint   `json:"activity_template_id" validate:"required,gt=0"`
	RepositoryURL      string `json:"repository_url" validate:"required,url"`
	WithFeedback       bool   `json:"with_feedback"`
}

// LatestScanQuery identifies the scan to fetch.
type LatestScanQuery struct {
	StudentID          uint `query:"student_id" validate:"required,gt=0"`
	ActivityTemplateID uint `query:"activity_template_id" validate:"required,gt=0"`
}

// EvaluateRequest scores an in-memory corpus.
type EvaluateRequest struct {
	RubricJSON string              `json:"rubric_json" validate:"required"`
	Files      []EvaluateFileInput `json:"files" validate:"required,min=1,dive"`
	// Policy and Mode accept every spelling rubric.ParsePolicy and
	// rubric.ParseKeywordMode recognise.
	Policy     string              `json:"policy"`
	Mode       string              `json:"mode"`
}

// EvaluateFileInput is one file of an inline corpus.
type EvaluateFileInput struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
}

// SimpleScoreResult is one criterion row of the upload scoring result.
type SimpleScoreResult struct {
	FileName  string  `json:"fileName"`
	Criterion string  `json:"criterion"`
	Points    float64 `json:"points"`
	Proof     string  `json:"proof"`
	Met       bool    `json:"met"`
}

// SimpleScoreResponse is the upload scoring result.
type SimpleScoreResponse struct {
	TotalScore float64             `json:"totalScore"`
	Results    []SimpleScoreResult `json:"results"`
	ArchiveURL string              `json:"archiveUrl,omitempty"`
}

// RubricScanResponse is the rich repository scan result.
type RubricScanResponse struct {
	StudentID        uint                     `json:"studentId"`
	ActivityID       uint                     `json:"activityId"`
	RepositoryURL    string                   `json:"repositoryUrl"`
	ScannedDate      time.Time                `json:"scannedDate"`
	TotalScore       float64                  `json:"totalScore"`
	MaxPossibleScore float64                  `json:"maxPossibleScore"`
	Percentage       float64                  `json:"percentage"`
	Policy           string                   `json:"policy"`
	KeywordMode      string                   `json:"keywordMode"`
	RubricItems      []rubric.CriterionResult `json:"rubricItems"`
	SkippedFiles     []string                 `json:"skippedFiles,omitempty"`
	Feedback         *ai.Feedback             `json:"feedback,omitempty"`
}

// EvaluateResponse is the result of scoring an inline corpus.
type EvaluateResponse struct {
	TotalScore       float64                  `json:"totalScore"`
	MaxPossibleScore float64                  `json:"maxPossibleScore"`
	Percentage       float64                  `json:"percentage"`
	Policy           string                   `json:"policy"`
	KeywordMode      string                   `json:"keywordMode"`
	RubricItems      []rubric.CriterionResult `json:"rubricItems"`
	SkippedFiles     []string                 `json:"skippedFiles,omitempty"`
}

// NewSimpleScoreResponse flattens a rubric result into one row per criterion.
func NewSimpleScoreResponse(result rubric.RubricResult) SimpleScoreResponse {
	response := SimpleScoreResponse{
		TotalScore: result.TotalScore,
		Results:    make([]SimpleScoreResult, 0, len(result.Criteria)),
	}

	for _, item := range result.Criteria {
		row := SimpleScoreResult{
			Criterion: item.Title,
			Points:    item.EarnedScore,
			Met:       item.Met(),
		}
		if evidence, ok := item.Evidence(); ok {
			row.FileName = evidence.File
			row.Proof = evidence.Context
			if row.Proof == "" {
				row.Proof = evidence.Line
			}
		} else if len(item.FoundFiles) > 0 {
			row.FileName = item.FoundFiles[0]
		}
		response.Results = append(response.Results, row)
	}

	return response
}

// NewEvaluateResponse converts an evaluator result.
func NewEvaluateResponse(result rubric.RubricResult, policy rubric.Policy, mode rubric.KeywordMode) EvaluateResponse {
	return EvaluateResponse{
		TotalScore:       result.TotalScore,
		MaxPossibleScore: result.MaxPossibleScore,
		Percentage:       result.Percentage(),
		Policy:           policy.String(),
		KeywordMode:      mode.String(),
		RubricItems:      nonNilItems(result.Criteria),
		SkippedFiles:     result.SkippedFiles,
	}
}

func nonNilItems(items []rubric.CriterionResult) []rubric.CriterionResult {
	if items == nil {
		return []rubric.CriterionResult{}
	}
	return items
}
