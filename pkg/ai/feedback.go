package ai

import (
	"context"

	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

// FeedbackInput is the graded work a narrative summary is written for.
type FeedbackInput struct {
	ActivityName  string
	RepositoryURL string
	Result        rubric.RubricResult
}

// Feedback is a short instructor-facing narrative of a rubric result.
type Feedback struct {
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Model        string   `json:"model,omitempty"`
}

// FeedbackWriter produces narrative feedback for a scored submission.
type FeedbackWriter interface {
	Write(ctx context.Context, input FeedbackInput) (Feedback, error)
}
