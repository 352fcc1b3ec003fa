package rubric

import (
	"path"
	"strings"
)

// Criterion is one gradable rubric item.
type Criterion struct {
	Title        string   `json:"title"`
	MaxScore     float64  `json:"maxScore"`
	FilePatterns []string `json:"filePatterns"`
	Keywords     []string `json:"keywords"`
}

// SubmissionFile is a single text file of the corpus being graded.
type SubmissionFile struct {
	Path    string
	Name    string
	Content string
}

// NewSubmissionFile normalises the relative path and derives the file name.
func NewSubmissionFile(relativePath, content string) SubmissionFile {
	normalized := NormalizePath(relativePath)
	return SubmissionFile{
		Path:    normalized,
		Name:    path.Base(normalized),
		Content: content,
	}
}

// NormalizePath converts separators to forward slashes and strips leading "./" segments.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// KeywordMatch is one occurrence of a keyword on a line of a matched file.
type KeywordMatch struct {
	Keyword    string `json:"keyword"`
	File       string `json:"file"`
	LineNumber int    `json:"lineNumber"`
	Line       string `json:"line"`
	Context    string `json:"context,omitempty"`
}

// CriterionResult carries the score and evidence of a single criterion.
type CriterionResult struct {
	Title           string         `json:"title"`
	MaxScore        float64        `json:"maxScore"`
	EarnedScore     float64        `json:"earnedScore"`
	FoundFiles      []string       `json:"foundFiles"`
	MissingFiles    []string       `json:"missingFiles"`
	FoundKeywords   []string       `json:"foundKeywords"`
	MissingKeywords []string       `json:"missingKeywords"`
	Matches         []KeywordMatch `json:"keywordMatches"`
}

// Met reports whether the criterion earned its full score.
func (r CriterionResult) Met() bool {
	return r.MaxScore > 0 && r.EarnedScore >= r.MaxScore
}

// Evidence returns the first recorded keyword occurrence, if any.
func (r CriterionResult) Evidence() (KeywordMatch, bool) {
	if len(r.Matches) == 0 {
		return KeywordMatch{}, false
	}
	return r.Matches[0], true
}

// RubricResult aggregates all criterion results of one evaluation.
type RubricResult struct {
	Criteria         []CriterionResult `json:"rubricItems"`
	TotalScore       float64           `json:"totalScore"`
	MaxPossibleScore float64           `json:"maxPossibleScore"`
	SkippedFiles     []string          `json:"skippedFiles,omitempty"`
}

// Percentage returns the total score relative to the maximum, or 0 when the maximum is 0.
func (r RubricResult) Percentage() float64 {
	if r.MaxPossibleScore <= 0 {
		return 0
	}
	return r.TotalScore / r.MaxPossibleScore * 100
}
