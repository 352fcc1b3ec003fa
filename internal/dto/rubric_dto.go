package dto

import "github.com/noah-isme/gema-gradebook/pkg/rubric"

// RubricValidateRequest carries a rubric document to validate.
type RubricValidateRequest struct {
	RubricJSON string `json:"rubric_json"`
	Schema     string `json:"schema" validate:"omitempty,oneof=points score"`
}

// RubricFormatRequest carries a rubric document to pretty-print.
type RubricFormatRequest struct {
	RubricJSON string `json:"rubric_json"`
}

// RubricConvertRequest builds a points rubric from editor rows.
type RubricConvertRequest struct {
	Items []RubricItemInput `json:"items" validate:"required,min=1,dive"`
}

// RubricItemInput is one rubric row entered in the template editor.
type RubricItemInput struct {
	Name     string   `json:"name" validate:"required"`
	Points   int      `json:"points" validate:"required,gt=0,lte=100"`
	Keywords []string `json:"keywords" validate:"required,min=1"`
	Files    []string `json:"files" validate:"required,min=1"`
}

// RubricValidationResponse mirrors rubric.ValidationResult.
type RubricValidationResponse struct {
	IsValid      bool               `json:"isValid"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	TotalPoints  float64            `json:"totalPoints"`
	Schema       string             `json:"schema"`
	Items        []rubric.Criterion `json:"items"`
}

// RubricDocumentResponse wraps a serialized rubric.
type RubricDocumentResponse struct {
	RubricJSON string `json:"rubric_json"`
	Schema     string `json:"schema,omitempty"`
}

// RubricSuggestionsResponse lists editor suggestions.
type RubricSuggestionsResponse struct {
	FilePatterns []string `json:"filePatterns"`
	Keywords     []string `json:"keywords"`
}

// NewRubricValidationResponse converts a validator result.
func NewRubricValidationResponse(result rubric.ValidationResult) RubricValidationResponse {
	items := result.Items
	if items == nil {
		items = []rubric.Criterion{}
	}
	return RubricValidationResponse{
		IsValid:      result.IsValid,
		ErrorMessage: result.ErrorMessage,
		TotalPoints:  result.TotalPoints,
		Schema:       result.Schema.String(),
		Items:        items,
	}
}
