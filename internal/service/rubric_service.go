package service

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

// RubricService exposes rubric editing helpers.
type RubricService interface {
	Validate(req dto.RubricValidateRequest) (dto.RubricValidationResponse, error)
	Sample(schema string) (dto.RubricDocumentResponse, error)
	Suggestions() dto.RubricSuggestionsResponse
	Format(raw string) (dto.RubricDocumentResponse, error)
	ConvertToJSON(req dto.RubricConvertRequest) (dto.RubricDocumentResponse, error)
}

type rubricService struct {
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRubricService constructs the rubric service.
func NewRubricService(validate *validator.Validate, logger zerolog.Logger) RubricService {
	return &rubricService{
		validator: validate,
		logger:    logger.With().Str("component", "rubric_service").Logger(),
	}
}

// Validate reports rubric problems in the result rather than as an error; only
// a malformed request is returned as an error.
func (s *rubricService) Validate(req dto.RubricValidateRequest) (dto.RubricValidationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RubricValidationResponse{}, err
	}

	schema := rubric.SchemaUnknown
	if req.Schema != "" {
		parsed, err := rubric.ParseSchema(req.Schema)
		if err != nil {
			return dto.RubricValidationResponse{}, err
		}
		schema = parsed
	}

	result := rubric.ValidateAs(req.RubricJSON, schema)
	if !result.IsValid {
		s.logger.Debug().Str("reason", result.ErrorMessage).Msg("rubric rejected")
	}
	return dto.NewRubricValidationResponse(result), nil
}

func (s *rubricService) Sample(schema string) (dto.RubricDocumentResponse, error) {
	parsed := rubric.SchemaPoints
	if strings.TrimSpace(schema) != "" {
		var err error
		if parsed, err = rubric.ParseSchema(schema); err != nil {
			return dto.RubricDocumentResponse{}, err
		}
	}

	document, err := rubric.Sample(parsed)
	if err != nil {
		return dto.RubricDocumentResponse{}, err
	}
	return dto.RubricDocumentResponse{RubricJSON: document, Schema: parsed.String()}, nil
}

func (s *rubricService) Suggestions() dto.RubricSuggestionsResponse {
	return dto.RubricSuggestionsResponse{
		FilePatterns: rubric.SuggestedFilePatterns(),
		Keywords:     rubric.SuggestedKeywords(),
	}
}

func (s *rubricService) Format(raw string) (dto.RubricDocumentResponse, error) {
	formatted, err := rubric.Format(raw)
	if err != nil {
		return dto.RubricDocumentResponse{}, &rubric.ValidationError{Message: err.Error()}
	}
	return dto.RubricDocumentResponse{RubricJSON: formatted}, nil
}

func (s *rubricService) ConvertToJSON(req dto.RubricConvertRequest) (dto.RubricDocumentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RubricDocumentResponse{}, err
	}

	criteria := make([]rubric.Criterion, 0, len(req.Items))
	for _, item := range req.Items {
		criteria = append(criteria, rubric.Criterion{
			Title:        strings.TrimSpace(item.Name),
			MaxScore:     float64(item.Points),
			FilePatterns: item.Files,
			Keywords:     item.Keywords,
		})
	}

	document, err := rubric.Marshal(criteria, rubric.SchemaPoints)
	if err != nil {
		return dto.RubricDocumentResponse{}, err
	}

	if _, err := rubric.ParseAs(document, rubric.SchemaPoints); err != nil {
		return dto.RubricDocumentResponse{}, err
	}
	return dto.RubricDocumentResponse{RubricJSON: document, Schema: rubric.SchemaPoints.String()}, nil
}
