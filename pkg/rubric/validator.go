package rubric

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Schema identifies one of the two accepted rubric JSON layouts.
type Schema int

const (
	// SchemaUnknown is returned when no layout could be detected.
	SchemaUnknown Schema = iota
	// SchemaPoints uses name/points/keywords/files with integer points summing to 100.
	SchemaPoints
	// SchemaScore uses title/score/keywords/files with non-negative decimal scores.
	SchemaScore
)

// RequiredPointsTotal is the points total a SchemaPoints rubric must reach.
const RequiredPointsTotal = 100

// ParseSchema maps "points" or "score" onto a Schema. An empty value yields SchemaUnknown.
func ParseSchema(value string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return SchemaUnknown, nil
	case "points":
		return SchemaPoints, nil
	case "score":
		return SchemaScore, nil
	default:
		return SchemaUnknown, fmt.Errorf("unknown rubric schema %q", value)
	}
}

func (s Schema) String() string {
	switch s {
	case SchemaPoints:
		return "points"
	case SchemaScore:
		return "score"
	default:
		return "unknown"
	}
}

// ValidationResult reports the outcome of validating a rubric document.
type ValidationResult struct {
	IsValid      bool
	ErrorMessage string
	TotalPoints  float64
	Schema       Schema
	Items        []Criterion
}

const itemStructureMessage = "Invalid rubric item structure. Each item must have 'name', 'points', 'keywords' array, and 'files' array."

type rawItem struct {
	Name     json.RawMessage `json:"name"`
	Title    json.RawMessage `json:"title"`
	Points   json.RawMessage `json:"points"`
	Score    json.RawMessage `json:"score"`
	Keywords json.RawMessage `json:"keywords"`
	Files    json.RawMessage `json:"files"`
}

// Validate checks a rubric document, detecting its schema from the first item.
func Validate(raw string) ValidationResult {
	return ValidateAs(raw, SchemaUnknown)
}

// ValidateAs checks a rubric document against the given schema. SchemaUnknown
// detects the schema from the first item; every item must then use that same
// schema.
func ValidateAs(raw string, schema Schema) ValidationResult {
	items, detected, total, err := parse(raw, schema)
	if err != nil {
		return ValidationResult{
			ErrorMessage: err.Message,
			TotalPoints:  total,
			Schema:       detected,
		}
	}

	return ValidationResult{
		IsValid:     true,
		TotalPoints: total,
		Schema:      detected,
		Items:       items,
	}
}

// Parse validates a rubric document and returns its criteria in canonical form.
// Failures are returned as *ValidationError.
func Parse(raw string) ([]Criterion, Schema, error) {
	items, schema, _, err := parse(raw, SchemaUnknown)
	if err != nil {
		return nil, schema, err
	}
	return items, schema, nil
}

// ParseAs is Parse restricted to one schema.
func ParseAs(raw string, schema Schema) ([]Criterion, error) {
	items, _, _, err := parse(raw, schema)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func parse(raw string, schema Schema) ([]Criterion, Schema, float64, *ValidationError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, schema, 0, validationErrorf("Rubric JSON cannot be empty.")
	}

	if !json.Valid([]byte(trimmed)) {
		var probe interface{}
		err := json.Unmarshal([]byte(trimmed), &probe)
		return nil, schema, 0, validationErrorf("Invalid JSON format: %s", syntaxMessage(err))
	}

	if trimmed[0] != '[' {
		return nil, schema, 0, validationErrorf("Rubric JSON must be an array of rubric items.")
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &elements); err != nil {
		return nil, schema, 0, validationErrorf("Invalid JSON format: %s", syntaxMessage(err))
	}

	if len(elements) == 0 {
		if schema == SchemaPoints {
			return nil, schema, 0, validationErrorf("Total rubric points must equal %d. Current total: 0", RequiredPointsTotal)
		}
		return nil, schema, 0, validationErrorf("Rubric must contain at least one item.")
	}

	items := make([]rawItem, len(elements))
	for i, element := range elements {
		element = bytes.TrimSpace(element)
		if len(element) == 0 || element[0] != '{' {
			return nil, schema, 0, itemError(schema, i, "must be an object")
		}
		if err := json.Unmarshal(element, &items[i]); err != nil {
			return nil, schema, 0, itemError(schema, i, err.Error())
		}
	}

	if schema == SchemaUnknown {
		schema = detectSchema(items[0])
		if schema == SchemaUnknown {
			return nil, schema, 0, validationErrorf("Invalid rubric item structure. Each item must have either 'name' and 'points' or 'title' and 'score', plus 'keywords' and 'files' arrays.")
		}
	}

	criteria := make([]Criterion, 0, len(items))
	var total float64
	for i, item := range items {
		criterion, err := convertItem(item, schema, i)
		if err != nil {
			return nil, schema, 0, err
		}
		criteria = append(criteria, criterion)
		total += criterion.MaxScore
	}

	if schema == SchemaPoints && total != RequiredPointsTotal {
		return nil, schema, total, validationErrorf("Total rubric points must equal %d. Current total: %s", RequiredPointsTotal, formatScore(total))
	}

	for _, criterion := range criteria {
		for _, pattern := range criterion.FilePatterns {
			if _, err := CompilePattern(pattern); err != nil {
				return nil, schema, total, validationErrorf("Invalid file pattern '%s': %s", pattern, strings.TrimPrefix(err.Error(), ErrInvalidPattern.Error()+": "))
			}
		}
	}

	return criteria, schema, total, nil
}

func detectSchema(item rawItem) Schema {
	switch {
	case present(item.Name) || present(item.Points):
		return SchemaPoints
	case present(item.Title) || present(item.Score):
		return SchemaScore
	default:
		return SchemaUnknown
	}
}

func convertItem(item rawItem, schema Schema, index int) (Criterion, *ValidationError) {
	var (
		titleRaw json.RawMessage
		scoreRaw json.RawMessage
		other    bool
	)
	if schema == SchemaPoints {
		titleRaw, scoreRaw = item.Name, item.Points
		other = present(item.Title) || present(item.Score)
	} else {
		titleRaw, scoreRaw = item.Title, item.Score
		other = present(item.Name) || present(item.Points)
	}

	if other && !present(titleRaw) && !present(scoreRaw) {
		return Criterion{}, validationErrorf("Rubric item %d mixes rubric schemas; expected the %s schema.", index+1, schema)
	}
	if !present(titleRaw) || !present(scoreRaw) || !present(item.Keywords) || !present(item.Files) {
		return Criterion{}, itemError(schema, index, "is missing a required field")
	}

	var title string
	if err := json.Unmarshal(titleRaw, &title); err != nil || strings.TrimSpace(title) == "" {
		return Criterion{}, itemError(schema, index, "must have a non-empty title")
	}

	score, err := parseScore(scoreRaw, schema)
	if err != nil {
		return Criterion{}, itemError(schema, index, err.Error())
	}

	keywords, err := stringArray(item.Keywords)
	if err != nil {
		return Criterion{}, itemError(schema, index, "keywords "+err.Error())
	}
	files, err := stringArray(item.Files)
	if err != nil {
		return Criterion{}, itemError(schema, index, "files "+err.Error())
	}

	keywords = compactStrings(keywords)
	if len(keywords) == 0 {
		return Criterion{}, itemError(schema, index, "must have at least one keyword")
	}
	files = compactStrings(files)
	if len(files) == 0 {
		return Criterion{}, validationErrorf("File patterns cannot be empty.")
	}

	return Criterion{
		Title:        strings.TrimSpace(title),
		MaxScore:     score,
		FilePatterns: files,
		Keywords:     keywords,
	}, nil
}

func parseScore(raw json.RawMessage, schema Schema) (float64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text[0] == '"' || text == "null" {
		return 0, errors.New("score must be a number")
	}

	if schema == SchemaPoints {
		points, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, errors.New("points must be an integer")
		}
		if points <= 0 || points > RequiredPointsTotal {
			return 0, fmt.Errorf("points must be between 1 and %d", RequiredPointsTotal)
		}
		return float64(points), nil
	}

	score, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, errors.New("score must be a number")
	}
	if score <= 0 {
		return 0, errors.New("score must be greater than 0")
	}
	return score, nil
}

func stringArray(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("must be an array")
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, errors.New("must be an array")
	}

	values := make([]string, 0, len(elements))
	for _, element := range elements {
		if !present(element) {
			continue
		}
		var value string
		if err := json.Unmarshal(element, &value); err != nil {
			return nil, errors.New("must contain only strings")
		}
		values = append(values, value)
	}
	return values, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func itemError(schema Schema, index int, detail string) *ValidationError {
	if schema == SchemaScore {
		return validationErrorf("Invalid rubric item structure. Item %d %s. Each item must have 'title', 'score', 'keywords' array, and 'files' array.", index+1, detail)
	}
	if schema == SchemaUnknown {
		return validationErrorf("Invalid rubric item structure. Item %d %s.", index+1, detail)
	}
	return validationErrorf("%s Item %d %s.", itemStructureMessage, index+1, detail)
}

func syntaxMessage(err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("%s at offset %d", syntaxErr.Error(), syntaxErr.Offset)
	}
	if err == nil {
		return "malformed document"
	}
	return err.Error()
}

func formatScore(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
