package rubric

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type pointsItem struct {
	Name     string   `json:"name"`
	Points   int      `json:"points"`
	Keywords []string `json:"keywords"`
	Files    []string `json:"files"`
}

type scoreItem struct {
	Title    string   `json:"title"`
	Score    float64  `json:"score"`
	Files    []string `json:"files"`
	Keywords []string `json:"keywords"`
}

var samplePointsRubric = []pointsItem{
	{Name: "Class Definition", Points: 20, Keywords: []string{"public class", "class"}, Files: []string{"*.cs", "*.java", "*.py"}},
	{Name: "Method Implementation", Points: 25, Keywords: []string{"public", "method", "function", "def"}, Files: []string{"*.cs", "*.java", "*.py", "*.js"}},
	{Name: "Error Handling", Points: 20, Keywords: []string{"try", "catch", "exception", "error"}, Files: []string{"*.cs", "*.java", "*.py", "*.js"}},
	{Name: "Documentation", Points: 15, Keywords: []string{"///", "/**", "#", "comment"}, Files: []string{"*.cs", "*.java", "*.py", "*.js", "*.md"}},
	{Name: "Testing", Points: 20, Keywords: []string{"test", "assert", "expect", "should"}, Files: []string{"*Test*.cs", "*test*.java", "test_*.py", "*.test.js"}},
}

var sampleScoreRubric = []scoreItem{
	{Title: "HTML Structure", Score: 25, Files: []string{"index.html", "*.html"}, Keywords: []string{"<!DOCTYPE html>", "<html>", "<head>", "<body>", "<meta charset"}},
	{Title: "CSS Styling", Score: 20, Files: []string{"style.css", "*.css"}, Keywords: []string{"flexbox", "grid", "@media", "responsive"}},
	{Title: "JavaScript Functionality", Score: 30, Files: []string{"script.js", "*.js"}, Keywords: []string{"function", "addEventListener", "querySelector", "async", "fetch"}},
	{Title: "Documentation", Score: 15, Files: []string{"README.md", "readme.txt"}, Keywords: []string{"# ", "## ", "description", "usage", "installation"}},
}

var suggestedFilePatterns = []string{
	"*.cs", "*.java", "*.py", "*.js", "*.ts", "*.cpp", "*.c", "*.h",
	"*.html", "*.css", "*.sql", "*.md", "*.txt", "*.json", "*.xml", "*.yml", "*.yaml",
	"*Test*.cs", "test_*.py", "*.test.js",
	"**/src/**", "**/test/**",
}

var suggestedKeywords = []string{
	"public class", "private class", "interface", "abstract class", "inheritance", "polymorphism",
	"public method", "private method", "static method", "function", "def", "return",
	"if statement", "for loop", "while loop", "switch", "case",
	"try", "catch", "finally", "throw", "exception", "error handling",
	"array", "list", "dictionary", "hash", "queue", "stack",
	"SELECT", "INSERT", "UPDATE", "DELETE", "JOIN", "WHERE",
	"test", "assert", "expect", "should", "unit test", "integration test",
	"comment", "documentation", "///", "/**", "#",
}

// Sample returns an indented example rubric in the given schema.
func Sample(schema Schema) (string, error) {
	switch schema {
	case SchemaPoints, SchemaUnknown:
		return marshalIndent(samplePointsRubric)
	case SchemaScore:
		return marshalIndent(sampleScoreRubric)
	default:
		return "", fmt.Errorf("unknown rubric schema %d", schema)
	}
}

// SuggestedFilePatterns lists commonly used file patterns.
func SuggestedFilePatterns() []string {
	return append([]string(nil), suggestedFilePatterns...)
}

// SuggestedKeywords lists commonly used rubric keywords.
func SuggestedKeywords() []string {
	return append([]string(nil), suggestedKeywords...)
}

// Marshal renders criteria as an indented rubric document in the given schema.
func Marshal(criteria []Criterion, schema Schema) (string, error) {
	switch schema {
	case SchemaPoints:
		items := make([]pointsItem, 0, len(criteria))
		for _, c := range criteria {
			items = append(items, pointsItem{Name: c.Title, Points: int(c.MaxScore), Keywords: nonNil(c.Keywords), Files: nonNil(c.FilePatterns)})
		}
		return marshalIndent(items)
	case SchemaScore:
		items := make([]scoreItem, 0, len(criteria))
		for _, c := range criteria {
			items = append(items, scoreItem{Title: c.Title, Score: c.MaxScore, Files: nonNil(c.FilePatterns), Keywords: nonNil(c.Keywords)})
		}
		return marshalIndent(items)
	default:
		return "", fmt.Errorf("unknown rubric schema %d", schema)
	}
}

// Format re-indents a JSON document. Blank input yields "[]".
func Format(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "[]", nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(strings.TrimSpace(raw)), "", "  "); err != nil {
		return "", fmt.Errorf("invalid JSON format: %w", err)
	}
	return out.String(), nil
}

func marshalIndent(v interface{}) (string, error) {
	var out bytes.Buffer
	encoder := json.NewEncoder(&out)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(out.String(), "\n"), nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
