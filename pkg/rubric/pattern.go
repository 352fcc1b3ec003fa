package rubric

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultPatternCacheSize = 512

// Pattern is a compiled file pattern. Wildcard patterns use "*" for any run of
// characters and "?" for exactly one character and must match the whole relative
// path. Plain patterns match a file name exactly or a path suffix, ignoring case.
type Pattern struct {
	raw      string
	value    string
	wildcard bool
	re       *regexp.Regexp
}

// CompilePattern validates and compiles a single file pattern.
func CompilePattern(raw string) (Pattern, error) {
	value := NormalizePath(raw)
	if value == "" {
		return Pattern{}, fmt.Errorf("%w: pattern is empty", ErrInvalidPattern)
	}

	for _, r := range value {
		if unicode.IsControl(r) {
			return Pattern{}, fmt.Errorf("%w: pattern contains control characters", ErrInvalidPattern)
		}
	}

	if strings.HasPrefix(value, "/") || hasDriveLetter(value) {
		return Pattern{}, fmt.Errorf("%w: absolute paths are not allowed", ErrInvalidPattern)
	}

	for _, segment := range strings.Split(value, "/") {
		if segment == ".." {
			return Pattern{}, fmt.Errorf("%w: parent directory segments are not allowed", ErrInvalidPattern)
		}
	}

	pattern := Pattern{raw: raw, value: value}
	if !strings.ContainsAny(value, "*?") {
		return pattern, nil
	}

	re, err := regexp.Compile(wildcardExpression(value))
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	pattern.wildcard = true
	pattern.re = re

	return pattern, nil
}

func wildcardExpression(value string) string {
	var builder strings.Builder
	builder.WriteString("(?i)^")
	for _, r := range value {
		switch r {
		case '*':
			builder.WriteString(".*")
		case '?':
			builder.WriteString(".")
		default:
			builder.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	builder.WriteString("$")
	return builder.String()
}

func hasDriveLetter(value string) bool {
	if len(value) < 2 || value[1] != ':' {
		return false
	}
	c := value[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// String returns the normalised pattern text.
func (p Pattern) String() string {
	return p.value
}

// IsWildcard reports whether the pattern contains "*" or "?".
func (p Pattern) IsWildcard() bool {
	return p.wildcard
}

// Match reports whether the file satisfies the pattern.
func (p Pattern) Match(file SubmissionFile) bool {
	if p.wildcard {
		return p.re.MatchString(file.Path)
	}
	if strings.EqualFold(file.Name, p.value) {
		return true
	}
	return hasSuffixFold(file.Path, p.value)
}

func hasSuffixFold(s, suffix string) bool {
	if len(suffix) > len(s) {
		return false
	}
	return strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

// MatchResult is the union of files selected by a criterion's patterns.
type MatchResult struct {
	Files   []SubmissionFile
	Missing []string
}

// Paths lists the matched file paths in order.
func (m MatchResult) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for _, file := range m.Files {
		paths = append(paths, file.Path)
	}
	return paths
}

// Matcher selects corpus files by pattern, caching compiled patterns.
type Matcher struct {
	cache *lru.Cache[string, Pattern]
}

// NewMatcher builds a matcher with an LRU cache of the given size.
func NewMatcher(size int) *Matcher {
	if size <= 0 {
		size = defaultPatternCacheSize
	}
	cache, err := lru.New[string, Pattern](size)
	if err != nil {
		return &Matcher{}
	}
	return &Matcher{cache: cache}
}

// Compile returns the compiled pattern, reusing a cached compilation when possible.
func (m *Matcher) Compile(raw string) (Pattern, error) {
	if m == nil || m.cache == nil {
		return CompilePattern(raw)
	}
	if cached, ok := m.cache.Get(raw); ok {
		return cached, nil
	}
	pattern, err := CompilePattern(raw)
	if err != nil {
		return Pattern{}, err
	}
	m.cache.Add(raw, pattern)
	return pattern, nil
}

// Match returns the deduplicated union of files matched by any pattern, ordered
// by path. Plain patterns that match nothing are reported as missing; patterns
// that fail to compile match nothing.
func (m *Matcher) Match(patterns []string, corpus []SubmissionFile) MatchResult {
	selected := make(map[string]SubmissionFile)
	missing := make([]string, 0)
	seenMissing := make(map[string]struct{})

	for _, raw := range patterns {
		pattern, err := m.Compile(raw)
		if err != nil {
			continue
		}

		matched := false
		for _, file := range corpus {
			if pattern.Match(file) {
				matched = true
				selected[file.Path] = file
			}
		}

		if !matched && !pattern.IsWildcard() {
			if _, ok := seenMissing[pattern.value]; !ok {
				seenMissing[pattern.value] = struct{}{}
				missing = append(missing, pattern.value)
			}
		}
	}

	files := make([]SubmissionFile, 0, len(selected))
	for _, file := range selected {
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return MatchResult{Files: files, Missing: missing}
}
