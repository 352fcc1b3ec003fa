package rubric

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeywordMode selects how keywords are compared with file content.
type KeywordMode int

const (
	// ModeCaseInsensitive matches substrings ignoring case.
	ModeCaseInsensitive KeywordMode = iota
	// ModeCaseSensitive matches exact substrings.
	ModeCaseSensitive
	// ModeCollapsed removes all whitespace and ignores case on both sides, so a
	// keyword may also span line breaks.
	ModeCollapsed
)

// ParseKeywordMode maps a configuration value onto a KeywordMode.
func ParseKeywordMode(value string) (KeywordMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "insensitive", "case_insensitive", "case-insensitive":
		return ModeCaseInsensitive, nil
	case "sensitive", "case_sensitive", "case-sensitive":
		return ModeCaseSensitive, nil
	case "collapsed", "whitespace_insensitive":
		return ModeCollapsed, nil
	default:
		return ModeCaseInsensitive, fmt.Errorf("unknown keyword mode %q", value)
	}
}

func (m KeywordMode) String() string {
	switch m {
	case ModeCaseSensitive:
		return "case_sensitive"
	case ModeCollapsed:
		return "collapsed"
	default:
		return "case_insensitive"
	}
}

// FileScan holds the keyword hits of one file.
type FileScan struct {
	Path    string
	Found   []bool
	Matches []KeywordMatch
}

// HasAll reports whether every keyword was found in the file.
func (s FileScan) HasAll() bool {
	if len(s.Found) == 0 {
		return false
	}
	for _, found := range s.Found {
		if !found {
			return false
		}
	}
	return true
}

// CheckReadable rejects content that contains NUL bytes or invalid UTF-8.
func CheckReadable(file SubmissionFile) error {
	if strings.IndexByte(file.Content, 0) >= 0 || !utf8.ValidString(file.Content) {
		return &FileReadError{Path: file.Path, Err: ErrBinaryContent}
	}
	return nil
}

// SplitLines splits content on "\n" and strips a trailing "\r" from each line.
func SplitLines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// LineContext renders the lines around index, marking the hit line with ">>> ".
func LineContext(lines []string, index, radius int) string {
	if radius < 0 || index < 0 || index >= len(lines) {
		return ""
	}
	start := index - radius
	if start < 0 {
		start = 0
	}
	end := index + radius
	if end > len(lines)-1 {
		end = len(lines) - 1
	}

	parts := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		prefix := "    "
		if i == index {
			prefix = ">>> "
		}
		parts = append(parts, fmt.Sprintf("%s%d: %s", prefix, i+1, strings.TrimSpace(lines[i])))
	}
	return strings.Join(parts, "\n")
}

// ContainsKeyword reports whether text contains keyword under the given mode.
func ContainsKeyword(text, keyword string, mode KeywordMode) bool {
	switch mode {
	case ModeCaseSensitive:
		return keyword != "" && strings.Contains(text, keyword)
	case ModeCollapsed:
		needle := collapse(keyword)
		return needle != "" && strings.Contains(collapse(text), needle)
	default:
		return keyword != "" && strings.Contains(strings.ToLower(text), strings.ToLower(keyword))
	}
}

func collapse(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		builder.WriteRune(unicode.ToLower(r))
	}
	return builder.String()
}

// ScanFile records every line and keyword hit of a file. contextRadius is the
// number of surrounding lines captured per hit; a negative radius disables
// context capture.
func ScanFile(file SubmissionFile, keywords []string, mode KeywordMode, contextRadius int) FileScan {
	scan := FileScan{
		Path:    file.Path,
		Found:   make([]bool, len(keywords)),
		Matches: make([]KeywordMatch, 0),
	}
	if len(keywords) == 0 {
		return scan
	}

	lines := SplitLines(file.Content)
	prepared := make([]string, len(keywords))
	for i, keyword := range keywords {
		prepared[i] = prepareNeedle(keyword, mode)
	}

	for index, line := range lines {
		haystack := prepareHaystack(line, mode)
		for k, needle := range prepared {
			if needle == "" || !strings.Contains(haystack, needle) {
				continue
			}
			scan.Found[k] = true
			scan.Matches = append(scan.Matches, newMatch(file.Path, keywords[k], lines, index, contextRadius))
		}
	}

	if mode == ModeCollapsed {
		scanAcrossLines(&scan, file.Path, lines, keywords, prepared, contextRadius)
	}

	return scan
}

// scanAcrossLines finds collapsed keywords that only occur once line breaks are
// removed and records them on the line where the occurrence starts.
func scanAcrossLines(scan *FileScan, path string, lines []string, keywords, prepared []string, contextRadius int) {
	pending := false
	for k := range keywords {
		if !scan.Found[k] && prepared[k] != "" {
			pending = true
			break
		}
	}
	if !pending {
		return
	}

	var builder strings.Builder
	owners := make([]int, 0)
	for index, line := range lines {
		for _, r := range line {
			if unicode.IsSpace(r) {
				continue
			}
			lower := unicode.ToLower(r)
			builder.WriteRune(lower)
			for n := utf8.RuneLen(lower); n > 0; n-- {
				owners = append(owners, index)
			}
		}
	}
	collapsed := builder.String()

	added := false
	for k, needle := range prepared {
		if scan.Found[k] || needle == "" {
			continue
		}
		offset := strings.Index(collapsed, needle)
		if offset < 0 {
			continue
		}
		scan.Found[k] = true
		scan.Matches = append(scan.Matches, newMatch(path, keywords[k], lines, owners[offset], contextRadius))
		added = true
	}

	if added {
		sort.SliceStable(scan.Matches, func(i, j int) bool {
			return scan.Matches[i].LineNumber < scan.Matches[j].LineNumber
		})
	}
}

func newMatch(path, keyword string, lines []string, index, contextRadius int) KeywordMatch {
	return KeywordMatch{
		Keyword:    keyword,
		File:       path,
		LineNumber: index + 1,
		Line:       strings.TrimSpace(lines[index]),
		Context:    LineContext(lines, index, contextRadius),
	}
}

func prepareNeedle(keyword string, mode KeywordMode) string {
	switch mode {
	case ModeCaseSensitive:
		return keyword
	case ModeCollapsed:
		return collapse(keyword)
	default:
		return strings.ToLower(keyword)
	}
}

func prepareHaystack(line string, mode KeywordMode) string {
	switch mode {
	case ModeCaseSensitive:
		return line
	case ModeCollapsed:
		return collapse(line)
	default:
		return strings.ToLower(line)
	}
}
