package rubric

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func corpusOf(paths ...string) []SubmissionFile {
	files := make([]SubmissionFile, 0, len(paths))
	for _, p := range paths {
		files = append(files, NewSubmissionFile(p, ""))
	}
	return files
}

func TestWildcardMatchesWholePath(t *testing.T) {
	matcher := NewMatcher(8)

	result := matcher.Match([]string{"Test*.cs"}, corpusOf("TestA.cs", "OtherTest.cs"))
	require.Equal(t, []string{"TestA.cs"}, result.Paths())
	require.Empty(t, result.Missing)
}

func TestWildcardIsCaseInsensitiveAndCrossesDirectories(t *testing.T) {
	pattern, err := CompilePattern("*.CS")
	require.NoError(t, err)
	require.True(t, pattern.IsWildcard())
	require.True(t, pattern.Match(NewSubmissionFile("src/models/Student.cs", "")))
	require.False(t, pattern.Match(NewSubmissionFile("src/models/Student.csx", "")))
}

func TestQuestionMarkMatchesExactlyOneCharacter(t *testing.T) {
	pattern, err := CompilePattern("file?.txt")
	require.NoError(t, err)
	require.True(t, pattern.Match(NewSubmissionFile("file1.txt", "")))
	require.False(t, pattern.Match(NewSubmissionFile("file12.txt", "")))
	require.False(t, pattern.Match(NewSubmissionFile("file.txt", "")))
}

func TestRegexMetacharactersAreLiteral(t *testing.T) {
	pattern, err := CompilePattern("a+b(1).*")
	require.NoError(t, err)
	require.True(t, pattern.Match(NewSubmissionFile("a+b(1).js", "")))
	require.False(t, pattern.Match(NewSubmissionFile("aab1.js", "")))
}

func TestPlainPatternMatchesNameOrPathSuffix(t *testing.T) {
	matcher := NewMatcher(8)

	result := matcher.Match([]string{"README.md", "src/main.py", "missing.cs"}, corpusOf("docs/readme.MD", "project/src/main.py", "other.py"))
	require.Equal(t, []string{"docs/readme.MD", "project/src/main.py"}, result.Paths())
	require.Equal(t, []string{"missing.cs"}, result.Missing)
}

func TestMatchUnionIsDeduplicatedAndSorted(t *testing.T) {
	matcher := NewMatcher(8)

	result := matcher.Match([]string{"*.js", "script.js", "b/*"}, corpusOf("b/script.js", "a/app.js", "b/index.html"))
	require.Equal(t, []string{"a/app.js", "b/index.html", "b/script.js"}, result.Paths())
}

func TestWildcardMissesAreNotReported(t *testing.T) {
	matcher := NewMatcher(8)

	result := matcher.Match([]string{"*.txt"}, corpusOf("a.md"))
	require.Empty(t, result.Files)
	require.Empty(t, result.Missing)
}

func TestCompilePatternRejectsInvalidSyntax(t *testing.T) {
	cases := map[string]string{
		"empty":    "   ",
		"absolute": "/etc/passwd",
		"drive":    "C:/src/*.cs",
		"parent":   "../*.cs",
		"control":  "src/\x01*.cs",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := CompilePattern(raw)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidPattern))
		})
	}
}

func TestCompilePatternNormalisesSeparators(t *testing.T) {
	pattern, err := CompilePattern(`.\src\*.cs`)
	require.NoError(t, err)
	require.Equal(t, "src/*.cs", pattern.String())
	require.True(t, pattern.Match(NewSubmissionFile(`src\Program.cs`, "")))
}

func TestMatcherCachesCompiledPatterns(t *testing.T) {
	matcher := NewMatcher(2)

	first, err := matcher.Compile("*.go")
	require.NoError(t, err)
	second, err := matcher.Compile("*.go")
	require.NoError(t, err)
	require.Same(t, first.re, second.re)
}
