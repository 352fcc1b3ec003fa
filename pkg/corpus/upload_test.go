package corpus

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range entries {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestUploadReaderReadsTextFilesInPathOrder(t *testing.T) {
	reader := NewUploadReader(Limits{}, zerolog.Nop())

	files, err := reader.Read(context.Background(), []Upload{
		FromBytes(`project\src\App.cs`, []byte("public class App {}")),
		FromBytes("project/README.md", []byte("# App")),
		FromBytes("project/logo.png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00}),
		FromBytes("project/node_modules/x.js", []byte("x")),
	})
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "project/README.md", files[0].Path)
	require.Equal(t, "project/src/App.cs", files[1].Path)
	require.Equal(t, "App.cs", files[1].Name)
}

func TestUploadReaderExpandsZipArchives(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"site/index.html":        "<!DOCTYPE html><html><body></body></html>",
		"site/style.css":         "body { display: grid; }",
		"site/.git/HEAD":         "ref: refs/heads/main",
		"../escape.txt":          "nope",
		"site/dist/bundle.js":    "var x;",
		"site/scripts/script.js": "document.querySelector('body');",
	})

	reader := NewUploadReader(Limits{}, zerolog.Nop())
	files, err := reader.Read(context.Background(), []Upload{FromBytes("site.zip", archive)})
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, file := range files {
		paths = append(paths, file.Path)
	}
	require.Equal(t, []string{"site/index.html", "site/scripts/script.js", "site/style.css"}, paths)
}

func TestUploadReaderDropsPathsOutsideRoot(t *testing.T) {
	reader := NewUploadReader(Limits{}, zerolog.Nop())

	files, err := reader.Read(context.Background(), []Upload{
		FromBytes("../../x.cs", []byte("class Escape {}")),
		FromBytes(`src\..\..\y.cs`, []byte("class Escape {}")),
		FromBytes("/etc/z.cs", []byte("class Escape {}")),
		FromBytes(`C:\Windows\w.cs`, []byte("class Escape {}")),
		FromBytes("src/Program.cs", []byte("class Program {}")),
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "src/Program.cs", files[0].Path)
}

func TestUploadReaderRejectsCorpusOfEscapingPathsOnly(t *testing.T) {
	reader := NewUploadReader(Limits{}, zerolog.Nop())

	_, err := reader.Read(context.Background(), []Upload{FromBytes("../secret.cs", []byte("class S {}"))})
	require.ErrorIs(t, err, rubric.ErrCorpusUnavailable)
}

func TestEscapesRoot(t *testing.T) {
	for path, want := range map[string]bool{
		"src/app.py":      false,
		"notes..txt":      false,
		"a/../b.py":       true,
		"..":              true,
		"/abs/app.py":     true,
		"C:/Windows/a.cs": true,
	} {
		require.Equal(t, want, escapesRoot(path), path)
	}
}

func TestUploadReaderReplacesDuplicatePaths(t *testing.T) {
	reader := NewUploadReader(Limits{}, zerolog.Nop())

	files, err := reader.Read(context.Background(), []Upload{
		FromBytes("a.txt", []byte("first")),
		FromBytes("./a.txt", []byte("second")),
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "second", files[0].Content)
}

func TestUploadReaderWithoutTextFilesIsUnavailable(t *testing.T) {
	reader := NewUploadReader(Limits{}, zerolog.Nop())

	_, err := reader.Read(context.Background(), []Upload{FromBytes("logo.png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})})
	require.ErrorIs(t, err, rubric.ErrCorpusUnavailable)

	_, err = reader.Read(context.Background(), nil)
	require.ErrorIs(t, err, rubric.ErrCorpusUnavailable)
}

func TestUploadReaderEnforcesFileCount(t *testing.T) {
	reader := NewUploadReader(Limits{MaxFiles: 1}, zerolog.Nop())

	files, err := reader.Read(context.Background(), []Upload{
		FromBytes("a.txt", []byte("a")),
		FromBytes("b.txt", []byte("b")),
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
}
