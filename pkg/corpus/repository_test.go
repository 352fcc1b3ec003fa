package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gradebook/pkg/docker"
)

type stubCloner struct {
	files map[string][]byte
	err   error
	dests []string
}

func (s *stubCloner) Clone(ctx context.Context, url, dest string) error {
	s.dests = append(s.dests, dest)
	if s.err != nil {
		return s.err
	}
	for rel, content := range s.files {
		path := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestValidateRepositoryURL(t *testing.T) {
	valid := []string{
		"https://github.com/student/project",
		"https://www.github.com/student/project.git",
		"https://github.com/student/project/",
		"git@github.com:student/project.git",
	}
	for _, url := range valid {
		require.NoError(t, ValidateRepositoryURL(url), url)
	}

	invalid := []string{
		"",
		"http://github.com/student/project",
		"https://gitlab.com/student/project",
		"https://github.com/student",
		"https://github.com/student/project/tree/main",
		"git@github.com:student",
	}
	for _, url := range invalid {
		require.ErrorIs(t, ValidateRepositoryURL(url), ErrInvalidRepositoryURL, url)
	}
}

func TestRepositoryName(t *testing.T) {
	name, err := RepositoryName("https://github.com/student/web-portfolio.git")
	require.NoError(t, err)
	require.Equal(t, "web-portfolio", name)

	name, err = RepositoryName("git@github.com:student/lab1")
	require.NoError(t, err)
	require.Equal(t, "lab1", name)
}

func TestRepositoryFetcherLoadsCorpusAndCleansUp(t *testing.T) {
	workspace := t.TempDir()
	cloner := &stubCloner{files: map[string][]byte{
		"index.html":        []byte("<html></html>"),
		".git/HEAD":         []byte("ref"),
		"node_modules/a.js": []byte("a"),
	}}

	fetcher := NewRepositoryFetcher(FetcherConfig{
		Cloner:    cloner,
		Provider:  NewDirectoryProvider(Limits{}, zerolog.Nop()),
		Workspace: workspace,
		Logger:    zerolog.Nop(),
	})

	snapshot, err := fetcher.Fetch(context.Background(), "https://github.com/student/site.git")
	require.NoError(t, err)
	require.Equal(t, "site", snapshot.Name)
	require.Len(t, snapshot.Files, 1)
	require.Equal(t, "index.html", snapshot.Files[0].Path)

	require.Len(t, cloner.dests, 1)
	_, statErr := os.Stat(cloner.dests[0])
	require.True(t, os.IsNotExist(statErr))
}

func TestRepositoryFetcherRejectsInvalidURLWithoutCloning(t *testing.T) {
	cloner := &stubCloner{}
	fetcher := NewRepositoryFetcher(FetcherConfig{Cloner: cloner, Provider: Static{}, Workspace: t.TempDir(), Logger: zerolog.Nop()})

	_, err := fetcher.Fetch(context.Background(), "https://example.com/repo")
	require.ErrorIs(t, err, ErrInvalidRepositoryURL)
	require.Empty(t, cloner.dests)
}

func TestRepositoryFetcherWrapsCloneFailures(t *testing.T) {
	cloner := &stubCloner{err: errors.New("repository not found")}
	fetcher := NewRepositoryFetcher(FetcherConfig{Cloner: cloner, Provider: Static{}, Workspace: t.TempDir(), Logger: zerolog.Nop()})

	_, err := fetcher.Fetch(context.Background(), "https://github.com/student/missing")
	require.ErrorIs(t, err, ErrCloneFailed)
}

type recordingRunner struct {
	request docker.RunRequest
	result  docker.RunResult
}

func (r *recordingRunner) Run(ctx context.Context, req docker.RunRequest) (docker.RunResult, error) {
	r.request = req
	return r.result, nil
}

func TestContainerClonerMountsParentDirectory(t *testing.T) {
	runner := &recordingRunner{}
	cloner := ContainerCloner{Runner: runner, Image: "alpine/git:2.45.2", Logger: zerolog.Nop()}

	dest := filepath.Join(t.TempDir(), "site-123")
	require.NoError(t, cloner.Clone(context.Background(), "https://github.com/student/site", dest))

	require.Equal(t, "alpine/git:2.45.2", runner.request.Image)
	require.Equal(t, filepath.Dir(dest), runner.request.Workspace)
	require.Equal(t, []string{"clone", "--depth", "1", "--quiet", "https://github.com/student/site", "/workspace/site-123"}, runner.request.Args)
	require.True(t, runner.request.NetworkEnabled)
}

func TestContainerClonerReportsNonZeroExit(t *testing.T) {
	runner := &recordingRunner{result: docker.RunResult{ExitCode: 128, Stderr: "fatal: repository not found\n"}}
	cloner := ContainerCloner{Runner: runner, Logger: zerolog.Nop()}

	err := cloner.Clone(context.Background(), "https://github.com/student/site", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "fatal: repository not found")
}
