package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

var (
	// ErrInvalidRepositoryURL is returned for URLs that are not GitHub repository URLs.
	ErrInvalidRepositoryURL = errors.New("invalid GitHub repository URL")
	// ErrCloneFailed wraps failures of the underlying clone backend.
	ErrCloneFailed = errors.New("repository clone failed")
)

var (
	httpsRepositoryURL = regexp.MustCompile(`^https://(www\.)?github\.com/[^/\s]+/[^/\s]+?(\.git)?/?$`)
	sshRepositoryURL   = regexp.MustCompile(`^git@github\.com:[^/\s]+/[^/\s]+?(\.git)?$`)
)

// ValidateRepositoryURL accepts https and ssh GitHub repository URLs.
func ValidateRepositoryURL(raw string) error {
	value := strings.TrimSpace(raw)
	if value == "" {
		return fmt.Errorf("%w: url is empty", ErrInvalidRepositoryURL)
	}
	if !httpsRepositoryURL.MatchString(value) && !sshRepositoryURL.MatchString(value) {
		return fmt.Errorf("%w: %s", ErrInvalidRepositoryURL, value)
	}
	return nil
}

// RepositoryName extracts the repository name from a GitHub URL.
func RepositoryName(raw string) (string, error) {
	if err := ValidateRepositoryURL(raw); err != nil {
		return "", err
	}
	value := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	value = strings.TrimSuffix(value, ".git")
	index := strings.LastIndexAny(value, "/:")
	return value[index+1:], nil
}

// Cloner fetches a repository into dest, which must not exist yet.
type Cloner interface {
	Clone(ctx context.Context, url, dest string) error
}

// Snapshot is the corpus of one fetched repository.
type Snapshot struct {
	URL       string
	Name      string
	Files     []rubric.SubmissionFile
	FetchedAt time.Time
}

// FetcherConfig configures a RepositoryFetcher.
type FetcherConfig struct {
	Cloner    Cloner
	Provider  Provider
	Workspace string
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// RepositoryFetcher clones a repository into a scratch directory, loads its
// corpus and removes the clone again.
type RepositoryFetcher struct {
	cloner    Cloner
	provider  Provider
	workspace string
	timeout   time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRepositoryFetcher builds a fetcher. The workspace defaults to the OS temp dir.
func NewRepositoryFetcher(cfg FetcherConfig) *RepositoryFetcher {
	workspace := cfg.Workspace
	if workspace == "" {
		workspace = filepath.Join(os.TempDir(), "gradebook-clones")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &RepositoryFetcher{
		cloner:    cfg.Cloner,
		provider:  cfg.Provider,
		workspace: workspace,
		timeout:   timeout,
		logger:    cfg.Logger.With().Str("component", "repository_fetcher").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-gradebook/pkg/corpus"),
		now:       time.Now,
	}
}

// Fetch validates the URL, clones the repository and returns its corpus.
func (f *RepositoryFetcher) Fetch(parent context.Context, url string) (Snapshot, error) {
	url = strings.TrimSpace(url)
	name, err := RepositoryName(url)
	if err != nil {
		return Snapshot{}, err
	}

	ctx, span := f.tracer.Start(parent, "corpus.repository.fetch", trace.WithAttributes(
		attribute.String("repository.name", name),
	))
	defer span.End()

	if err := os.MkdirAll(f.workspace, 0o755); err != nil {
		span.RecordError(err)
		return Snapshot{}, fmt.Errorf("prepare clone workspace: %w", err)
	}
	dest := filepath.Join(f.workspace, fmt.Sprintf("%s-%s", sanitizeName(name), uuid.NewString()))
	defer func() {
		if err := os.RemoveAll(dest); err != nil {
			f.logger.Warn().Err(err).Str("path", dest).Msg("failed to remove clone directory")
		}
	}()

	cloneCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := f.now()
	if err := f.cloner.Clone(cloneCtx, url, dest); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clone failed")
		if parent.Err() != nil {
			return Snapshot{}, parent.Err()
		}
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCloneFailed, err)
	}
	f.logger.Info().Str("repository", name).Dur("duration", f.now().Sub(start)).Msg("repository cloned")

	files, err := f.provider.ListFiles(ctx, dest)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Snapshot{}, err
	}
	span.SetAttributes(attribute.Int("repository.files", len(files)))

	return Snapshot{
		URL:       url,
		Name:      name,
		Files:     files,
		FetchedAt: f.now().UTC(),
	}, nil
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
