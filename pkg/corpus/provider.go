package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

// Provider produces the corpus rooted at root.
type Provider interface {
	ListFiles(ctx context.Context, root string) ([]rubric.SubmissionFile, error)
}

// Limits bounds how much content a provider loads.
type Limits struct {
	MaxFileBytes  int64
	MaxFiles      int
	MaxTotalBytes int64
}

// DefaultLimits are applied to zero-valued fields.
var DefaultLimits = Limits{
	MaxFileBytes:  1 << 20,
	MaxFiles:      5000,
	MaxTotalBytes: 64 << 20,
}

func (l Limits) withDefaults() Limits {
	if l.MaxFileBytes <= 0 {
		l.MaxFileBytes = DefaultLimits.MaxFileBytes
	}
	if l.MaxFiles <= 0 {
		l.MaxFiles = DefaultLimits.MaxFiles
	}
	if l.MaxTotalBytes <= 0 {
		l.MaxTotalBytes = DefaultLimits.MaxTotalBytes
	}
	return l
}

var skippedDirectories = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"bin":          {},
	"obj":          {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"out":          {},
	"packages":     {},
	"__pycache__":  {},
	"venv":         {},
	"coverage":     {},
}

// SkipDirectory reports whether a directory name is excluded from every corpus:
// dependency and build output directories plus hidden directories such as .git.
func SkipDirectory(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	_, ok := skippedDirectories[strings.ToLower(name)]
	return ok
}

// skipPath reports whether any directory segment of a slash separated relative path is excluded.
func skipPath(rel string) bool {
	dir := path.Dir(rel)
	if dir == "." {
		return false
	}
	for _, segment := range strings.Split(dir, "/") {
		if SkipDirectory(segment) {
			return true
		}
	}
	return false
}

// IsText reports whether data looks like a text document.
func IsText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// DirectoryProvider walks a directory tree on disk.
type DirectoryProvider struct {
	limits Limits
	logger zerolog.Logger
}

// NewDirectoryProvider builds a provider reading files below a root directory.
func NewDirectoryProvider(limits Limits, logger zerolog.Logger) *DirectoryProvider {
	return &DirectoryProvider{
		limits: limits.withDefaults(),
		logger: logger.With().Str("component", "corpus_directory").Logger(),
	}
}

// ListFiles returns the text files below root ordered by relative path.
func (p *DirectoryProvider) ListFiles(ctx context.Context, root string) ([]rubric.SubmissionFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rubric.ErrCorpusUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", rubric.ErrCorpusUnavailable, root)
	}

	files := make([]rubric.SubmissionFile, 0)
	var total int64

	walkErr := filepath.WalkDir(root, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			p.logger.Warn().Err(err).Str("path", current).Msg("skipping unreadable path")
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if entry.IsDir() {
			if current != root && SkipDirectory(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, current)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if len(files) >= p.limits.MaxFiles {
			p.logger.Warn().Int("max_files", p.limits.MaxFiles).Msg("corpus file limit reached")
			return fs.SkipAll
		}

		fileInfo, err := entry.Info()
		if err != nil {
			p.logger.Warn().Err(err).Str("path", rel).Msg("skipping file without metadata")
			return nil
		}
		if fileInfo.Size() > p.limits.MaxFileBytes {
			p.logger.Debug().Str("path", rel).Int64("size", fileInfo.Size()).Msg("skipping oversized file")
			return nil
		}
		if total+fileInfo.Size() > p.limits.MaxTotalBytes {
			p.logger.Warn().Int64("max_total_bytes", p.limits.MaxTotalBytes).Msg("corpus size limit reached")
			return fs.SkipAll
		}

		data, err := readLimited(current, p.limits.MaxFileBytes)
		if err != nil {
			p.logger.Warn().Err(err).Str("path", rel).Msg("skipping unreadable file")
			return nil
		}
		if !IsText(data) {
			p.logger.Debug().Str("path", rel).Msg("skipping binary file")
			return nil
		}

		total += int64(len(data))
		files = append(files, rubric.NewSubmissionFile(rel, string(data)))
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return nil, walkErr
		}
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no readable text files found", rubric.ErrCorpusUnavailable)
	}

	sortFiles(files)
	return files, nil
}

func readLimited(name string, limit int64) ([]byte, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, limit))
}

func sortFiles(files []rubric.SubmissionFile) {
	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}

// Static serves a fixed in-memory corpus regardless of root.
type Static []rubric.SubmissionFile

// ListFiles returns a sorted copy of the static corpus.
func (s Static) ListFiles(ctx context.Context, _ string) ([]rubric.SubmissionFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, rubric.ErrCorpusUnavailable
	}
	files := append([]rubric.SubmissionFile(nil), s...)
	sortFiles(files)
	return files, nil
}
