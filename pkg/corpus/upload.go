package corpus

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

// Upload is one uploaded file with the relative path it was submitted under.
type Upload struct {
	Path string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FromFileHeader adapts a multipart file. relativePath falls back to the file name.
func FromFileHeader(header *multipart.FileHeader, relativePath string) Upload {
	if strings.TrimSpace(relativePath) == "" {
		relativePath = header.Filename
	}
	return Upload{
		Path: relativePath,
		Size: header.Size,
		Open: func() (io.ReadCloser, error) { return header.Open() },
	}
}

// FromBytes wraps in-memory content as an upload.
func FromBytes(relativePath string, content []byte) Upload {
	return Upload{
		Path: relativePath,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(content)), nil },
	}
}

// UploadReader turns uploaded files into a corpus. Zip archives are expanded in place.
type UploadReader struct {
	limits Limits
	logger zerolog.Logger
}

// NewUploadReader builds an upload reader bounded by limits.
func NewUploadReader(limits Limits, logger zerolog.Logger) *UploadReader {
	return &UploadReader{
		limits: limits.withDefaults(),
		logger: logger.With().Str("component", "corpus_upload").Logger(),
	}
}

// Read loads every upload, skipping binary files, oversized files and files
// below excluded directories. The result is ordered by path.
func (r *UploadReader) Read(ctx context.Context, uploads []Upload) ([]rubric.SubmissionFile, error) {
	collector := &collector{limits: r.limits, seen: make(map[string]int)}

	for _, upload := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel := rubric.NormalizePath(upload.Path)
		if rel == "" || escapesRoot(rel) || skipPath(rel) {
			r.logger.Debug().Str("path", rel).Msg("skipping upload")
			continue
		}

		data, err := r.readUpload(upload)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", rel).Msg("skipping unreadable upload")
			continue
		}

		if mimetype.Detect(data).Is("application/zip") {
			if err := r.expandZip(ctx, rel, data, collector); err != nil {
				return nil, err
			}
			continue
		}

		if !IsText(data) {
			r.logger.Debug().Str("path", rel).Msg("skipping binary upload")
			continue
		}
		if !collector.add(rel, data) {
			break
		}
	}

	if len(collector.files) == 0 {
		return nil, fmt.Errorf("%w: no readable text files uploaded", rubric.ErrCorpusUnavailable)
	}

	sortFiles(collector.files)
	return collector.files, nil
}

func (r *UploadReader) readUpload(upload Upload) ([]byte, error) {
	if upload.Open == nil {
		return nil, fmt.Errorf("upload has no content")
	}
	reader, err := upload.Open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	// archives may exceed the per-file limit; their entries are checked individually
	limit := r.limits.MaxTotalBytes
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("upload exceeds %d bytes", limit)
	}
	return data, nil
}

func (r *UploadReader) expandZip(ctx context.Context, archivePath string, data []byte, c *collector) error {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		r.logger.Warn().Err(err).Str("path", archivePath).Msg("skipping corrupt archive")
		return nil
	}

	for _, entry := range archive.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			continue
		}

		rel := rubric.NormalizePath(entry.Name)
		if rel == "" || escapesRoot(rel) || skipPath(rel) {
			continue
		}
		if entry.UncompressedSize64 > uint64(r.limits.MaxFileBytes) {
			r.logger.Debug().Str("path", rel).Msg("skipping oversized archive entry")
			continue
		}

		content, err := readZipEntry(entry, r.limits.MaxFileBytes)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", rel).Msg("skipping unreadable archive entry")
			continue
		}
		if !IsText(content) {
			continue
		}
		if !c.add(rel, content) {
			return nil
		}
	}
	return nil
}

func readZipEntry(entry *zip.File, limit int64) ([]byte, error) {
	reader, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(io.LimitReader(reader, limit))
}

// escapesRoot reports absolute paths, drive-letter paths and paths with a ".."
// segment. Such entries would land outside the submission root when the
// archived bundle is extracted.
func escapesRoot(rel string) bool {
	if strings.HasPrefix(rel, "/") {
		return true
	}
	if len(rel) >= 2 && rel[1] == ':' {
		return true
	}
	return containsParentSegment(rel)
}

func containsParentSegment(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

type collector struct {
	limits Limits
	files  []rubric.SubmissionFile
	seen   map[string]int
	total  int64
}

// add stores a file, replacing an earlier file with the same path. It returns
// false once a limit is reached.
func (c *collector) add(rel string, data []byte) bool {
	if int64(len(data)) > c.limits.MaxFileBytes {
		return true
	}
	if len(c.files) >= c.limits.MaxFiles || c.total+int64(len(data)) > c.limits.MaxTotalBytes {
		return false
	}

	file := rubric.NewSubmissionFile(rel, string(data))
	if index, ok := c.seen[file.Path]; ok {
		c.total -= int64(len(c.files[index].Content))
		c.files[index] = file
	} else {
		c.seen[file.Path] = len(c.files)
		c.files = append(c.files, file)
	}
	c.total += int64(len(data))
	return true
}
