package rubric

import (
	"errors"
	"fmt"
)

var (
	// ErrCorpusUnavailable signals that no files could be obtained for grading.
	ErrCorpusUnavailable = errors.New("submission corpus unavailable")
	// ErrBinaryContent marks a file whose content is not readable text.
	ErrBinaryContent = errors.New("file content is not text")
	// ErrInvalidPattern is wrapped by every pattern compilation failure.
	ErrInvalidPattern = errors.New("invalid file pattern")
)

// ValidationError describes why a rubric definition was rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// FileReadError reports a corpus file that was skipped during scanning.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}
