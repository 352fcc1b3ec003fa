package service

import "errors"

var (
	// ErrActivityTemplateNotFound indicates the activity template does not exist.
	ErrActivityTemplateNotFound = errors.New("activity template not found")
	// ErrSectionNotFound indicates the section does not exist.
	ErrSectionNotFound = errors.New("section not found")
	// ErrStudentNotFound indicates the student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentSubmissionNotFound indicates the submission does not exist.
	ErrStudentSubmissionNotFound = errors.New("submission not found")
	// ErrScanNotFound indicates no repository scan has been stored yet.
	ErrScanNotFound = errors.New("repository scan not found")
	// ErrTemplateHasNoRubric indicates the activity cannot be scored automatically.
	ErrTemplateHasNoRubric = errors.New("activity template has no rubric")
	// ErrStudentNotInSection indicates the activity belongs to another section.
	ErrStudentNotInSection = errors.New("student is not enrolled in the activity section")
	// ErrPointsExceedMax indicates a manual grade above the activity maximum.
	ErrPointsExceedMax = errors.New("points exceed activity max points")
	// ErrFeatureUnavailable indicates an optional collaborator is not configured.
	ErrFeatureUnavailable = errors.New("feature unavailable")
)
