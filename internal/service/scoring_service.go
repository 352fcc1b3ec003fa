package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/internal/models"
	"github.com/noah-isme/gema-gradebook/internal/observability"
	"github.com/noah-isme/gema-gradebook/internal/repository"
	"github.com/noah-isme/gema-gradebook/pkg/ai"
	"github.com/noah-isme/gema-gradebook/pkg/corpus"
	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

// UploadReader turns uploaded files into a corpus.
type UploadReader interface {
	Read(ctx context.Context, uploads []corpus.Upload) ([]rubric.SubmissionFile, error)
}

// RepositoryFetcher clones a repository and returns its corpus.
type RepositoryFetcher interface {
	Fetch(ctx context.Context, url string) (corpus.Snapshot, error)
}

// BundleArchiver stores a zipped copy of an uploaded submission.
type BundleArchiver interface {
	Archive(ctx context.Context, name string, reader io.Reader) (string, error)
}

// EventPublisher publishes scoring events. *nats.Conn satisfies it.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// ScoringConfig fixes the scoring policy and keyword mode of each surface.
type ScoringConfig struct {
	UploadPolicy     rubric.Policy
	UploadMode       rubric.KeywordMode
	RepositoryPolicy rubric.Policy
	RepositoryMode   rubric.KeywordMode
	ContextLines     int
	Workers          int
	CacheTTL         time.Duration
	EventSubject     string
}

// DefaultScoringConfig returns the per-surface defaults: uploads are scored
// all-or-nothing with whitespace-collapsed keywords, repositories with partial
// credit and case-insensitive keywords.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		UploadPolicy:     rubric.PolicyAllOrNothing,
		UploadMode:       rubric.ModeCollapsed,
		RepositoryPolicy: rubric.PolicyPartialCredit,
		RepositoryMode:   rubric.ModeCaseInsensitive,
		ContextLines:     1,
		CacheTTL:         10 * time.Minute,
	}
}

// ScoringDependencies wires the collaborators of the scoring service. Fetcher,
// Archiver, Feedback, Cache and Events are optional.
type ScoringDependencies struct {
	Templates   repository.ActivityTemplateRepository
	Students    repository.StudentRepository
	Submissions repository.StudentSubmissionRepository
	Uploads     UploadReader
	Fetcher     RepositoryFetcher
	Archiver    BundleArchiver
	Feedback    ai.FeedbackWriter
	Cache       *redis.Client
	Events      EventPublisher
	Audit       AuditRecorder
	Validator   *validator.Validate
}

// UploadScoreRequest is an upload scoring request.
type UploadScoreRequest struct {
	RubricJSON string
	Uploads    []corpus.Upload
	Archive    bool
}

// ScoringService scores submissions against rubrics.
type ScoringService interface {
	ScoreUpload(ctx context.Context, req UploadScoreRequest) (dto.SimpleScoreResponse, error)
	ScanRepository(ctx context.Context, actor AuditActor, req dto.RepositoryScanRequest) (dto.RubricScanResponse, error)
	Latest(ctx context.Context, query dto.LatestScanQuery) (dto.RubricScanResponse, error)
	Evaluate(ctx context.Context, req dto.EvaluateRequest) (dto.EvaluateResponse, error)
}

type scoringService struct {
	deps       ScoringDependencies
	cfg        ScoringConfig
	matcher    *rubric.Matcher
	uploadEval *rubric.Evaluator
	repoEval   *rubric.Evaluator
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// scoringCompletedEvent is published after a repository scan is persisted.
type scoringCompletedEvent struct {
	SubmissionID       uint      `json:"submission_id"`
	StudentID          uint      `json:"student_id"`
	ActivityTemplateID uint      `json:"activity_template_id"`
	RepositoryURL      string    `json:"repository_url"`
	TotalScore         float64   `json:"total_score"`
	MaxPossibleScore   float64   `json:"max_possible_score"`
	Percentage         float64   `json:"percentage"`
	Points             float64   `json:"points"`
	ScannedAt          time.Time `json:"scanned_at"`
	CorrelationID      string    `json:"correlation_id,omitempty"`
}

// NewScoringService constructs the scoring service.
func NewScoringService(deps ScoringDependencies, cfg ScoringConfig, logger zerolog.Logger) ScoringService {
	defaults := DefaultScoringConfig()
	if cfg.UploadPolicy == 0 {
		cfg.UploadPolicy = defaults.UploadPolicy
	}
	if cfg.RepositoryPolicy == 0 {
		cfg.RepositoryPolicy = defaults.RepositoryPolicy
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}

	component := logger.With().Str("component", "scoring_service").Logger()
	matcher := rubric.NewMatcher(0)

	return &scoringService{
		deps:    deps,
		cfg:     cfg,
		matcher: matcher,
		uploadEval: rubric.NewEvaluator(rubric.Options{
			Policy:       cfg.UploadPolicy,
			Mode:         cfg.UploadMode,
			ContextLines: cfg.ContextLines,
			Workers:      cfg.Workers,
			Matcher:      matcher,
			Logger:       component,
		}),
		repoEval: rubric.NewEvaluator(rubric.Options{
			Policy:       cfg.RepositoryPolicy,
			Mode:         cfg.RepositoryMode,
			ContextLines: cfg.ContextLines,
			Workers:      cfg.Workers,
			Matcher:      matcher,
			Logger:       component,
		}),
		logger: component,
		tracer: otel.Tracer("github.com/noah-isme/gema-gradebook/internal/service/scoring"),
		now:    time.Now,
	}
}

// ScoreUpload scores uploaded files against a points rubric whose total must be 100.
func (s *scoringService) ScoreUpload(ctx context.Context, req UploadScoreRequest) (dto.SimpleScoreResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.upload", trace.WithAttributes(
		attribute.Int("scoring.uploads", len(req.Uploads)),
	))
	defer span.End()

	criteria, err := rubric.ParseAs(req.RubricJSON, rubric.SchemaPoints)
	if err != nil {
		return dto.SimpleScoreResponse{}, s.fail(span, "upload", err)
	}

	files, err := s.deps.Uploads.Read(ctx, req.Uploads)
	if err != nil {
		return dto.SimpleScoreResponse{}, s.fail(span, "upload", err)
	}

	result, err := s.uploadEval.Evaluate(ctx, criteria, files)
	if err != nil {
		return dto.SimpleScoreResponse{}, s.fail(span, "upload", err)
	}

	response := dto.NewSimpleScoreResponse(result)
	if req.Archive && s.deps.Archiver != nil {
		url, archiveErr := s.archive(ctx, files)
		if archiveErr != nil {
			s.logger.Warn().Err(archiveErr).Msg("failed to archive submission bundle")
			span.RecordError(archiveErr)
		}
		response.ArchiveURL = url
	}

	span.SetAttributes(attribute.Float64("scoring.total", result.TotalScore))
	observability.ScoringRuns().WithLabelValues("upload", "success").Inc()
	return response, nil
}

// ScanRepository clones the student's repository, scores it with the activity
// rubric and stores the result as the student's grade for the activity.
func (s *scoringService) ScanRepository(ctx context.Context, actor AuditActor, req dto.RepositoryScanRequest) (dto.RubricScanResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.repository", trace.WithAttributes(
		attribute.Int64("scoring.student_id", int64(req.StudentID)),
		attribute.Int64("scoring.activity_template_id", int64(req.ActivityTemplateID)),
	))
	defer span.End()

	req.RepositoryURL = strings.TrimSpace(req.RepositoryURL)
	if err := s.deps.Validator.Struct(req); err != nil {
		return dto.RubricScanResponse{}, s.fail(span, "repository", err)
	}
	if err := corpus.ValidateRepositoryURL(req.RepositoryURL); err != nil {
		return dto.RubricScanResponse{}, s.fail(span, "repository", err)
	}
	if s.deps.Fetcher == nil {
		return dto.RubricScanResponse{}, s.fail(span, "repository", fmt.Errorf("%w: repository cloning is not configured", ErrFeatureUnavailable))
	}

	template, err := s.deps.Templates.GetByID(ctx, req.ActivityTemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrActivityTemplateNotFound
		}
		return dto.RubricScanResponse{}, s.fail(span, "repository", err)
	}
	if !template.HasRubric() {
		return dto.RubricScanResponse{}, s.fail(span, "repository", ErrTemplateHasNoRubric)
	}

	student, err := s.deps.Students.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrStudentNotFound
		}
		return dto.RubricScanResponse{}, s.fail(span, "repository", err)
	}
	if student.SectionID != template.SectionID {
		return dto.RubricScanResponse{}, s.fail(span, "repository", ErrStudentNotInSection)
	}

	criteria, _, err := rubric.Parse(template.RubricJSON)
	if err != nil {
		return dto.RubricScanResponse{}, s.fail(span, "repository", err)
	}

	snapshot, err := s.deps.Fetcher.Fetch(ctx, req.RepositoryURL)
	if err != nil {
		return dto.RubricScanResponse{}, s.fail(span, "repository", err)
	}

	result, err := s.repoEval.Evaluate(ctx, criteria, snapshot.Files)
	if err != nil {
		return dto.RubricScanResponse{}, s.fail(span, "repository", err)
	}

	scannedAt := s.now().UTC()
	response := dto.RubricScanResponse{
		StudentID:        student.ID,
		ActivityID:       template.ID,
		RepositoryURL:    req.RepositoryURL,
		ScannedDate:      scannedAt,
		TotalScore:       result.TotalScore,
		MaxPossibleScore: result.MaxPossibleScore,
		Percentage:       round2(result.Percentage()),
		Policy:           s.repoEval.Policy().String(),
		KeywordMode:      s.repoEval.Mode().String(),
		RubricItems:      result.Criteria,
		SkippedFiles:     result.SkippedFiles,
	}

	if req.WithFeedback && s.deps.Feedback != nil {
		feedback, feedbackErr := s.deps.Feedback.Write(ctx, ai.FeedbackInput{
			ActivityName:  template.Name,
			RepositoryURL: req.RepositoryURL,
			Result:        result,
		})
		if feedbackErr != nil {
			s.logger.Warn().Err(feedbackErr).Uint("student_id", student.ID).Msg("failed to generate scan feedback")
			span.RecordError(feedbackErr)
		} else {
			response.Feedback = &feedback
		}
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return dto.RubricScanResponse{}, s.fail(span, "repository", err)
	}

	submission, err := s.deps.Submissions.FindByStudentAndTemplate(ctx, student.ID, template.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RubricScanResponse{}, s.fail(span, "repository", err)
		}
		submission = models.StudentSubmission{StudentID: student.ID, ActivityTemplateID: template.ID}
	}

	points := round2(result.Percentage() * template.MaxPoints / 100)
	submission.Points = points
	submission.Status = models.SubmissionStatusGraded
	submission.GithubLink = req.RepositoryURL
	submission.GradedAt = &scannedAt
	if submission.SubmittedAt == nil {
		submission.SubmittedAt = &scannedAt
	}
	submission.RubricScore = datatypes.JSON(payload)

	scan := models.RubricScan{
		RepositoryURL:    req.RepositoryURL,
		Policy:           response.Policy,
		KeywordMode:      response.KeywordMode,
		TotalScore:       result.TotalScore,
		MaxPossibleScore: result.MaxPossibleScore,
		Percentage:       response.Percentage,
		Result:           datatypes.JSON(payload),
		ScannedAt:        scannedAt,
	}
	if err := s.deps.Submissions.SaveWithScan(ctx, &submission, &scan); err != nil {
		return dto.RubricScanResponse{}, s.fail(span, "repository", err)
	}

	s.storeCache(ctx, student.ID, template.ID, payload)
	s.publishCompleted(scoringCompletedEvent{
		SubmissionID:       submission.ID,
		StudentID:          student.ID,
		ActivityTemplateID: template.ID,
		RepositoryURL:      req.RepositoryURL,
		TotalScore:         result.TotalScore,
		MaxPossibleScore:   result.MaxPossibleScore,
		Percentage:         response.Percentage,
		Points:             points,
		ScannedAt:          scannedAt,
		CorrelationID:      observability.CorrelationIDFromContext(ctx),
	})
	record(ctx, s.deps.Audit, s.logger, AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "scoring.repository_scanned",
		EntityType: "student_submission",
		EntityID:   &submission.ID,
		Metadata: map[string]interface{}{
			"student_id":           student.ID,
			"activity_template_id": template.ID,
			"repository_url":       req.RepositoryURL,
			"total_score":          result.TotalScore,
			"points":               points,
			"scan_id":              scan.ID,
		},
	})

	s.logger.Info().
		Uint("student_id", student.ID).
		Uint("activity_template_id", template.ID).
		Float64("points", points).
		Int("files", len(snapshot.Files)).
		Msg("repository scan stored")
	span.SetAttributes(attribute.Float64("scoring.total", result.TotalScore))
	observability.ScoringRuns().WithLabelValues("repository", "success").Inc()

	return response, nil
}

// Latest returns the most recent repository scan, preferring the cache.
func (s *scoringService) Latest(ctx context.Context, query dto.LatestScanQuery) (dto.RubricScanResponse, error) {
	if err := s.deps.Validator.Struct(query); err != nil {
		return dto.RubricScanResponse{}, err
	}

	key := latestScanKey(query.StudentID, query.ActivityTemplateID)
	if s.deps.Cache != nil {
		cached, err := s.deps.Cache.Get(ctx, key).Result()
		if err == nil {
			var response dto.RubricScanResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.ScoringCacheLookups().WithLabelValues("hit").Inc()
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read scan cache")
		}
		observability.ScoringCacheLookups().WithLabelValues("miss").Inc()
	}

	scan, err := s.deps.Submissions.LatestScan(ctx, query.StudentID, query.ActivityTemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RubricScanResponse{}, ErrScanNotFound
		}
		return dto.RubricScanResponse{}, err
	}

	var response dto.RubricScanResponse
	if err := json.Unmarshal(scan.Result, &response); err != nil {
		return dto.RubricScanResponse{}, fmt.Errorf("decode stored scan %d: %w", scan.ID, err)
	}

	s.storeCache(ctx, query.StudentID, query.ActivityTemplateID, scan.Result)
	return response, nil
}

// Evaluate scores an inline corpus. Policy and mode default to all-or-nothing
// and case-insensitive matching.
func (s *scoringService) Evaluate(ctx context.Context, req dto.EvaluateRequest) (dto.EvaluateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.evaluate")
	defer span.End()

	if err := s.deps.Validator.Struct(req); err != nil {
		return dto.EvaluateResponse{}, s.fail(span, "evaluate", err)
	}

	criteria, _, err := rubric.Parse(req.RubricJSON)
	if err != nil {
		return dto.EvaluateResponse{}, s.fail(span, "evaluate", err)
	}

	policy := rubric.PolicyAllOrNothing
	if req.Policy != "" {
		if policy, err = rubric.ParsePolicy(req.Policy); err != nil {
			return dto.EvaluateResponse{}, s.fail(span, "evaluate", &rubric.ValidationError{Message: err.Error()})
		}
	}
	mode, err := rubric.ParseKeywordMode(req.Mode)
	if err != nil {
		return dto.EvaluateResponse{}, s.fail(span, "evaluate", &rubric.ValidationError{Message: err.Error()})
	}

	inline := make(corpus.Static, 0, len(req.Files))
	for _, file := range req.Files {
		inline = append(inline, rubric.NewSubmissionFile(file.Path, file.Content))
	}
	files, err := inline.ListFiles(ctx, "")
	if err != nil {
		return dto.EvaluateResponse{}, s.fail(span, "evaluate", err)
	}

	evaluator := rubric.NewEvaluator(rubric.Options{
		Policy:       policy,
		Mode:         mode,
		ContextLines: s.cfg.ContextLines,
		Workers:      s.cfg.Workers,
		Matcher:      s.matcher,
		Logger:       s.logger,
	})
	result, err := evaluator.Evaluate(ctx, criteria, files)
	if err != nil {
		return dto.EvaluateResponse{}, s.fail(span, "evaluate", err)
	}

	observability.ScoringRuns().WithLabelValues("evaluate", "success").Inc()
	return dto.NewEvaluateResponse(result, policy, mode), nil
}

func (s *scoringService) fail(span trace.Span, surface string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	observability.ScoringRuns().WithLabelValues(surface, failureOutcome(err)).Inc()
	return err
}

func failureOutcome(err error) string {
	var validationErr *rubric.ValidationError
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErr), errors.As(err, &fieldErrs), errors.Is(err, corpus.ErrInvalidRepositoryURL):
		return "invalid"
	case errors.Is(err, rubric.ErrCorpusUnavailable), errors.Is(err, corpus.ErrCloneFailed):
		return "corpus_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

func (s *scoringService) storeCache(ctx context.Context, studentID, templateID uint, payload []byte) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.Set(ctx, latestScanKey(studentID, templateID), payload, s.cfg.CacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store scan cache")
	}
}

func (s *scoringService) publishCompleted(event scoringCompletedEvent) {
	if s.deps.Events == nil || s.cfg.EventSubject == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err == nil {
		err = s.deps.Events.Publish(s.cfg.EventSubject, payload)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("subject", s.cfg.EventSubject).Msg("failed to publish scoring event")
		observability.ScoringEvents().WithLabelValues("failed").Inc()
		return
	}
	observability.ScoringEvents().WithLabelValues("published").Inc()
}

func (s *scoringService) archive(ctx context.Context, files []rubric.SubmissionFile) (string, error) {
	bundle, err := bundleFiles(files)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("submission-%s.zip", s.now().UTC().Format("20060102-150405"))
	return s.deps.Archiver.Archive(ctx, name, bundle)
}

func bundleFiles(files []rubric.SubmissionFile) (*bytes.Buffer, error) {
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	for _, file := range files {
		entry, err := writer.Create(file.Path)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(entry, file.Content); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return &buffer, nil
}

func latestScanKey(studentID, templateID uint) string {
	return fmt.Sprintf("scoring:latest:%d:%d", studentID, templateID)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
