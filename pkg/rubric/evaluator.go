package rubric

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "rubric",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of rubric evaluations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"policy"})

	criterionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "rubric",
		Name:      "criterion_outcomes_total",
		Help:      "Number of evaluated criteria by outcome",
	}, []string{"policy", "outcome"})

	skippedFiles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "rubric",
		Name:      "skipped_files_total",
		Help:      "Number of corpus files skipped because they could not be read as text",
	})
)

// Policy decides how a criterion's evidence turns into a score.
type Policy int

const (
	// PolicyAllOrNothing awards the full score only when a single matched file
	// contains every keyword.
	PolicyAllOrNothing Policy = iota + 1
	// PolicyPartialCredit awards the full score for files and keywords, half for
	// either one, nothing otherwise.
	PolicyPartialCredit
)

// ParsePolicy maps a configuration value onto a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "all_or_nothing", "all-or-nothing", "strict":
		return PolicyAllOrNothing, nil
	case "partial_credit", "partial-credit", "partial":
		return PolicyPartialCredit, nil
	default:
		return 0, fmt.Errorf("unknown scoring policy %q", value)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyAllOrNothing:
		return "all_or_nothing"
	case PolicyPartialCredit:
		return "partial_credit"
	default:
		return "unknown"
	}
}

// Options configures an Evaluator.
type Options struct {
	Policy Policy
	Mode   KeywordMode
	// ContextLines is the number of lines captured around each keyword hit.
	// Negative values disable context capture.
	ContextLines int
	Workers      int
	Matcher      *Matcher
	Logger       zerolog.Logger
}

// Evaluator scores a corpus against a rubric.
type Evaluator struct {
	policy       Policy
	mode         KeywordMode
	contextLines int
	workers      int
	matcher      *Matcher
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewEvaluator constructs an evaluator, defaulting to all-or-nothing scoring.
func NewEvaluator(opts Options) *Evaluator {
	if opts.Policy == 0 {
		opts.Policy = PolicyAllOrNothing
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Matcher == nil {
		opts.Matcher = NewMatcher(defaultPatternCacheSize)
	}

	return &Evaluator{
		policy:       opts.Policy,
		mode:         opts.Mode,
		contextLines: opts.ContextLines,
		workers:      opts.Workers,
		matcher:      opts.Matcher,
		logger:       opts.Logger.With().Str("component", "rubric_evaluator").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-gradebook/pkg/rubric"),
	}
}

// Policy returns the scoring policy in use.
func (e *Evaluator) Policy() Policy {
	return e.policy
}

// Mode returns the keyword matching mode in use.
func (e *Evaluator) Mode() KeywordMode {
	return e.mode
}

// Evaluate scores every criterion in order. The corpus is never modified. When
// ctx is cancelled the partial result is discarded and ctx.Err() is returned.
func (e *Evaluator) Evaluate(parent context.Context, criteria []Criterion, corpus []SubmissionFile) (RubricResult, error) {
	ctx, span := e.tracer.Start(parent, "rubric.evaluate", trace.WithAttributes(
		attribute.String("rubric.policy", e.policy.String()),
		attribute.String("rubric.mode", e.mode.String()),
		attribute.Int("rubric.criteria", len(criteria)),
		attribute.Int("rubric.files", len(corpus)),
	))
	defer span.End()

	start := time.Now()
	readable, skipped := e.partitionReadable(corpus)

	result := RubricResult{
		Criteria:     make([]CriterionResult, 0, len(criteria)),
		SkippedFiles: skipped,
	}

	for _, criterion := range criteria {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "evaluation cancelled")
			return RubricResult{}, err
		}

		item, err := e.evaluateCriterion(ctx, normalizeCriterion(criterion), corpus, readable)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return RubricResult{}, err
		}

		result.Criteria = append(result.Criteria, item)
		result.TotalScore += item.EarnedScore
		result.MaxPossibleScore += item.MaxScore
		criterionOutcomes.WithLabelValues(e.policy.String(), outcome(item)).Inc()
	}

	if result.TotalScore < 0 {
		result.TotalScore = 0
	}

	evaluationDuration.WithLabelValues(e.policy.String()).Observe(time.Since(start).Seconds())
	e.logger.Info().
		Float64("total_score", result.TotalScore).
		Float64("max_score", result.MaxPossibleScore).
		Int("criteria", len(result.Criteria)).
		Int("skipped_files", len(result.SkippedFiles)).
		Msg("rubric evaluated")
	span.SetAttributes(attribute.Float64("rubric.total_score", result.TotalScore))

	return result, nil
}

func (e *Evaluator) partitionReadable(corpus []SubmissionFile) (map[string]bool, []string) {
	readable := make(map[string]bool, len(corpus))
	skipped := make([]string, 0)
	for _, file := range corpus {
		if err := CheckReadable(file); err != nil {
			readable[file.Path] = false
			skipped = append(skipped, file.Path)
			skippedFiles.Inc()
			e.logger.Warn().Err(err).Str("path", file.Path).Msg("skipping unreadable submission file")
			continue
		}
		readable[file.Path] = true
	}
	sort.Strings(skipped)
	return readable, skipped
}

func (e *Evaluator) evaluateCriterion(ctx context.Context, criterion Criterion, corpus []SubmissionFile, readable map[string]bool) (CriterionResult, error) {
	matched := e.matcher.Match(criterion.FilePatterns, corpus)

	scannable := make([]SubmissionFile, 0, len(matched.Files))
	for _, file := range matched.Files {
		if readable[file.Path] {
			scannable = append(scannable, file)
		}
	}

	scans, err := e.scanFiles(ctx, scannable, criterion.Keywords)
	if err != nil {
		return CriterionResult{}, err
	}

	found := make([]bool, len(criterion.Keywords))
	matches := make([]KeywordMatch, 0)
	fileHasAll := false
	for _, scan := range scans {
		for i, hit := range scan.Found {
			found[i] = found[i] || hit
		}
		if scan.HasAll() {
			fileHasAll = true
		}
		matches = append(matches, scan.Matches...)
	}

	foundKeywords := make([]string, 0)
	missingKeywords := make([]string, 0)
	for i, keyword := range criterion.Keywords {
		if found[i] {
			foundKeywords = append(foundKeywords, keyword)
		} else {
			missingKeywords = append(missingKeywords, keyword)
		}
	}

	item := CriterionResult{
		Title:           criterion.Title,
		MaxScore:        criterion.MaxScore,
		FoundFiles:      matched.Paths(),
		MissingFiles:    matched.Missing,
		FoundKeywords:   foundKeywords,
		MissingKeywords: missingKeywords,
		Matches:         matches,
	}

	filesMatched := len(matched.Files) > 0
	keywordsFound := len(foundKeywords) > 0

	switch e.policy {
	case PolicyAllOrNothing:
		if fileHasAll {
			item.EarnedScore = criterion.MaxScore
		}
	default:
		switch {
		case filesMatched && keywordsFound:
			item.EarnedScore = criterion.MaxScore
		case filesMatched || keywordsFound:
			item.EarnedScore = criterion.MaxScore * 0.5
		}
	}

	return item, nil
}

// scanFiles scans files concurrently and returns the scans in input order.
func (e *Evaluator) scanFiles(ctx context.Context, files []SubmissionFile, keywords []string) ([]FileScan, error) {
	scans := make([]FileScan, len(files))
	if len(files) == 0 {
		return scans, ctx.Err()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)
	for i, file := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			scans[i] = ScanFile(file, keywords, e.mode, e.contextLines)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scans, nil
}

func normalizeCriterion(c Criterion) Criterion {
	return Criterion{
		Title:        strings.TrimSpace(c.Title),
		MaxScore:     c.MaxScore,
		FilePatterns: compactStrings(c.FilePatterns),
		Keywords:     compactStrings(c.Keywords),
	}
}

// compactStrings trims entries, drops blanks and removes exact duplicates while
// keeping the first occurrence order.
func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func outcome(item CriterionResult) string {
	switch {
	case item.Met():
		return "met"
	case item.EarnedScore > 0:
		return "partial"
	default:
		return "unmet"
	}
}
