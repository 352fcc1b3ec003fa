package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	feedbackDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "feedback_duration_seconds",
		Help:      "Duration of AI feedback requests",
	}, []string{"model"})

	feedbackFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "feedback_failures_total",
		Help:      "Number of AI feedback failures",
	}, []string{"model"})
)

const maxEvidencePerCriterion = 3

// completionClient is the subset of the OpenAI client used here.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures the OpenAI feedback writer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIFeedbackWriter writes feedback with the OpenAI chat completion API.
type OpenAIFeedbackWriter struct {
	client completionClient
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIFeedbackWriter builds a writer from cfg.
func NewOpenAIFeedbackWriter(cfg OpenAIConfig) (*OpenAIFeedbackWriter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	return newOpenAIFeedbackWriter(openai.NewClient(cfg.APIKey), cfg), nil
}

func newOpenAIFeedbackWriter(client completionClient, cfg OpenAIConfig) *OpenAIFeedbackWriter {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	return &OpenAIFeedbackWriter{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-gradebook/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_feedback").Logger(),
	}
}

// Write asks the model for a JSON summary of the rubric result.
func (w *OpenAIFeedbackWriter) Write(parent context.Context, input FeedbackInput) (Feedback, error) {
	ctx, span := w.tracer.Start(parent, "openai.feedback", trace.WithAttributes(
		attribute.String("model", w.cfg.Model),
		attribute.Int("rubric.criteria", len(input.Result.Criteria)),
	))
	defer span.End()

	start := time.Now()
	resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       w.cfg.Model,
		MaxTokens:   w.cfg.MaxTokens,
		Temperature: w.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: feedbackSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildFeedbackPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	feedbackDuration.WithLabelValues(w.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return Feedback{}, w.fail(span, fmt.Errorf("openai feedback: %w", err))
	}
	if len(resp.Choices) == 0 {
		return Feedback{}, w.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	feedback, err := parseFeedback(resp.Choices[0].Message.Content)
	if err != nil {
		return Feedback{}, w.fail(span, err)
	}
	feedback.Model = w.cfg.Model

	w.logger.Debug().Int("completion_tokens", resp.Usage.CompletionTokens).Msg("feedback generated")
	return feedback, nil
}

func (w *OpenAIFeedbackWriter) fail(span trace.Span, err error) error {
	feedbackFailures.WithLabelValues(w.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

const feedbackSystemPrompt = "You are a teaching assistant summarising an automated rubric check of a student's code. " +
	"Respond with a JSON object with keys summary (string, at most three sentences), strengths (array of strings) " +
	"and improvements (array of strings). Only refer to the evidence provided."

func buildFeedbackPrompt(input FeedbackInput) string {
	var b strings.Builder
	if input.ActivityName != "" {
		fmt.Fprintf(&b, "# Activity\n%s\n\n", input.ActivityName)
	}
	if input.RepositoryURL != "" {
		fmt.Fprintf(&b, "# Repository\n%s\n\n", input.RepositoryURL)
	}
	fmt.Fprintf(&b, "# Score\n%.2f / %.2f (%.1f%%)\n", input.Result.TotalScore, input.Result.MaxPossibleScore, input.Result.Percentage())

	for _, item := range input.Result.Criteria {
		fmt.Fprintf(&b, "\n## %s (%.2f / %.2f)\n", item.Title, item.EarnedScore, item.MaxScore)
		if len(item.MissingFiles) > 0 {
			fmt.Fprintf(&b, "Missing files: %s\n", strings.Join(item.MissingFiles, ", "))
		}
		if len(item.FoundKeywords) > 0 {
			fmt.Fprintf(&b, "Found keywords: %s\n", strings.Join(item.FoundKeywords, ", "))
		}
		if len(item.MissingKeywords) > 0 {
			fmt.Fprintf(&b, "Missing keywords: %s\n", strings.Join(item.MissingKeywords, ", "))
		}
		for i, match := range item.Matches {
			if i == maxEvidencePerCriterion {
				break
			}
			fmt.Fprintf(&b, "Evidence %s:%d: %s\n", match.File, match.LineNumber, match.Line)
		}
	}
	return b.String()
}

func parseFeedback(content string) (Feedback, error) {
	var feedback Feedback
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &feedback); err != nil {
		return Feedback{}, fmt.Errorf("parse feedback json: %w", err)
	}
	if strings.TrimSpace(feedback.Summary) == "" {
		return Feedback{}, fmt.Errorf("feedback summary is empty")
	}
	if feedback.Strengths == nil {
		feedback.Strengths = []string{}
	}
	if feedback.Improvements == nil {
		feedback.Improvements = []string{}
	}
	return feedback, nil
}
