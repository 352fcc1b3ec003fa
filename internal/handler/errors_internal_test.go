package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gradebook/internal/service"
	"github.com/noah-isme/gema-gradebook/pkg/corpus"
	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

func TestErrorStatusMapping(t *testing.T) {
	type payload struct {
		Name string `validate:"required"`
	}
	validationErr := validator.New().Struct(payload{})
	require.Error(t, validationErr)

	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"rubric validation", &rubric.ValidationError{Message: "Rubric must contain at least one item."}, fiber.StatusBadRequest, "Rubric must contain at least one item."},
		{"struct validation", validationErr, fiber.StatusBadRequest, validationErr.Error()},
		{"repository url", fmt.Errorf("scan: %w", corpus.ErrInvalidRepositoryURL), fiber.StatusBadRequest, "Invalid GitHub repository URL."},
		{"points", service.ErrPointsExceedMax, fiber.StatusBadRequest, service.ErrPointsExceedMax.Error()},
		{"template missing", service.ErrActivityTemplateNotFound, fiber.StatusNotFound, "activity template not found"},
		{"scan missing", service.ErrScanNotFound, fiber.StatusNotFound, "repository scan not found"},
		{"corpus", fmt.Errorf("%w: empty", rubric.ErrCorpusUnavailable), fiber.StatusUnprocessableEntity, "submission corpus unavailable: empty"},
		{"clone", corpus.ErrCloneFailed, fiber.StatusUnprocessableEntity, corpus.ErrCloneFailed.Error()},
		{"no rubric", service.ErrTemplateHasNoRubric, fiber.StatusUnprocessableEntity, "activity template has no rubric"},
		{"feature", service.ErrFeatureUnavailable, fiber.StatusServiceUnavailable, "feature unavailable"},
		{"deadline", fmt.Errorf("clone: %w", context.DeadlineExceeded), fiber.StatusGatewayTimeout, "request timed out"},
		{"unknown", errors.New("pq: connection reset"), fiber.StatusInternalServerError, "failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, message := errorStatus(tc.err, "failed")
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.message, message)
		})
	}
}
