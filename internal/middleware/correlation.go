package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/noah-isme/gema-gradebook/internal/observability"
)

// HeaderCorrelationID is read from requests and echoed on every response.
const HeaderCorrelationID = "X-Correlation-ID"

const localCorrelationID = "correlation_id"

// CorrelationID tags the request with the caller's X-Correlation-ID or
// X-Request-ID, generating a uuid when neither is present. The id is stored in
// the request locals and in the user context handed to services.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(HeaderCorrelationID))
		if id == "" {
			id = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(localCorrelationID, id)
		c.Set(HeaderCorrelationID, id)
		c.SetUserContext(observability.ContextWithCorrelation(c.UserContext(), id))

		return c.Next()
	}
}

// GetCorrelationID returns the correlation id of the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(localCorrelationID).(string); ok {
		return id
	}
	return observability.CorrelationIDFromContext(c.UserContext())
}
