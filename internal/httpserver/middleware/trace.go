package middleware

import (
	"github.com/davidbz/marketmatch/internal/observability"
)

// Trace injects trace, span, and request IDs into every request context and
// logs request start. Implemented by the observability package so logging
// and ID generation stay in one place.
func Trace() Middleware {
	return observability.Trace()
}
