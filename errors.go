package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeRateLimited      = "auth_rate_limited"
	TextCodeStoreUnavailable = "auth_store_unavailable"
	TextCodeSessionMissing   = "auth_session_missing"
)

// ErrRateLimited is returned when the remote service is throttling requests.
// Callers must not clear resolved auth state in response.
var ErrRateLimited = errors.New("Too Many Requests", errors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited)

// ErrStoreUnavailable is returned by the no-op store and when the service
// cannot be constructed from configuration.
var ErrStoreUnavailable = errors.New("auth service is not configured", errors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(errors.CodeInternal)

// ErrSessionMissing is returned when an operation needs a session and the
// store has none.
var ErrSessionMissing = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionMissing).
	WithCode(errors.CodeUnauthorized)

// IsRateLimitError reports whether err indicates the remote service is
// throttling us. Matches structured errors by category and, for errors that
// come back as raw service messages, the literal wording the service uses.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var rich *errors.Error
	if errors.As(err, &rich) && rich.Category == errors.CategoryRateLimit {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "Too Many Requests") ||
		strings.Contains(msg, "over_request_rate_limit")
}

// ErrorMessage extracts a user-displayable message from err. Structured
// errors surface their message verbatim; anything else gets a generic line so
// raw transport errors never reach a form.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var rich *errors.Error
	if errors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}

	return "An unexpected error occurred. Please try again."
}
