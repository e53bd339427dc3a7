// Package apierr provides shared error sentinels, classification, and retry
// infrastructure for HTTP-based API clients. All provider-specific error
// types are classified into these sentinels at the adapter boundary.
//
// Adapters map HTTP status codes to these errors using
// fmt.Errorf("%s: %w", msg, sentinel). Callers check with
// errors.Is(err, apierr.ErrRateLimit) etc. and never re-inspect messages.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Sentinel errors for API interaction failures.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")

	// ErrCorruptInput indicates the service rejected the uploaded media as
	// undecodable. Unrecoverable for that input; the caller should quarantine it.
	ErrCorruptInput = errors.New("corrupt or undecodable input")
)

// corruptionKeywords identify service rejections caused by broken input.
// Matched once here so callers only ever see ErrCorruptInput.
var corruptionKeywords = []string{
	"invalid",
	"corrupt",
	"malformed",
	"unsupported",
	"decode",
	"bad request",
	"invalid_request_error",
}

// isCorruptionMessage reports whether an API error message describes
// undecodable input rather than a transient condition.
func isCorruptionMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range corruptionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Classify maps an OpenAI API error to a sentinel error.
// Unclassified errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			// Distinguish temporary rate limits from quota exhaustion:
			// the latter requires user action and must not be retried.
			if strings.Contains(apiErr.Message, "quota") ||
				strings.Contains(apiErr.Message, "billing") {
				return fmt.Errorf("%s: %w", apiErr.Message, ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, ErrRateLimit)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrAuthFailed)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrTimeout)
		case http.StatusBadRequest:
			if isCorruptionMessage(apiErr.Message) || isCorruptionMessage(apiErr.Type) {
				return fmt.Errorf("%s: %w", apiErr.Message, ErrCorruptInput)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, ErrBadRequest)
		case http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrBadRequest)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", ErrTimeout)
	}

	// Untyped transport errors: fall back to message inspection once, here.
	if isCorruptionMessage(err.Error()) {
		return fmt.Errorf("%v: %w", err, ErrCorruptInput)
	}

	return err
}

// IsRetryable determines if an error is transient and should be retried.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout) {
		return true
	}

	// Server errors (5xx) are retryable.
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	// Cancellation, auth failures, quota exhaustion, and corrupt input
	// cannot be fixed by waiting.
	return false
}
