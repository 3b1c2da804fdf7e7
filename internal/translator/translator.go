// Package translator provides the translation providers used by the
// dispatcher: an HTTP translation endpoint and an OpenAI-compatible chat
// model, plus a persistent exact-text cache.
package translator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"layout-translator/internal/document"
)

// Separator joins the items of a batched request. Providers are asked to keep
// it intact; callers must cope when they do not.
const Separator = "\n\n[[--SEG--]]\n\n"

// Translator is a translation provider
type Translator interface {
	// Translate translates one text
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	// TranslateBatch translates texts in one request. Implementations return
	// an ErrCountMismatch error when the answer does not hold one result per input.
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// StatusError is a non-2xx provider answer
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// ErrRejected is wrapped by errors for requests the provider answered with an
// explicit failure envelope
var ErrRejected = errors.New("provider rejected the request")

// IsRetryable reports whether a failed call is worth repeating.
// Rate limits, server errors, timeouts and transport failures are retryable;
// authentication failures, bad requests, explicit rejections and caller
// cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrRejected) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if document.IsCode(err, document.ErrInvalidInput) || document.IsCode(err, document.ErrConfig) {
		return false
	}
	return true
}

// providerError wraps a cause as a PROVIDER_ERROR
func providerError(message, details string, cause error) error {
	return document.NewErrorWithDetails(document.ErrProvider, message, details, cause)
}

// statusError builds the error for a non-2xx answer, keeping the short
// classification messages callers log
func statusError(statusCode int, details string) error {
	cause := &StatusError{StatusCode: statusCode, Body: details}
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return providerError("provider authentication failed", "invalid API key or unauthorized access", cause)
	case statusCode == http.StatusTooManyRequests:
		return providerError("provider rate limit exceeded", details, cause)
	case statusCode == http.StatusBadRequest:
		return providerError("invalid provider request", details, cause)
	case statusCode >= 500:
		return providerError("provider server error", fmt.Sprintf("status %d: %s", statusCode, details), cause)
	default:
		return providerError("provider request failed", fmt.Sprintf("status %d: %s", statusCode, details), cause)
	}
}
