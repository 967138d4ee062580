// Package transport is the JSON-over-HTTP plumbing shared by the model and
// lookup providers, and the classification of their failures.
//
// Connection failures, client timeouts, 429 and 5xx responses are transient
// and wrapped with the caller's sentinel (e.g. domain.ErrLLMUnavailable) so the
// core can decide to retry. Cancellation by the caller and other 4xx responses
// are returned unwrapped.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// maxBodyInError bounds how much of a response body is echoed in errors.
const maxBodyInError = 512

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// RequestError wraps a failed round trip.
func RequestError(ctx context.Context, provider string, err error, sentinel error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", provider, ctxErr)
	}
	return fmt.Errorf("%w: %s: %w", sentinel, provider, err)
}

// StatusError describes a non-2xx response.
func StatusError(provider string, status int, body []byte, sentinel error) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxBodyInError {
		msg = msg[:maxBodyInError] + "..."
	}
	if IsTransientStatus(status) {
		return fmt.Errorf("%w: %s returned status %d: %s", sentinel, provider, status, msg)
	}
	return fmt.Errorf("%s returned status %d: %s", provider, status, msg)
}
