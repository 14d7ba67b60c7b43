// Package embedding holds the pieces shared by the embedding provider
// adapters: failure classification and request throttling.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// maxErrorBody caps how much of a response body ends up in an error.
const maxErrorBody = 512

// StatusError classifies a non-200 response. Rate limiting, timeouts and
// server errors are retryable; other client errors are not.
func StatusError(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	err := fmt.Errorf("%s: status %d: %s", provider, status, msg)

	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		return domain.Transient(fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err))
	default:
		return domain.Permanent(err)
	}
}

// TransportError classifies a failure to reach the provider. Cancellation
// is returned unchanged so callers can tell it apart from an outage.
func TransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.Transient(fmt.Errorf("%w: %s: %w", domain.ErrEmbeddingUnavailable, provider, err))
}

// NewLimiter returns a limiter allowing perSecond requests, or nil for
// unlimited.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Wait blocks until the limiter admits a request. A nil limiter never blocks.
func Wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}
