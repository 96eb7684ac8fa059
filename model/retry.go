package model

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"
)

const (
	maxRetries = 5
	baseDelay  = 2 * time.Second
	maxDelay   = 60 * time.Second
)

// sendWithRetry retries transient failures (HTTP 429 and 5xx, surfaced by the
// SDK as *sdk.Error) with exponential backoff and jitter. Authentication
// errors (401/403) and any other API status are not retried; errors that are
// not *sdk.Error (e.g. network failures) are retried up to the same budget.
// log may be nil; it
// is used only for operator-facing retry diagnostics, never surfaced to the
// conversation.
func sendWithRetry[T any](ctx context.Context, log *zap.SugaredLogger, call func() (*T, error)) (*T, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if log != nil {
				log.Warnw("retrying anthropic request", "attempt", attempt, "error", lastErr)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(attempt - 1)):
			}
		}

		result, err := call()
		if err == nil {
			return result, nil
		}
		lastErr = err

		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
				return nil, err
			case apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
				continue
			default:
				return nil, err
			}
		}
		// Non-API errors (network, context) are retried up to the same budget.
	}
	return nil, lastErr
}

func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt)))
	delay += time.Duration(rand.Intn(1000)) * time.Millisecond
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
