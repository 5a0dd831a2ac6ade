package llm

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/foliolab/enrich/internal/logging"
)

// withRetry runs op with exponential backoff: MaxAttempts attempts,
// delay doubling from BaseDelay up to MaxDelay with jitter, retrying
// only errors isRetryableError classifies as transient.
func withRetry(ctx context.Context, log *logging.Logger, policy RetryPolicy, op func() error) error {
	var lastErr error
	delay := policy.BaseDelay
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isRetryableError(lastErr) {
			return lastErr
		}
		log.Warnf("attempt %d/%d failed: %v", attempt, policy.MaxAttempts, lastErr)
		if attempt == policy.MaxAttempts {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(delay) / 2))
		select {
		case <-time.After(delay + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return lastErr
}

// isRetryableError classifies rate limits, server errors, timeouts
// and connection failures as retryable, matching on HTTP status text
// and network error strings.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "500", "502", "503", "504", "timeout", "connection reset", "connection refused", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
