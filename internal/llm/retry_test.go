package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foliolab/enrich/internal/logging"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestWithRetrySucceedsWithoutRetryOnFirstTry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), logging.New("test"), testPolicy(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithRetryRetriesTransientErrorsUntilSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), logging.New("test"), testPolicy(), func() error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), logging.New("test"), testPolicy(), func() error {
		calls++
		return errors.New("timeout")
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (MaxAttempts)", calls)
	}
}

func TestWithRetryDoesNotRetryNonTransientErrors(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), logging.New("test"), testPolicy(), func() error {
		calls++
		return errors.New("invalid api key")
	})
	if err == nil {
		t.Fatal("expected an error to propagate")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (non-retryable error should not retry)", calls)
	}
}

func TestIsRetryableErrorClassifiesKnownMarkers(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"429 too many requests", true},
		{"connection reset by peer", true},
		{"unexpected EOF", true},
		{"invalid request: missing field", false},
	}
	for _, c := range cases {
		got := isRetryableError(errors.New(c.msg))
		if got != c.want {
			t.Errorf("isRetryableError(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestWithRetryRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := withRetry(ctx, logging.New("test"), testPolicy(), func() error {
		calls++
		return nil
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0 (should not invoke op on a cancelled context)", calls)
	}
}
