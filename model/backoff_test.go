package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsWithoutRetryingOnFirstSuccess(t *testing.T) {
	calls := 0
	out, err := WithRetry(context.Background(), DefaultRetryPolicy(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 1, calls)
}

func TestWithRetryStopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	wantErr := NewProviderError("anthropic", "messages.new", 400, ProviderErrorKindInvalidRequest, "", "bad request", nil)
	_, err := WithRetry(context.Background(), DefaultRetryPolicy(), func(context.Context) (string, error) {
		calls++
		return "", wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, calls)
}

func TestWithRetryRetriesRetryableErrorUpToMaxAttempts(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
	wantErr := NewProviderError("anthropic", "messages.new", 429, ProviderErrorKindRateLimited, "", "rate limited", nil)
	_, err := WithRetry(context.Background(), policy, func(context.Context) (string, error) {
		calls++
		return "", wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 3, calls)
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
	out, err := WithRetry(context.Background(), policy, func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", NewProviderError("anthropic", "messages.new", 503, ProviderErrorKindUnavailable, "", "overloaded", nil)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 2, calls)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Second}
	calls := 0
	_, err := WithRetry(ctx, policy, func(context.Context) (string, error) {
		calls++
		return "", NewProviderError("anthropic", "messages.new", 429, ProviderErrorKindRateLimited, "", "rate limited", nil)
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
