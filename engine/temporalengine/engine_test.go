package temporalengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cadforge/codepilot/engine"
)

func TestConvertRetryPolicyReturnsNilForZeroValue(t *testing.T) {
	require.Nil(t, convertRetryPolicy(engine.RetryPolicy{}))
}

func TestConvertRetryPolicyCopiesSetFields(t *testing.T) {
	policy := convertRetryPolicy(engine.RetryPolicy{
		MaxAttempts: 3, InitialInterval: 500 * time.Millisecond, BackoffCoefficient: 2,
	})
	require.NotNil(t, policy)
	require.Equal(t, int32(3), policy.MaximumAttempts)
	require.Equal(t, 500*time.Millisecond, policy.InitialInterval)
	require.Equal(t, 2.0, policy.BackoffCoefficient)
}

func TestActivityOptionsForFallsBackToEngineDefaults(t *testing.T) {
	e := &Engine{
		taskQueue:       "codepilot-default",
		activityOptions: map[string]engine.ActivityOptions{"generate_code": {Timeout: 10 * time.Second}},
	}
	opts := e.activityOptionsFor(engine.ActivityRequest{Name: "generate_code"})
	require.Equal(t, "codepilot-default", opts.TaskQueue)
	require.Equal(t, 10*time.Second, opts.StartToCloseTimeout)
}

func TestActivityOptionsForPerCallOverrideWins(t *testing.T) {
	e := &Engine{
		taskQueue:       "codepilot-default",
		activityOptions: map[string]engine.ActivityOptions{"generate_code": {Timeout: 10 * time.Second}},
	}
	opts := e.activityOptionsFor(engine.ActivityRequest{Name: "generate_code", Queue: "fast-lane", Timeout: 2 * time.Second})
	require.Equal(t, "fast-lane", opts.TaskQueue)
	require.Equal(t, 2*time.Second, opts.StartToCloseTimeout)
}
