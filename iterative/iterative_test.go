package iterative

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cadforge/codepilot/cadrunner"
	"github.com/cadforge/codepilot/errclass"
	"github.com/cadforge/codepilot/model"
	"github.com/cadforge/codepilot/plan"
)

type scriptedRunner struct {
	outcomes []cadrunner.Outcome
	calls    int
}

func (r *scriptedRunner) Run(context.Context, string, time.Duration) (cadrunner.Outcome, error) {
	o := r.outcomes[r.calls]
	r.calls++
	return o, nil
}

type scriptedClient struct {
	responses []string
	calls     int
}

func (c *scriptedClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	text := c.responses[c.calls]
	c.calls++
	return &model.Response{Text: text}, nil
}
func (c *scriptedClient) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, nil
}

func steps(n int) []plan.BuildStep {
	out := make([]plan.BuildStep, n)
	for i := range out {
		out[i] = plan.BuildStep{Index: i, Description: "step", Operation: plan.OpExtrude}
	}
	return out
}

func TestShouldTriggerOnStepCount(t *testing.T) {
	require.True(t, ShouldTrigger(steps(4)))
	require.False(t, ShouldTrigger(steps(3)))
}

func TestShouldTriggerOnRiskyOp(t *testing.T) {
	s := []plan.BuildStep{{Index: 0, Operation: plan.OpShell}}
	require.True(t, ShouldTrigger(s))
}

func TestRunAllStepsSucceed(t *testing.T) {
	runner := &scriptedRunner{outcomes: []cadrunner.Outcome{
		{MeshBytes: []byte("m1")},
		{MeshBytes: []byte("m2")},
	}}
	client := &scriptedClient{responses: []string{
		"<CODE>\ncode after step 0\n</CODE>",
		"<CODE>\ncode after step 1\n</CODE>",
	}}
	b := &Builder{Runner: runner, Client: client}

	result, err := b.Run(context.Background(), "sys", "", steps(2))
	require.NoError(t, err)
	require.Equal(t, "code after step 1", result.Code)
	require.Empty(t, result.SkippedIndices)
	require.False(t, result.StoppedEarly)
	for _, s := range result.Steps {
		require.Equal(t, StepSucceeded, s.State)
	}
}

func TestRunSkipsStepAfterExhaustingRetries(t *testing.T) {
	failure := cadrunner.Outcome{Failure: &errclass.Envelope{ExitCode: 7, Stderr: "RuntimeError: oops"}}
	runner := &scriptedRunner{outcomes: []cadrunner.Outcome{
		failure, failure, failure, // step 0 exhausts its 3 attempts
		{MeshBytes: []byte("m-final")}, // step 1 succeeds first try
	}}
	client := &scriptedClient{responses: []string{
		"<CODE>\nstep0 attempt1\n</CODE>",
		"<CODE>\nstep0 attempt2\n</CODE>",
		"<CODE>\nstep0 attempt3\n</CODE>",
		"<CODE>\nstep1 code\n</CODE>",
	}}
	b := &Builder{Runner: runner, Client: client}

	result, err := b.Run(context.Background(), "sys", "", steps(2))
	require.NoError(t, err)
	require.Equal(t, []int{0}, result.SkippedIndices)
	require.Equal(t, "step1 code", result.Code)
	require.Equal(t, StepSkipped, result.Steps[0].State)
	require.Equal(t, StepSucceeded, result.Steps[1].State)
}

func TestHardProtectionStopsEarlyOnTwoConsecutiveSkips(t *testing.T) {
	failure := cadrunner.Outcome{Failure: &errclass.Envelope{ExitCode: 7, Stderr: "RuntimeError: oops"}}
	runner := &scriptedRunner{outcomes: []cadrunner.Outcome{
		failure, failure, failure, // step 0 skipped
		failure, failure, failure, // step 1 skipped -> hard protection trips
	}}
	client := &scriptedClient{responses: []string{
		"<CODE>\na\n</CODE>", "<CODE>\nb\n</CODE>", "<CODE>\nc\n</CODE>",
		"<CODE>\nd\n</CODE>", "<CODE>\ne\n</CODE>", "<CODE>\nf\n</CODE>",
	}}
	var tripped int
	b := &Builder{
		Runner: runner, Client: client,
		HardProtection: func(consecutiveSkips int) bool {
			tripped = consecutiveSkips
			return true
		},
	}

	result, err := b.Run(context.Background(), "sys", "prior-code", steps(3))
	require.NoError(t, err)
	require.True(t, result.StoppedEarly)
	require.Equal(t, 2, tripped)
	require.Equal(t, "prior-code", result.Code)
	require.Equal(t, []int{0, 1, 2}, result.SkippedIndices)
	require.Equal(t, 2, runner.calls/3)
}

func TestStepObserverSeesTransitions(t *testing.T) {
	runner := &scriptedRunner{outcomes: []cadrunner.Outcome{{MeshBytes: []byte("m")}}}
	client := &scriptedClient{responses: []string{"<CODE>\ncode\n</CODE>"}}
	var states []StepState
	b := &Builder{Runner: runner, Client: client, StepObserver: func(_ int, state StepState, _ string) {
		states = append(states, state)
	}}

	_, err := b.Run(context.Background(), "sys", "", steps(1))
	require.NoError(t, err)
	require.Equal(t, []StepState{StepGenerating, StepExecuting, StepSucceeded}, states)
}
