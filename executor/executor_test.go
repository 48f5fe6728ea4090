package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cadforge/codepilot/cadrunner"
	"github.com/cadforge/codepilot/errclass"
	"github.com/cadforge/codepilot/model"
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

func TestRunSucceedsFirstAttempt(t *testing.T) {
	runner := &scriptedRunner{outcomes: []cadrunner.Outcome{{MeshBytes: []byte("mesh")}}}
	e := New(runner, &scriptedClient{})
	outcome, err := e.Run(context.Background(), "sys", "code")
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.Equal(t, 1, outcome.Attempts)
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	runner := &scriptedRunner{outcomes: []cadrunner.Outcome{
		{Failure: &errclass.Envelope{ExitCode: 2, Stderr: "SyntaxError: bad"}},
		{MeshBytes: []byte("mesh")},
	}}
	client := &scriptedClient{responses: []string{"<CODE>\nfixed code\n</CODE>"}}
	e := New(runner, client)
	outcome, err := e.Run(context.Background(), "sys", "code")
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.Equal(t, 2, outcome.Attempts)
	require.Equal(t, 1, client.calls)
}

func TestRunExhaustsMaxAttempts(t *testing.T) {
	runner := &scriptedRunner{outcomes: []cadrunner.Outcome{
		{Failure: &errclass.Envelope{ExitCode: 7, Stderr: "RuntimeError: oops"}},
		{Failure: &errclass.Envelope{ExitCode: 7, Stderr: "RuntimeError: oops again"}},
		{Failure: &errclass.Envelope{ExitCode: 7, Stderr: "RuntimeError: still failing"}},
	}}
	client := &scriptedClient{responses: []string{"<CODE>\nattempt2\n</CODE>", "<CODE>\nattempt3\n</CODE>"}}
	e := New(runner, client)
	outcome, err := e.Run(context.Background(), "sys", "code")
	require.NoError(t, err)
	require.False(t, outcome.Success)
	require.Equal(t, 3, outcome.Attempts)
	require.Equal(t, errclass.KindRuntime, outcome.LastError.Kind)
}

func TestRunStopsOnTerminalStrategyWithoutExtraModelCall(t *testing.T) {
	runner := &scriptedRunner{outcomes: []cadrunner.Outcome{
		{Failure: &errclass.Envelope{ExitCode: 2, Stderr: "SyntaxError: bad"}},
		{Failure: &errclass.Envelope{ExitCode: 2, Stderr: "SyntaxError: still bad"}},
		{Failure: &errclass.Envelope{ExitCode: 2, Stderr: "SyntaxError: bad again"}},
	}}
	client := &scriptedClient{responses: []string{"<CODE>\nattempt2\n</CODE>", "<CODE>\nattempt3\n</CODE>"}}
	e := New(runner, client)
	e.MaxAttempts = 5
	outcome, err := e.Run(context.Background(), "sys", "code")
	require.NoError(t, err)
	require.False(t, outcome.Success)
	require.Equal(t, 3, outcome.Attempts)
	require.Equal(t, 2, client.calls)
}

func TestObserverIsCalledPerAttempt(t *testing.T) {
	runner := &scriptedRunner{outcomes: []cadrunner.Outcome{{MeshBytes: []byte("mesh")}}}
	e := New(runner, &scriptedClient{})
	var observed int
	e.Observer = func(attempt int, _ cadrunner.Outcome, category *errclass.Category) {
		observed = attempt
		require.Nil(t, category)
	}
	_, err := e.Run(context.Background(), "sys", "code")
	require.NoError(t, err)
	require.Equal(t, 1, observed)
}
