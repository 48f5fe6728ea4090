package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cadforge/codepilot/cadrunner"
	"github.com/cadforge/codepilot/errclass"
	"github.com/cadforge/codepilot/events"
	"github.com/cadforge/codepilot/model"
	"github.com/cadforge/codepilot/plan"
	"github.com/cadforge/codepilot/review"
	"github.com/cadforge/codepilot/rulestore"
	"github.com/cadforge/codepilot/runstore"
	"github.com/cadforge/codepilot/session"
)

const samplePlan = `Object Analysis:
A simple rectangular bracket.

Approach:
Extrude a base and drill mounting holes.

Build Plan:
1. Extrude base 50x30x5mm.
2. Drill two 4mm holes.

Approximation Notes:
None.
`

type queueClient struct {
	responses []string
	calls     int
}

func (c *queueClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	text := c.responses[c.calls]
	c.calls++
	return &model.Response{Text: text}, nil
}
func (c *queueClient) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, nil
}

type okRunner struct{}

func (okRunner) Run(context.Context, string, time.Duration) (cadrunner.Outcome, error) {
	return cadrunner.Outcome{MeshBytes: []byte("mesh")}, nil
}

type failingRunner struct{}

func (failingRunner) Run(context.Context, string, time.Duration) (cadrunner.Outcome, error) {
	return cadrunner.Outcome{Failure: &errclass.Envelope{ExitCode: 7, Stderr: "RuntimeError: fail"}}, nil
}

func newTestPipeline(client model.Client, runner cadrunner.Runner) *Pipeline {
	ruleStore := rulestore.NewStaticStore([]rulestore.RuleSet{
		{PresetID: "default", DimensionRange: rulestore.DimensionRange{Min: 0.01, Max: 10000}},
	})
	return New(planFromClient(client), ruleStore, session.NewInMemoryStore(), client, runner, reviewFromClient(client), events.NewBus())
}

func planFromClient(client model.Client) *plan.Planner { return plan.New(client) }
func reviewFromClient(client model.Client) *review.Reviewer { return review.New(client) }

func TestRunSingleShotSucceeds(t *testing.T) {
	client := &queueClient{responses: []string{
		samplePlan,
		"<CODE>\nbracket code\n</CODE>",
		`{"approved": true, "issues": []}`,
	}}
	p := newTestPipeline(client, okRunner{})

	result, err := p.Run(context.Background(), "run-1", "session-1", Request{Text: "make a bracket"}, Options{})
	require.NoError(t, err)
	require.Equal(t, session.OutcomeSuccess, result.Outcome)
	require.Equal(t, ModeSingleShot, result.Mode)
	require.True(t, result.Review.Approved)
	require.Equal(t, []byte("mesh"), result.MeshBytes)
}

func TestRunRecordsSessionHistory(t *testing.T) {
	client := &queueClient{responses: []string{
		samplePlan,
		"<CODE>\nbracket code\n</CODE>",
		`{"approved": true, "issues": []}`,
	}}
	sessions := session.NewInMemoryStore()
	ruleStore := rulestore.NewStaticStore([]rulestore.RuleSet{{PresetID: "default", DimensionRange: rulestore.DimensionRange{Min: 0.01, Max: 10000}}})
	p := New(plan.New(client), ruleStore, sessions, client, okRunner{}, review.New(client), events.NewBus())

	_, err := p.Run(context.Background(), "run-1", "session-1", Request{Text: "make a bracket"}, Options{})
	require.NoError(t, err)

	history, err := sessions.History(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, session.OutcomeSuccess, history[0].Outcome)
}

func TestRunModificationSkipsPlanning(t *testing.T) {
	client := &queueClient{responses: []string{
		"<CODE>\ntaller bracket code\n</CODE>",
		`{"approved": true, "issues": []}`,
	}}
	p := newTestPipeline(client, okRunner{})

	var sawPlanStarted bool
	p.Bus.Register(events.SubscriberFunc(func(_ context.Context, e events.Event) error {
		if e.Type() == events.TypePlanStarted {
			sawPlanStarted = true
		}
		return nil
	}))

	result, err := p.Run(context.Background(), "run-1", "session-1", Request{
		Text: "make it 5mm taller", ExistingCode: "existing code here",
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, ModeModification, result.Mode)
	require.False(t, sawPlanStarted)
}

func TestRunExecutionFailureRecordsFailureOutcome(t *testing.T) {
	client := &queueClient{responses: []string{
		samplePlan,
		"<CODE>\nbracket code\n</CODE>",
		"<CODE>\nbracket code retry 1\n</CODE>",
		"<CODE>\nbracket code retry 2\n</CODE>",
	}}
	p := newTestPipeline(client, failingRunner{})

	result, err := p.Run(context.Background(), "run-1", "session-1", Request{Text: "make a bracket"}, Options{})
	require.NoError(t, err)
	require.Equal(t, session.OutcomeFailure, result.Outcome)
	require.Empty(t, result.MeshBytes)

	rec, err := p.Runs.Load(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, runstore.StatusFailed, rec.Status)
}

func TestRunRecordsRunStatusTransitions(t *testing.T) {
	client := &queueClient{responses: []string{
		samplePlan,
		"<CODE>\nbracket code\n</CODE>",
		`{"approved": true, "issues": []}`,
	}}
	p := newTestPipeline(client, okRunner{})

	_, err := p.Run(context.Background(), "run-1", "session-1", Request{Text: "make a bracket"}, Options{})
	require.NoError(t, err)

	rec, err := p.Runs.Load(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, runstore.StatusSucceeded, rec.Status)
	require.Equal(t, string(ModeSingleShot), rec.Mode)
	require.False(t, rec.StartedAt.IsZero())
}
