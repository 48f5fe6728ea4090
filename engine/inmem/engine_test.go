package inmem

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cadforge/codepilot/engine"
)

func TestStartWorkflowRunsHandlerAndReturnsResult(t *testing.T) {
	e := New()
	require.NoError(t, e.RegisterWorkflow(context.Background(), engine.WorkflowDefinition{
		Name: "echo",
		Handler: func(ctx engine.WorkflowContext, input any) (any, error) {
			return input, nil
		},
	}))

	h, err := e.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID: "run-1", Workflow: "echo", Input: "hello",
	})
	require.NoError(t, err)

	var result string
	require.NoError(t, h.Wait(context.Background(), &result))
	require.Equal(t, "hello", result)
}

func TestWorkflowExecutesActivity(t *testing.T) {
	e := New()
	require.NoError(t, e.RegisterActivity(context.Background(), engine.ActivityDefinition{
		Name: "double",
		Handler: func(ctx context.Context, input any) (any, error) {
			return input.(int) * 2, nil
		},
	}))
	require.NoError(t, e.RegisterWorkflow(context.Background(), engine.WorkflowDefinition{
		Name: "doubler",
		Handler: func(ctx engine.WorkflowContext, input any) (any, error) {
			var out int
			if err := ctx.ExecuteActivity(ctx.Context(), engine.ActivityRequest{Name: "double", Input: input}, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}))

	h, err := e.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID: "run-2", Workflow: "doubler", Input: 21,
	})
	require.NoError(t, err)

	var result int
	require.NoError(t, h.Wait(context.Background(), &result))
	require.Equal(t, 42, result)
}

func TestStartWorkflowUnregisteredReturnsError(t *testing.T) {
	e := New()
	_, err := e.StartWorkflow(context.Background(), engine.WorkflowStartRequest{ID: "run-3", Workflow: "missing"})
	require.Error(t, err)
}

func TestWorkflowErrorPropagatesToWait(t *testing.T) {
	e := New()
	boom := errors.New("boom")
	require.NoError(t, e.RegisterWorkflow(context.Background(), engine.WorkflowDefinition{
		Name: "failer",
		Handler: func(ctx engine.WorkflowContext, input any) (any, error) {
			return nil, boom
		},
	}))

	h, err := e.StartWorkflow(context.Background(), engine.WorkflowStartRequest{ID: "run-4", Workflow: "failer"})
	require.NoError(t, err)
	require.ErrorIs(t, h.Wait(context.Background(), nil), boom)
}
