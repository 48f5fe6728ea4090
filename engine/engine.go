// Package engine abstracts the durable execution backend that drives a
// Pipeline run as a workflow (SPEC_FULL.md §4's durable-execution domain
// stack), mirroring the split the teacher draws between its generic
// workflow engine and the agent runtime built on top of it. Two adapters
// are provided: engine/inmem (goroutine-driven, default, sufficient for a
// single-process desktop app) and engine/temporalengine (durable
// replay/resume across process restarts, for deployments that run long
// iterative builds as a service).
package engine

import (
	"context"
	"time"

	"github.com/cadforge/codepilot/telemetry"
)

type (
	// Engine registers workflow/activity handlers and starts workflow
	// executions. Pipeline.Run is registered as a single workflow; each
	// model call and cadrunner invocation it makes is wrapped as an
	// activity so a durable engine can retry or resume them independently
	// of the workflow's own in-process state.
	Engine interface {
		RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error
		RegisterActivity(ctx context.Context, def ActivityDefinition) error
		StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
	}

	// WorkflowDefinition binds a workflow handler to a logical name and
	// default task queue.
	WorkflowDefinition struct {
		Name      string
		TaskQueue string
		Handler   WorkflowFunc
	}

	// WorkflowFunc is the durable entry point. It must be deterministic:
	// the only engine-visible side effects happen through
	// WorkflowContext.ExecuteActivity.
	WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

	// WorkflowContext exposes engine operations to a running workflow.
	WorkflowContext interface {
		Context() context.Context
		WorkflowID() string
		RunID() string
		ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error
		ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error)
		Logger() telemetry.Logger
		Metrics() telemetry.Metrics
		Tracer() telemetry.Tracer
		Now() time.Time
	}

	// Future is a pending activity result. Get blocks; IsReady polls.
	Future interface {
		Get(ctx context.Context, result any) error
		IsReady() bool
	}

	// ActivityDefinition registers a named activity handler.
	ActivityDefinition struct {
		Name    string
		Handler ActivityFunc
		Options ActivityOptions
	}

	// ActivityFunc performs the side-effecting work (model calls,
	// cadrunner subprocess invocation) a workflow schedules.
	ActivityFunc func(ctx context.Context, input any) (any, error)

	// ActivityOptions configures retry/timeout for one activity type.
	ActivityOptions struct {
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowStartRequest describes how to launch one workflow execution.
	WorkflowStartRequest struct {
		ID        string
		Workflow  string
		TaskQueue string
		Input     any
	}

	// ActivityRequest schedules one activity invocation from a workflow.
	ActivityRequest struct {
		Name        string
		Input       any
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowHandle lets a caller wait on or cancel a started workflow.
	WorkflowHandle interface {
		Wait(ctx context.Context, result any) error
		Cancel(ctx context.Context) error
	}

	// RetryPolicy is shared retry configuration for workflows and
	// activities. Zero-valued fields mean the engine's own defaults.
	RetryPolicy struct {
		MaxAttempts        int
		InitialInterval    time.Duration
		BackoffCoefficient float64
	}
)
