// Package temporalengine adapts Temporal (go.temporal.io/sdk) to the
// engine.Engine contract, giving long iterative builds durable replay and
// resume across process restarts (SPEC_FULL.md §4's durable-execution
// domain stack). Grounded on runtime/agent/engine/temporal, trimmed to
// this module's narrower engine.Engine contract: one default task queue,
// no child workflows, no signal channels (Pipeline never uses either).
package temporalengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	tclient "go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	tsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/cadforge/codepilot/engine"
	"github.com/cadforge/codepilot/telemetry"
)

// Options configures the Temporal engine adapter.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, ClientOptions
	// builds a lazy client via tclient.NewLazyClient.
	Client tclient.Client
	// ClientOptions builds the client when Client is nil.
	ClientOptions tclient.Options
	// TaskQueue is the default queue every workflow/activity registers
	// against; the single worker is created for this queue alone.
	TaskQueue string
	// Logger/Metrics/Tracer default to no-ops when nil.
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// Engine implements engine.Engine on top of a single Temporal worker.
type Engine struct {
	client      tclient.Client
	closeClient bool
	taskQueue   string
	worker      worker.Worker
	started     bool

	mu              sync.Mutex
	activityOptions map[string]engine.ActivityOptions

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer
}

// New constructs a Temporal engine adapter and its worker, but does not
// start the worker — RegisterWorkflow/RegisterActivity must run first;
// StartWorkflow starts the worker lazily on first use.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, errors.New("temporalengine: task queue is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		clientOpts := opts.ClientOptions
		interceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
		if err != nil {
			return nil, fmt.Errorf("temporalengine: build otel interceptor: %w", err)
		}
		clientOpts.Interceptors = append(clientOpts.Interceptors, interceptor)
		cli, err = tclient.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporalengine: create client: %w", err)
		}
		closeClient = true
	}

	w := worker.New(cli, opts.TaskQueue, worker.Options{})

	return &Engine{
		client:          cli,
		closeClient:     closeClient,
		taskQueue:       opts.TaskQueue,
		worker:          w,
		activityOptions: make(map[string]engine.ActivityOptions),
		logger:          logger,
		metrics:         metrics,
		tracer:          tracer,
	}, nil
}

// RegisterWorkflow registers def with the Temporal worker under def.Name,
// wrapping the Temporal workflow.Context into this module's
// engine.WorkflowContext so the handler stays engine-agnostic.
func (e *Engine) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("temporalengine: invalid workflow definition")
	}
	e.worker.RegisterWorkflowWithOptions(func(tctx workflow.Context, input any) (any, error) {
		return def.Handler(newWorkflowContext(e, tctx), input)
	}, workflow.RegisterOptions{Name: def.Name})
	return nil
}

// RegisterActivity registers def's handler with the Temporal worker under
// def.Name, recording def.Options as the per-name defaults applied by
// activityOptionsFor when a workflow calls ExecuteActivity.
func (e *Engine) RegisterActivity(_ context.Context, def engine.ActivityDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("temporalengine: invalid activity definition")
	}
	e.worker.RegisterActivityWithOptions(func(ctx context.Context, input any) (any, error) {
		return def.Handler(ctx, input)
	}, activity.RegisterOptions{Name: def.Name})

	e.mu.Lock()
	e.activityOptions[def.Name] = def.Options
	e.mu.Unlock()
	return nil
}

// StartWorkflow starts the worker (once) and launches a new workflow
// execution via the Temporal client.
func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	if err := e.ensureStarted(); err != nil {
		return nil, err
	}
	queue := req.TaskQueue
	if queue == "" {
		queue = e.taskQueue
	}
	run, err := e.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:        req.ID,
		TaskQueue: queue,
	}, req.Workflow, req.Input)
	if err != nil {
		return nil, fmt.Errorf("temporalengine: start workflow %q: %w", req.Workflow, err)
	}
	return &handle{client: e.client, run: run}, nil
}

func (e *Engine) ensureStarted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	if err := e.worker.Start(); err != nil {
		return fmt.Errorf("temporalengine: start worker: %w", err)
	}
	e.started = true
	return nil
}

// Close stops the worker and, if this Engine created its own client,
// closes it too.
func (e *Engine) Close() {
	e.worker.Stop()
	if e.closeClient {
		e.client.Close()
	}
}

type handle struct {
	client tclient.Client
	run    tclient.WorkflowRun
}

func (h *handle) Wait(ctx context.Context, result any) error {
	return normalize(h.run.Get(ctx, result))
}

func (h *handle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}

// normalize maps Temporal's cancellation error type onto context.Canceled
// so callers (Pipeline's fail path) can classify cancellation the same
// way regardless of which engine ran the workflow.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if tsdk.IsCanceledError(err) {
		return context.Canceled
	}
	return err
}

type workflowContext struct {
	e     *Engine
	ctx   workflow.Context
	id    string
	runID string
}

func newWorkflowContext(e *Engine, ctx workflow.Context) *workflowContext {
	info := workflow.GetInfo(ctx)
	return &workflowContext{e: e, ctx: ctx, id: info.WorkflowExecution.ID, runID: info.WorkflowExecution.RunID}
}

func (w *workflowContext) Context() context.Context   { return context.Background() }
func (w *workflowContext) WorkflowID() string         { return w.id }
func (w *workflowContext) RunID() string              { return w.runID }
func (w *workflowContext) Logger() telemetry.Logger   { return w.e.logger }
func (w *workflowContext) Metrics() telemetry.Metrics { return w.e.metrics }
func (w *workflowContext) Tracer() telemetry.Tracer   { return w.e.tracer }
func (w *workflowContext) Now() time.Time             { return workflow.Now(w.ctx) }

func (w *workflowContext) ExecuteActivity(_ context.Context, req engine.ActivityRequest, result any) error {
	fut, err := w.ExecuteActivityAsync(context.Background(), req)
	if err != nil {
		return err
	}
	return fut.Get(context.Background(), result)
}

func (w *workflowContext) ExecuteActivityAsync(_ context.Context, req engine.ActivityRequest) (engine.Future, error) {
	actx := workflow.WithActivityOptions(w.ctx, w.e.activityOptionsFor(req))
	fut := workflow.ExecuteActivity(actx, req.Name, req.Input)
	return &future{future: fut, ctx: actx}, nil
}

func (e *Engine) activityOptionsFor(req engine.ActivityRequest) workflow.ActivityOptions {
	e.mu.Lock()
	defaults := e.activityOptions[req.Name]
	e.mu.Unlock()

	queue := req.Queue
	if queue == "" {
		queue = defaults.Queue
	}
	if queue == "" {
		queue = e.taskQueue
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = defaults.Timeout
	}
	if timeout == 0 {
		timeout = time.Minute
	}
	policy := req.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = defaults.RetryPolicy
	}

	return workflow.ActivityOptions{
		ScheduleToStartTimeout: timeout,
		StartToCloseTimeout:    timeout,
		TaskQueue:              queue,
		RetryPolicy:            convertRetryPolicy(policy),
	}
}

func convertRetryPolicy(r engine.RetryPolicy) *tsdk.RetryPolicy {
	if r.MaxAttempts == 0 && r.InitialInterval == 0 && r.BackoffCoefficient == 0 {
		return nil
	}
	policy := &tsdk.RetryPolicy{}
	if r.MaxAttempts > 0 {
		policy.MaximumAttempts = int32(r.MaxAttempts)
	}
	if r.InitialInterval > 0 {
		policy.InitialInterval = r.InitialInterval
	}
	if r.BackoffCoefficient > 0 {
		policy.BackoffCoefficient = r.BackoffCoefficient
	}
	return policy
}

type future struct {
	future workflow.Future
	ctx    workflow.Context
}

func (f *future) Get(_ context.Context, result any) error {
	return normalize(f.future.Get(f.ctx, result))
}

func (f *future) IsReady() bool { return f.future.IsReady() }
