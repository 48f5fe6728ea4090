// Package inmem provides a goroutine-driven Engine implementation: the
// default for single-process desktop use, not durable or replay-safe.
// Grounded directly on runtime/agent/engine/inmem/engine.go, trimmed of
// child-workflow and signal support (Pipeline never needs either).
package inmem

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/cadforge/codepilot/engine"
	"github.com/cadforge/codepilot/telemetry"
)

type eng struct {
	mu         sync.RWMutex
	workflows  map[string]engine.WorkflowDefinition
	activities map[string]activityEntry
}

type activityEntry struct {
	handler engine.ActivityFunc
	opts    engine.ActivityOptions
}

type wfCtx struct {
	ctx   context.Context
	id    string
	runID string
	eng   *eng
}

type handle struct {
	mu     sync.Mutex
	done   chan struct{}
	err    error
	result any
}

type future struct {
	mu     sync.Mutex
	ready  chan struct{}
	result any
	err    error
}

// New returns an empty in-memory Engine.
func New() engine.Engine {
	return &eng{
		workflows:  make(map[string]engine.WorkflowDefinition),
		activities: make(map[string]activityEntry),
	}
}

func (e *eng) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inmem: invalid workflow definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[def.Name]; dup {
		return fmt.Errorf("inmem: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def
	return nil
}

func (e *eng) RegisterActivity(_ context.Context, def engine.ActivityDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inmem: invalid activity definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.activities[def.Name]; dup {
		return fmt.Errorf("inmem: activity %q already registered", def.Name)
	}
	e.activities[def.Name] = activityEntry{handler: def.Handler, opts: def.Options}
	return nil
}

func (e *eng) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	if req.ID == "" {
		return nil, errors.New("inmem: workflow id is required")
	}
	e.mu.RLock()
	def, ok := e.workflows[req.Workflow]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmem: workflow %q not registered", req.Workflow)
	}

	wctx := &wfCtx{ctx: ctx, id: req.ID, runID: req.ID, eng: e}
	h := &handle{done: make(chan struct{})}

	go func() {
		defer close(h.done)
		res, err := def.Handler(wctx, req.Input)
		h.mu.Lock()
		h.result, h.err = res, err
		h.mu.Unlock()
	}()

	return h, nil
}

func (h *handle) Wait(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		assign(result, h.result)
		return h.err
	}
}

// Cancel is a no-op in this engine: it returns nil and does not stop the
// running workflow handler.
func (h *handle) Cancel(context.Context) error { return nil }

func (w *wfCtx) Context() context.Context   { return w.ctx }
func (w *wfCtx) WorkflowID() string         { return w.id }
func (w *wfCtx) RunID() string              { return w.runID }
func (w *wfCtx) Logger() telemetry.Logger   { return telemetry.NoopLogger{} }
func (w *wfCtx) Metrics() telemetry.Metrics { return telemetry.NoopMetrics{} }
func (w *wfCtx) Tracer() telemetry.Tracer   { return telemetry.NoopTracer{} }
func (w *wfCtx) Now() time.Time             { return time.Now() }

func (w *wfCtx) ExecuteActivity(ctx context.Context, req engine.ActivityRequest, result any) error {
	fut, err := w.ExecuteActivityAsync(ctx, req)
	if err != nil {
		return err
	}
	return fut.Get(ctx, result)
}

func (w *wfCtx) ExecuteActivityAsync(ctx context.Context, req engine.ActivityRequest) (engine.Future, error) {
	w.eng.mu.RLock()
	entry, ok := w.eng.activities[req.Name]
	w.eng.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmem: activity %q not registered", req.Name)
	}

	f := &future{ready: make(chan struct{})}
	go func() {
		defer close(f.ready)
		res, err := entry.handler(ctx, req.Input)
		f.mu.Lock()
		f.result, f.err = res, err
		f.mu.Unlock()
	}()
	return f, nil
}

func (f *future) Get(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.ready:
		f.mu.Lock()
		defer f.mu.Unlock()
		assign(result, f.result)
		return f.err
	}
}

func (f *future) IsReady() bool {
	select {
	case <-f.ready:
		return true
	default:
		return false
	}
}

// assign copies src into the value *dst points at, when the types are
// compatible; it is a no-op otherwise (mirrors the teacher's own
// best-effort reflect-based result assignment).
func assign(dst, src any) {
	if dst == nil || src == nil {
		return
	}
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return
	}
	sv := reflect.ValueOf(src)
	if sv.IsValid() && sv.Type().AssignableTo(dv.Elem().Type()) {
		dv.Elem().Set(sv)
	}
}
