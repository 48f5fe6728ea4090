package main

import (
	"context"
	"fmt"

	"github.com/cadforge/codepilot/cadrunner"
	"github.com/cadforge/codepilot/config"
	"github.com/cadforge/codepilot/engine"
	"github.com/cadforge/codepilot/engine/inmem"
	"github.com/cadforge/codepilot/events"
	"github.com/cadforge/codepilot/pipeline"
	"github.com/cadforge/codepilot/plan"
	"github.com/cadforge/codepilot/review"
	"github.com/cadforge/codepilot/rulestore"
	"github.com/cadforge/codepilot/runid"
	"github.com/cadforge/codepilot/session"
)

// app bundles everything a subcommand needs: the configured pipeline, the
// engine that runs it as a workflow, and the identifiers a run needs.
type app struct {
	cfg      config.Config
	pipeline *pipeline.Pipeline
	engine   engine.Engine
	sessions session.Store
}

const pipelineWorkflowName = "codepilot_pipeline_run"

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	client, err := cfg.NewModelClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("build model client: %w", err)
	}

	ruleStore := rulestore.NewStaticStore([]rulestore.RuleSet{
		{PresetID: cfg.PresetID, DimensionRange: rulestore.DimensionRange{Min: 0.01, Max: 10000}},
	})
	sessions := session.NewInMemoryStore()
	runner := cadrunner.NewSubprocessRunner("python3")
	bus := events.NewBus()

	var reviewer *review.Reviewer
	if cfg.EnableCodeReview {
		reviewer = review.New(client)
	}

	pl := pipeline.New(plan.New(client), ruleStore, sessions, client, runner, reviewer, bus)
	if cfg.MaxAttempts > 0 {
		pl.MaxAttempts = cfg.MaxAttempts
	}

	eng := inmem.New()
	if err := eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: pipelineWorkflowName,
		Handler: func(wctx engine.WorkflowContext, input any) (any, error) {
			req, ok := input.(pipelineRunInput)
			if !ok {
				return nil, fmt.Errorf("codepilot: unexpected workflow input type %T", input)
			}
			return pl.Run(wctx.Context(), wctx.WorkflowID(), req.SessionID, req.Request, req.Options)
		},
	}); err != nil {
		return nil, fmt.Errorf("register pipeline workflow: %w", err)
	}

	return &app{cfg: cfg, pipeline: pl, engine: eng, sessions: sessions}, nil
}

// pipelineRunInput is the payload the pipeline workflow expects; engine
// handlers receive/return `any`, so this is the one concrete type crossing
// that boundary.
type pipelineRunInput struct {
	SessionID string
	Request   pipeline.Request
	Options   pipeline.Options
}

// runPipeline starts one pipeline run as an engine workflow and waits for
// its result, using runid to mint the run identifier every event and
// runstore.Record in this run will carry.
func (a *app) runPipeline(ctx context.Context, req pipeline.Request, opts pipeline.Options) (pipeline.Result, error) {
	id := runid.New(sessionID)
	handle, err := a.engine.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       id,
		Workflow: pipelineWorkflowName,
		Input:    pipelineRunInput{SessionID: sessionID, Request: req, Options: opts},
	})
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("start pipeline workflow: %w", err)
	}
	var result pipeline.Result
	if err := handle.Wait(ctx, &result); err != nil {
		return pipeline.Result{}, err
	}
	return result, nil
}
