// Package pipeline implements Pipeline (spec §4.M, component M): the
// top-level state machine that wires Planner, PlanValidator, Confidence,
// the three execution modes, Reviewer, SessionMemory, and EventBus into one
// run per user request.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cadforge/codepilot/cadrunner"
	"github.com/cadforge/codepilot/confidence"
	"github.com/cadforge/codepilot/consensus"
	"github.com/cadforge/codepilot/errclass"
	"github.com/cadforge/codepilot/events"
	"github.com/cadforge/codepilot/executor"
	"github.com/cadforge/codepilot/extract"
	"github.com/cadforge/codepilot/iterative"
	"github.com/cadforge/codepilot/model"
	"github.com/cadforge/codepilot/plan"
	"github.com/cadforge/codepilot/prompt"
	"github.com/cadforge/codepilot/review"
	"github.com/cadforge/codepilot/rulestore"
	"github.com/cadforge/codepilot/runstore"
	"github.com/cadforge/codepilot/session"
)

// Mode is the branch Pipeline selects after Confidence (spec §4.M).
type Mode string

const (
	ModeSingleShot   Mode = "single_shot"
	ModeIterative    Mode = "iterative"
	ModeConsensus    Mode = "consensus"
	ModeModification Mode = "modification"
)

// MaxReplans is spec §4.M's "PlanRejected loop back to Planning at most once".
const MaxReplans = 1

// Request mirrors UserRequest (spec §3): the fields Pipeline needs to
// drive one run.
type Request struct {
	Text          string
	ExistingCode  string // non-empty selects Modification mode
	PresetID      string
	TargetVersion string
}

// Options mirrors PipelineOptions (spec §6.1).
type Options struct {
	Consensus             bool
	MaxAttempts           int
	Temperature           *float32
	ModelID               string
	ConsensusTemperatures []float32
	ConsensusTimeout      time.Duration
}

// Outcome mirrors GenerationResult.Outcome (spec §3), reusing session's
// vocabulary since SessionMemory entries carry exactly this value.
type Outcome = session.Outcome

// Result is Pipeline's terminal GenerationResult.
type Result struct {
	Outcome        Outcome
	Code           string
	MeshBytes      []byte
	Mode           Mode
	Confidence     confidence.Result
	Review         review.Result
	SkippedIndices []int
	FailureReason  string
}

// Pipeline composes the components spec §4.M names. All fields are
// required except Reviewer (nil skips the review step) and Runs (nil
// disables run-status tracking; Bus publication still happens either way).
type Pipeline struct {
	Planner     *plan.Planner
	RuleStore   rulestore.Store
	Sessions    session.Store
	Client      model.Client
	Runner      cadrunner.Runner
	Reviewer    *review.Reviewer
	Bus         events.Bus
	Runs        runstore.Store
	MaxAttempts int
}

// New returns a Pipeline with spec defaults; override MaxAttempts as needed.
func New(planner *plan.Planner, ruleStore rulestore.Store, sessions session.Store, client model.Client, runner cadrunner.Runner, reviewer *review.Reviewer, bus events.Bus) *Pipeline {
	return &Pipeline{
		Planner: planner, RuleStore: ruleStore, Sessions: sessions,
		Client: client, Runner: runner, Reviewer: reviewer, Bus: bus,
		Runs:        runstore.NewInMemoryStore(),
		MaxAttempts: executor.DefaultMaxAttempts,
	}
}

// Run drives one request through the full state machine, publishing every
// transition onto Bus under runID/sessionID, and writing the terminal
// outcome to SessionMemory (spec §5: "SessionMemory is... written only at
// pipeline terminal — single-writer by construction").
func (p *Pipeline) Run(ctx context.Context, runID, sessionID string, req Request, opts Options) (Result, error) {
	start := time.Now()
	if opts.MaxAttempts > 0 {
		override := *p
		override.MaxAttempts = opts.MaxAttempts
		p = &override
	}
	p.recordRunStatus(ctx, runID, sessionID, runstore.StatusPending, "")

	history, err := p.Sessions.History(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: load session history: %w", err)
	}

	rules, err := p.RuleStore.Get(ctx, req.PresetID)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: load rule set: %w", err)
	}

	if req.ExistingCode != "" {
		return p.runModification(ctx, runID, sessionID, req, rules, history, start)
	}
	return p.runFreshBuild(ctx, runID, sessionID, req, opts, rules, history, start)
}

func (p *Pipeline) runModification(ctx context.Context, runID, sessionID string, req Request, rules *rulestore.RuleSet, history []session.Entry, start time.Time) (Result, error) {
	systemPrompt := prompt.BuildModification(prompt.Request{
		Text: req.Text, ExistingCode: req.ExistingCode, TargetVersion: req.TargetVersion,
	}, rules, history)

	p.recordRunStatus(ctx, runID, sessionID, runstore.StatusRunning, string(ModeModification))
	p.publish(ctx, events.NewCodeStartedEvent(runID, sessionID, 1))
	resp, err := p.Client.Complete(ctx, &model.Request{
		Messages: []model.Message{
			{Role: model.ConversationRoleSystem, Text: systemPrompt},
			{Role: model.ConversationRoleUser, Text: req.Text},
		},
	})
	if err != nil {
		return p.fail(ctx, runID, sessionID, start, err)
	}
	extracted, err := extract.Extract(resp.Text)
	if err != nil {
		return p.fail(ctx, runID, sessionID, start, err)
	}
	p.publish(ctx, events.NewCodeExtractedEvent(runID, sessionID, 1, extracted.Code, string(extracted.Tier)))

	exec := p.newExecutor(runID, sessionID)
	execOutcome, err := exec.Run(ctx, systemPrompt, extracted.Code)
	if err != nil {
		return p.fail(ctx, runID, sessionID, start, err)
	}

	return p.finish(ctx, runID, sessionID, ModeModification, req, "", execOutcome.MeshBytes, execOutcome.Success, execOutcome.LastCode, nil, confidence.Result{}, start)
}

func (p *Pipeline) runFreshBuild(ctx context.Context, runID, sessionID string, req Request, opts Options, rules *rulestore.RuleSet, history []session.Entry, start time.Time) (Result, error) {
	systemPrompt := prompt.Build(prompt.Request{Text: req.Text, TargetVersion: req.TargetVersion}, rules, history)

	p.publish(ctx, events.NewPlanStartedEvent(runID, sessionID))
	planned, validation, err := p.planAndValidate(ctx, runID, sessionID, systemPrompt, req.Text, rules)
	if err != nil {
		return p.fail(ctx, runID, sessionID, start, err)
	}
	if !validation.IsValid {
		return p.finishFailed(ctx, runID, sessionID, start, "plan rejected after replan: "+validation.RejectedReason)
	}

	steps := plan.ParseBuildSteps(planned)
	conf := confidence.Estimate(planned, steps, validation.RiskScore, rules.CookbookRecipes)
	p.publish(ctx, events.NewConfidenceComputedEvent(runID, sessionID, conf.Score, string(conf.Band)))

	mode := selectMode(steps, opts)
	p.recordRunStatus(ctx, runID, sessionID, runstore.StatusRunning, string(mode))

	var code string
	var meshBytes []byte
	var success bool
	var skipped []int

	switch mode {
	case ModeConsensus:
		code, meshBytes, success, err = p.runConsensus(ctx, runID, sessionID, systemPrompt, opts, len(steps))
	case ModeIterative:
		code, meshBytes, success, skipped, err = p.runIterative(ctx, runID, sessionID, systemPrompt, steps)
	default:
		code, meshBytes, success, err = p.runSingleShot(ctx, runID, sessionID, systemPrompt)
	}
	if err != nil {
		return p.fail(ctx, runID, sessionID, start, err)
	}

	return p.finish(ctx, runID, sessionID, mode, req, planned.Raw, meshBytes, success, code, skipped, conf, start)
}

// planAndValidate implements the Planning → PlanValidation → (PlanRejected
// loop back at most once) segment of spec §4.M's state machine.
func (p *Pipeline) planAndValidate(ctx context.Context, runID, sessionID, systemPrompt, userRequest string, rules *rulestore.RuleSet) (plan.Plan, plan.Result, error) {
	planned, err := p.Planner.Generate(ctx, systemPrompt, userRequest)
	if err != nil {
		return plan.Plan{}, plan.Result{}, err
	}
	p.publish(ctx, events.NewPlanCompleteEvent(runID, sessionID, planned.Raw))

	steps := plan.ParseBuildSteps(planned)
	dims := [2]float64{rules.DimensionRange.Min, rules.DimensionRange.Max}
	validation := validatePlan(planned, steps, dims)

	for attempt := 0; !validation.IsValid && attempt < MaxReplans; attempt++ {
		p.publish(ctx, events.NewPlanRejectedEvent(runID, sessionID, validation.RejectedReason, validation.RiskScore, validation.Warnings))
		planned, err = p.Planner.Replan(ctx, systemPrompt, userRequest, plan.Feedback{Reason: validation.RejectedReason, Warnings: validation.Warnings})
		if err != nil {
			return plan.Plan{}, plan.Result{}, err
		}
		p.publish(ctx, events.NewPlanCompleteEvent(runID, sessionID, planned.Raw))
		steps = plan.ParseBuildSteps(planned)
		validation = validatePlan(planned, steps, dims)
	}
	if !validation.IsValid {
		p.publish(ctx, events.NewPlanRejectedEvent(runID, sessionID, validation.RejectedReason, validation.RiskScore, validation.Warnings))
	}
	return planned, validation, nil
}

// validatePlan runs the schema check on the plan's extracted operation
// metadata before the risk-score heuristics in plan.Validate, so a
// malformed extraction is rejected the same way a high-risk plan is
// rather than reaching PlanValidator's scoring with bad input.
func validatePlan(planned plan.Plan, steps []plan.BuildStep, dimensionRange [2]float64) plan.Result {
	if err := plan.ValidateMetadataSchema(plan.MetadataFromSteps(steps)); err != nil {
		return plan.Result{IsValid: false, RejectedReason: err.Error()}
	}
	return plan.Validate(planned, steps, dimensionRange, nil)
}

// selectMode implements spec §4.M's mode-selection table, minus
// Modification (already dispatched by Run before this point is reached).
func selectMode(steps []plan.BuildStep, opts Options) Mode {
	if iterative.ShouldTrigger(steps) {
		return ModeIterative
	}
	if opts.Consensus {
		return ModeConsensus
	}
	return ModeSingleShot
}

func (p *Pipeline) runSingleShot(ctx context.Context, runID, sessionID, systemPrompt string) (string, []byte, bool, error) {
	p.publish(ctx, events.NewCodeStartedEvent(runID, sessionID, 1))
	resp, err := p.Client.Complete(ctx, &model.Request{
		Messages: []model.Message{
			{Role: model.ConversationRoleSystem, Text: systemPrompt},
			{Role: model.ConversationRoleUser, Text: "Generate the code for the plan above."},
		},
	})
	if err != nil {
		return "", nil, false, err
	}
	extracted, err := extract.Extract(resp.Text)
	if err != nil {
		return "", nil, false, err
	}
	p.publish(ctx, events.NewCodeExtractedEvent(runID, sessionID, 1, extracted.Code, string(extracted.Tier)))

	exec := p.newExecutor(runID, sessionID)
	outcome, err := exec.Run(ctx, systemPrompt, extracted.Code)
	if err != nil {
		return "", nil, false, err
	}
	return outcome.LastCode, outcome.MeshBytes, outcome.Success, nil
}

func (p *Pipeline) runIterative(ctx context.Context, runID, sessionID, systemPrompt string, steps []plan.BuildStep) (string, []byte, bool, []int, error) {
	builder := &iterative.Builder{
		Runner: p.Runner,
		Client: p.Client,
		StepObserver: func(index int, state iterative.StepState, description string) {
			switch state {
			case iterative.StepGenerating:
				p.publish(ctx, events.NewStepStartedEvent(runID, sessionID, index, description))
			case iterative.StepSucceeded:
				p.publish(ctx, events.NewStepCompleteEvent(runID, sessionID, index, description))
			case iterative.StepSkipped:
				p.publish(ctx, events.NewStepSkippedEvent(runID, sessionID, index, "retry budget exhausted"))
			}
		},
		HardProtection: func(consecutiveSkips int) bool {
			p.publish(ctx, events.NewHardProtectionEvent(runID, sessionID, "two consecutive steps skipped", consecutiveSkips))
			return true
		},
	}
	result, err := builder.Run(ctx, systemPrompt, "", steps)
	if err != nil {
		return "", nil, false, nil, err
	}

	if result.Code == "" {
		return "", nil, false, result.SkippedIndices, nil
	}
	exec := p.newExecutor(runID, sessionID)
	outcome, err := exec.Run(ctx, systemPrompt, result.Code)
	if err != nil {
		return "", nil, false, result.SkippedIndices, err
	}
	return outcome.LastCode, outcome.MeshBytes, outcome.Success, result.SkippedIndices, nil
}

func (p *Pipeline) runConsensus(ctx context.Context, runID, sessionID, systemPrompt string, opts Options, opCount int) (string, []byte, bool, error) {
	child := func(ctx context.Context, childIndex int, temperature float32) (consensus.ChildOutcome, error) {
		resp, err := p.Client.Complete(ctx, &model.Request{
			Messages: []model.Message{
				{Role: model.ConversationRoleSystem, Text: systemPrompt},
				{Role: model.ConversationRoleUser, Text: "Generate the code for the plan above."},
			},
			Temperature: temperature,
		})
		if err != nil {
			return consensus.ChildOutcome{}, err
		}
		extracted, err := extract.Extract(resp.Text)
		if err != nil {
			return consensus.ChildOutcome{}, err
		}
		p.publish(ctx, events.NewConsensusChildEvent(runID, sessionID, childIndex,
			events.NewCodeExtractedEvent(runID, sessionID, 1, extracted.Code, string(extracted.Tier))))

		exec := p.newExecutor(runID, sessionID)
		outcome, err := exec.Run(ctx, systemPrompt, extracted.Code)
		if err != nil {
			return consensus.ChildOutcome{}, err
		}
		return consensus.ChildOutcome{
			Success:   outcome.Success,
			Code:      outcome.LastCode,
			MeshBytes: outcome.MeshBytes,
			OpCount:   opCount,
		}, nil
	}

	result, err := consensus.Run(ctx, child, opts.ConsensusTemperatures, opts.ConsensusTimeout)
	if err != nil {
		return "", nil, false, err
	}
	return result.Winner.Code, result.Winner.MeshBytes, result.Winner.Success, nil
}

func (p *Pipeline) newExecutor(runID, sessionID string) *executor.Executor {
	e := executor.New(p.Runner, p.Client)
	if p.MaxAttempts > 0 {
		e.MaxAttempts = p.MaxAttempts
	}
	e.Observer = p.attemptObserver(runID, sessionID)
	return e
}

func (p *Pipeline) attemptObserver(runID, sessionID string) executor.AttemptObserver {
	return func(attemptIndex int, outcome cadrunner.Outcome, category *errclass.Category) {
		p.publish(context.Background(), events.NewValidationAttemptEvent(runID, sessionID, attemptIndex))
		if outcome.Failure == nil {
			p.publish(context.Background(), events.NewValidationSuccessEvent(runID, sessionID, attemptIndex, len(outcome.MeshBytes)))
			return
		}
		msg, line := "", (*int)(nil)
		categoryName := "unknown"
		if category != nil {
			msg = category.Message
			line = category.Line
			categoryName = string(category.Kind)
		}
		p.publish(context.Background(), events.NewValidationFailedEvent(runID, sessionID, attemptIndex, categoryName, msg, line))
	}
}

func (p *Pipeline) finish(ctx context.Context, runID, sessionID string, mode Mode, req Request, planText string, meshBytes []byte, success bool, code string, skipped []int, conf confidence.Result, start time.Time) (Result, error) {
	reviewResult := review.Result{Approved: true}
	if success && p.Reviewer != nil {
		var err error
		reviewResult, err = p.Reviewer.Review(ctx, req.Text, planText, code)
		if err != nil {
			return p.fail(ctx, runID, sessionID, start, err)
		}
		p.publish(ctx, events.NewReviewCompleteEvent(runID, sessionID, reviewResult.Approved, reviewResult.Issues))
	}

	outcome := session.OutcomeFailure
	switch {
	case success && len(skipped) == 0:
		outcome = session.OutcomeSuccess
	case success && len(skipped) > 0:
		outcome = session.OutcomePartialSuccess
	case !success && len(skipped) > 0 && code != "":
		outcome = session.OutcomePartialSuccess
	}

	if err := p.Sessions.Append(ctx, sessionID, session.Entry{
		RequestFingerprint: session.Fingerprint(req.Text),
		Outcome:            outcome,
		Duration:           time.Since(start),
		RecordedAt:         time.Now(),
	}); err != nil {
		return Result{}, fmt.Errorf("pipeline: record session entry: %w", err)
	}

	p.publish(ctx, events.NewDoneEvent(runID, sessionID, string(outcome), code, meshBytes))
	p.recordRunStatus(ctx, runID, sessionID, runStatusFor(outcome), string(mode))

	return Result{
		Outcome: outcome, Code: code, MeshBytes: meshBytes, Mode: mode,
		Confidence: conf, Review: reviewResult, SkippedIndices: skipped,
	}, nil
}

func (p *Pipeline) finishFailed(ctx context.Context, runID, sessionID string, start time.Time, reason string) (Result, error) {
	if err := p.Sessions.Append(ctx, sessionID, session.Entry{
		Outcome: session.OutcomeFailure, ErrorCategory: "plan_rejected",
		Duration: time.Since(start), RecordedAt: time.Now(),
	}); err != nil {
		return Result{}, fmt.Errorf("pipeline: record session entry: %w", err)
	}
	p.publish(ctx, events.NewErrorEvent(runID, sessionID, reason))
	p.recordRunStatus(ctx, runID, sessionID, runstore.StatusFailed, "")
	return Result{Outcome: session.OutcomeFailure, FailureReason: reason}, nil
}

func (p *Pipeline) fail(ctx context.Context, runID, sessionID string, start time.Time, err error) (Result, error) {
	p.publish(ctx, events.NewErrorEvent(runID, sessionID, err.Error()))
	status := runstore.StatusFailed
	if errors.Is(err, context.Canceled) {
		status = runstore.StatusCanceled
	}
	p.recordRunStatus(ctx, runID, sessionID, status, "")
	return Result{}, fmt.Errorf("pipeline: %w", err)
}

// runStatusFor maps a terminal session.Outcome onto the coarser runstore
// vocabulary; PartialSuccess still counts as a completed run for polling
// purposes, distinguished from full success via the event stream instead.
func runStatusFor(outcome session.Outcome) runstore.Status {
	if outcome == session.OutcomeSuccess || outcome == session.OutcomePartialSuccess {
		return runstore.StatusSucceeded
	}
	return runstore.StatusFailed
}

// recordRunStatus is a best-effort write: a dashboard poll missing one
// transition is tolerable, unlike a run failing because its status store
// is unavailable.
func (p *Pipeline) recordRunStatus(ctx context.Context, runID, sessionID string, status runstore.Status, mode string) {
	if p.Runs == nil {
		return
	}
	_ = p.Runs.Upsert(ctx, runstore.Record{
		RunID: runID, SessionID: sessionID, Status: status, Mode: mode,
	})
}

func (p *Pipeline) publish(ctx context.Context, event events.Event) {
	if p.Bus == nil {
		return
	}
	_ = p.Bus.Publish(ctx, event)
}
