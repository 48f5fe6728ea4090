// Package iterative implements IterativeBuilder (spec §4.J, component J):
// decomposes a plan into ordered build steps and executes them
// incrementally, retrying or skipping each step independently, so a
// complex part can make partial progress instead of failing as a whole.
package iterative

import (
	"context"
	"fmt"
	"time"

	"github.com/cadforge/codepilot/cadrunner"
	"github.com/cadforge/codepilot/errclass"
	"github.com/cadforge/codepilot/extract"
	"github.com/cadforge/codepilot/model"
	"github.com/cadforge/codepilot/plan"
	"github.com/cadforge/codepilot/retry"
)

// DefaultStepTimeout is the per-step CadRunner wall-clock budget, reused
// from Executor's T_exec default since spec §4.J does not define a
// separate constant for it.
const DefaultStepTimeout = 30 * time.Second

// StepState is one step's lifecycle state (spec §4.J: "Pending →
// Generating → Executing → Succeeded | Retrying(k) | Skipped").
type StepState string

const (
	StepPending    StepState = "pending"
	StepGenerating StepState = "generating"
	StepExecuting  StepState = "executing"
	StepSucceeded  StepState = "succeeded"
	StepRetrying   StepState = "retrying"
	StepSkipped    StepState = "skipped"
)

// StepResult records one step's final disposition.
type StepResult struct {
	Step  plan.BuildStep
	State StepState
	Code  string // the accumulated code after the step, empty when Skipped
}

// MaxRetriesPerStep is spec §4.J's per-step retry budget.
const MaxRetriesPerStep = 3

// RiskyOps are the operations whose presence alone selects Iterative mode
// in Pipeline (spec §4.M), reused here since IterativeBuilder's own
// trigger condition (spec §4.J) is identical.
var RiskyOps = map[plan.Op]bool{
	plan.OpShell: true, plan.OpLoft: true, plan.OpSweep: true, plan.OpRevolve: true,
}

// ShouldTrigger reports whether a plan's step count or operation mix
// selects Iterative mode (spec §4.J: "≥ 4 build steps OR uses any risky op
// in {shell, loft, sweep, revolve}").
func ShouldTrigger(steps []plan.BuildStep) bool {
	if len(steps) >= 4 {
		return true
	}
	for _, s := range steps {
		if RiskyOps[s.Operation] {
			return true
		}
	}
	return false
}

// StepObserver is notified on every state transition, letting a caller
// translate them into StepStarted/StepComplete/StepSkipped and the
// viewport-update events spec §4.J requires ("Viewport events emitted after
// each Succeeded so UI updates incrementally") without this package
// depending on the events package. The third argument is the step's
// description, except for StepSucceeded, where it is the accumulated code
// after the step.
type StepObserver func(index int, state StepState, description string)

// HardProtectionFunc is invoked when two consecutive steps are Skipped
// (SPEC_FULL.md's hard-protection supplement). Returning true tells the
// builder to stop early with a PartialSuccess rather than continue against
// code that has already proven unstable twice in a row; returning false
// continues the loop.
type HardProtectionFunc func(consecutiveSkips int) bool

// Builder executes a plan's steps incrementally against a CadRunner and a
// model.Client, accumulating working code prefix-permanently across
// successful steps (spec §4.J ordering invariant).
type Builder struct {
	Runner         cadrunner.Runner
	Client         model.Client
	Timeout        time.Duration
	StepObserver   StepObserver
	HardProtection HardProtectionFunc
}

// Result is IterativeBuilder's output: the accumulated code, which steps
// succeeded/were skipped, and whether the caller should offer a re-run of
// just the skipped steps (spec §4.J: "Produces a PartialSuccess if any
// steps skipped... with the list of skipped indices and an offer to re-run
// only the skipped steps").
type Result struct {
	Code           string
	Steps          []StepResult
	SkippedIndices []int
	StoppedEarly   bool
}

// Run executes steps in ascending index order. systemPrompt is reused
// across every step's generation call; workingCode starts as the prior
// accumulated code (empty for a fresh build).
func (b *Builder) Run(ctx context.Context, systemPrompt, workingCode string, steps []plan.BuildStep) (Result, error) {
	results := make([]StepResult, 0, len(steps))
	consecutiveSkips := 0

	for i, step := range steps {
		b.observe(step.Index, StepGenerating, step.Description)
		stepCode, retryable, err := b.generateAndExecuteStep(ctx, systemPrompt, workingCode, step)
		if err != nil {
			return Result{}, fmt.Errorf("iterative: step %d: %w", step.Index, err)
		}

		if retryable {
			b.observe(step.Index, StepSkipped, step.Description)
			results = append(results, StepResult{Step: step, State: StepSkipped})
			consecutiveSkips++
			if consecutiveSkips >= 2 && b.HardProtection != nil && b.HardProtection(consecutiveSkips) {
				return b.finish(workingCode, results, steps[i+1:], true), nil
			}
			continue
		}

		consecutiveSkips = 0
		workingCode = stepCode
		b.observe(step.Index, StepSucceeded, stepCode)
		results = append(results, StepResult{Step: step, State: StepSucceeded, Code: stepCode})
	}

	return b.finish(workingCode, results, nil, false), nil
}

func (b *Builder) finish(code string, results []StepResult, remaining []plan.BuildStep, stoppedEarly bool) Result {
	for _, s := range remaining {
		results = append(results, StepResult{Step: s, State: StepSkipped})
	}
	var skipped []int
	for _, r := range results {
		if r.State == StepSkipped {
			skipped = append(skipped, r.Step.Index)
		}
	}
	return Result{Code: code, Steps: results, SkippedIndices: skipped, StoppedEarly: stoppedEarly}
}

// generateAndExecuteStep runs one step's retry budget: generate code for
// the step appended to the working prefix, execute it, and on failure
// regenerate and re-execute, MaxRetriesPerStep executions in all, using
// RetryStrategy, same as Executor
// (spec §4.J: "Retry budget: up to 3 per step using RetryStrategy as in
// §4.I"). Returns (accumulated-code-on-success, skip=true-on-exhaustion).
func (b *Builder) generateAndExecuteStep(ctx context.Context, systemPrompt, workingCode string, step plan.BuildStep) (string, bool, error) {
	current, err := b.generateStepCode(ctx, systemPrompt, workingCode, step, nil)
	if err != nil {
		return "", false, err
	}

	for attempt := 1; attempt <= MaxRetriesPerStep; attempt++ {
		b.observe(step.Index, StepExecuting, step.Description)
		outcome, err := b.Runner.Run(ctx, current, b.timeout())
		if err != nil {
			return "", false, err
		}
		if outcome.Failure == nil {
			return current, false, nil
		}

		category := errclass.Classify(*outcome.Failure)
		strategy := retry.Decide(category, attempt)
		if strategy.Terminal || attempt == MaxRetriesPerStep {
			return "", true, nil
		}

		b.observe(step.Index, StepRetrying, step.Description)
		current, err = b.generateStepCode(ctx, systemPrompt, workingCode, step, &strategy)
		if err != nil {
			return "", false, err
		}
	}
	return "", true, nil
}

func (b *Builder) generateStepCode(ctx context.Context, systemPrompt, workingCode string, step plan.BuildStep, strategy *retry.Strategy) (string, error) {
	userMsg := "Accumulated working code:\n" + workingCode + "\n\nNext step: " + step.Description
	if strategy != nil {
		userMsg = strategy.PromptPrefix + "\n" + userMsg
	}
	userMsg += "\n\nReturn the complete updated code, including the new step, in <CODE> tags."

	resp, err := b.Client.Complete(ctx, &model.Request{
		Messages: []model.Message{
			{Role: model.ConversationRoleSystem, Text: systemPrompt},
			{Role: model.ConversationRoleUser, Text: userMsg},
		},
	})
	if err != nil {
		return "", err
	}
	result, err := extract.Extract(resp.Text)
	if err != nil {
		return "", fmt.Errorf("extract step code: %w", err)
	}
	return result.Code, nil
}

func (b *Builder) observe(index int, state StepState, description string) {
	if b.StepObserver != nil {
		b.StepObserver(index, state, description)
	}
}

func (b *Builder) timeout() time.Duration {
	if b.Timeout <= 0 {
		return DefaultStepTimeout
	}
	return b.Timeout
}
