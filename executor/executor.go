// Package executor implements Executor (spec §4.I, component I): the core
// non-iterative execution loop — run code, and on failure classify the
// failure, pick a retry strategy, re-prompt the model, and loop, bounded by
// MaxAttempts.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/cadforge/codepilot/cadrunner"
	"github.com/cadforge/codepilot/errclass"
	"github.com/cadforge/codepilot/extract"
	"github.com/cadforge/codepilot/model"
	"github.com/cadforge/codepilot/retry"
)

const (
	// DefaultMaxAttempts is spec §4.I's MAX_ATTEMPTS default.
	DefaultMaxAttempts = 3
	// DefaultTimeout is spec §4.I's T_exec default.
	DefaultTimeout = 30 * time.Second
)

// Outcome is Executor's terminal result: either a successful mesh or the
// last failure and code reached before the attempt budget or a terminal
// strategy ended the loop (spec §4.I step 5).
type Outcome struct {
	Success   bool
	MeshBytes []byte
	LastError errclass.Category
	LastCode  string
	Attempts  int
}

// AttemptObserver is notified after every CadRunner invocation, letting a
// caller (Pipeline, IterativeBuilder) emit ValidationAttempt/
// ValidationSuccess/ValidationFailed events (spec §4.I: "Each attempt emits
// ValidationAttempt, ValidationSuccess, or ValidationFailed events") without
// Executor importing the events package directly — Executor has no
// business knowing about run ids or session ids.
type AttemptObserver func(attemptIndex int, outcome cadrunner.Outcome, category *errclass.Category)

// Executor ties a Runner and a model.Client together into the bounded
// classify→strategy→retry loop. Executes are single-flight per pipeline run
// (spec §4.I): one Executor value should not be shared across concurrent
// Run calls for the same logical run.
type Executor struct {
	Runner      cadrunner.Runner
	Client      model.Client
	MaxAttempts int
	Timeout     time.Duration
	Observer    AttemptObserver
}

// New returns an Executor with spec §4.I's defaults; override MaxAttempts,
// Timeout, or Observer on the returned value as needed.
func New(runner cadrunner.Runner, client model.Client) *Executor {
	return &Executor{Runner: runner, Client: client, MaxAttempts: DefaultMaxAttempts, Timeout: DefaultTimeout}
}

// Run executes code, retrying on failure per spec §4.I's pseudocode-free
// contract. systemPrompt is the prompt PromptBuilder assembled for this
// run; it is reused verbatim across retries, with only the user message
// changing to carry the retry citation.
func (e *Executor) Run(ctx context.Context, systemPrompt, code string) (Outcome, error) {
	current := code
	var lastCategory errclass.Category

	for attempt := 1; attempt <= e.maxAttempts(); attempt++ {
		result, err := e.Runner.Run(ctx, current, e.timeout())
		if err != nil {
			return Outcome{}, fmt.Errorf("executor: run attempt %d: %w", attempt, err)
		}

		if result.Failure == nil {
			e.notify(attempt, result, nil)
			return Outcome{Success: true, MeshBytes: result.MeshBytes, LastCode: current, Attempts: attempt}, nil
		}

		category := errclass.Classify(*result.Failure)
		lastCategory = category
		e.notify(attempt, result, &category)

		strategy := retry.Decide(category, attempt)
		if strategy.Terminal || attempt == e.maxAttempts() {
			// No further attempts will run, so there is no point spending
			// another model call repairing code that will never execute.
			return Outcome{LastError: category, LastCode: current, Attempts: attempt}, nil
		}

		nextCode, err := e.repair(ctx, systemPrompt, current, category, strategy)
		if err != nil {
			return Outcome{}, fmt.Errorf("executor: repair attempt %d: %w", attempt, err)
		}
		current = nextCode
	}

	return Outcome{LastError: lastCategory, LastCode: current, Attempts: e.maxAttempts()}, nil
}

func (e *Executor) repair(ctx context.Context, systemPrompt, code string, category errclass.Category, strategy retry.Strategy) (string, error) {
	citation := fmt.Sprintf("Failure category: %s", category.Kind)
	if category.Line != nil {
		citation += fmt.Sprintf(" (line %d)", *category.Line)
	}
	if category.Message != "" {
		citation += "\nMessage: " + category.Message
	}

	userMsg := strategy.PromptPrefix + "\n" + citation + "\n\nCurrent code:\n" + code +
		"\n\nReturn only the corrected code in <CODE> tags."

	resp, err := e.Client.Complete(ctx, &model.Request{
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
		return "", fmt.Errorf("extract corrected code: %w", err)
	}
	return result.Code, nil
}

func (e *Executor) notify(attempt int, outcome cadrunner.Outcome, category *errclass.Category) {
	if e.Observer != nil {
		e.Observer(attempt, outcome, category)
	}
}

func (e *Executor) maxAttempts() int {
	if e.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return e.MaxAttempts
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}
