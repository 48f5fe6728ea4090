// Package review implements Reviewer (spec §4.H, component H): a
// post-execution compliance check of generated code against the plan and
// original user request, performed as an advisory LLM call rather than
// compilation or static analysis (spec: "at the level of advisory LLM
// review, not compilation").
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cadforge/codepilot/model"
)

// Result is Reviewer's output (spec §4.H): `{approved: bool, issues: list}`.
type Result struct {
	Approved bool     `json:"approved"`
	Issues   []string `json:"issues"`
}

// Reviewer issues a single non-streaming completion asking the model to
// check code against a plan and request, per the three checks spec §4.H
// names: every planned feature present, declared dimensions preserved
// exactly, and an order-compatible operation sequence — approving even when
// operation choices differ, as long as user intent is achieved.
type Reviewer struct {
	client model.Client
}

// New returns a Reviewer issuing completions through client.
func New(client model.Client) *Reviewer {
	return &Reviewer{client: client}
}

const systemPrompt = `You are reviewing generated CAD script against the plan and user request that produced it. Check:
1. Every feature named in the plan is present, named or structurally present, in the code.
2. Declared dimensions in the plan appear in the code within 0% tolerance (exact match).
3. The operation sequence in the code is order-compatible with the plan's build steps.
Approve if the code achieves the user's intent even if the exact operation choices differ from the plan.
Respond with a single JSON object: {"approved": bool, "issues": [string, ...]}. Emit nothing else.`

// Review runs the compliance check and parses the model's JSON verdict.
func (r *Reviewer) Review(ctx context.Context, userRequest, planText, code string) (Result, error) {
	userMsg := fmt.Sprintf("User request:\n%s\n\nPlan:\n%s\n\nGenerated code:\n%s", userRequest, planText, code)
	resp, err := r.client.Complete(ctx, &model.Request{
		Messages: []model.Message{
			{Role: model.ConversationRoleSystem, Text: systemPrompt},
			{Role: model.ConversationRoleUser, Text: userMsg},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("review: complete: %w", err)
	}
	return parseVerdict(resp.Text)
}

func parseVerdict(text string) (Result, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < 0 || end < start {
		return Result{}, fmt.Errorf("review: no JSON object found in response")
	}
	var result Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return Result{}, fmt.Errorf("review: parse verdict: %w", err)
	}
	return result, nil
}
