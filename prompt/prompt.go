// Package prompt implements PromptBuilder (spec §4.D, component D):
// assembly of a system prompt from the RuleStore, SessionMemory, and the
// current request's mode flags. The builder itself holds no state; it is a
// pure assembly function over its inputs, matching the "Pure value" framing
// spec §3 gives neighboring components like RetryStrategy.
package prompt

import (
	"fmt"
	"strings"

	"github.com/cadforge/codepilot/rulestore"
	"github.com/cadforge/codepilot/session"
)

// codeTagContract is the declared output format every prompt demands (spec
// §4.D: "the full prompt plus a declared output format specification").
const codeTagContract = "Return the complete script wrapped in <CODE> and </CODE> tags, and nothing else outside those tags."

// Request carries the subset of UserRequest (spec §3) PromptBuilder needs.
type Request struct {
	Text          string
	ExistingCode  string // non-empty selects modification mode
	TargetVersion string // target library version, for recipe filtering
}

// Build assembles the full system prompt for a fresh (non-modification)
// request, concatenating RuleSet sections in the fixed order spec §4.D
// specifies, followed by the session-context section.
func Build(req Request, rules *rulestore.RuleSet, history []session.Entry) string {
	if req.ExistingCode != "" {
		return BuildModification(req, rules, history)
	}

	var b strings.Builder
	writeSection(&b, "Base rules", rules.BaseRules)
	writeSection(&b, "Manufacturing constraints", rules.ManufacturingConstraints)
	writeSection(&b, "Dimension guidance", rules.DimensionGuidance)
	writeSection(&b, "Failure-prevention rules", rules.FailurePreventionRules)
	writeRecipes(&b, rules.CookbookRecipes, req.TargetVersion)
	writeSection(&b, "Anti-patterns", rules.AntiPatterns)
	writeSection(&b, "API reference", rules.ApiReference)
	writeSection(&b, "Design patterns", rules.DesignPatterns)
	writeSection(&b, "Operation-interaction rules", rules.OperationInteractionRules)
	writeExamples(&b, rules.FewShotExamples)

	if ctx := session.RenderPrompt(history); ctx != "" {
		b.WriteString(ctx)
		b.WriteString("\n")
	}

	b.WriteString(codeTagContract)
	return b.String()
}

// BuildModification implements spec §4.D's modification-mode variant: when
// UserRequest carries existing_code, planning/design guidance is replaced
// by a focused edit instruction and Planner is bypassed entirely.
func BuildModification(req Request, rules *rulestore.RuleSet, history []session.Entry) string {
	var b strings.Builder
	writeSection(&b, "Base rules", rules.BaseRules)
	writeSection(&b, "Manufacturing constraints", rules.ManufacturingConstraints)
	writeSection(&b, "API reference", rules.ApiReference)
	writeSection(&b, "Anti-patterns", rules.AntiPatterns)

	fmt.Fprintf(&b, "Edit the following code to satisfy this request, preserving its overall structure:\n%q\n\n", req.Text)
	b.WriteString("Existing code:\n")
	b.WriteString(req.ExistingCode)
	b.WriteString("\n\n")

	if ctx := session.RenderPrompt(history); ctx != "" {
		b.WriteString(ctx)
		b.WriteString("\n")
	}

	b.WriteString(codeTagContract)
	return b.String()
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, line := range lines {
		fmt.Fprintf(b, "- %s\n", line)
	}
	b.WriteString("\n")
}

func writeRecipes(b *strings.Builder, recipes []rulestore.Recipe, targetVersion string) {
	filtered := rulestore.FilterRecipesByVersion(recipes, targetVersion)
	if len(filtered) == 0 {
		return
	}
	b.WriteString("Cookbook recipes:\n")
	for _, r := range filtered {
		fmt.Fprintf(b, "- %s: %s\n", r.Title, r.Body)
	}
	b.WriteString("\n")
}

func writeExamples(b *strings.Builder, examples []rulestore.Example) {
	if len(examples) == 0 {
		return
	}
	b.WriteString("Examples:\n")
	for _, ex := range examples {
		fmt.Fprintf(b, "Request: %s\nResponse: %s\n\n", ex.Request, ex.Response)
	}
}
