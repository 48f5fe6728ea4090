// Package plan implements Planner and PlanValidator (spec §4.E/§4.F,
// components E/F) plus the Plan/BuildStep data model spec §3 describes.
package plan

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cadforge/codepilot/model"
)

// Op enumerates the BuildStep operation kinds spec §3 names.
type Op string

const (
	OpBase             Op = "base"
	OpExtrude          Op = "extrude"
	OpRevolve          Op = "revolve"
	OpLoft             Op = "loft"
	OpSweep            Op = "sweep"
	OpShell            Op = "shell"
	OpFillet           Op = "fillet"
	OpChamfer          Op = "chamfer"
	OpBooleanUnion     Op = "boolean_union"
	OpBooleanSubtract  Op = "boolean_subtract"
	OpBooleanIntersect Op = "boolean_intersect"
	OpPattern          Op = "pattern"
	OpHole             Op = "hole"
)

// Plan is the Planner's free-form output, partitioned into labelled
// sections (spec §3). Sections are stored verbatim; BuildSteps is derived
// from the "Build Plan" section by ParseBuildSteps.
type Plan struct {
	ObjectAnalysis     string
	Approach           string
	BuildPlan          string
	ApproximationNotes string
	Raw                string
}

// BuildStep is derived from Plan (spec §3): ordered index, imperative
// description, extracted operation kind.
type BuildStep struct {
	Index       int
	Description string
	Operation   Op
}

const (
	sectionObjectAnalysis = "Object Analysis"
	sectionApproach       = "Approach"
	sectionBuildPlan      = "Build Plan"
	sectionApproximation  = "Approximation Notes"
)

var sectionHeader = regexp.MustCompile(`(?m)^#{0,3}\s*(Object Analysis|Approach|Build Plan|Approximation Notes)\s*:?\s*$`)

// ParsePlan splits a Planner response into its labelled sections. Missing
// sections are left empty; PlanValidator treats that as a validation
// warning rather than a parse error, since the plan text is the
// authoritative output and must always be usable downstream.
func ParsePlan(raw string) Plan {
	p := Plan{Raw: raw}
	sections := splitSections(raw)
	p.ObjectAnalysis = sections[sectionObjectAnalysis]
	p.Approach = sections[sectionApproach]
	p.BuildPlan = sections[sectionBuildPlan]
	p.ApproximationNotes = sections[sectionApproximation]
	return p
}

func splitSections(raw string) map[string]string {
	out := make(map[string]string)
	matches := sectionHeader.FindAllStringSubmatchIndex(raw, -1)
	for i, m := range matches {
		name := raw[m[2]:m[3]]
		bodyStart := m[1]
		bodyEnd := len(raw)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		out[name] = strings.TrimSpace(raw[bodyStart:bodyEnd])
	}
	return out
}

var buildStepLine = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+(.+)$`)

// opKeywords is ordered, not a map: classifyOp takes the first match, and a
// description can legitimately contain more than one operation's keyword
// (e.g. "shell the body and drill a hole"), so the match must be
// deterministic rather than dependent on Go's randomized map iteration.
var opKeywords = []struct {
	keyword string
	op      Op
}{
	{"extrude", OpExtrude}, {"revolve", OpRevolve}, {"loft", OpLoft}, {"sweep", OpSweep},
	{"shell", OpShell}, {"hollow", OpShell}, {"fillet", OpFillet}, {"round", OpFillet},
	{"chamfer", OpChamfer}, {"union", OpBooleanUnion}, {"subtract", OpBooleanSubtract},
	{"cut", OpBooleanSubtract}, {"intersect", OpBooleanIntersect}, {"pattern", OpPattern},
	{"array", OpPattern}, {"hole", OpHole}, {"drill", OpHole}, {"bore", OpHole},
}

// ParseBuildSteps extracts the ordered numbered list from a Plan's Build
// Plan section (spec §3: "Build Plan — an ordered numbered list of build
// steps"), classifying each into an operation kind by keyword, defaulting
// to OpBase when no operation keyword is recognized (the first step is
// conventionally the base solid).
func ParseBuildSteps(p Plan) []BuildStep {
	lines := buildStepLine.FindAllStringSubmatch(p.BuildPlan, -1)
	steps := make([]BuildStep, 0, len(lines))
	for i, m := range lines {
		desc := strings.TrimSpace(m[1])
		steps = append(steps, BuildStep{Index: i, Description: desc, Operation: classifyOp(desc)})
	}
	return steps
}

func classifyOp(desc string) Op {
	lower := strings.ToLower(desc)
	for _, k := range opKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.op
		}
	}
	return OpBase
}

// Planner issues plan-authorship completions through an LlmClient (spec
// §4.E). It holds no state beyond the client and the system prompt it was
// built with; re-prompting with validator feedback is a separate call, not
// internal retry state, so the caller remains in control of the plan loop
// (spec §4.M's Pipeline owns the Planning/PlanValidation/re-plan cycle).
type Planner struct {
	client model.Client
}

// New returns a Planner issuing completions through client.
func New(client model.Client) *Planner {
	return &Planner{client: client}
}

// Generate issues a non-streaming completion with systemPrompt (assembled
// by PromptBuilder for plan authorship) and the user's request text,
// returning the parsed Plan.
func (p *Planner) Generate(ctx context.Context, systemPrompt, userRequest string) (Plan, error) {
	resp, err := p.client.Complete(ctx, &model.Request{
		Messages: []model.Message{
			{Role: model.ConversationRoleSystem, Text: systemPrompt},
			{Role: model.ConversationRoleUser, Text: userRequest},
		},
	})
	if err != nil {
		return Plan{}, fmt.Errorf("plan: generate: %w", err)
	}
	return ParsePlan(resp.Text), nil
}

// Replan re-prompts with PlanValidator rejection feedback appended (spec
// §4.E's "re-prompt variant that appends rejection feedback").
func (p *Planner) Replan(ctx context.Context, systemPrompt, userRequest string, feedback Feedback) (Plan, error) {
	userRequest = userRequest + "\n\nYour previous plan was rejected: " + feedback.Reason +
		"\nWarnings: " + strings.Join(feedback.Warnings, "; ") +
		"\nRevise the plan to address this feedback."
	return p.Generate(ctx, systemPrompt, userRequest)
}

// Feedback carries PlanValidator's rejection reason into a Replan call.
type Feedback struct {
	Reason   string
	Warnings []string
}

var dimensionPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(mm|cm|in|inch|inches)?`)

// ExtractedDimensions pulls numeric dimension mentions out of plan text for
// PlanValidator's feasibility checks.
func ExtractedDimensions(text string) []float64 {
	matches := dimensionPattern.FindAllStringSubmatch(text, -1)
	dims := make([]float64, 0, len(matches))
	for _, m := range matches {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			dims = append(dims, v)
		}
	}
	return dims
}
