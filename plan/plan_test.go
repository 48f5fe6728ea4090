package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cadforge/codepilot/model"
)

const samplePlanText = `Object Analysis
A small bracket with two mounting holes.

Approach
Start from a base plate and add features.

Build Plan
1. Create a base plate 40mm x 20mm x 5mm.
2. Extrude two mounting holes through the plate.
3. Add a fillet of 2mm on the top edges.

Approximation Notes
Hole diameter approximated at 5mm.
`

func TestParsePlanSplitsSections(t *testing.T) {
	p := ParsePlan(samplePlanText)
	require.Contains(t, p.ObjectAnalysis, "bracket")
	require.Contains(t, p.Approach, "base plate")
	require.Contains(t, p.BuildPlan, "Create a base plate")
	require.Contains(t, p.ApproximationNotes, "5mm")
}

func TestParseBuildStepsClassifiesOperations(t *testing.T) {
	p := ParsePlan(samplePlanText)
	steps := ParseBuildSteps(p)
	require.Len(t, steps, 3)
	require.Equal(t, OpBase, steps[0].Operation)
	require.Equal(t, OpHole, steps[1].Operation)
	require.Equal(t, OpFillet, steps[2].Operation)
	require.Equal(t, 0, steps[0].Index)
	require.Equal(t, 2, steps[2].Index)
}

func TestClassifyOpIsDeterministicForAmbiguousDescriptions(t *testing.T) {
	// "shell the body and drill a hole" contains both "shell" and "hole"
	// keywords; classifyOp must consistently pick the earlier-listed one
	// regardless of how many times it runs.
	for i := 0; i < 20; i++ {
		require.Equal(t, OpShell, classifyOp("Shell the body and drill a hole for the cable"))
	}
}

func TestExtractedDimensions(t *testing.T) {
	dims := ExtractedDimensions("plate is 40mm x 20mm x 5mm")
	require.ElementsMatch(t, []float64{40, 20, 5}, dims)
}

type fakeClient struct {
	response *model.Response
	lastReq  *model.Request
}

func (f *fakeClient) Complete(_ context.Context, req *model.Request) (*model.Response, error) {
	f.lastReq = req
	return f.response, nil
}
func (f *fakeClient) Stream(context.Context, *model.Request) (model.Streamer, error) { return nil, nil }

func TestPlannerGenerateParsesResponse(t *testing.T) {
	fc := &fakeClient{response: &model.Response{Text: samplePlanText}}
	p := New(fc)
	result, err := p.Generate(context.Background(), "system prompt", "design a bracket")
	require.NoError(t, err)
	require.Contains(t, result.BuildPlan, "Create a base plate")
	require.Len(t, fc.lastReq.Messages, 2)
	require.Equal(t, model.ConversationRoleSystem, fc.lastReq.Messages[0].Role)
}

func TestPlannerReplanAppendsFeedback(t *testing.T) {
	fc := &fakeClient{response: &model.Response{Text: samplePlanText}}
	p := New(fc)
	_, err := p.Replan(context.Background(), "system prompt", "design a bracket", Feedback{Reason: "too risky", Warnings: []string{"shell after booleans"}})
	require.NoError(t, err)
	require.Contains(t, fc.lastReq.Messages[1].Text, "too risky")
	require.Contains(t, fc.lastReq.Messages[1].Text, "shell after booleans")
}
