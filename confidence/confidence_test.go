package confidence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cadforge/codepilot/plan"
	"github.com/cadforge/codepilot/rulestore"
)

func TestEstimateBaseScoreNoRecipes(t *testing.T) {
	result := Estimate(plan.Plan{}, nil, 2, nil)
	require.Equal(t, 80, result.Score)
	require.Equal(t, BandGreen, result.Band)
}

func TestEstimateClampsToZero(t *testing.T) {
	result := Estimate(plan.Plan{}, nil, 10, nil)
	require.Equal(t, 0, result.Score)
	require.Equal(t, BandRed, result.Band)
}

func TestEstimateBandThresholds(t *testing.T) {
	require.Equal(t, BandGreen, bandFor(75))
	require.Equal(t, BandYellow, bandFor(74))
	require.Equal(t, BandYellow, bandFor(40))
	require.Equal(t, BandRed, bandFor(39))
}

func TestEstimateFullCookbookMatchRaisesScore(t *testing.T) {
	steps := []plan.BuildStep{{Operation: plan.OpFillet}}
	recipes := []rulestore.Recipe{{Title: "fillet recipe"}}
	result := Estimate(plan.Plan{}, steps, 2, recipes)
	require.Equal(t, 95, result.Score) // 80 base + 15 bonus
}

func TestEstimateNoCookbookMatchLowersScore(t *testing.T) {
	steps := []plan.BuildStep{{Operation: plan.OpFillet}}
	recipes := []rulestore.Recipe{{Title: "totally unrelated widget"}}
	result := Estimate(plan.Plan{}, steps, 2, recipes)
	require.Equal(t, 65, result.Score) // 80 base - 15 penalty
}

func TestUpdatePostExecutionSuccess(t *testing.T) {
	updated := UpdatePostExecution(Result{Score: 70, Band: BandYellow}, true)
	require.Equal(t, 80, updated.Score)
	require.Equal(t, BandGreen, updated.Band)
}

func TestUpdatePostExecutionFailureClampsAtZero(t *testing.T) {
	updated := UpdatePostExecution(Result{Score: 10, Band: BandRed}, false)
	require.Equal(t, 0, updated.Score)
}

func TestUpdatePostExecutionSuccessClampsAt100(t *testing.T) {
	updated := UpdatePostExecution(Result{Score: 95, Band: BandGreen}, true)
	require.Equal(t, 100, updated.Score)
}
