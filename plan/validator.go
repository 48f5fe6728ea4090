package plan

import (
	"fmt"
	"strings"
)

// opWeight is the per-operation risk contribution spec §4.F's table
// defines.
var opWeight = map[Op]int{
	OpBase:             0,
	OpExtrude:          1,
	OpFillet:           2,
	OpChamfer:          2,
	OpShell:            2,
	OpSweep:            3,
	OpLoft:             3,
	OpRevolve:          2,
	OpBooleanUnion:     1,
	OpBooleanSubtract:  1,
	OpBooleanIntersect: 1,
	OpPattern:          1,
	OpHole:             1,
}

// DefaultDimensionRange is the fixed feasibility range spec §4.F implies and
// spec §9 Open Question 2 leaves open for preset-level override; callers
// that have a rulestore.RuleSet.DimensionRange should pass it instead.
var DefaultDimensionRange = [2]float64{0.01, 10000}

// Result is PlanValidator's output (spec §4.F): `{is_valid, risk_score
// 0..10, warnings, rejected_reason?}`.
type Result struct {
	IsValid        bool
	RiskScore      int
	Warnings       []string
	RejectedReason string
}

const riskRejectThreshold = 7

// FilletRadiusCheck reports a fillet whose radius exceeds 0.25x the
// smallest touched plane dimension, the condition spec §4.F's third risk
// rule penalizes. Callers supply these from whatever geometry analysis
// produced the plan; PlanValidator itself does no geometric reasoning.
type FilletRadiusCheck struct {
	Radius              float64
	SmallestPlaneExtent float64
}

func (c FilletRadiusCheck) exceeds() bool {
	return c.SmallestPlaneExtent > 0 && c.Radius > 0.25*c.SmallestPlaneExtent
}

// Validate scores a parsed Plan per spec §4.F's risk table. dimensionRange
// bounds what counts as a feasible declared dimension; pass
// DefaultDimensionRange absent a preset override. fillets lets the caller
// supply any fillet-radius-vs-plane-extent measurements it has available.
func Validate(p Plan, steps []BuildStep, dimensionRange [2]float64, fillets []FilletRadiusCheck) Result {
	if strings.TrimSpace(p.Raw) == "" {
		return Result{IsValid: false, RejectedReason: "empty plan"}
	}

	var warnings []string
	score := 0

	for _, step := range steps {
		score += opWeight[step.Operation]
	}

	if shellAfterManyBooleans(steps) {
		score += 3
		warnings = append(warnings, "shell operation appears after more than 3 boolean operations")
	}

	for _, f := range fillets {
		if f.exceeds() {
			score += 2
			warnings = append(warnings, fmt.Sprintf("fillet radius %.3f exceeds 0.25x the smallest touched plane dimension %.3f", f.Radius, f.SmallestPlaneExtent))
		}
	}

	missing := missingSections(p)
	if len(missing) > 0 {
		score += len(missing)
		warnings = append(warnings, fmt.Sprintf("plan is missing required sections: %v", missing))
	}

	for _, d := range ExtractedDimensions(p.Raw) {
		if d < dimensionRange[0] || d > dimensionRange[1] {
			warnings = append(warnings, fmt.Sprintf("declared dimension %.3f is outside the feasible range [%.3f, %.3f]", d, dimensionRange[0], dimensionRange[1]))
		}
	}

	if score > 10 {
		score = 10
	}

	result := Result{RiskScore: score, Warnings: warnings, IsValid: true}
	if score > riskRejectThreshold {
		result.IsValid = false
		result.RejectedReason = "risk score exceeds the acceptance threshold; re-plan with a simpler approach"
	}
	return result
}

func shellAfterManyBooleans(steps []BuildStep) bool {
	booleanCount := 0
	for _, s := range steps {
		switch s.Operation {
		case OpBooleanUnion, OpBooleanSubtract, OpBooleanIntersect:
			booleanCount++
		case OpShell:
			if booleanCount > 3 {
				return true
			}
		}
	}
	return false
}

func missingSections(p Plan) []string {
	var missing []string
	if p.ObjectAnalysis == "" {
		missing = append(missing, sectionObjectAnalysis)
	}
	if p.Approach == "" {
		missing = append(missing, sectionApproach)
	}
	if p.BuildPlan == "" {
		missing = append(missing, sectionBuildPlan)
	}
	if p.ApproximationNotes == "" {
		missing = append(missing, sectionApproximation)
	}
	return missing
}
