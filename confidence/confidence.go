// Package confidence implements Confidence (spec §4.G, component G):
// a pre-execution success-likelihood estimate from the plan's risk score
// and cookbook recipe overlap, plus the post-execution update spec §9 Open
// Question 1 resolves exactly as stated.
package confidence

import (
	"math"
	"strings"

	"github.com/cadforge/codepilot/plan"
	"github.com/cadforge/codepilot/rulestore"
)

// Band is the traffic-light classification of a Score.
type Band string

const (
	BandGreen  Band = "green"
	BandYellow Band = "yellow"
	BandRed    Band = "red"
)

const (
	bandGreenMin  = 75
	bandYellowMin = 40
)

// Result is Confidence's output: an integer 0..100 and its Band.
type Result struct {
	Score int
	Band  Band
}

func bandFor(score int) Band {
	switch {
	case score >= bandGreenMin:
		return BandGreen
	case score >= bandYellowMin:
		return BandYellow
	default:
		return BandRed
	}
}

const (
	maxCookbookBonus = 15
	minCookbookBonus = -15
)

// Estimate computes the pre-execution score (spec §4.G): base = 100 -
// 10*risk_score, plus a cookbook-match bonus in [-15, +15] from operation-set
// overlap and title-keyword match against the plan, clamped to [0, 100].
func Estimate(p plan.Plan, steps []plan.BuildStep, riskScore int, recipes []rulestore.Recipe) Result {
	base := 100 - 10*riskScore
	bonus := cookbookBonus(p, steps, recipes)
	score := clamp(base+bonus, 0, 100)
	return Result{Score: score, Band: bandFor(score)}
}

// cookbookBonus scores operation-set overlap and title-keyword matches
// between the plan and the matched recipes, linearly scaled into
// [-15, +15]: no matching recipe in the candidate set is as informative a
// signal as a full match, since the candidates were selected as plausibly
// relevant to this plan. An empty recipe set contributes no bonus —
// neutral, not penalized, since no candidates were available to match at
// all.
func cookbookBonus(p plan.Plan, steps []plan.BuildStep, recipes []rulestore.Recipe) int {
	if len(recipes) == 0 {
		return 0
	}

	planOps := make(map[string]bool, len(steps))
	for _, s := range steps {
		planOps[string(s.Operation)] = true
	}

	matched := 0
	for _, r := range recipes {
		if recipeMatches(r, p, planOps) {
			matched++
		}
	}

	ratio := float64(matched) / float64(len(recipes))
	bonus := int(math.Round((ratio - 0.5) * 2 * float64(maxCookbookBonus)))
	return clamp(bonus, minCookbookBonus, maxCookbookBonus)
}

func recipeMatches(r rulestore.Recipe, p plan.Plan, planOps map[string]bool) bool {
	title := strings.ToLower(r.Title)
	for op := range planOps {
		if strings.Contains(title, strings.ReplaceAll(op, "_", " ")) || strings.Contains(title, op) {
			return true
		}
	}
	lowerApproach := strings.ToLower(p.Approach)
	for _, word := range strings.Fields(title) {
		if len(word) > 3 && strings.Contains(lowerApproach, word) {
			return true
		}
	}
	return false
}

// UpdatePostExecution applies the post-execution band adjustment spec §9
// Open Question 1 resolves exactly as stated: a successful run raises the
// score by 10 (clamped), a failure drops it by 20 (clamped). Spec declines
// to specify any further downstream effect, so none is added here.
func UpdatePostExecution(prior Result, succeeded bool) Result {
	delta := -20
	if succeeded {
		delta = 10
	}
	score := clamp(prior.Score+delta, 0, 100)
	return Result{Score: score, Band: bandFor(score)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
