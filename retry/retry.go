// Package retry implements RetryStrategy (spec §4.B, component B): a pure,
// deterministic mapping from an ErrorCategory and attempt index to a retry
// prompt prefix, a forbidden-operation set, and a simplification level.
// Decide mirrors the shape of a policy decision engine (allow/deny lists
// plus escalating hints) the way runtime/agent/policy/basic's Engine does,
// but it has no external dependencies and carries no state across calls.
package retry

import (
	"fmt"

	"github.com/cadforge/codepilot/errclass"
)

// Level is the simplification level a Strategy asks the next attempt to
// operate at.
type Level int

const (
	LevelTargetFix         Level = 0
	LevelSimplifyFailingOp Level = 1
	LevelPrimitivesOnly    Level = 2
)

// Strategy is the pure value RetryStrategy returns: everything the caller
// needs to build the next retry prompt, plus whether this is the last
// attempt permitted at this error category (spec invariant: a strategy is
// never applied twice at LevelPrimitivesOnly for the same category).
type Strategy struct {
	PromptPrefix        string
	ForbiddenOperations []string
	Level               Level
	Terminal            bool
}

// Decide returns the Strategy for (category, attemptIndex), per spec §4.B's
// table. attemptIndex is 1-based to match the spec's "Attempt 1/2/3"
// columns. Decide is pure and side-effect-free: same inputs, same output,
// always.
func Decide(cat errclass.Category, attemptIndex int) Strategy {
	switch cat.Kind {
	case errclass.KindSyntax:
		return syntaxStrategy(attemptIndex)
	case errclass.KindTopology:
		return topologyStrategy(cat.Op, attemptIndex)
	case errclass.KindGeometryKernel:
		return geometryKernelStrategy(attemptIndex)
	case errclass.KindApiMisuse:
		return apiMisuseStrategy(attemptIndex)
	case errclass.KindSplitSolids:
		return splitSolidsStrategy(attemptIndex)
	case errclass.KindRuntime, errclass.KindTimeout, errclass.KindUnknown:
		return runtimeStrategy(attemptIndex)
	default:
		return runtimeStrategy(attemptIndex)
	}
}

func syntaxStrategy(attempt int) Strategy {
	switch attempt {
	case 1:
		return Strategy{PromptPrefix: "Repair only the cited line; do not change anything else.", Level: LevelTargetFix}
	case 2:
		return Strategy{PromptPrefix: "The targeted fix did not resolve the syntax error; re-plan the affected build step before regenerating code.", Level: LevelTargetFix}
	default:
		return Strategy{PromptPrefix: "Rewrite using only primitive operations (box, cylinder, extrude); avoid the construct that failed.", Level: LevelPrimitivesOnly, Terminal: true}
	}
}

func topologyStrategy(op string, attempt int) Strategy {
	switch op {
	case "fillet", "chamfer":
		return levelTable(attempt,
			"Halve the fillet/chamfer radius on the failing edges.",
			"Drop fillets/chamfers on the failing edges entirely.",
			[]string{})
	case "shell":
		return levelTable(attempt,
			"Replace the shell operation with a manual subtraction of an inner box.",
			"Simplify the hollowing strategy; reduce wall-thickness variation.",
			[]string{"shell"})
	case "boolean_union", "boolean_subtract", "boolean_intersect", "boolean":
		return levelTable(attempt,
			"Extend the cutting tool body by +1 unit along the cut axis before subtracting.",
			"Merge intermediate bodies into a single solid before the boolean operation.",
			[]string{})
	case "loft", "sweep":
		return levelTable(attempt,
			"Fall back to stacked extrudes instead of loft/sweep.",
			"Replace the loft/sweep with a revolve where the profile permits it.",
			[]string{"loft", "sweep"})
	default:
		return levelTable(attempt,
			"Simplify the profile feeding this operation.",
			"Replace the profile with straight line segments only.",
			[]string{op})
	}
}

func geometryKernelStrategy(attempt int) Strategy {
	return levelTable(attempt,
		"Simplify the profile passed to the kernel call that failed.",
		"Replace curves in the profile with straight line segments.",
		[]string{})
}

func apiMisuseStrategy(attempt int) Strategy {
	switch attempt {
	case 1:
		return Strategy{PromptPrefix: "Quote the correct method signature from the API reference before calling it again.", Level: LevelTargetFix}
	case 2:
		return Strategy{PromptPrefix: "The API reference fix did not resolve the call; re-plan the build step using only documented entry points.", Level: LevelTargetFix}
	default:
		return Strategy{PromptPrefix: "Rewrite using only primitive operations documented in the API reference.", Level: LevelPrimitivesOnly, Terminal: true}
	}
}

func splitSolidsStrategy(attempt int) Strategy {
	switch attempt {
	case 1:
		return Strategy{PromptPrefix: "Extend the overlap on the last additive operation so the bodies merge into one solid.", Level: LevelTargetFix}
	case 2:
		return Strategy{PromptPrefix: "Re-order operations: base first, then features, then booleans, then fillets.", Level: LevelSimplifyFailingOp}
	default:
		return Strategy{PromptPrefix: "Rewrite using only primitive operations; avoid multi-body intermediate states.", Level: LevelPrimitivesOnly, Terminal: true}
	}
}

func runtimeStrategy(attempt int) Strategy {
	switch attempt {
	case 1:
		return Strategy{PromptPrefix: "Reduce the overall feature count to isolate the failure.", Level: LevelTargetFix}
	case 2:
		return Strategy{PromptPrefix: "Simplify the build plan; drop any non-essential feature.", Level: LevelSimplifyFailingOp}
	default:
		return Strategy{PromptPrefix: "Rewrite using only primitive operations; no further automatic retries are available after this.", Level: LevelPrimitivesOnly, Terminal: true}
	}
}

// levelTable builds the common attempt-1/attempt-2/terminal shape shared by
// most categories in spec §4.B's table, accumulating forbidden operations
// monotonically as attempts escalate.
func levelTable(attempt int, first, second string, forbidOnSecond []string) Strategy {
	switch attempt {
	case 1:
		return Strategy{PromptPrefix: first, Level: LevelTargetFix}
	case 2:
		return Strategy{PromptPrefix: second, ForbiddenOperations: forbidOnSecond, Level: LevelSimplifyFailingOp}
	default:
		return Strategy{
			PromptPrefix:        fmt.Sprintf("%s Rewrite using only primitive operations.", second),
			ForbiddenOperations: forbidOnSecond,
			Level:               LevelPrimitivesOnly,
			Terminal:            true,
		}
	}
}
