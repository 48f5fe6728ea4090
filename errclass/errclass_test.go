package errclass

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestClassifySyntaxError(t *testing.T) {
	cat := Classify(Envelope{ExitCode: 2, Stderr: "  File \"part.py\", line 12\n    SyntaxError: invalid syntax"})
	require.Equal(t, KindSyntax, cat.Kind)
	require.NotNil(t, cat.Line)
	require.Equal(t, 12, *cat.Line)
}

func TestClassifySplitSolids(t *testing.T) {
	cat := Classify(Envelope{ExitCode: 5, Stderr: "result is disconnected: 2 solids, SPLIT_BODY detected"})
	require.Equal(t, KindSplitSolids, cat.Kind)
}

func TestClassifyTopology(t *testing.T) {
	cat := Classify(Envelope{ExitCode: 0, Stderr: "kernel_error: fillet operation failed on edge set"})
	require.Equal(t, KindTopology, cat.Kind)
	require.Equal(t, "fillet", cat.Op)
}

func TestClassifyGeometryKernel(t *testing.T) {
	cat := Classify(Envelope{ExitCode: 0, Stderr: "build_api call rejected: invalid solid handle"})
	require.Equal(t, KindGeometryKernel, cat.Kind)
}

func TestClassifyApiMisuse(t *testing.T) {
	cat := Classify(Envelope{ExitCode: 0, Stderr: "AttributeError: 'cadscript.Box' object has no attribute 'extrud'"})
	require.Equal(t, KindApiMisuse, cat.Kind)
	require.Equal(t, "cadscript.Box", cat.Symbol)
}

func TestClassifyTimeout(t *testing.T) {
	cat := Classify(Envelope{ExitCode: 137, Stderr: "killed"})
	require.Equal(t, KindTimeout, cat.Kind)
}

func TestClassifyRuntimeFallthrough(t *testing.T) {
	cat := Classify(Envelope{ExitCode: 1, Stderr: "ZeroDivisionError: division by zero"})
	require.Equal(t, KindRuntime, cat.Kind)
}

func TestClassifyUnknownOnEmptySuccess(t *testing.T) {
	cat := Classify(Envelope{ExitCode: 0, Stderr: ""})
	require.Equal(t, KindUnknown, cat.Kind)
}

// TestClassifyIsTotal exercises spec §8's testable property: ErrorClassifier
// is a total function on the CadRunner envelope domain. Any exit code and
// any stderr text, however garbled, must classify without panicking and
// must land in one of the declared Kind values.
func TestClassifyIsTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	validKinds := map[Kind]bool{
		KindSyntax: true, KindGeometryKernel: true, KindTopology: true,
		KindApiMisuse: true, KindRuntime: true, KindSplitSolids: true,
		KindTimeout: true, KindUnknown: true,
	}

	properties.Property("Classify never panics and always returns a declared Kind", prop.ForAll(
		func(exitCode int, stderr string) bool {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Classify panicked on exit=%d stderr=%q: %v", exitCode, stderr, r)
				}
			}()
			cat := Classify(Envelope{ExitCode: exitCode, Stderr: stderr})
			return validKinds[cat.Kind]
		},
		gen.IntRange(-1, 255),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
