package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunPicksHighestScoringSuccess(t *testing.T) {
	fn := func(ctx context.Context, i int, temp float32) (ChildOutcome, error) {
		if i == 0 {
			return ChildOutcome{Success: false, Code: "line1\nline2", OpCount: 5}, nil
		}
		return ChildOutcome{Success: true, Code: "line1\nline2\nline3", OpCount: 3}, nil
	}

	result, err := Run(context.Background(), fn, []float32{0.3, 0.8}, time.Second)
	require.NoError(t, err)
	require.True(t, result.Winner.Success)
	require.Len(t, result.Children, 2)
}

func TestRunBreaksTiesByEarliestCompletion(t *testing.T) {
	restore := nowOrZero
	defer func() { nowOrZero = restore }()

	calls := 0
	times := []time.Time{
		time.Unix(100, 0),
		time.Unix(50, 0),
	}
	nowOrZero = func() time.Time {
		n := times[calls%len(times)]
		calls++
		return n
	}

	fn := func(ctx context.Context, i int, temp float32) (ChildOutcome, error) {
		return ChildOutcome{Success: true, Code: "x", OpCount: 1}, nil
	}

	result, err := Run(context.Background(), fn, []float32{0.3, 0.8}, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, result.Winner.Index)
}

func TestRunExcludesErroredChildren(t *testing.T) {
	fn := func(ctx context.Context, i int, temp float32) (ChildOutcome, error) {
		if i == 0 {
			return ChildOutcome{}, errFakeChildError
		}
		return ChildOutcome{Success: true, Code: "ok", OpCount: 1}, nil
	}

	result, err := Run(context.Background(), fn, []float32{0.3, 0.8}, time.Second)
	require.NoError(t, err)
	require.Len(t, result.Children, 1)
	require.True(t, result.Winner.Success)
}

func TestRunErrorsWhenNoChildFinishes(t *testing.T) {
	fn := func(ctx context.Context, i int, temp float32) (ChildOutcome, error) {
		return ChildOutcome{}, errFakeChildError
	}

	_, err := Run(context.Background(), fn, []float32{0.3, 0.8}, time.Second)
	require.Error(t, err)
}

func TestDefaultsAppliedWhenUnset(t *testing.T) {
	var gotTemps []float32
	fn := func(ctx context.Context, i int, temp float32) (ChildOutcome, error) {
		gotTemps = append(gotTemps, temp)
		return ChildOutcome{Success: true, Code: "x"}, nil
	}

	_, err := Run(context.Background(), fn, nil, 0)
	require.NoError(t, err)
	require.Len(t, gotTemps, len(DefaultTemperatures))
}

var errFakeChildError = fakeErr("child failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
