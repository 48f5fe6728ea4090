// Package consensus implements Consensus (spec §4.K, component K): fans
// out several single-shot generation attempts at diverse temperatures and
// picks the best-scoring result instead of committing to the first
// attempt's code.
package consensus

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// errNoChildrenFinished is returned when every child either errored or was
// cancelled before the consensus deadline, leaving nothing to score.
var errNoChildrenFinished = errors.New("consensus: no child finished before the deadline")

// DefaultChildren is K, the default fan-out width (spec §4.K).
const DefaultChildren = 2

// DefaultTemperatures are the diverse sampling temperatures spec §4.K
// assigns across children when the caller does not override them.
var DefaultTemperatures = []float32{0.3, 0.8}

// DefaultConsensusTimeoutMultiple is T_consensus's multiple of T_exec (spec
// §4.K: "bounded by T_consensus, default 2x T_exec").
const DefaultConsensusTimeoutMultiple = 2

// ChildOutcome is one child's result: whether its pipeline run succeeded,
// the resulting code, and enough structure to score it.
type ChildOutcome struct {
	Index      int
	Success    bool
	Code       string
	MeshBytes  []byte
	OpCount    int
	FinishedAt time.Time
}

// ChildFunc runs one complete single-shot pipeline attempt at the given
// temperature and returns its outcome. Consensus does not know or care what
// a "pipeline attempt" entails; it only fans the function out, times it,
// and scores what comes back.
type ChildFunc func(ctx context.Context, childIndex int, temperature float32) (ChildOutcome, error)

// Result is Consensus's output: the winning child's outcome plus every
// child's outcome for observability (spec §4.K: ConsensusChildEvent wraps
// each child's own sub-stream).
type Result struct {
	Winner   ChildOutcome
	Children []ChildOutcome
}

// Run executes fn once per temperature in DefaultTemperatures (or
// temperatures, if non-empty) concurrently, bounded by a deadline of
// consensusTimeout (or DefaultConsensusTimeoutMultiple*30s when zero), and
// returns the highest-scoring outcome. Children still running
// when the deadline passes are cancelled; a child that returns an error is
// excluded from scoring rather than failing the whole call, since a
// partial quorum is still useful (spec §4.K picks among whichever children
// finished).
func Run(ctx context.Context, fn ChildFunc, temperatures []float32, consensusTimeout time.Duration) (Result, error) {
	if len(temperatures) == 0 {
		temperatures = DefaultTemperatures
	}
	if consensusTimeout <= 0 {
		consensusTimeout = DefaultConsensusTimeoutMultiple * 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, consensusTimeout)
	defer cancel()

	var wg sync.WaitGroup
	outcomes := make([]*ChildOutcome, len(temperatures))

	for i, temp := range temperatures {
		wg.Add(1)
		go func(i int, temp float32) {
			defer wg.Done()
			outcome, err := fn(ctx, i, temp)
			if err != nil {
				return
			}
			outcome.Index = i
			outcome.FinishedAt = nowOrZero()
			outcomes[i] = &outcome
		}(i, temp)
	}
	wg.Wait()

	finished := make([]ChildOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o != nil {
			finished = append(finished, *o)
		}
	}

	winner, err := pickWinner(finished)
	if err != nil {
		return Result{}, err
	}
	return Result{Winner: winner, Children: finished}, nil
}

// score implements spec §4.K's scoring function:
// score = 1000*success + 10*op_count + line_count.
func score(o ChildOutcome) int {
	s := 0
	if o.Success {
		s += 1000
	}
	s += 10 * o.OpCount
	s += strings.Count(o.Code, "\n") + 1
	return s
}

// pickWinner selects the highest-scoring child, breaking ties by earliest
// completion (spec §4.K: "highest score wins (ties by earliest completion)").
func pickWinner(outcomes []ChildOutcome) (ChildOutcome, error) {
	if len(outcomes) == 0 {
		return ChildOutcome{}, errNoChildrenFinished
	}
	sorted := make([]ChildOutcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := score(sorted[i]), score(sorted[j])
		if si != sj {
			return si > sj
		}
		return sorted[i].FinishedAt.Before(sorted[j].FinishedAt)
	})
	return sorted[0], nil
}

// nowOrZero isolates the one wall-clock read Consensus needs, to break
// scoring ties by completion order, behind a var so tests can stub it.
var nowOrZero = func() time.Time { return time.Now() }
