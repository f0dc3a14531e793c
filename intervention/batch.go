package intervention

import (
	"context"
	"math/rand"
	"sync"

	"github.com/kart-io/forecastsim/simstate"
)

// BatchResult pairs one batch member's outcome with its index so callers
// can correlate failures back to the request that produced them.
type BatchResult struct {
	Index int
	Run   InterventionRun
	Err   error
}

// BatchRunner fans out N independent intervention runs concurrently, each
// against its own deep-copied starting state and its own nested
// costmgr.Scope, so one run's cost ceiling never starves another's.
// Partial failure is first-class: one run's error never cancels the
// others, matching the "a multi-run batch records each run's error
// independently" policy.
type BatchRunner struct {
	runner *Runner
}

// NewBatchRunner wraps runner for batched concurrent invocation.
func NewBatchRunner(runner *Runner) *BatchRunner {
	return &BatchRunner{runner: runner}
}

// RunBatch runs n independent intervention tests from independent deep
// copies of baseState, all with the same warmupSteps and budgetUSD but
// each with its own cost scope and its own seeded RNG, and returns one BatchResult per run
// in request order.
//
// Runner.rng is not safe for concurrent use, so each batch member gets its
// own clone of b.runner carrying a freshly seeded *rand.Rand, drawn
// sequentially from b.runner.rng before any goroutine starts — matching
// the no-shared-mutable-state discipline the per-branch tails already
// follow in runBranchesConcurrently.
func (b *BatchRunner) RunBatch(ctx context.Context, baseState *simstate.SimulationState, n, warmupSteps int, budgetUSD float64) []BatchResult {
	results := make([]BatchResult, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		runner := b.runner.withRand(rand.New(rand.NewSource(b.runner.rng.Int63())))
		go func(idx int, runner *Runner) {
			defer wg.Done()
			state := baseState.DeepCopy()
			run, err := runner.Run(ctx, state, warmupSteps, budgetUSD)
			results[idx] = BatchResult{Index: idx, Run: run, Err: err}
		}(i, runner)
	}
	wg.Wait()
	return results
}
