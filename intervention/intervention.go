// Package intervention orchestrates one full counterfactual test: warmup
// steps, a policy-agent proposal, a deep-copy branch split into
// status-quo and intervention continuations run concurrently, and
// forecast resolution against each branch's final state.
package intervention

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	loggercore "github.com/kart-io/logger/core"

	"github.com/kart-io/forecastsim/costmgr"
	simerrors "github.com/kart-io/forecastsim/errors"
	"github.com/kart-io/forecastsim/forecast"
	"github.com/kart-io/forecastsim/llm"
	"github.com/kart-io/forecastsim/policy"
	"github.com/kart-io/forecastsim/simstate"
	"github.com/kart-io/forecastsim/simulator"
	"github.com/kart-io/forecastsim/situation"
)

const interventionAdvisor = "Intervention Advisor"

// InterventionRun is the complete record of one counterfactual test,
// emitted as a single JSONL line per the on-disk run record format.
type InterventionRun struct {
	RunID                  string                          `json:"run_id"`
	Timestamp              string                          `json:"timestamp"`
	ModelName              string                          `json:"model_name"`
	SituationName          string                          `json:"situation_name"`
	TargetAgentName        string                          `json:"target_agent_name"`
	InterventionDescription string                         `json:"intervention_description"`
	PolicyProposalMarkdown string                          `json:"policy_proposal_markdown"`
	EvaluationCriteria     []string                        `json:"evaluation_criteria"`
	WarmupSteps            int                             `json:"warmup_steps"`
	TotalSteps             int                             `json:"total_steps"`
	Forecasts              []forecast.InterventionForecast `json:"forecasts"`
	TotalCost              float64                         `json:"total_cost"`

	// StatusQuoFinalState and InterventionFinalState are kept alongside
	// the run record (not part of the JSONL run_summary line itself) so
	// a ResultSink can additionally write the per-branch simulation
	// files the filesystem layout specifies.
	StatusQuoFinalState    *simstate.SimulationState `json:"-"`
	InterventionFinalState *simstate.SimulationState `json:"-"`
}

// Runner orchestrates intervention runs for one Situation.
type Runner struct {
	sit          *situation.Situation
	structClient llm.StructuredClient
	model        string
	log          loggercore.Logger
	rng          *rand.Rand
	nowFn        func() string
	rateLimit    []costmgr.Option
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger overrides the Runner's logger.
func WithLogger(log loggercore.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithRand overrides the Runner's random source (target-agent pick and
// effect-engine randomness in both branches).
func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) { r.rng = rng }
}

// WithCallRateLimit caps this Runner's cost scope to callsPerSecond LLM
// calls per second (with burst initial allowance), alongside its USD
// budget, via costmgr.WithRateLimit.
func WithCallRateLimit(callsPerSecond float64, burst int) Option {
	return func(r *Runner) {
		r.rateLimit = append(r.rateLimit, costmgr.WithRateLimit(callsPerSecond, burst))
	}
}

// WithClock overrides how the Runner stamps a run's timestamp, for
// deterministic tests (the module may not call time.Now directly per its
// own conventions around reproducible seed scenarios).
func WithClock(nowFn func() string) Option {
	return func(r *Runner) { r.nowFn = nowFn }
}

// New builds a Runner bound to sit.
func New(sit *situation.Situation, structClient llm.StructuredClient, model string, opts ...Option) *Runner {
	r := &Runner{
		sit:          sit,
		structClient: structClient,
		model:        model,
		log:          loggercore.NewNoOpLogger(nil),
		rng:          rand.New(rand.NewSource(1)),
		nowFn:        func() string { return "" },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one complete intervention test starting from state
// (mutated in place through the warmup phase), with warmupSteps capped at
// situation.max_steps - 1, inside a cost scope budgeted at budgetUSD (0 =
// unlimited).
func (r *Runner) Run(ctx context.Context, state *simstate.SimulationState, warmupSteps int, budgetUSD float64) (InterventionRun, error) {
	ctx, scope := costmgr.Enter(ctx, budgetUSD, r.log, r.rateLimit...)
	defer scope.Close()

	warmup := warmupSteps
	if max := r.sit.MaxSteps - 1; warmup > max {
		warmup = max
	}
	if warmup < 0 {
		warmup = 0
	}

	sim := simulator.New(r.sit, r.structClient, r.model, simulator.WithLogger(r.log), simulator.WithRand(r.rng))
	for i := 0; i < warmup; i++ {
		sim.RunStep(ctx, state)
	}

	targetAgent := r.pickTargetAgent()

	policyAgent := policy.New(r.structClient, r.model)
	proposal, err := policyAgent.Propose(ctx, r.sit, state, targetAgent)
	if err != nil {
		return InterventionRun{}, simerrors.Wrap(err, simerrors.CodePolicyFailed, "intervention run aborted: no policy result").
			WithComponent("intervention").WithContext("target_agent", targetAgent)
	}

	statusQuoState := state.DeepCopy()
	interventionState := state.DeepCopy()

	interventionSituation := buildInterventionSituation(r.sit, proposal.InterventionText)
	injectInterventionNotice(interventionState, targetAgent, proposal.InterventionText, state.StepNumber)

	remaining := r.sit.MaxSteps - warmup
	sqFinal, ivFinal, err := r.runBranchesConcurrently(ctx, interventionSituation, statusQuoState, interventionState, remaining)
	if err != nil {
		return InterventionRun{}, simerrors.Wrap(err, simerrors.CodeInternal, "branch execution failed").
			WithComponent("intervention")
	}

	resolver := forecast.New(r.structClient, r.model, forecast.WithLogger(r.log))
	resolved := make([]forecast.InterventionForecast, 0, len(proposal.Forecasts))
	resolved = append(resolved, resolver.ResolveAll(ctx, proposal.BaselineForecasts(), sqFinal)...)
	resolved = append(resolved, resolver.ResolveAll(ctx, proposal.ConditionalForecasts(), ivFinal)...)

	run := InterventionRun{
		RunID:                  uuid.New().String()[:8],
		Timestamp:              r.nowFn(),
		ModelName:              r.model,
		SituationName:          r.sit.Name,
		TargetAgentName:        targetAgent,
		InterventionDescription: proposal.InterventionText,
		PolicyProposalMarkdown: proposal.PolicyProposalMarkdown,
		EvaluationCriteria:     proposal.EvaluationCriteria,
		WarmupSteps:            warmup,
		TotalSteps:             warmup + remaining,
		Forecasts:              resolved,
		TotalCost:              scope.Spent(),
		StatusQuoFinalState:    sqFinal,
		InterventionFinalState: ivFinal,
	}
	return run, nil
}

// withRand returns a shallow copy of r carrying rng in place of r.rng, so
// a batch of concurrent runs can each own an independent random source
// instead of sharing the non-thread-safe *rand.Rand of their parent.
func (r *Runner) withRand(rng *rand.Rand) *Runner {
	cp := *r
	cp.rng = rng
	return &cp
}

func (r *Runner) pickTargetAgent() string {
	names := r.sit.AgentNames()
	return names[r.rng.Intn(len(names))]
}

// buildInterventionSituation returns a new Situation whose rules_text is
// the original concatenated with a mandatory intervention notice. The
// original situation value is never mutated.
func buildInterventionSituation(sit *situation.Situation, interventionText string) *situation.Situation {
	cp := *sit
	cp.RulesText = fmt.Sprintf("%s\n\nMANDATORY INTERVENTION NOTICE: %s", sit.RulesText, interventionText)
	return &cp
}

// injectInterventionNotice appends a synthetic DM from the Intervention
// Advisor to targetAgent at the current step, instructing it of the
// intervention.
func injectInterventionNotice(state *simstate.SimulationState, targetAgent, interventionText string, step int) {
	state.MessageHistory = append(state.MessageHistory, simstate.Message{
		Step:       step,
		Sender:     interventionAdvisor,
		Recipients: []string{targetAgent},
		Content:    fmt.Sprintf("MANDATORY INTERVENTION INSTRUCTIONS: %s", interventionText),
	})
}

// runBranchesConcurrently runs the status-quo branch against the original
// situation and the intervention branch against interventionSit, for
// exactly `steps` ticks each, in parallel. A failure in one branch
// cancels the shared context but does not roll back the other branch's
// already-applied effects.
func (r *Runner) runBranchesConcurrently(ctx context.Context, interventionSit *situation.Situation, statusQuoState, interventionState *simstate.SimulationState, steps int) (*simstate.SimulationState, *simstate.SimulationState, error) {
	g, gctx := errgroup.WithContext(ctx)

	// Seeds are drawn from the shared RNG before the branches start so
	// neither goroutine touches r.rng concurrently.
	statusQuoSeed := r.rng.Int63()
	interventionSeed := r.rng.Int63()

	g.Go(func() error {
		sim := simulator.New(r.sit, r.structClient, r.model, simulator.WithLogger(r.log), simulator.WithRand(rand.New(rand.NewSource(statusQuoSeed))))
		for i := 0; i < steps; i++ {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			sim.RunStep(gctx, statusQuoState)
		}
		return nil
	})

	g.Go(func() error {
		sim := simulator.New(interventionSit, r.structClient, r.model, simulator.WithLogger(r.log), simulator.WithRand(rand.New(rand.NewSource(interventionSeed))))
		for i := 0; i < steps; i++ {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			sim.RunStep(gctx, interventionState)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return statusQuoState, interventionState, nil
}
