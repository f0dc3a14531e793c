// Package simulator drives a situation step by step: it dispatches one
// agent action per declared agent per step, applies the resulting
// effects, resolves trades, and fires step-end inventory rules, producing
// a sequence of SimulationStep records.
package simulator

import (
	"context"
	"fmt"
	"math/rand"

	loggercore "github.com/kart-io/logger/core"

	"github.com/kart-io/forecastsim/agentrunner"
	"github.com/kart-io/forecastsim/effect"
	"github.com/kart-io/forecastsim/llm"
	"github.com/kart-io/forecastsim/observability"
	"github.com/kart-io/forecastsim/simstate"
	"github.com/kart-io/forecastsim/situation"
)

// SimulationStep is the recorded outcome of one run_step call: the
// deep-copied state immediately before and after the step, the actions
// every agent took, and the transcript lines the effect engine produced
// while applying them.
type SimulationStep struct {
	StepNumber  int                       `json:"step_number"`
	StateBefore *simstate.SimulationState `json:"state_before"`
	StateAfter  *simstate.SimulationState `json:"state_after"`
	Actions     []simstate.AgentAction    `json:"actions"`
	Log         []string                  `json:"log"`
}

// SimulationResult is the full record of a run_simulation call.
type SimulationResult struct {
	SituationName string            `json:"situation_name"`
	Steps         []SimulationStep  `json:"steps"`
	FinalState    *simstate.SimulationState `json:"final_state"`
}

// Simulator owns one Situation and drives agents through it via an
// agentrunner.Runner.
type Simulator struct {
	sit    *situation.Situation
	runner *agentrunner.Runner
	model  string
	log    loggercore.Logger
	rng    *rand.Rand
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger overrides the Simulator's logger.
func WithLogger(log loggercore.Logger) Option {
	return func(s *Simulator) { s.log = log }
}

// WithRand overrides the Simulator's (and its effect engines') random
// source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

// New builds a Simulator for sit, dispatching agent decisions through
// client using model for every LLM call.
func New(sit *situation.Situation, client llm.StructuredClient, model string, opts ...Option) *Simulator {
	s := &Simulator{
		sit:   sit,
		model: model,
		log:   loggercore.NewNoOpLogger(nil),
		rng:   rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = agentrunner.New(client, agentrunner.WithLogger(s.log))
	return s
}

// CreateInitialState builds the step-0 SimulationState for the bound
// situation.
func (s *Simulator) CreateInitialState() *simstate.SimulationState {
	return simstate.New(s.sit)
}

// RunStep advances state by exactly one step: every declared agent acts
// in declaration order, its effects are applied immediately (so a later
// agent in the same step sees an earlier agent's inventory changes), then
// trades expire and step-end inventory rules fire. state.StepNumber is
// incremented before any agent acts.
func (s *Simulator) RunStep(ctx context.Context, state *simstate.SimulationState) SimulationStep {
	state.StepNumber++
	observability.Default().StepsTotal.Inc()
	record := SimulationStep{StepNumber: state.StepNumber, StateBefore: state.DeepCopy()}

	eng := effect.New(s.sit, state, effect.WithLogger(s.log), effect.WithRand(s.rng))
	for _, agentDef := range s.sit.Agents {
		action := s.runner.ResolveAction(ctx, agentDef.Name, s.resolveModel(agentDef), state, s.sit)
		record.Actions = append(record.Actions, action)
		record.Log = append(record.Log, s.dispatch(eng, action)...)
	}
	record.Log = append(record.Log, eng.ExpireTrades()...)
	record.Log = append(record.Log, eng.ProcessStepEndRules()...)

	state.ActionLog = append(state.ActionLog, record.Actions...)
	record.StateAfter = state.DeepCopy()
	return record
}

func (s *Simulator) resolveModel(agentDef situation.AgentDefinition) string {
	if agentDef.AIModel != "" {
		return agentDef.AIModel
	}
	return s.model
}

// dispatch applies one resolved action's side effects: action-catalog
// effects, trade lifecycle transitions, and message delivery into the
// shared message history.
func (s *Simulator) dispatch(eng *effect.Engine, action simstate.AgentAction) []string {
	var log []string

	switch action.ActionName {
	case "no_action":
		// nothing to apply
	case "trade_propose":
		log = append(log, s.proposeTrade(eng, action)...)
	case "trade_accept":
		ok, reason := eng.ResolveTrade(action.TradeAcceptanceID, action.AgentName)
		_ = ok
		log = append(log, reason)
	case "trade_reject":
		ok, reason := eng.RejectTrade(action.TradeAcceptanceID)
		_ = ok
		log = append(log, reason)
	default:
		if def, ok := s.sit.FindAction(action.AgentName, action.ActionName); ok {
			log = append(log, eng.ApplyEffects(def.Effects, action.AgentName, action.Parameters)...)
		} else {
			log = append(log, fmt.Sprintf("%s attempted unknown action %q, ignored", action.AgentName, action.ActionName))
		}
	}

	for _, m := range action.MessagesToSend {
		eng.RecordMessage(m)
		log = append(log, fmt.Sprintf("%s sent a message", action.AgentName))
	}
	return log
}

func (s *Simulator) proposeTrade(eng *effect.Engine, action simstate.AgentAction) []string {
	if action.TradeProposal == nil {
		return []string{fmt.Sprintf("%s proposed a trade with no terms, ignored", action.AgentName)}
	}
	expiresIn := 1
	if v, ok := action.Metadata["expires_in_steps"]; ok {
		if n, ok := v.(int); ok && n > 0 {
			expiresIn = n
		}
	}
	id := eng.RegisterTrade(*action.TradeProposal, expiresIn)
	return []string{fmt.Sprintf("%s proposed trade %s", action.AgentName, id)}
}

// RunSimulation advances state from its current step through
// s.sit.MaxSteps, returning every recorded step alongside the final
// state.
func (s *Simulator) RunSimulation(ctx context.Context, state *simstate.SimulationState) SimulationResult {
	result := SimulationResult{SituationName: s.sit.Name}
	for state.StepNumber < s.sit.MaxSteps {
		select {
		case <-ctx.Done():
			result.FinalState = state
			return result
		default:
		}
		result.Steps = append(result.Steps, s.RunStep(ctx, state))
	}
	result.FinalState = state
	return result
}
