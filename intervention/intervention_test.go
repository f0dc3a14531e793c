package intervention

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/forecastsim/llm"
	"github.com/kart-io/forecastsim/simstate"
	"github.com/kart-io/forecastsim/situation"
)

func testSituation() *situation.Situation {
	return &situation.Situation{
		Name:     "gold-rush",
		MaxSteps: 4,
		Items:    []situation.ItemDefinition{{Name: "gold"}},
		Agents: []situation.AgentDefinition{
			{Name: "alice", StartingInventory: map[string]int{"gold": 10}},
			{Name: "bob", StartingInventory: map[string]int{"gold": 10}},
		},
		Environment: situation.Environment{
			GlobalActions: []situation.ActionDefinition{
				{
					Name:        "intervention_add_gold",
					Description: "follow the advisor's mandatory instruction",
					AvailableTo: situation.Everyone(),
					Effects: situation.Effects{
						situation.AddItemEffect{Target: "actor", ItemName: "gold", Quantity: situation.LiteralQuantity(100)},
					},
				},
			},
		},
	}
}

func noActionJSON() map[string]string {
	return map[string]string{"action_name": "no_action"}
}

func validPolicyJSON() map[string]interface{} {
	hard := func(conditional bool) map[string]interface{} {
		return map[string]interface{}{
			"question_title":      "hard",
			"prediction":           0.5,
			"is_conditional":       conditional,
			"category":             "hard_metric",
			"resolution_criteria":  "gold threshold",
			"hard_metric_criteria": map[string]interface{}{"agent_name": "alice", "item_name": "gold", "operator": ">=", "threshold": 10},
		}
	}
	qual := func(conditional bool) map[string]interface{} {
		return map[string]interface{}{
			"question_title":     "qual",
			"prediction":          0.5,
			"is_conditional":      conditional,
			"category":            "qualitative",
			"resolution_criteria": "something qualitative happens",
		}
	}
	var forecasts []map[string]interface{}
	for _, conditional := range []bool{false, true} {
		for i := 0; i < 3; i++ {
			forecasts = append(forecasts, hard(conditional))
		}
		for i := 0; i < 5; i++ {
			forecasts = append(forecasts, qual(conditional))
		}
	}
	return map[string]interface{}{
		"evaluation_criteria":      []string{"c1", "c2", "c3", "c4"},
		"intervention_description": "give alice more gold",
		"forecasts":                forecasts,
	}
}

func TestRun_BranchIsolation_SeedScenario6(t *testing.T) {
	sit := testSituation()
	stub := &llm.StubClient{Responses: []llm.StubResponse{
		// warmup step: 2 agent decisions (no_action each)
		{JSON: noActionJSON()},
		{JSON: noActionJSON()},
		// policy agent proposal
		{JSON: validPolicyJSON()},
		// remaining steps for both branches (4 max - 1 warmup = 3 remaining * 2 agents * 2 branches = 12 calls),
		// each agent takes the intervention action if asked — stub just repeats no_action
		// except we want the target to actually follow the mandatory instruction in the
		// intervention branch, so we script distinct behavior per branch isn't possible with
		// a single shared stub ordering under concurrency; instead we assert cost/forecast
		// plumbing and rely on a direct state mutation to prove isolation below.
		{JSON: noActionJSON()},
	}}
	r := New(sit, stub, "gpt-test", WithRand(rand.New(rand.NewSource(7))))

	state := simstate.New(sit)
	run, err := r.Run(context.Background(), state, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, run.WarmupSteps)
	assert.Len(t, run.Forecasts, 16)
	assert.NotSame(t, run.StatusQuoFinalState, run.InterventionFinalState)

	// Branch isolation: mutating one branch's final state must never
	// affect the other's.
	run.StatusQuoFinalState.AddItem("alice", "gold", 999)
	assert.NotEqual(t, run.StatusQuoFinalState.ItemCount("alice", "gold"), run.InterventionFinalState.ItemCount("alice", "gold"))
}

func TestInjectInterventionNotice_AppendsAdvisorDM(t *testing.T) {
	state := &simstate.SimulationState{StepNumber: 3}
	injectInterventionNotice(state, "alice", "stop hoarding gold", 3)

	require.Len(t, state.MessageHistory, 1)
	m := state.MessageHistory[0]
	assert.Equal(t, interventionAdvisor, m.Sender)
	assert.Equal(t, []string{"alice"}, m.Recipients)
	assert.Contains(t, m.Content, "MANDATORY INTERVENTION INSTRUCTIONS:")
	assert.Equal(t, 3, m.Step)
}

func TestBuildInterventionSituation_DoesNotMutateOriginal(t *testing.T) {
	sit := testSituation()
	original := sit.RulesText

	cp := buildInterventionSituation(sit, "do the thing")

	assert.Equal(t, original, sit.RulesText)
	assert.Contains(t, cp.RulesText, "MANDATORY INTERVENTION NOTICE")
}

func TestBatchRunner_PartialFailureDoesNotCancelOthers(t *testing.T) {
	sit := testSituation()
	stub := &llm.StubClient{Responses: []llm.StubResponse{
		{Err: assert.AnError},
	}}
	runner := New(sit, stub, "gpt-test", WithRand(rand.New(rand.NewSource(1))))
	batch := NewBatchRunner(runner)

	state := simstate.New(sit)
	results := batch.RunBatch(context.Background(), state, 3, 0, 0)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Error(t, r.Err)
	}
}
