// Package policy produces PolicyAgentResult: an intervention proposal and
// the 16 typed forecasts (8 baseline, 8 conditional) that score it,
// generated from a single structured LLM invocation.
package policy

import (
	"context"
	"fmt"

	simerrors "github.com/kart-io/forecastsim/errors"
	"github.com/kart-io/forecastsim/forecast"
	"github.com/kart-io/forecastsim/llm"
	"github.com/kart-io/forecastsim/simstate"
	"github.com/kart-io/forecastsim/situation"
)

const (
	expectedCriteriaMin = 4
	expectedCriteriaMax = 6
	hardMetricPerPhase  = 3
	qualitativePerPhase = 5
	forecastsPerPhase   = hardMetricPerPhase + qualitativePerPhase // 8
	expectedForecasts   = forecastsPerPhase * 2                    // 16
)

// PolicyAgentResult is the complete output of one policy agent invocation.
type PolicyAgentResult struct {
	GoalsAnalysis         string                          `json:"goals_analysis"`
	EvaluationCriteria    []string                        `json:"evaluation_criteria"`
	InterventionText      string                          `json:"intervention_description"`
	PolicyProposalMarkdown string                         `json:"policy_proposal_markdown"`
	Forecasts             []forecast.InterventionForecast `json:"forecasts"`
}

// BaselineForecasts returns the 8 forecasts with IsConditional == false.
func (r PolicyAgentResult) BaselineForecasts() []forecast.InterventionForecast {
	return r.forecastsWhere(false)
}

// ConditionalForecasts returns the 8 forecasts with IsConditional == true.
func (r PolicyAgentResult) ConditionalForecasts() []forecast.InterventionForecast {
	return r.forecastsWhere(true)
}

func (r PolicyAgentResult) forecastsWhere(conditional bool) []forecast.InterventionForecast {
	var out []forecast.InterventionForecast
	for _, f := range r.Forecasts {
		if f.IsConditional == conditional {
			out = append(out, f)
		}
	}
	return out
}

// rawForecast is the wire shape of one forecast as the LLM is asked to
// emit it, before validation converts it into forecast.InterventionForecast.
type rawForecast struct {
	QuestionTitle      string                      `json:"question_title"`
	QuestionText       string                      `json:"question_text"`
	ResolutionCriteria string                      `json:"resolution_criteria"`
	Prediction         float64                     `json:"prediction"`
	Reasoning          string                      `json:"reasoning"`
	IsConditional      bool                        `json:"is_conditional"`
	Category           forecast.Category           `json:"category"`
	HardMetricCriteria *forecast.HardMetricCriteria `json:"hard_metric_criteria"`
}

// rawResult is the wire shape of the full policy agent response.
type rawResult struct {
	GoalsAnalysis          string        `json:"goals_analysis"`
	EvaluationCriteria     []string      `json:"evaluation_criteria"`
	InterventionDescription string       `json:"intervention_description"`
	PolicyProposalMarkdown string        `json:"policy_proposal_markdown"`
	Forecasts              []rawForecast `json:"forecasts"`
}

// Agent invokes an LLM once to produce a PolicyAgentResult for a given
// (situation, state, target_agent).
type Agent struct {
	client llm.StructuredClient
	model  string
}

// New builds a policy Agent.
func New(client llm.StructuredClient, model string) *Agent {
	return &Agent{client: client, model: model}
}

// Propose invokes the policy agent for targetAgent against the current
// state, validating the LLM's 16-forecast contract before returning.
func (a *Agent) Propose(ctx context.Context, sit *situation.Situation, state *simstate.SimulationState, targetAgent string) (PolicyAgentResult, error) {
	req := &llm.CompletionRequest{
		Model:       a.model,
		Temperature: 0.8,
		SchemaName:  "policy_agent_result",
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(sit, state, targetAgent)},
		},
	}

	var raw rawResult
	if err := llm.CompleteStructured(ctx, a.client, req, &raw); err != nil {
		return PolicyAgentResult{}, simerrors.Wrap(err, simerrors.CodePolicyFailed, "policy agent invocation").
			WithComponent("policy").WithContext("target_agent", targetAgent)
	}

	result, err := validateAndConvert(raw, sit)
	if err != nil {
		return PolicyAgentResult{}, simerrors.Wrap(err, simerrors.CodePolicyFailed, "policy agent output failed validation").
			WithComponent("policy").WithContext("target_agent", targetAgent)
	}
	return result, nil
}

const systemPrompt = `You are the policy agent for a multi-agent situation simulator. Given the current state and a target agent, you must:
1. Analyze the situation's goals and dynamics.
2. Produce 4 to 6 evaluation criteria for judging an intervention.
3. Produce exactly 8 baseline forecasts about the remaining steps with no intervention (3 hard_metric, 5 qualitative).
4. Propose one intervention: a direct-instruction message to the target agent.
5. Produce exactly 8 conditional forecasts under that intervention (3 hard_metric, 5 qualitative).
Reply with a single JSON object matching the requested schema. Every hard_metric forecast must carry hard_metric_criteria naming a declared agent, a declared item, an operator from {>=,<=,==,>,<,!=}, and a threshold.`

func buildUserPrompt(sit *situation.Situation, state *simstate.SimulationState, targetAgent string) string {
	return fmt.Sprintf("SITUATION: %s\n%s\n\nSTEP: %d\nTARGET AGENT: %s\nINVENTORIES: %v\n",
		sit.Name, sit.RulesText, state.StepNumber, targetAgent, state.Inventories)
}

func validateAndConvert(raw rawResult, sit *situation.Situation) (PolicyAgentResult, error) {
	if len(raw.EvaluationCriteria) < expectedCriteriaMin || len(raw.EvaluationCriteria) > expectedCriteriaMax {
		return PolicyAgentResult{}, fmt.Errorf("expected 4-6 evaluation criteria, got %d", len(raw.EvaluationCriteria))
	}
	if len(raw.Forecasts) != expectedForecasts {
		return PolicyAgentResult{}, fmt.Errorf("expected %d forecasts, got %d", expectedForecasts, len(raw.Forecasts))
	}

	agentNames := make(map[string]bool, len(sit.Agents))
	for _, a := range sit.Agents {
		agentNames[a.Name] = true
	}
	itemNames := make(map[string]bool, len(sit.Items))
	for _, it := range sit.Items {
		itemNames[it.Name] = true
	}

	baselineHard, baselineQual, condHard, condQual := 0, 0, 0, 0
	forecasts := make([]forecast.InterventionForecast, len(raw.Forecasts))
	for i, rf := range raw.Forecasts {
		if err := validateOneForecast(rf, agentNames, itemNames); err != nil {
			return PolicyAgentResult{}, fmt.Errorf("forecast %d (%q): %w", i, rf.QuestionTitle, err)
		}
		switch {
		case !rf.IsConditional && rf.Category == forecast.CategoryHardMetric:
			baselineHard++
		case !rf.IsConditional && rf.Category == forecast.CategoryQualitative:
			baselineQual++
		case rf.IsConditional && rf.Category == forecast.CategoryHardMetric:
			condHard++
		case rf.IsConditional && rf.Category == forecast.CategoryQualitative:
			condQual++
		}
		forecasts[i] = forecast.InterventionForecast{
			QuestionTitle:      rf.QuestionTitle,
			QuestionText:       rf.QuestionText,
			ResolutionCriteria: rf.ResolutionCriteria,
			Prediction:         rf.Prediction,
			Reasoning:          rf.Reasoning,
			IsConditional:      rf.IsConditional,
			Category:           rf.Category,
			HardMetricCriteria: rf.HardMetricCriteria,
		}
	}
	if baselineHard != hardMetricPerPhase || baselineQual != qualitativePerPhase ||
		condHard != hardMetricPerPhase || condQual != qualitativePerPhase {
		return PolicyAgentResult{}, fmt.Errorf(
			"forecast phase mix must be 3 hard_metric + 5 qualitative per phase, got baseline(%d,%d) conditional(%d,%d)",
			baselineHard, baselineQual, condHard, condQual)
	}

	return PolicyAgentResult{
		GoalsAnalysis:          raw.GoalsAnalysis,
		EvaluationCriteria:     raw.EvaluationCriteria,
		InterventionText:       raw.InterventionDescription,
		PolicyProposalMarkdown: raw.PolicyProposalMarkdown,
		Forecasts:              forecasts,
	}, nil
}

func validateOneForecast(rf rawForecast, agentNames, itemNames map[string]bool) error {
	if rf.Prediction < 0 || rf.Prediction > 1 {
		return fmt.Errorf("prediction %.4f out of [0,1]", rf.Prediction)
	}
	if rf.Category != forecast.CategoryHardMetric && rf.Category != forecast.CategoryQualitative {
		return fmt.Errorf("unknown category %q", rf.Category)
	}
	if rf.Category == forecast.CategoryHardMetric {
		if rf.HardMetricCriteria == nil {
			return fmt.Errorf("hard_metric forecast missing hard_metric_criteria")
		}
		c := rf.HardMetricCriteria
		if !agentNames[c.AgentName] {
			return fmt.Errorf("hard_metric_criteria references unknown agent %q", c.AgentName)
		}
		if !itemNames[c.ItemName] {
			return fmt.Errorf("hard_metric_criteria references unknown item %q", c.ItemName)
		}
		switch c.Operator {
		case forecast.OpGTE, forecast.OpLTE, forecast.OpEQ, forecast.OpGT, forecast.OpLT, forecast.OpNEQ:
		default:
			return fmt.Errorf("hard_metric_criteria has unknown operator %q", c.Operator)
		}
	}
	return nil
}
