package forecast

import (
	"context"
	"fmt"
	"sort"
	"strings"

	loggercore "github.com/kart-io/logger/core"

	"github.com/kart-io/forecastsim/llm"
	"github.com/kart-io/forecastsim/observability"
	"github.com/kart-io/forecastsim/simstate"
)

// ResolveHardMetric resolves a hard_metric forecast purely from
// inventories: no LLM call, no I/O. A missing agent or item defaults to a
// held count of 0. An unrecognized operator leaves the forecast
// unresolved, with the caller expected to log the warning it returns.
func ResolveHardMetric(f InterventionForecast, inventories map[string]map[string]int) (InterventionForecast, error) {
	if f.HardMetricCriteria == nil {
		return f, fmt.Errorf("forecast %q has no hard_metric_criteria", f.QuestionTitle)
	}
	c := f.HardMetricCriteria
	held := inventories[c.AgentName][c.ItemName]
	outcome, ok := c.Operator.evaluate(held, c.Threshold)
	if !ok {
		return f, fmt.Errorf("forecast %q: unrecognized operator %q, leaving unresolved", f.QuestionTitle, c.Operator)
	}
	return withResolution(f, outcome), nil
}

func withResolution(f InterventionForecast, outcome bool) InterventionForecast {
	out := f
	score := CalculateBrierScore(f.Prediction, outcome)
	res := outcome
	out.Resolved = true
	out.Resolution = &res
	out.BrierScore = &score
	return out
}

// judgeVerdict is the structured shape a qualitative-resolution LLM call
// must emit.
type judgeVerdict struct {
	ResolvedYes bool   `json:"resolved_yes"`
	Reasoning   string `json:"reasoning"`
}

// ResolutionTranscript is the inspectable, testable rendering of a
// branch's final state fed to the qualitative judge: inventories, the
// full message history with DMs flagged, the action log, and trade
// history. Building it as a first-class type keeps the transcript
// reviewable without invoking an LLM.
type ResolutionTranscript struct {
	Inventories map[string]map[string]int
	Messages    []simstate.Message
	ActionLog   []simstate.AgentAction
	TradeLog    []simstate.TradeRecord
}

// BuildResolutionTranscript assembles a ResolutionTranscript from a
// branch's final SimulationState.
func BuildResolutionTranscript(state *simstate.SimulationState) ResolutionTranscript {
	return ResolutionTranscript{
		Inventories: state.Inventories,
		Messages:    state.MessageHistory,
		ActionLog:   state.ActionLog,
		TradeLog:    state.TradeHistory,
	}
}

// Render produces the natural-language transcript text sent to the
// qualitative judge.
func (rt ResolutionTranscript) Render() string {
	var sb strings.Builder

	sb.WriteString("FINAL INVENTORIES\n")
	agents := make([]string, 0, len(rt.Inventories))
	for a := range rt.Inventories {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	for _, a := range agents {
		fmt.Fprintf(&sb, "%s: %v\n", a, rt.Inventories[a])
	}
	sb.WriteString("\nMESSAGE HISTORY\n")
	for _, m := range rt.Messages {
		if m.IsDM() {
			fmt.Fprintf(&sb, "[step %d][DM] %s -> %v: %s\n", m.Step, m.Sender, m.Recipients, m.Content)
		} else {
			fmt.Fprintf(&sb, "[step %d][#%s] %s: %s\n", m.Step, *m.Channel, m.Sender, m.Content)
		}
	}
	sb.WriteString("\nACTION LOG\n")
	for _, a := range rt.ActionLog {
		fmt.Fprintf(&sb, "[%s] %s\n", a.AgentName, a.ActionName)
	}
	sb.WriteString("\nTRADE HISTORY\n")
	for _, t := range rt.TradeLog {
		fmt.Fprintf(&sb, "[step %d] %s: %d %s from %s to %s\n", t.Step, t.TradeID, t.Quantity, t.ItemName, t.From, t.To)
	}
	return sb.String()
}

// Resolver resolves qualitative forecasts by prompting an LLM judge to
// issue a strict yes/no verdict against a rendered transcript.
type Resolver struct {
	client llm.StructuredClient
	model  string
	log    loggercore.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger overrides the Resolver's logger.
func WithLogger(log loggercore.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// New builds a Resolver.
func New(client llm.StructuredClient, model string, opts ...Option) *Resolver {
	r := &Resolver{client: client, model: model, log: loggercore.NewNoOpLogger(nil)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveQualitative judges a qualitative forecast against transcript. The
// judge must base its verdict only on the transcript text, never on
// knowledge outside it.
func (r *Resolver) ResolveQualitative(ctx context.Context, f InterventionForecast, transcript ResolutionTranscript) (InterventionForecast, error) {
	req := &llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: "system", Content: "You judge whether a forecast resolved yes or no, using only the transcript provided. Reply with a single JSON object."},
			{Role: "user", Content: fmt.Sprintf("RESOLUTION CRITERIA\n%s\n\nTRANSCRIPT\n%s", f.ResolutionCriteria, transcript.Render())},
		},
		Temperature: 0,
		SchemaName:  "judge_verdict",
	}

	var verdict judgeVerdict
	if err := llm.CompleteStructured(ctx, r.client, req, &verdict); err != nil {
		return f, fmt.Errorf("qualitative resolution of %q failed: %w", f.QuestionTitle, err)
	}
	return withResolution(f, verdict.ResolvedYes), nil
}

// ResolveAll resolves every forecast in forecasts against finalState,
// routing hard_metric forecasts through ResolveHardMetric and qualitative
// forecasts through ResolveQualitative. A forecast that fails to resolve
// is returned unchanged (Resolved stays false) and its error is logged,
// not raised — one unresolvable forecast never aborts the batch.
func (r *Resolver) ResolveAll(ctx context.Context, forecasts []InterventionForecast, finalState *simstate.SimulationState) []InterventionForecast {
	transcript := BuildResolutionTranscript(finalState)
	out := make([]InterventionForecast, len(forecasts))
	for i, f := range forecasts {
		switch f.Category {
		case CategoryHardMetric:
			resolved, err := ResolveHardMetric(f, finalState.Inventories)
			if err != nil {
				r.log.Warnw("hard-metric forecast left unresolved", "forecast", f.QuestionTitle, "error", err)
				out[i] = f
				continue
			}
			observability.Default().ForecastsResolvedTotal.WithLabelValues(string(CategoryHardMetric)).Inc()
			out[i] = resolved
		case CategoryQualitative:
			resolved, err := r.ResolveQualitative(ctx, f, transcript)
			if err != nil {
				r.log.Warnw("qualitative forecast left unresolved", "forecast", f.QuestionTitle, "error", err)
				out[i] = f
				continue
			}
			observability.Default().ForecastsResolvedTotal.WithLabelValues(string(CategoryQualitative)).Inc()
			out[i] = resolved
		default:
			r.log.Warnw("forecast has unknown category, leaving unresolved", "forecast", f.QuestionTitle, "category", f.Category)
			out[i] = f
		}
	}
	return out
}
