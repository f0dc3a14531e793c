package llm

import (
	"context"

	"github.com/kart-io/forecastsim/costmgr"
	"github.com/kart-io/forecastsim/observability"
)

// Complete invokes client inside the active costmgr.Scope (if any): on a
// successful response, its Usage.CostUSD is checked against and added to
// every enclosing scope before the response is handed back. A cost-limit
// violation is returned as the call's error, discarding the response —
// from the caller's perspective the call was aborted by the budget.
func Complete(ctx context.Context, client Client, req *CompletionRequest) (*CompletionResponse, error) {
	resp, err := client.Complete(ctx, req)
	if err != nil {
		observability.Default().LLMCallsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := costmgr.CheckAndAdd(ctx, resp.Usage.CostUSD); err != nil {
		observability.Default().LLMCallsTotal.WithLabelValues("cost_rejected").Inc()
		return nil, err
	}
	observability.Default().LLMCallsTotal.WithLabelValues("success").Inc()
	observability.Default().LLMCostUSDTotal.Add(resp.Usage.CostUSD)
	return resp, nil
}

// CompleteStructured is the StructuredClient analogue of Complete.
func CompleteStructured(ctx context.Context, client StructuredClient, req *CompletionRequest, out interface{}) error {
	usage, err := client.CompleteStructured(ctx, req, out)
	if err != nil {
		observability.Default().LLMCallsTotal.WithLabelValues("error").Inc()
		return err
	}
	if usage != nil {
		if err := costmgr.CheckAndAdd(ctx, usage.CostUSD); err != nil {
			observability.Default().LLMCallsTotal.WithLabelValues("cost_rejected").Inc()
			return err
		}
		observability.Default().LLMCostUSDTotal.Add(usage.CostUSD)
	}
	observability.Default().LLMCallsTotal.WithLabelValues("success").Inc()
	return nil
}
