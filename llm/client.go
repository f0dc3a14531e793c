// Package llm defines the narrow interface through which the simulator
// reaches its one real external collaborator: text generation and
// structured-output extraction. Nothing in situation, effect, simstate,
// simulator, policy, forecast, or intervention imports a concrete
// provider — only this interface, grounded in
// goagent/llm/capabilities.go's capability-checked client pattern.
package llm

import "context"

// Message is one turn of a chat-style completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token and cost accounting for one completion.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// CompletionRequest is a provider-agnostic chat completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// SchemaName, when non-empty, asks a StructuredClient to constrain
	// its output to the named JSON schema instead of free text.
	SchemaName string
}

// CompletionResponse is a provider-agnostic chat completion response.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Client is the minimal text-generation seam every agent-facing component
// depends on.
type Client interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// StructuredClient additionally supports schema-constrained extraction:
// the agent runner's action parser, the policy agent's 16-forecast
// extraction, and the qualitative forecast resolver's verdict extraction
// all go through CompleteStructured so a parse failure is a single
// well-defined seam rather than ad hoc string surgery on Content.
type StructuredClient interface {
	Client

	// CompleteStructured issues req and unmarshals the result into out,
	// which must be a pointer. Neither implementation in this module
	// (StubClient, llm/openai.Provider) retries: a reply that does not
	// unmarshal into out is returned as an error on the first attempt.
	CompleteStructured(ctx context.Context, req *CompletionRequest, out interface{}) (*Usage, error)
}
