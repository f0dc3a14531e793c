// Package openai adapts github.com/sashabaranov/go-openai to llm.Client /
// llm.StructuredClient. It is the one place in this module that imports a
// concrete provider SDK — situation, effect, simulator, policy,
// intervention, and forecast never import this package; callers wire it
// in at the application layer, matching the base spec's Non-goal that the
// core "does not itself call any specific external provider."
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	simerrors "github.com/kart-io/forecastsim/errors"
	"github.com/kart-io/forecastsim/llm"
)

// PricePerToken is a provider's approximate USD cost per token, used to
// populate llm.Usage.CostUSD from the token counts OpenAI reports (the
// API itself does not return a dollar cost).
type PricePerToken struct {
	Prompt     float64
	Completion float64
}

// Provider implements llm.Client and llm.StructuredClient against the
// OpenAI chat completions API.
type Provider struct {
	client *openai.Client
	prices map[string]PricePerToken
	def    PricePerToken
}

// New builds a Provider from an API key. prices maps model name to
// per-token pricing; def is used for any model not listed.
func New(apiKey string, prices map[string]PricePerToken, def PricePerToken) *Provider {
	return &Provider{client: openai.NewClient(apiKey), prices: prices, def: def}
}

func (p *Provider) priceFor(model string) PricePerToken {
	if pp, ok := p.prices[model]; ok {
		return pp
	}
	return p.def
}

func toOpenAIMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func (p *Provider) usageFrom(model string, u openai.Usage) llm.Usage {
	price := p.priceFor(model)
	cost := float64(u.PromptTokens)*price.Prompt + float64(u.CompletionTokens)*price.Completion
	return llm.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		CostUSD:          cost,
	}
}

// Complete issues a plain chat completion.
func (p *Provider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeLLMRequest, "openai chat completion").
			WithComponent("llm/openai").WithContext("model", req.Model)
	}
	if len(resp.Choices) == 0 {
		return nil, simerrors.New(simerrors.CodeLLMResponse, "openai returned no choices").
			WithComponent("llm/openai").WithContext("model", req.Model)
	}
	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage:   p.usageFrom(req.Model, resp.Usage),
	}, nil
}

// CompleteStructured asks for a JSON-mode completion and unmarshals the
// result into out.
func (p *Provider) CompleteStructured(ctx context.Context, req *llm.CompletionRequest, out interface{}) (*llm.Usage, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          req.Model,
		Messages:       toOpenAIMessages(req.Messages),
		Temperature:    float32(req.Temperature),
		MaxTokens:      req.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeLLMRequest, "openai structured completion").
			WithComponent("llm/openai").WithContext("model", req.Model)
	}
	if len(resp.Choices) == 0 {
		return nil, simerrors.New(simerrors.CodeLLMResponse, "openai returned no choices").
			WithComponent("llm/openai")
	}
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeLLMParse, fmt.Sprintf("unmarshal structured output for schema %q", req.SchemaName)).
			WithComponent("llm/openai")
	}
	usage := p.usageFrom(req.Model, resp.Usage)
	return &usage, nil
}
