package llm

import (
	"context"
	"encoding/json"
	"sync"

	simerrors "github.com/kart-io/forecastsim/errors"
)

// StubClient is a scriptable in-memory Client/StructuredClient used by this
// module's own tests and by any caller wanting a deterministic stand-in
// for a real provider, mirroring goagent/llm/stream_client.go's
// MockStreamClient.
type StubClient struct {
	mu sync.Mutex

	// Responses are returned in order, one per Complete/CompleteStructured
	// call; the last entry repeats once exhausted.
	Responses []StubResponse
	calls     int
}

// StubResponse scripts one canned reply.
type StubResponse struct {
	Content string
	JSON    interface{} // used by CompleteStructured when set
	Usage   Usage
	Err     error
}

func (c *StubClient) next() StubResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Responses) == 0 {
		return StubResponse{}
	}
	idx := c.calls
	if idx >= len(c.Responses) {
		idx = len(c.Responses) - 1
	}
	c.calls++
	return c.Responses[idx]
}

// Calls reports how many times Complete/CompleteStructured was invoked.
func (c *StubClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *StubClient) Complete(_ context.Context, _ *CompletionRequest) (*CompletionResponse, error) {
	r := c.next()
	if r.Err != nil {
		return nil, r.Err
	}
	return &CompletionResponse{Content: r.Content, Usage: r.Usage}, nil
}

func (c *StubClient) CompleteStructured(_ context.Context, _ *CompletionRequest, out interface{}) (*Usage, error) {
	r := c.next()
	if r.Err != nil {
		return nil, r.Err
	}
	if r.JSON == nil {
		return nil, simerrors.New(simerrors.CodeLLMParse, "stub has no structured response scripted")
	}
	data, err := json.Marshal(r.JSON)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeLLMParse, "marshal stub response")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeLLMParse, "unmarshal stub response into target")
	}
	return &r.Usage, nil
}
