package mock

import (
	"context"
	"sync"

	"github.com/bakkerme/social-agent/internal/llm"
)

// Client replays Responses in order, repeating the last one. Err, when set,
// is returned for every call.
type Client struct {
	Responses []llm.ChatResponse
	Err       error
	Calls     []llm.ChatRequest

	mu sync.Mutex
}

func (c *Client) ChatCompletion(ctx context.Context, request llm.ChatRequest) (llm.ChatResponse, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, request)
	if c.Err != nil {
		return llm.ChatResponse{}, c.Err
	}
	if len(c.Responses) == 0 {
		return llm.ChatResponse{}, nil
	}
	response := c.Responses[0]
	if len(c.Responses) > 1 {
		c.Responses = c.Responses[1:]
	}
	return response, nil
}

// CallCount is safe to use while calls are in flight.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
