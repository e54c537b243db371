package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bakkerme/social-agent/internal/platform"
)

// Transport records requests and answers them with Handler.
type Transport struct {
	Handler func(req platform.Request) (*platform.Response, error)

	mu       sync.Mutex
	requests []platform.Request
	closed   bool
}

func (t *Transport) Do(ctx context.Context, req platform.Request) (*platform.Response, error) {
	_ = ctx
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()
	if t.Handler == nil {
		return &platform.Response{Status: 200, Body: []byte("{}")}, nil
	}
	return t.Handler(req)
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *Transport) Requests() []platform.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]platform.Request(nil), t.requests...)
}

// Count returns how many requests hit path.
func (t *Transport) Count(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, req := range t.requests {
		if req.Path == path {
			n++
		}
	}
	return n
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// JSON builds a response with the given status and a JSON encoded body.
func JSON(status int, body any) *platform.Response {
	data, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return &platform.Response{Status: status, Body: data}
}
