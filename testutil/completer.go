package testutil

import (
	"context"
	"sync"

	"github.com/trezcool/tasksphere/core/assistant"
)

// FakeCompleter answers with Reply, or fails with Err. Fn, if set, takes precedence.
type FakeCompleter struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	Fn       func(ctx context.Context, req assistant.CompletionRequest) (string, error)
	requests []assistant.CompletionRequest
}

var _ assistant.Completer = (*FakeCompleter)(nil)

func (c *FakeCompleter) Complete(ctx context.Context, req assistant.CompletionRequest) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	fn, reply, err := c.Fn, c.Reply, c.Err
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return reply, err
}

func (c *FakeCompleter) Requests() []assistant.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]assistant.CompletionRequest(nil), c.requests...)
}

func (c *FakeCompleter) Set(reply string, err error) {
	c.mu.Lock()
	c.Reply, c.Err, c.Fn = reply, err, nil
	c.mu.Unlock()
}
