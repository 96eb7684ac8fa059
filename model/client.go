package model

import "context"

// Client is the abstract model transport the agent core depends on: one
// whole-response request in, one whole-response Response out. Streaming is
// explicitly out of scope (Non-goals, §1).
type Client interface {
	Send(ctx context.Context, req Request) (*Response, error)
}
