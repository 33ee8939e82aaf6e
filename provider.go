package tierrouter

import "context"

// Client is the interface that LLM provider adapters must implement.
// Transport, auth and retries on 5xx belong to the adapter.
type Client interface {
	// Send performs one completion against model and returns the output text
	// with token usage. Usage may be zero when the backend does not report it.
	Send(ctx context.Context, model, input string) (Completion, error)
}

// Completion is the response from a client.
type Completion struct {
	Output string
	Usage  Usage
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, model, input string) (Completion, error)

func (f ClientFunc) Send(ctx context.Context, model, input string) (Completion, error) {
	return f(ctx, model, input)
}
