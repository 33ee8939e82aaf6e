package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ineyio/tierrouter"
)

// Client is a mock LLM client for testing.
type Client struct {
	output       string
	latency      time.Duration
	failAfter    int
	callCount    atomic.Int64
	staticErr    error
	usage        tierrouter.Usage
	responseFunc func(model, input string) (tierrouter.Completion, error)

	mu     sync.Mutex
	models []string
}

var _ tierrouter.Client = (*Client)(nil)

// Option configures a mock Client.
type Option func(*Client)

// New creates a mock client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		output: "Hello from mock provider",
		usage: tierrouter.Usage{
			InputTokens:  10,
			OutputTokens: 20,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithOutput sets the response text.
func WithOutput(s string) Option {
	return func(c *Client) { c.output = s }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(c *Client) { c.latency = d }
}

// WithFailAfter makes the client fail after N successful calls.
func WithFailAfter(n int) Option {
	return func(c *Client) { c.failAfter = n }
}

// WithError makes the client always return this error.
func WithError(err error) Option {
	return func(c *Client) { c.staticErr = err }
}

// WithUsage sets the usage returned by the mock. A zero Usage simulates a
// backend that does not report token counts.
func WithUsage(u tierrouter.Usage) Option {
	return func(c *Client) { c.usage = u }
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(model, input string) (tierrouter.Completion, error)) Option {
	return func(c *Client) { c.responseFunc = fn }
}

func (c *Client) Send(ctx context.Context, model, input string) (tierrouter.Completion, error) {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return tierrouter.Completion{}, ctx.Err()
		}
	}

	count := c.callCount.Add(1)
	c.mu.Lock()
	c.models = append(c.models, model)
	c.mu.Unlock()

	if c.staticErr != nil {
		return tierrouter.Completion{}, c.staticErr
	}

	if c.failAfter > 0 && int(count) > c.failAfter {
		return tierrouter.Completion{}, tierrouter.ErrProviderUnavailable
	}

	if c.responseFunc != nil {
		return c.responseFunc(model, input)
	}

	return tierrouter.Completion{
		Output: c.output,
		Usage:  c.usage,
	}, nil
}

// CallCount returns the number of calls made to the client.
func (c *Client) CallCount() int64 { return c.callCount.Load() }

// Models returns the model ids the client was called with, in call order.
func (c *Client) Models() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.models...)
}
