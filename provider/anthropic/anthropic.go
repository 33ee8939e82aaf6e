package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ineyio/tierrouter"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

// Client is the Anthropic Messages API adapter.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxTokens  int
	system     string
}

var _ tierrouter.Client = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxTokens sets max_tokens (default 4096). The Messages API requires it.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithSystemPrompt sets the top-level system prompt.
func WithSystemPrompt(s string) Option {
	return func(c *Client) { c.system = s }
}

// New creates a new Anthropic client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		maxTokens:  defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Messages API types.
type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Send(ctx context.Context, model, input string) (tierrouter.Completion, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		System:    c.system,
		Messages:  []message{{Role: "user", Content: input}},
	})
	if err != nil {
		return tierrouter.Completion{}, fmt.Errorf("tierrouter: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return tierrouter.Completion{}, fmt.Errorf("tierrouter: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return tierrouter.Completion{}, ctx.Err()
		}
		return tierrouter.Completion{}, fmt.Errorf("%w: %v", tierrouter.ErrProviderUnavailable, err)
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return tierrouter.Completion{}, err
	}

	var resp messagesResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return tierrouter.Completion{}, fmt.Errorf("tierrouter: decode response: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 && len(resp.Content) == 0 {
		return tierrouter.Completion{}, fmt.Errorf("tierrouter: empty content in response")
	}

	return tierrouter.Completion{
		Output: text.String(),
		Usage: tierrouter.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	msg := string(body)
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return tierrouter.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return tierrouter.ErrAuthFailed
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", tierrouter.ErrModelNotFound, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", tierrouter.ErrInvalidRequest, msg)
	default:
		// 529 overloaded and 5xx.
		return tierrouter.ErrProviderUnavailable
	}
}
