package openaicompat

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

// Client is a universal OpenAI-compatible API adapter.
// Works with OpenAI, Ollama (via its /v1 endpoint), and others.
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

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithAPIKey sets the bearer token. Ollama ignores it.
func WithAPIKey(key string) Option {
	return func(cl *Client) { cl.apiKey = key }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(cl *Client) { cl.maxTokens = n }
}

// WithSystemPrompt prepends a system message to every request.
func WithSystemPrompt(s string) Option {
	return func(cl *Client) { cl.system = s }
}

// New creates a new OpenAI-compatible client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewOpenAI creates a client for OpenAI.
func NewOpenAI(opts ...Option) *Client {
	return New("https://api.openai.com/v1", opts...)
}

// NewOllama creates a client for a local Ollama daemon. An empty host uses
// tierrouter.DefaultOllamaURL.
func NewOllama(host string, opts ...Option) *Client {
	if host == "" {
		host = tierrouter.DefaultOllamaURL
	}
	return New(strings.TrimRight(host, "/")+"/v1", opts...)
}

// apiRequest is the OpenAI chat completion request format.
type apiRequest struct {
	Model     string       `json:"model"`
	Messages  []apiMessage `json:"messages"`
	MaxTokens *int         `json:"max_tokens,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse is the OpenAI chat completion response format.
type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int        `json:"index"`
		Message      apiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *Client) Send(ctx context.Context, model, input string) (tierrouter.Completion, error) {
	body := c.buildRequest(model, input)

	httpResp, err := c.doRequest(ctx, body)
	if err != nil {
		return tierrouter.Completion{}, err
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return tierrouter.Completion{}, err
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return tierrouter.Completion{}, fmt.Errorf("tierrouter: decode response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return tierrouter.Completion{}, fmt.Errorf("tierrouter: empty choices in response")
	}

	return tierrouter.Completion{
		Output: resp.Choices[0].Message.Content,
		Usage: tierrouter.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func (c *Client) buildRequest(model, input string) apiRequest {
	var msgs []apiMessage
	if c.system != "" {
		msgs = append(msgs, apiMessage{Role: "system", Content: c.system})
	}
	msgs = append(msgs, apiMessage{Role: "user", Content: input})

	req := apiRequest{Model: model, Messages: msgs}
	if c.maxTokens > 0 {
		n := c.maxTokens
		req.MaxTokens = &n
	}
	return req
}

func (c *Client) doRequest(ctx context.Context, body apiRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("tierrouter: marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("tierrouter: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", tierrouter.ErrProviderUnavailable, err)
	}

	return resp, nil
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read body for error context, but don't fail if we can't.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return tierrouter.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return tierrouter.ErrAuthFailed
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", tierrouter.ErrModelNotFound, string(body))
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", tierrouter.ErrInvalidRequest, string(body))
	default:
		return tierrouter.ErrProviderUnavailable
	}
}
