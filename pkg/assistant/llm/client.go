package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Completer is the minimal model interface consumed by the router components.
// *Client implements it; tests substitute a scripted completer.
type Completer interface {
	CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error)
}

// Options configures the LLM client.
type Options struct {
	// BaseURL is the OpenAI-compatible API root (default https://api.openai.com/v1).
	BaseURL string
	// APIKey is the bearer token for the provider.
	APIKey string
	// Model is the chat model id (e.g. "gpt-4o-mini").
	Model string
	// Temperature is the sampling temperature (0 = provider default).
	Temperature float64
	// Timeout bounds one completion call including the retry (default 90s).
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	temp       float64
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a chat completions client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		model:   opts.Model,
		temp:    opts.Temperature,
		timeout: timeout,
		httpClient: &http.Client{
			// Per-call deadlines come from CompleteWithTools, not a client
			// global, so the retry shares one budget.
			Transport: &http.Transport{
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   5,
				IdleConnTimeout:       120 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 120 * time.Second,
			},
		},
		logger: logger.With("component", "llm"),
	}
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

// apiError carries the HTTP status and response body of a failed API call.
type apiError struct {
	statusCode int
	body       string
}

func (e *apiError) Error() string {
	body := e.body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("API error %d: %s", e.statusCode, body)
}

// isRetryable reports whether the HTTP status is worth one more attempt.
func isRetryable(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// chatRequest is the OpenAI-compatible chat completions request body.
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// chatResponse mirrors the chat completions response body.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// CompleteWithTools sends a chat completion request with optional tool
// definitions. Transient provider errors (429/5xx) are retried once with a
// short delay; everything else surfaces to the caller, which owns fallback.
func (c *Client) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	const transientRetryDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.completeOnce(ctx, messages, tools)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		apierr, ok := err.(*apiError)
		if !ok || !isRetryable(apierr.statusCode) {
			return nil, err
		}
		c.logger.Info("transient API error, retrying",
			"status", apierr.statusCode,
			"attempt", attempt+1,
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(transientRetryDelay):
		}
	}
	return nil, lastErr
}

// Complete sends a plain completion (no tools) and returns the text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: userMessage})

	resp, err := c.CompleteWithTools(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// completeOnce performs a single chat completions HTTP round-trip.
func (c *Client) completeOnce(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	}
	if c.temp > 0 {
		t := c.temp
		reqBody.Temperature = &t
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &apiError{statusCode: resp.StatusCode, body: string(body)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("API returned no choices")
	}

	choice := parsed.Choices[0]
	c.logger.Debug("completion done",
		"model", parsed.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"tool_calls", len(choice.Message.ToolCalls),
		"prompt_tokens", parsed.Usage.PromptTokens,
		"completion_tokens", parsed.Usage.CompletionTokens,
	)

	return &Response{
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
		Usage:        parsed.Usage,
		Model:        parsed.Model,
	}, nil
}
