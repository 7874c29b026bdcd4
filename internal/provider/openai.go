package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultTimeout    = 60 * time.Second
	defaultRetryAfter = 60

	// Minimum spacing between consecutive outbound calls. A call that
	// would violate it is delayed, not rejected.
	minRequestSpacing = time.Second

	maxTokens   = 300
	temperature = 0.7

	// Used when the response decodes but has no usable choice.
	fallbackReply = "I'm sorry, I couldn't process that request."
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	httpClient   *http.Client

	mu          sync.Mutex
	lastRequest time.Time
	now         func() time.Time
}

// NewClient creates a live provider for the given API key and model.
// systemPrompt sets the assistant persona sent with every request.
func NewClient(apiKey, model, systemPrompt string) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		model:        model,
		systemPrompt: systemPrompt,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		now:          time.Now,
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, model, systemPrompt, baseURL string) *Client {
	c := NewClient(apiKey, model, systemPrompt)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type chatRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Reply sends the persona prompt, the prior assistant turns, and the new
// user turn to the completions endpoint and returns the first choice's
// text. Only assistant turns from history are forwarded; user turns are
// already reflected in the assistant's prior answers and omitting them
// keeps the request small.
func (c *Client) Reply(ctx context.Context, history []Turn, userText string) (string, error) {
	msgs := make([]Turn, 0, len(history)+2)
	if c.systemPrompt != "" {
		msgs = append(msgs, Turn{Role: RoleSystem, Content: c.systemPrompt})
	}
	for _, turn := range history {
		if turn.Role == RoleAssistant {
			msgs = append(msgs, turn)
		}
	}
	msgs = append(msgs, Turn{Role: RoleUser, Content: userText})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	if err := c.throttle(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return fallbackReply, nil
	}
	return result.Choices[0].Message.Content, nil
}

// throttle enforces the minimum spacing between outbound calls, waiting
// out the remainder of the window when the previous call was too recent.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	now := c.now()
	wait := minRequestSpacing - now.Sub(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = now.Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// parseRetryAfter interprets a Retry-After header in seconds, falling back
// to the default when missing or unparseable.
func parseRetryAfter(header string) int {
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return secs
}
