// Package provider abstracts where chat replies come from: a deterministic
// mock generator for development, or a remote OpenAI-compatible completion
// endpoint.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Turn is one prior conversation turn passed as context to a provider.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles used in completion requests.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider produces one assistant reply for the user's text, given the
// prior conversation turns.
type Provider interface {
	Reply(ctx context.Context, history []Turn, userText string) (string, error)
}

// RateLimitError is returned when the remote endpoint answers HTTP 429.
// RetryAfter is the server-requested cooldown in seconds.
type RateLimitError struct {
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfter)
}

// AsRateLimit unwraps err to a RateLimitError if there is one.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
