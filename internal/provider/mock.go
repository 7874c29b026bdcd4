package provider

import (
	"context"
	"hash/fnv"
	"strings"
	"time"
)

const mockDelay = 500 * time.Millisecond

var mockReplies = []string{
	"I'm a mock response. Disable mock mode in the configuration to get real answers.",
	"This is a test response. The real API would provide more detailed answers.",
	"Mock response: I'm here to help! In production, I'd connect to the real AI service.",
	"Thanks for your message! This is a mock response for development.",
	"I'm currently in mock mode. Disable it to use the real AI service.",
}

// Mock returns canned replies after a fixed artificial delay. It never
// fails and never rate-limits. The reply is a pure function of the user's
// text, so tests and repeated sends are deterministic.
type Mock struct {
	delay time.Duration
}

// NewMock creates a Mock provider with the default artificial delay.
func NewMock() *Mock {
	return &Mock{delay: mockDelay}
}

func (m *Mock) Reply(ctx context.Context, _ []Turn, userText string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.delay):
	}

	h := fnv.New32a()
	h.Write([]byte(strings.TrimSpace(userText)))
	return mockReplies[h.Sum32()%uint32(len(mockReplies))], nil
}
