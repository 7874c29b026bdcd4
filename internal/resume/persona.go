// Package resume builds the assistant's system prompt from the portfolio
// owner's resume PDF.
package resume

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

const defaultMaxResumeTokens = 4000

const basePersona = "You are a friendly assistant on Yasir's portfolio website. " +
	"Answer questions about Yasir's background, skills and projects using the " +
	"resume below. Keep answers short and conversational. If a question is " +
	"unrelated to Yasir or his work, politely steer the visitor back."

// Manager lazily extracts the resume text and assembles the system
// prompt. The extraction result is cached until Reload.
type Manager struct {
	path      string
	maxTokens int
	log       *slog.Logger

	mu     sync.Mutex
	cached string
	loaded bool
}

// NewManager creates a Manager for the PDF at path. If maxTokens <= 0,
// the default budget (4000) is used. An empty path yields the base
// persona without resume content.
func NewManager(path string, maxTokens int) *Manager {
	if maxTokens <= 0 {
		maxTokens = defaultMaxResumeTokens
	}
	return &Manager{
		path:      path,
		maxTokens: maxTokens,
		log:       slog.Default().With("component", "resume"),
	}
}

// SystemPrompt returns the persona prompt, extracting the resume on
// first use. Extraction failure degrades to the base persona rather than
// blocking the chat.
func (m *Manager) SystemPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		m.loaded = true
		if m.path != "" {
			text, err := ExtractText(m.path)
			if err != nil {
				m.log.Warn("resume extraction failed", "path", m.path, "error", err)
			} else {
				m.cached = text
			}
		}
	}

	return composePrompt(m.cached, m.maxTokens)
}

// Reload drops the cached extraction so the next SystemPrompt call
// re-reads the PDF.
func (m *Manager) Reload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
	m.cached = ""
}

// ExtractText pulls the plain text out of a PDF file.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// composePrompt appends the resume section to the base persona, trimming
// the resume to the token budget.
func composePrompt(resumeText string, maxTokens int) string {
	if resumeText == "" {
		return basePersona
	}

	var sb strings.Builder
	sb.WriteString(basePersona)
	sb.WriteString("\n\n[Resume]\n")

	budget := maxTokens - EstimateTokens(sb.String())
	if budget <= 0 {
		return basePersona
	}
	if EstimateTokens(resumeText) > budget {
		resumeText = truncateToTokens(resumeText, budget)
	}
	sb.WriteString(resumeText)
	return sb.String()
}

// EstimateTokens provides a rough token count using 4 chars per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// truncateToTokens cuts text at the last word boundary within the budget.
func truncateToTokens(text string, tokens int) string {
	limit := tokens * 4
	if limit >= len(text) {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
