package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/yasirdev/folio/internal/docstore"
	"github.com/yasirdev/folio/internal/provider"
)

// --- mocks ---

type mockMCPStore struct {
	subs      []docstore.Submission
	listErr   error
	updateErr error
	deleteErr error
	updated   []string
	deleted   []string
}

func (m *mockMCPStore) ListSubmissions(context.Context) ([]docstore.Submission, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]docstore.Submission, len(m.subs))
	copy(out, m.subs)
	return out, nil
}

func (m *mockMCPStore) UpdateSubmissionStatus(_ context.Context, id, status string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, id)
	return nil
}

func (m *mockMCPStore) DeleteSubmission(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockAskProvider struct {
	reply   string
	err     error
	history []provider.Turn
}

func (m *mockAskProvider) Reply(_ context.Context, history []provider.Turn, _ string) (string, error) {
	m.history = history
	return m.reply, m.err
}

// --- helpers ---

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func mcpSub(id, status string, createdAt time.Time) docstore.Submission {
	return docstore.Submission{
		ID:        id,
		Name:      "Visitor " + id,
		Email:     id + "@example.com",
		Message:   "hello",
		Status:    status,
		CreatedAt: createdAt,
	}
}

// --- tests ---

func TestMCPAsk(t *testing.T) {
	p := &mockAskProvider{reply: "Yasir builds backend systems."}
	deps := MCPDeps{Provider: p, SystemPrompt: "persona"}

	result, err := mcpAsk(deps)(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"question": "What does Yasir do?",
	}))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.IsError {
		t.Fatalf("ask returned tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "Yasir builds backend systems." {
		t.Errorf("reply = %q", got)
	}
	if len(p.history) != 1 || p.history[0].Role != provider.RoleSystem {
		t.Errorf("history = %+v, want single system turn", p.history)
	}
}

func TestMCPAskMissingQuestion(t *testing.T) {
	deps := MCPDeps{Provider: &mockAskProvider{}}

	result, err := mcpAsk(deps)(context.Background(), makeCallToolRequest("ask", nil))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing question")
	}
}

func TestMCPAskRateLimited(t *testing.T) {
	deps := MCPDeps{Provider: &mockAskProvider{err: &provider.RateLimitError{RetryAfter: 42}}}

	result, err := mcpAsk(deps)(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"question": "hi",
	}))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !result.IsError || !strings.Contains(toolText(t, result), "42") {
		t.Errorf("result = %q, want rate limit message with retry seconds", toolText(t, result))
	}
}

func TestMCPListSubmissionsFilter(t *testing.T) {
	now := time.Now().UTC()
	store := &mockMCPStore{subs: []docstore.Submission{
		mcpSub("a", docstore.StatusUnread, now),
		mcpSub("b", docstore.StatusRead, now.Add(-time.Hour)),
	}}
	deps := MCPDeps{Store: store}

	result, err := mcpListSubmissions(deps)(context.Background(), makeCallToolRequest("list_submissions", map[string]interface{}{
		"status": "unread",
	}))
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var subs []docstore.Submission
	if err := json.Unmarshal([]byte(toolText(t, result)), &subs); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "a" {
		t.Errorf("filtered = %+v, want only unread", subs)
	}
}

func TestMCPListSubmissionsBadFilter(t *testing.T) {
	deps := MCPDeps{Store: &mockMCPStore{}}

	result, err := mcpListSubmissions(deps)(context.Background(), makeCallToolRequest("list_submissions", map[string]interface{}{
		"status": "archived",
	}))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for unknown status filter")
	}
}

func TestMCPMarkSubmissionRead(t *testing.T) {
	store := &mockMCPStore{}
	deps := MCPDeps{Store: store}

	result, err := mcpMarkSubmissionRead(deps)(context.Background(), makeCallToolRequest("mark_submission_read", map[string]interface{}{
		"id": "sub-1",
	}))
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if len(store.updated) != 1 || store.updated[0] != "sub-1" {
		t.Errorf("updated = %v", store.updated)
	}
}

func TestMCPMarkSubmissionReadNotFound(t *testing.T) {
	deps := MCPDeps{Store: &mockMCPStore{updateErr: docstore.ErrNotFound}}

	result, err := mcpMarkSubmissionRead(deps)(context.Background(), makeCallToolRequest("mark_submission_read", map[string]interface{}{
		"id": "ghost",
	}))
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !result.IsError || !strings.Contains(toolText(t, result), "not found") {
		t.Errorf("result = %q, want not-found tool error", toolText(t, result))
	}
}

func TestMCPRemoveSubmission(t *testing.T) {
	store := &mockMCPStore{}
	deps := MCPDeps{Store: store}

	result, err := mcpRemoveSubmission(deps)(context.Background(), makeCallToolRequest("remove_submission", map[string]interface{}{
		"id": "sub-9",
	}))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if len(store.deleted) != 1 || store.deleted[0] != "sub-9" {
		t.Errorf("deleted = %v", store.deleted)
	}
}

func TestMCPResourceUnread(t *testing.T) {
	now := time.Now().UTC()
	store := &mockMCPStore{subs: []docstore.Submission{
		mcpSub("a", docstore.StatusUnread, now),
		mcpSub("b", docstore.StatusRead, now),
	}}
	deps := MCPDeps{Store: store}

	contents, err := mcpResourceUnread(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "folio://submissions/unread"},
	})
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d entries, want 1", len(contents))
	}
	text := contents[0].(mcp.TextResourceContents).Text
	if !strings.Contains(text, `"a"`) || strings.Contains(text, `"b"`) {
		t.Errorf("resource text = %q, want only unread ids", text)
	}
}

func TestMCPListSubmissionsStoreError(t *testing.T) {
	deps := MCPDeps{Store: &mockMCPStore{listErr: errors.New("db closed")}}

	result, err := mcpListSubmissions(deps)(context.Background(), makeCallToolRequest("list_submissions", nil))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error on store failure")
	}
}
