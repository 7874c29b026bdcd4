package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yasirdev/folio/internal/docstore"
	"github.com/yasirdev/folio/internal/provider"
)

// MCPStore abstracts the submission operations the MCP layer needs.
type MCPStore interface {
	ListSubmissions(ctx context.Context) ([]docstore.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id, status string) error
	DeleteSubmission(ctx context.Context, id string) error
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store        MCPStore
	Provider     provider.Provider
	SystemPrompt string
}

// NewMCPServer creates an MCP server exposing the portfolio assistant
// and the contact submissions inbox as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"folio",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("folio portfolio site backend: ask the site assistant, manage contact submissions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask the portfolio assistant a question about Yasir's background, skills or projects."),
			mcp.WithString("question", mcp.Description("The question to ask"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("list_submissions",
			mcp.WithDescription("List contact form submissions, newest first."),
			mcp.WithString("status", mcp.Description("Filter by status: all, unread, read (default all)")),
		),
		mcpListSubmissions(deps),
	)

	s.AddTool(
		mcp.NewTool("mark_submission_read",
			mcp.WithDescription("Mark a contact submission as read."),
			mcp.WithString("id", mcp.Description("Submission id"), mcp.Required()),
		),
		mcpMarkSubmissionRead(deps),
	)

	s.AddTool(
		mcp.NewTool("remove_submission",
			mcp.WithDescription("Permanently delete a contact submission."),
			mcp.WithString("id", mcp.Description("Submission id"), mcp.Required()),
		),
		mcpRemoveSubmission(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"folio://submissions/unread",
			"Unread Submissions",
			mcp.WithResourceDescription("Contact submissions not yet read, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceUnread(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		var history []provider.Turn
		if deps.SystemPrompt != "" {
			history = []provider.Turn{{Role: provider.RoleSystem, Content: deps.SystemPrompt}}
		}

		reply, err := deps.Provider.Reply(ctx, history, question)
		if err != nil {
			if rl, ok := provider.AsRateLimit(err); ok {
				return mcpError(fmt.Sprintf("rate limited, retry in %d seconds", rl.RetryAfter)), nil
			}
			return mcpError(fmt.Sprintf("assistant request failed: %v", err)), nil
		}
		return mcpText(reply), nil
	}
}

func mcpListSubmissions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := req.GetString("status", "all")
		switch status {
		case "all", docstore.StatusUnread, docstore.StatusRead:
		default:
			return mcpError(fmt.Sprintf("invalid status filter: %q", status)), nil
		}

		subs, err := deps.Store.ListSubmissions(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list submissions: %v", err)), nil
		}

		filtered := subs[:0]
		for _, sub := range subs {
			if status == "all" || sub.Status == status {
				filtered = append(filtered, sub)
			}
		}
		if len(filtered) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(filtered)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal submissions: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpMarkSubmissionRead(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		err = deps.Store.UpdateSubmissionStatus(ctx, id, docstore.StatusRead)
		if errors.Is(err, docstore.ErrNotFound) {
			return mcpError(fmt.Sprintf("submission %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to mark as read: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Marked submission %s as read", id)), nil
	}
}

func mcpRemoveSubmission(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		err = deps.Store.DeleteSubmission(ctx, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return mcpError(fmt.Sprintf("submission %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to delete: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Deleted submission %s", id)), nil
	}
}

func mcpResourceUnread(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		subs, err := deps.Store.ListSubmissions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list submissions: %w", err)
		}

		type summary struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			CreatedAt string `json:"created_at"`
		}

		var unread []summary
		for _, sub := range subs {
			if sub.Status != docstore.StatusUnread {
				continue
			}
			unread = append(unread, summary{
				ID:        sub.ID,
				Name:      sub.Name,
				Email:     sub.Email,
				CreatedAt: sub.CreatedAt.Format(time.RFC3339),
			})
		}

		b, err := json.Marshal(unread)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal submissions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
