package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/aist/internal/pipeline"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Examples  ExampleAdder
	Retriever Recaller
	Generator Generator // optional; if nil, generate_command is not registered
	Version   string
}

// NewMCPServer creates an MCP server exposing the example store and the
// command generator as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"aist",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("aist turns plain-language recon tasks into validated ffuf commands, guided by a store of curated examples."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("add_example",
			mcp.WithDescription("Store a curated (description, ffuf command) example for future retrieval."),
			mcp.WithString("description", mcp.Description("Plain-language description of what the command does"), mcp.Required()),
			mcp.WithString("command", mcp.Description("The ffuf command"), mcp.Required()),
		),
		mcpAddExample(deps),
	)

	s.AddTool(
		mcp.NewTool("search_examples",
			mcp.WithDescription("Return the stored examples whose descriptions are closest to the query."),
			mcp.WithString("query", mcp.Description("Task description to search for"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 3)")),
		),
		mcpSearchExamples(deps),
	)

	if deps.Generator != nil {
		s.AddTool(
			mcp.NewTool("generate_command",
				mcp.WithDescription("Generate an ffuf command for a task, execute it, and return the first command whose output is accepted."),
				mcp.WithString("task", mcp.Description("Plain-language recon task"), mcp.Required()),
			),
			mcpGenerateCommand(deps),
		)
	}

	return s
}

func mcpAddExample(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		description, err := req.RequireString("description")
		if err != nil {
			return mcpError("description is required"), nil
		}
		command, err := req.RequireString("command")
		if err != nil {
			return mcpError("command is required"), nil
		}

		ex, err := deps.Examples.Add(ctx, description, command)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add example: %v", err)), nil
		}
		if err := deps.Retriever.Load(ctx); err != nil {
			slog.Warn("rebuilding index after add failed", "id", ex.ID, "error", err)
			deps.Retriever.Invalidate()
		}

		return mcpText(fmt.Sprintf("Stored example %d", ex.ID)), nil
	}
}

func mcpSearchExamples(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 3)
		if limit <= 0 {
			limit = 3
		}
		if limit > 50 {
			limit = 50
		}

		matches, err := deps.Retriever.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		b, err := json.Marshal(matches)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGenerateCommand(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := req.RequireString("task")
		if err != nil {
			return mcpError("task is required"), nil
		}

		out, err := deps.Generator.Run(ctx, task)
		if err != nil {
			var exhausted *pipeline.AttemptsExhaustedError
			if errors.As(err, &exhausted) {
				return mcpError(fmt.Sprintf("no acceptable command after %d attempts; last command %q failed: %s",
					exhausted.Attempts, exhausted.LastCommand, exhausted.LastError)), nil
			}
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		b, err := json.Marshal(generateResponse{
			RunID:    out.RunID,
			Command:  out.Command,
			Output:   out.Stdout,
			Attempts: attemptViews(out.Attempts),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
