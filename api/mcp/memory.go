package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	memoryRecallToolName    = "memory_recall"
	memoryRecallDescription = "Recall stored turns from a mnemo conversation session. Given a session id and a query, returns the turns most similar to the query, best match first. Use this to bring evicted context back into a conversation."

	memorySessionsToolName    = "memory_sessions"
	memorySessionsDescription = "List the conversation sessions stored by mnemo, most recently updated first. Use the returned ids with memory_recall."
)

// MemoryRecallInput represents the input arguments for the MCP memory_recall tool.
type MemoryRecallInput struct {
	SessionID string `json:"session_id" jsonschema:"the id of the session to recall from"`
	Query     string `json:"query" jsonschema:"text to match stored turns against"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"maximum number of turns to return"`
}

// MemoryRecallOutput represents the structured output of a memory recall.
type MemoryRecallOutput struct {
	Memories []string `json:"memories"`
}

// MemorySessionsInput takes no arguments.
type MemorySessionsInput struct{}

// SessionSummary is one entry of the memory_sessions output.
type SessionSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Preview string `json:"preview"`
}

// MemorySessionsOutput represents the structured output of memory_sessions.
type MemorySessionsOutput struct {
	Sessions []SessionSummary `json:"sessions"`
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func toolResult(output any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, nil
}

// handleMemoryRecall processes a memory recall request via MCP.
func (s *Server) handleMemoryRecall(ctx context.Context, _ *mcp.CallToolRequest, input MemoryRecallInput) (*mcp.CallToolResult, MemoryRecallOutput, error) {
	if input.SessionID == "" {
		return toolError("session_id is required"), MemoryRecallOutput{}, nil
	}
	if input.Query == "" {
		return toolError("query is required"), MemoryRecallOutput{}, nil
	}

	memories, err := s.config.Backend.Recall(ctx, input.SessionID, input.Query, input.TopK)
	if err != nil {
		s.config.Logger.Warn("memory recall failed",
			"session_id", input.SessionID,
			"error", err,
		)
		return toolError(fmt.Sprintf("Memory recall failed: %v", err)), MemoryRecallOutput{}, nil
	}
	if memories == nil {
		memories = []string{}
	}

	output := MemoryRecallOutput{Memories: memories}
	result, err := toolResult(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), MemoryRecallOutput{}, nil
	}
	return result, output, nil
}

// handleMemorySessions lists stored sessions via MCP.
func (s *Server) handleMemorySessions(ctx context.Context, _ *mcp.CallToolRequest, _ MemorySessionsInput) (*mcp.CallToolResult, MemorySessionsOutput, error) {
	sessions, err := s.config.Backend.Sessions(ctx)
	if err != nil {
		return toolError(fmt.Sprintf("Listing sessions failed: %v", err)), MemorySessionsOutput{}, nil
	}

	output := MemorySessionsOutput{Sessions: make([]SessionSummary, 0, len(sessions))}
	for _, session := range sessions {
		output.Sessions = append(output.Sessions, SessionSummary{
			ID:      session.ID,
			Title:   session.Title,
			Preview: session.Preview,
		})
	}

	result, err := toolResult(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), MemorySessionsOutput{}, nil
	}
	return result, output, nil
}
