package mcp

import (
	"context"

	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Service exposes the memory engine as MCP tools over stdio, so an LLM agent
// can store and recall memories during a conversation.
type Service struct {
	uc     *memory.UseCase
	server *mcp.Server
}

// New creates an MCP server wrapping the memory engine
func New(uc *memory.UseCase, version string) *Service {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "recall",
		Version: version,
	}, nil)

	s := &Service{uc: uc, server: server}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "store_memory",
		Description: "Store a text memory with optional tags, source and dedupe key. Storing with an existing dedupe key updates that memory in place.",
	}, s.storeMemory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_memories",
		Description: "Find memories semantically similar to a query text",
	}, s.searchMemories)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_memories",
		Description: "List memories from newest to oldest with cursor pagination",
	}, s.listMemories)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_memory",
		Description: "Delete a memory by ID. Deleting an unknown ID succeeds.",
	}, s.deleteMemory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_health",
		Description: "Report whether the memory store is fully operational, degraded or unavailable",
	}, s.checkHealth)

	return s
}

// Run serves MCP requests on stdin/stdout until the context is canceled
func (s *Service) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
