package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type storeMemoryParams struct {
	Text       string   `json:"text" jsonschema:"The memory text to store"`
	Tags       []string `json:"tags,omitempty" jsonschema:"Optional tags for filtering"`
	Source     string   `json:"source,omitempty" jsonschema:"Optional origin label, e.g. chat or cli"`
	DedupeKey  string   `json:"dedupe_key,omitempty" jsonschema:"Optional key; at most one live memory holds it"`
	ExternalID string   `json:"external_id,omitempty" jsonschema:"Optional caller-side identifier"`
}

func (s *Service) storeMemory(ctx context.Context, req *mcp.CallToolRequest, params *storeMemoryParams) (*mcp.CallToolResult, any, error) {
	out, err := s.uc.Store(ctx, memory.StoreInput{
		Text:       params.Text,
		Tags:       params.Tags,
		Source:     params.Source,
		DedupeKey:  params.DedupeKey,
		ExternalID: params.ExternalID,
	})
	if err != nil {
		return nil, nil, err
	}

	return textResult(fmt.Sprintf("%s memory %s", out.Strategy, out.Memory.ID)), nil, nil
}

type searchMemoriesParams struct {
	Query  string   `json:"query" jsonschema:"Text to search for"`
	TopK   int      `json:"top_k,omitempty" jsonschema:"Maximum number of results, default 5"`
	Source string   `json:"source,omitempty" jsonschema:"Only match memories from this source"`
	Tags   []string `json:"tags,omitempty" jsonschema:"Only match memories carrying all of these tags"`
}

func (s *Service) searchMemories(ctx context.Context, req *mcp.CallToolRequest, params *searchMemoriesParams) (*mcp.CallToolResult, any, error) {
	topK := params.TopK
	if topK == 0 {
		topK = 5
	}

	results, err := s.uc.Search(ctx, memory.SearchInput{
		Query:  params.Query,
		TopK:   topK,
		Source: params.Source,
		Tags:   params.Tags,
	})
	if err != nil {
		return nil, nil, err
	}

	if len(results) == 0 {
		return textResult("no matching memories"), nil, nil
	}

	var sb strings.Builder
	for i, result := range results {
		fmt.Fprintf(&sb, "%d. [%.3f] %s (id=%s", i+1, result.Score, result.Memory.Text, result.Memory.ID)
		if len(result.Memory.Tags) > 0 {
			fmt.Fprintf(&sb, ", tags=%s", strings.Join(result.Memory.Tags, ","))
		}
		sb.WriteString(")\n")
	}
	return textResult(sb.String()), nil, nil
}

type listMemoriesParams struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"Page size, default 20"`
	Cursor string `json:"cursor,omitempty" jsonschema:"Cursor from a previous page"`
}

func (s *Service) listMemories(ctx context.Context, req *mcp.CallToolRequest, params *listMemoriesParams) (*mcp.CallToolResult, any, error) {
	out, err := s.uc.List(ctx, memory.ListInput{
		Limit:  params.Limit,
		Cursor: params.Cursor,
	})
	if err != nil {
		return nil, nil, err
	}

	if len(out.Memories) == 0 {
		return textResult("no memories stored"), nil, nil
	}

	var sb strings.Builder
	for _, mem := range out.Memories {
		fmt.Fprintf(&sb, "- %s %s (id=%s)\n",
			mem.CreatedAt.Format(time.RFC3339), mem.Text, mem.ID)
	}
	if out.NextCursor != "" {
		fmt.Fprintf(&sb, "next cursor: %s\n", out.NextCursor)
	}
	return textResult(sb.String()), nil, nil
}

type deleteMemoryParams struct {
	ID string `json:"id" jsonschema:"ID of the memory to delete"`
}

func (s *Service) deleteMemory(ctx context.Context, req *mcp.CallToolRequest, params *deleteMemoryParams) (*mcp.CallToolResult, any, error) {
	if err := s.uc.Delete(ctx, model.MemoryID(params.ID)); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("deleted memory %s", params.ID)), nil, nil
}

type checkHealthParams struct{}

func (s *Service) checkHealth(ctx context.Context, req *mcp.CallToolRequest, params *checkHealthParams) (*mcp.CallToolResult, any, error) {
	health := s.uc.Health(ctx)
	return textResult(fmt.Sprintf("mode=%s index=%t embedder=%t",
		health.Mode, health.Index, health.Embedder)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
