// Package mcp exposes the catalog to MCP clients as a set of typed tools.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/abdul-hamid-achik/fototeca/internal/catalog"
	"github.com/abdul-hamid-achik/fototeca/internal/query"
	"github.com/abdul-hamid-achik/fototeca/internal/version"
)

// SearchInput is the input for fototeca_search.
type SearchInput struct {
	Prompt string `json:"prompt" jsonschema:"Natural language description of the photos to find."`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of results to return. Defaults to 10."`
}

// FilterInput is the input for fototeca_filter.
type FilterInput struct {
	Tags []string `json:"tags" jsonschema:"Tag names; only photos carrying ALL of them are returned. Empty means every photo."`
}

// SyncInput is the input for fototeca_sync (empty).
type SyncInput struct{}

// StatusInput is the input for fototeca_status (empty).
type StatusInput struct{}

// Server wraps the official MCP SDK server around the catalog.
type Server struct {
	server  *sdkmcp.Server
	service *catalog.Service
	engine  *query.Engine
}

// NewServer creates the MCP server and registers the catalog tools.
func NewServer(service *catalog.Service, engine *query.Engine) *Server {
	s := &Server{
		service: service,
		engine:  engine,
	}

	s.server = sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "fototeca",
		Version: version.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: "fototeca catalogs a photo library and tags it by embedding similarity. " +
			"Use fototeca_search to find photos from a natural language prompt, " +
			"fototeca_filter to list photos carrying a set of tags, " +
			"fototeca_sync to reconcile the catalog with the library directory, " +
			"and fototeca_status for catalog statistics.",
	})

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "fototeca_search",
		Description: "Semantic photo search: returns the photos whose embeddings best match the prompt, with similarity scores.",
	}, s.handleSearch)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "fototeca_filter",
		Description: "List photos that carry every one of the given tags, newest first.",
	}, s.handleFilter)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "fototeca_sync",
		Description: "Reconcile the catalog with the photo library directory: new files are embedded and tagged, vanished files are removed.",
	}, s.handleSync)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "fototeca_status",
		Description: "Get catalog statistics: item, tag and assignment counts plus model and index configuration.",
	}, s.handleStatus)

	return s
}

// Run serves MCP over stdio until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) handleSearch(ctx context.Context, req *sdkmcp.CallToolRequest, input SearchInput) (*sdkmcp.CallToolResult, any, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	results, err := s.engine.Best(ctx, input.Prompt, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
	}
	if len(results) == 0 {
		return textResult("No matching photos."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top %d photos for %q:\n", len(results), input.Prompt)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [%.0f%%] %s (id %d, %s)\n",
			i+1, r.Score*100, r.Item.Path, r.Item.ID,
			time.Unix(int64(r.Item.Timestamp), 0).Format("2006-01-02"))
	}
	return textResult(b.String()), nil, nil
}

func (s *Server) handleFilter(ctx context.Context, req *sdkmcp.CallToolRequest, input FilterInput) (*sdkmcp.CallToolResult, any, error) {
	tagIDs := make([]int64, 0, len(input.Tags))
	for _, name := range input.Tags {
		tag, err := s.service.TagByName(ctx, name)
		if err != nil {
			return errorResult(fmt.Sprintf("unknown tag %q", name)), nil, nil
		}
		tagIDs = append(tagIDs, tag.ID)
	}

	items, err := s.engine.Filter(ctx, tagIDs)
	if err != nil {
		return errorResult(fmt.Sprintf("filter failed: %v", err)), nil, nil
	}
	if len(items) == 0 {
		return textResult("No photos carry all of those tags."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d photos:\n", len(items))
	for _, item := range items {
		fmt.Fprintf(&b, "- %s (id %d, %s)\n",
			item.Path, item.ID,
			time.Unix(int64(item.Timestamp), 0).Format("2006-01-02"))
	}
	return textResult(b.String()), nil, nil
}

func (s *Server) handleSync(ctx context.Context, req *sdkmcp.CallToolRequest, input SyncInput) (*sdkmcp.CallToolResult, any, error) {
	result, err := s.service.Sync(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("sync failed: %v", err)), nil, nil
	}

	msg := fmt.Sprintf("Sync complete: %d files scanned, %d added, %d removed.",
		result.Scanned, result.Added, result.Removed)
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf(" %d files skipped due to errors.", len(result.Errors))
	}
	return textResult(msg), nil, nil
}

func (s *Server) handleStatus(ctx context.Context, req *sdkmcp.CallToolRequest, input StatusInput) (*sdkmcp.CallToolResult, any, error) {
	stats, err := s.service.Stats(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("status failed: %v", err)), nil, nil
	}

	msg := fmt.Sprintf(
		"Catalog: %d items, %d tags, %d assignments.\nModel: %s\nIndex: %s\nLibrary: %s",
		stats.Items, stats.Tags, stats.Assignments,
		stats.Model, stats.IndexType, stats.Root)
	return textResult(msg), nil, nil
}

func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
		IsError: true,
	}
}
