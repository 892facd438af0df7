// Package mcpserver exposes field discovery and widget data as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Rishwanth-M/finboard/internal/dashboard"
	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/Rishwanth-M/finboard/internal/flatten"
	"github.com/Rishwanth-M/finboard/internal/pathres"
	"github.com/Rishwanth-M/finboard/internal/refresh"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tools backs the MCP tool handlers. Scheduler may be nil, in which case
// widget_view is not registered.
type Tools struct {
	Board     *dashboard.Board
	Gateway   *fetch.Gateway
	Scheduler *refresh.Scheduler
	Logger    *slog.Logger
}

// NewServer registers the tools on a new MCP server.
func NewServer(t *Tools, version string) *server.MCPServer {
	if t.Logger == nil {
		t.Logger = slog.Default()
	}
	s := server.NewMCPServer("finboard", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("discover_fields",
		mcp.WithDescription("Fetch a JSON API response and list its addressable field paths with type and sample value."),
		mcp.WithString("url", mcp.Required(), mcp.Description("JSON endpoint to sample")),
		mcp.WithString("query", mcp.Description("Case-insensitive filter on field paths")),
	), t.discoverFields)

	s.AddTool(mcp.NewTool("resolve_path",
		mcp.WithDescription("Fetch a JSON API response and read the value at a dot path."),
		mcp.WithString("url", mcp.Required(), mcp.Description("JSON endpoint to read")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Dot path, e.g. \"Global Quote.05. price\"")),
	), t.resolvePath)

	s.AddTool(mcp.NewTool("list_widgets",
		mcp.WithDescription("List the dashboard's widgets in display order."),
	), t.listWidgets)

	if t.Scheduler != nil {
		s.AddTool(mcp.NewTool("widget_view",
			mcp.WithDescription("Return the latest bound data of a widget."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Widget id")),
			mcp.WithBoolean("refresh", mcp.Description("Fetch fresh data, bypassing the cache")),
		), t.widgetView)
	}
	return s
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (t *Tools) discoverFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := t.Gateway.Fetch(ctx, url, fetch.Options{})
	if err != nil {
		return mcp.NewToolResultError(fetch.Status(err)), nil
	}
	if msg, soft := fetch.SoftError(doc); soft {
		return mcp.NewToolResultError("API rate limit reached: " + msg), nil
	}
	return jsonResult(flatten.Filter(flatten.Flatten(doc), req.GetString("query", "")))
}

func (t *Tools) resolvePath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := t.Gateway.Fetch(ctx, url, fetch.Options{})
	if err != nil {
		return mcp.NewToolResultError(fetch.Status(err)), nil
	}
	value, found := pathres.Resolve(doc, path)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("path %q not found", path)), nil
	}
	return jsonResult(value)
}

func (t *Tools) listWidgets(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.Board.List())
}

func (t *Tools) widgetView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !req.GetBool("refresh", false) {
		if snap, ok := t.Scheduler.Latest(id); ok {
			return jsonResult(snap)
		}
	}
	snap, err := t.Scheduler.Refresh(ctx, id)
	if errors.Is(err, refresh.ErrUnknownWidget) {
		return mcp.NewToolResultError(fmt.Sprintf("widget %q not found", id)), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(snap)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
