// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes screen-history search and context building over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/glimpse/internal/apperr"
	"github.com/starford/glimpse/internal/cascade"
	"github.com/starford/glimpse/internal/recordservice"
)

const (
	captureFormatURI = "glimpse://capture-format"
	defaultLimit     = 20
)

// ContextBuilder builds retrieval context for a query.
type ContextBuilder interface {
	Build(ctx context.Context, query string) *cascade.Context
}

// Server wraps the MCP server with Glimpse tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *recordservice.Service
	builder ContextBuilder
}

// New creates an MCP server with all Glimpse tools registered.
func New(svc *recordservice.Service, builder ContextBuilder, version string) *Server {
	s := &Server{svc: svc, builder: builder}

	s.mcp = server.NewMCPServer(
		"Glimpse",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Keyword search through captured screen text, window titles and app names."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read the full text and metadata of one captured record."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List captured records, newest first."),
		mcp.WithNumber("limit", mcp.Description("Page size (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
		mcp.WithString("app", mcp.Description("Only records captured from this application")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("build_context",
		mcp.WithDescription("Build tiered screen-history context for a question: recent captures first, "+
			"then the past week, then older matches. Use it before answering questions about what "+
			"the user saw or worked on."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language question")),
		mcp.WithString("format", mcp.Enum("text", "json"), mcp.Description("text (default) or json")),
	), s.buildContext)

	s.mcp.AddTool(mcp.NewTool("add_record",
		mcp.WithDescription("Store a new text capture. Read the capture format first via "+
			"get_capture_format or the "+captureFormatURI+" resource."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Captured text")),
		mcp.WithString("id", mcp.Description("Optional record ID (random when omitted)")),
		mcp.WithString("app", mcp.Description("Application name")),
		mcp.WithString("window", mcp.Description("Window title")),
		mcp.WithString("source", mcp.Description("ocr, clipboard, ...")),
		mcp.WithString("captured_at", mcp.Description("RFC 3339 timestamp (now when omitted)")),
	), s.addRecord)

	s.mcp.AddTool(mcp.NewTool("get_capture_format",
		mcp.WithDescription("Returns the capture file format the inbox accepts."),
	), s.getCaptureFormat)

	s.mcp.AddResource(
		mcp.NewResource(captureFormatURI, "Capture File Format",
			mcp.WithResourceDescription("Format of the text capture files dropped into the inbox."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCaptureFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", defaultLimit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec), nil
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, total, err := s.svc.List(ctx,
		req.GetInt("limit", defaultLimit),
		req.GetInt("offset", 0),
		req.GetString("app", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d records\n", len(records), total)
	for _, r := range records {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", r.ID, r.Timestamp.Format(time.RFC3339), r.AppName, r.WindowTitle)
	}
	return mcp.NewToolResultText(strings.TrimSuffix(b.String(), "\n")), nil
}

func (s *Server) buildContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c := s.builder.Build(ctx, query)
	if req.GetString("format", "text") == "json" {
		return jsonResult(c), nil
	}
	return mcp.NewToolResultText(cascade.Render(c)), nil
}

func (s *Server) addRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := recordservice.CreateInput{
		ID:          req.GetString("id", ""),
		Text:        text,
		AppName:     req.GetString("app", ""),
		WindowTitle: req.GetString("window", ""),
		Source:      req.GetString("source", ""),
	}
	if raw := req.GetString("captured_at", ""); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid captured_at: %v", err)), nil
		}
		in.Timestamp = ts
	}

	rec, err := s.svc.Create(ctx, in)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("record already exists: %s", in.ID)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", rec.ID)), nil
}

func (s *Server) getCaptureFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CaptureFormatContract), nil
}

func (s *Server) readCaptureFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      captureFormatURI,
			MIMEType: "text/markdown",
			Text:     CaptureFormatContract,
		},
	}, nil
}
