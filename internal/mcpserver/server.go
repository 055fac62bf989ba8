// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes playtrace console and note tools via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/playtrace/internal/console"
	"github.com/starford/playtrace/internal/hub"
	"github.com/starford/playtrace/internal/transfer"
)

// RelayProtocolURI is the resource URI of the relay protocol document.
const RelayProtocolURI = "playtrace://relay-protocol"

const defaultTail = 50

// Server wraps the MCP server with playtrace tools.
type Server struct {
	mcp *server.MCPServer
	svc *hub.Service
	now func() time.Time
}

// New creates a new MCP server with all playtrace tools registered.
func New(svc *hub.Service) *Server {
	s := &Server{svc: svc, now: time.Now}

	s.mcp = server.NewMCPServer(
		"playtrace",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("tail_console",
		mcp.WithDescription("Return the newest captured console entries, oldest first. "+
			"Entries relayed from game windows are prefixed with [<window title>]."),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 50)")),
		mcp.WithString("level", mcp.Description("Only entries of this level"),
			mcp.Enum("log", "info", "warn", "error", "debug")),
	), s.tailConsole)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List every progress note, sorted by key."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Read the progress note filed under a game key."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Note key, usually the catalog game id")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("set_note",
		mcp.WithDescription("Replace the text of a game's progress note, creating it if needed."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Note key, usually the catalog game id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New note text")),
	), s.setNote)

	s.mcp.AddTool(mcp.NewTool("export_data",
		mcp.WithDescription("Export all notes and console logs in the playtrace import format."),
	), s.exportData)

	// Resource: relay wire contract.
	s.mcp.AddResource(
		mcp.NewResource(RelayProtocolURI, "Relay Protocol",
			mcp.WithResourceDescription("Message contract between injected game window agents and the hub."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRelayProtocol,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) tailConsole(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultTail)
	var level console.Level
	if raw := req.GetString("level", ""); raw != "" {
		l, ok := console.ParseLevel(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown level: %s", raw)), nil
		}
		level = l
	}
	entries := s.svc.Tail(level, limit)
	if len(entries) == 0 {
		return mcp.NewToolResultText("no console entries"), nil
	}

	var b bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&b, "%s [%s] %s\n", e.Time().UTC().Format(time.RFC3339), e.Level, e.Message)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs := s.svc.Notes().List()
	if len(recs) == 0 {
		return mcp.NewToolResultText("no notes"), nil
	}
	out, _ := json.MarshalIndent(recs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, ok := s.svc.Notes().Get(key)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key)), nil
	}
	return mcp.NewToolResultText(rec.Text), nil
}

func (s *Server) setNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reg := s.svc.Notes()
	rec, err := reg.Update(key, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reg.Flush()
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s (%s)", rec.Key, rec.Title)), nil
}

func (s *Server) exportData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b bytes.Buffer
	if err := transfer.Encode(&b, s.svc.Export(s.now())); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readRelayProtocol(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RelayProtocolURI,
			MIMEType: "text/markdown",
			Text:     RelayProtocol,
		},
	}, nil
}
