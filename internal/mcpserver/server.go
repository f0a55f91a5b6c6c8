// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Jera tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/halvard/jera/internal/bulkedit"
	"github.com/halvard/jera/internal/index"
	"github.com/halvard/jera/internal/recurrence"
	"github.com/halvard/jera/internal/storage"
)

// Server wraps the MCP server with Jera tools.
type Server struct {
	mcp     *server.MCPServer
	store   storage.Provider
	db      *index.DB
	bulk    *bulkedit.Coordinator
	scanner *recurrence.Scanner
}

// New creates a new MCP server with all Jera tools registered.
func New(store storage.Provider, db *index.DB, bulk *bulkedit.Coordinator, scanner *recurrence.Scanner) *Server {
	s := &Server{store: store, db: db, bulk: bulk, scanner: scanner}

	s.mcp = server.NewMCPServer(
		"Jera",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note at the specified path. "+
			"Content MUST follow the canonical note format (YAML frontmatter with title, "+
			"optional status/scheduled/recurrenceRule/tags, Markdown body). Read the "+
			"contract first via the get_note_contract tool or the jera://note-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new note (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the Jera note format contract")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("set_status",
		mcp.WithDescription("Set the workflow status on one or more notes. Completing a "+
			"recurring note spawns its next occurrence automatically."),
		mcp.WithString("paths", mcp.Required(), mcp.Description("Newline-separated note paths")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Status value (e.g. open, complete, wont-do)")),
	), s.setStatus)

	s.mcp.AddTool(mcp.NewTool("set_recurrence_rule",
		mcp.WithDescription("Set or clear the RFC 5545 recurrence rule on one or more notes. "+
			"Pass an empty rule to stop the series."),
		mcp.WithString("paths", mcp.Required(), mcp.Description("Newline-separated note paths")),
		mcp.WithString("rule", mcp.Description("RRULE body, e.g. FREQ=WEEKLY;BYDAY=MO (empty to clear)")),
	), s.setRecurrenceRule)

	s.mcp.AddTool(mcp.NewTool("add_tag",
		mcp.WithDescription("Add a tag to one or more notes."),
		mcp.WithString("paths", mcp.Required(), mcp.Description("Newline-separated note paths")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag to add (lowercase, kebab-case)")),
	), s.addTag)

	s.mcp.AddTool(mcp.NewTool("remove_tag",
		mcp.WithDescription("Remove a tag from one or more notes."),
		mcp.WithString("paths", mcp.Required(), mcp.Description("Newline-separated note paths")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag to remove")),
	), s.removeTag)

	s.mcp.AddTool(mcp.NewTool("heal_recurrences",
		mcp.WithDescription("Scan the vault for recurring notes stuck in a terminal status "+
			"and spawn their missing successors."),
	), s.healRecurrences)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical Jera note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("jera://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown note format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func splitPaths(raw string) []string {
	var paths []string
	for _, line := range strings.Split(raw, "\n") {
		if p := strings.TrimSpace(line); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if exists, _ := s.store.Exists(path); exists {
		return mcp.NewToolResultError(fmt.Sprintf("note already exists: %s", path)), nil
	}

	data := []byte(content)
	if err := s.store.Write(path, data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := index.IndexFile(s.db, path, data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	metas, err := s.store.List(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) setStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := splitPaths(raw)
	n := s.bulk.SetStatus(ctx, paths, status)
	return mcp.NewToolResultText(fmt.Sprintf("updated %d of %d notes", n, len(paths))), nil
}

func (s *Server) setRecurrenceRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rule := ""
	if r, err := req.RequireString("rule"); err == nil {
		rule = strings.TrimSpace(r)
	}
	paths := splitPaths(raw)
	var n int
	if rule == "" {
		n = s.bulk.ClearRule(ctx, paths)
	} else {
		n = s.bulk.SetRule(ctx, paths, rule)
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated %d of %d notes", n, len(paths))), nil
}

func (s *Server) addTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := splitPaths(raw)
	n := s.bulk.AddTag(ctx, paths, tag)
	return mcp.NewToolResultText(fmt.Sprintf("updated %d of %d notes", n, len(paths))), nil
}

func (s *Server) removeTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := splitPaths(raw)
	n := s.bulk.RemoveTag(ctx, paths, tag)
	return mcp.NewToolResultText(fmt.Sprintf("updated %d of %d notes", n, len(paths))), nil
}

func (s *Server) healRecurrences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	healed, err := s.scanner.ScanAndHeal(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("healed %d notes", healed)), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "jera://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
