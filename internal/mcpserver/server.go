// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note collection to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notesjson/internal/exchange"
	"github.com/starford/notesjson/internal/noteservice"
)

const formatURI = "notesjson://export-format"

// Server wraps the MCP server with note tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *noteservice.Service
	files *exchange.Files
}

// New creates an MCP server with all tools registered. files is the
// exchange directory used by export_notes and import_notes.
func New(svc *noteservice.Service, files *exchange.Files, version string) *Server {
	s := &Server{svc: svc, files: files}

	s.mcp = server.NewMCPServer(
		"notesjson",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List every note, newest first, as JSON."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a single note by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id as returned by list_notes")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. The title must not be blank."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Description("Optional note body")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Edit the title and/or content of a note. The timestamp is set to now."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New content; empty clears it")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("export_notes",
		mcp.WithDescription("Export all notes as a JSON array. "+
			"Set to_file to write a timestamped file into the exchange directory instead."),
		mcp.WithBoolean("to_file", mcp.Description("Write to the exchange directory and return the file path")),
	), s.exportNotes)

	s.mcp.AddTool(mcp.NewTool("import_notes",
		mcp.WithDescription("Import notes from a JSON array (see the "+formatURI+" resource). "+
			"Pass either json or file, not both."),
		mcp.WithString("json", mcp.Description("Inline JSON array of notes")),
		mcp.WithString("file", mcp.Description("File name inside the exchange directory")),
		mcp.WithString("mode", mcp.Description("merge (default) or replace; replace deletes all existing notes"),
			mcp.Enum("merge", "replace")),
	), s.importNotes)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Export Format",
			mcp.WithResourceDescription("JSON format used by export_notes and import_notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.ListNotes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(notes)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := ""
	if v, cErr := req.RequireString("content"); cErr == nil {
		content = v
	}
	note, err := s.svc.CreateNote(ctx, title, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var title, content *string
	if v, tErr := req.RequireString("title"); tErr == nil {
		title = &v
	}
	if v, cErr := req.RequireString("content"); cErr == nil {
		content = &v
	}
	if title == nil && content == nil {
		return mcp.NewToolResultError("title or content is required"), nil
	}
	note, err := s.svc.UpdateNote(ctx, id, title, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteNote(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) exportNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if toFile, err := req.RequireBool("to_file"); err == nil && toFile {
		loc, err := s.svc.ExportTo(ctx, s.files)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("exported: %s", loc)), nil
	}
	data, err := s.svc.Export(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) importNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	modeArg := ""
	if v, err := req.RequireString("mode"); err == nil {
		modeArg = v
	}
	mode, err := exchange.ParseMode(modeArg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	inline, inlineErr := req.RequireString("json")
	file, fileErr := req.RequireString("file")

	var sum exchange.Summary
	switch {
	case inlineErr == nil && fileErr == nil:
		return mcp.NewToolResultError("pass either json or file, not both"), nil
	case inlineErr == nil:
		sum, err = s.svc.Import(ctx, []byte(inline), mode)
	case fileErr == nil:
		sum, err = s.svc.ImportFrom(ctx, s.files, file, mode)
	default:
		return mcp.NewToolResultError("json or file is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v (imported %d before the failure)", err, sum.Imported)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s import: imported %d of %d notes, replaced %d",
		mode, sum.Imported, sum.Total, sum.Replaced)), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ExportFormatContract,
		},
	}, nil
}
