// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes deck tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/deckgraph/internal/apperr"
	"github.com/starford/deckgraph/internal/deckservice"
	"github.com/starford/deckgraph/internal/index"
	"github.com/starford/deckgraph/internal/markup"
)

// Server wraps the MCP server with deck tools.
type Server struct {
	mcp *server.MCPServer
	svc *deckservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *deckservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"deckgraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_decks",
		mcp.WithDescription("Full-text search through deck names and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchDecks)

	s.mcp.AddTool(mcp.NewTool("read_deck",
		mcp.WithDescription("Read a deck: header, raw content, notes and backrefs."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the deck (e.g. people/ada.deck)")),
	), s.readDeck)

	s.mcp.AddTool(mcp.NewTool("list_decks",
		mcp.WithDescription("List decks, optionally filtered by kind or tag."),
		mcp.WithString("kind", mcp.Description("Only decks of this kind")),
		mcp.WithString("tag", mcp.Description("Only decks with this tag")),
	), s.listDecks)

	s.mcp.AddTool(mcp.NewTool("create_deck",
		mcp.WithDescription("Create a new deck. Content MUST follow the deck format "+
			"contract; read it first via get_markup_contract or the "+ContractURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path for the new deck (must end with .deck)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Deck content: YAML frontmatter and markup body")),
	), s.createDeck)

	s.mcp.AddTool(mcp.NewTool("render_markup",
		mcp.WithDescription("Compile note markup to HTML. Malformed links produce the escaped source and an error message. "+
			"Sidenote ids keep counting across calls so fragments can share a page."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note markup")),
	), s.renderMarkup)

	s.mcp.AddTool(mcp.NewTool("split_content",
		mcp.WithDescription("Split markup into top-level notes: paragraphs, list runs and code blocks."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note markup")),
	), s.splitContent)

	s.mcp.AddTool(mcp.NewTool("get_neighbourhood",
		mcp.WithDescription("Decks connected to a deck within a number of hops, with the edges between them."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the deck")),
		mcp.WithNumber("depth", mcp.Description("Hops to follow (default from configuration)")),
	), s.getNeighbourhood)

	s.mcp.AddTool(mcp.NewTool("get_markup_contract",
		mcp.WithDescription("Returns the deck format and note markup contract. "+
			"Call this before creating decks."),
	), s.getMarkupContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Deck Format Contract",
			mcp.WithResourceDescription("Deck file format and note markup syntax."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(path string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("deck already exists: %s", path))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchDecks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetDeck(ctx, p)
	if err != nil {
		return toolError(p, err), nil
	}
	return jsonResult(d)
}

func (s *Server) listDecks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.ListDecks(ctx, index.ListQuery{
		Limit: 1000,
		Kind:  req.GetString("kind", ""),
		Tag:   req.GetString("tag", ""),
		Sort:  "path",
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%s\t%s\t%s", it.Path, it.Kind, it.Name)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) createDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.CreateDeck(ctx, p, []byte(content))
	if err != nil {
		return toolError(p, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (id %d)", d.Path, d.ID)), nil
}

func (s *Server) renderMarkup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.svc.RenderMarkup(ctx, content, markup.DefaultCounter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if r.Error != "" {
		return mcp.NewToolResultError(fmt.Sprintf("%s\n\n%s", r.Error, r.HTML)), nil
	}
	return mcp.NewToolResultText(r.HTML), nil
}

func (s *Server) splitContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.Split(ctx, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(notes)
}

func (s *Server) getNeighbourhood(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.NeighbourhoodOf(ctx, p, req.GetInt("depth", 0))
	if err != nil {
		return toolError(p, err), nil
	}
	return jsonResult(n)
}

func (s *Server) getMarkupContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DeckFormatContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     DeckFormatContract,
		},
	}, nil
}
