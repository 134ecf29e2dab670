// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the knowledge graph tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/graphservice"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/storage"
	"github.com/starford/vaultgraph/internal/suggest"
)

const contractURI = "vaultgraph://frontmatter-contract"

// Server wraps the MCP server with the graph tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *graphservice.Service
	store storage.Provider
}

// New creates a new MCP server with all graph tools registered.
func New(svc *graphservice.Service, store storage.Provider, version string) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"vaultgraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("build_graph",
		mcp.WithDescription("Build or incrementally refresh the knowledge graph from the vault. "+
			"Reports node and edge counts, documents left out because of invalid frontmatter, and broken links."),
		mcp.WithBoolean("full", mcp.Description("Reparse every document instead of only changed ones")),
		mcp.WithBoolean("include_orphans", mcp.Description("Keep nodes without any edge")),
	), s.buildGraph)

	s.mcp.AddTool(mcp.NewTool("search_knowledge",
		mcp.WithDescription("Find related notes by spreading activation from seed notes or keywords. "+
			"Seeds are note paths (folder/note.md) or free-text keywords."),
		mcp.WithString("seeds", mcp.Required(), mcp.Description("Comma-separated note paths or keywords")),
		mcp.WithString("layers", mcp.Description("Optional comma-separated layers (1-5) to keep")),
		mcp.WithNumber("threshold", mcp.Description("Minimum activation score (default 0.1)")),
		mcp.WithNumber("max_hops", mcp.Description("Maximum traversal depth (default 5)")),
		mcp.WithNumber("max_active_nodes", mcp.Description("Soft cap on activated nodes (default 100)")),
		mcp.WithNumber("decay", mcp.Description("Override the per-layer decay factor for every hop")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	), s.searchKnowledge)

	s.mcp.AddTool(mcp.NewTool("navigate",
		mcp.WithDescription("Show a note's outbound and inbound links, parent, children, siblings and relationships."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.navigate)

	s.mcp.AddTool(mcp.NewTool("suggest_links",
		mcp.WithDescription("Suggest notes an existing or planned note should link to, ranked by tag overlap "+
			"plus a graph proximity bonus."),
		mcp.WithString("path", mcp.Description("Path of an existing note")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags of a planned note")),
		mcp.WithString("content_hint", mcp.Description("Draft text of a planned note; keywords are used as tags")),
		mcp.WithNumber("min_score", mcp.Description("Minimum score (default 0.3)")),
		mcp.WithNumber("max_suggestions", mcp.Description("Maximum suggestions (default 5)")),
	), s.suggestLinks)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note. Content MUST start with a valid frontmatter block; "+
			"read get_frontmatter_contract first. The graph picks the note up on the next build."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new note (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content with frontmatter")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("get_frontmatter_contract",
		mcp.WithDescription("Returns the frontmatter schema, layer meanings and linking rules of the vault."),
	), s.getFrontmatterContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Frontmatter Contract",
			mcp.WithResourceDescription("Frontmatter schema every graph document must follow."),
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

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) buildGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	res, err := s.svc.Build(ctx, graphservice.BuildRequest{
		Full:           argBool(args, "full"),
		IncludeOrphans: argBool(args, "include_orphans"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s build %s: %s nodes, %s edges, %d reparsed in %s\n",
		res.Mode, res.BuildID,
		humanize.Comma(int64(res.NodeCount)), humanize.Comma(int64(res.EdgeCount)),
		res.Reparsed, res.Duration)
	if len(res.Invalid) > 0 {
		fmt.Fprintf(&b, "\n%d documents excluded:\n", len(res.Invalid))
		for _, d := range res.Invalid {
			fmt.Fprintf(&b, "- %s: %s\n", d.Path, strings.Join(d.Errors, "; "))
		}
	}
	if len(res.BrokenLinks) > 0 {
		fmt.Fprintf(&b, "\n%d broken links:\n", len(res.BrokenLinks))
		for _, bl := range res.BrokenLinks {
			fmt.Fprintf(&b, "- %s -> %s\n", bl.Source, bl.Target)
		}
	}
	if len(res.Orphans) > 0 {
		fmt.Fprintf(&b, "\n%s without any connection\n", humanize.Plural(len(res.Orphans), "orphan note", "orphan notes"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) searchKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seeds, err := req.RequireString("seeds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	layers, err := parseLayers(argString(args, "layers"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sr := graphservice.SearchRequest{
		Seeds:          splitList(seeds),
		Layers:         layers,
		Threshold:      argFloat(args, "threshold"),
		MaxHops:        int(argFloat(args, "max_hops")),
		MaxActiveNodes: int(argFloat(args, "max_active_nodes")),
		Limit:          int(argFloat(args, "limit")),
	}
	if _, ok := args["decay"]; ok {
		d := argFloat(args, "decay")
		sr.Decay = &d
	}

	hits, err := s.svc.Search(ctx, sr)
	if err != nil {
		return toolError(err, seeds), nil
	}
	return jsonResult(hits)
}

func (s *Server) navigate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nav, err := s.svc.Navigate(ctx, path)
	if err != nil {
		return toolError(err, path), nil
	}
	return jsonResult(nav)
}

func (s *Server) suggestLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sr := suggest.Request{
		Path:           argString(args, "path"),
		Tags:           splitList(argString(args, "tags")),
		ContentHint:    argString(args, "content_hint"),
		MinScore:       argFloat(args, "min_score"),
		MaxSuggestions: int(argFloat(args, "max_suggestions")),
	}
	out, err := s.svc.SuggestLinks(ctx, sr)
	if err != nil {
		return toolError(err, sr.Path), nil
	}
	if len(out) == 0 {
		return mcp.NewToolResultText("no link suggestions above the minimum score"), nil
	}
	return jsonResult(out)
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

	res, err := s.svc.CreateNote(ctx, path, []byte(content))
	if err != nil {
		return toolError(err, path), nil
	}
	if len(res.Invalid) > 0 {
		return mcp.NewToolResultText(fmt.Sprintf("created: %s (excluded from the graph until fixed: %s)",
			res.Path, strings.Join(res.Invalid, "; "))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", res.Path)), nil
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(models.NewNodeID(path).String())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getFrontmatterContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrontmatterContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     FrontmatterContract,
		},
	}, nil
}

// toolError renders service errors as tool errors the model can act on.
func toolError(err error, subject string) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrIndexNotBuilt):
		return mcp.NewToolResultError("the knowledge graph has not been built yet; call build_graph first")
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s; check the path or try other keywords", subject))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("note already exists: %s", subject))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func argBool(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func argFloat(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLayers(s string) ([]models.Layer, error) {
	var out []models.Layer
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil || !models.Layer(n).Valid() {
			return nil, fmt.Errorf("invalid layer %q: want 1-5", part)
		}
		out = append(out, models.Layer(n))
	}
	return out, nil
}
