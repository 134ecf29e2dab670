package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/vaultgraph/internal/graphservice"
	"github.com/starford/vaultgraph/internal/storage"
	"github.com/starford/vaultgraph/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	_, store := testutil.TestVault(t)
	testutil.WriteFiles(t, store, map[string]string{
		"notes/go.md":          testutil.Note(3, "go, lang", "# Go\nSee [concurrency](concurrency.md).\n"),
		"notes/concurrency.md": testutil.Note(3, "go, threads", "# Concurrency\nChannels and goroutines.\n"),
		"notes/rust.md":        testutil.Note(3, "lang", "# Rust\n"),
		"broken.md":            "---\nlayer: 2\n---\nno tags\n",
	})

	svc := graphservice.NewService(store, testutil.TestDB(t), graphservice.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return New(svc, store, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "build_graph":
		result, err = srv.buildGraph(ctx, req)
	case "search_knowledge":
		result, err = srv.searchKnowledge(ctx, req)
	case "navigate":
		result, err = srv.navigate(ctx, req)
	case "suggest_links":
		result, err = srv.suggestLinks(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "get_frontmatter_contract":
		result, err = srv.getFrontmatterContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestQueryBeforeBuild(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "search_knowledge", map[string]interface{}{"seeds": "notes/go.md"})
	if !r.IsError {
		t.Fatal("expected error before build")
	}
	if !strings.Contains(resultText(r), "build_graph") {
		t.Errorf("error should point at build_graph, got %q", resultText(r))
	}
}

func TestBuildGraph(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "build_graph", map[string]interface{}{"full": true})
	if r.IsError {
		t.Fatalf("build failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.HasPrefix(text, "full build") {
		t.Errorf("summary = %q", text)
	}
	if !strings.Contains(text, "3 nodes") {
		t.Errorf("summary should count 3 nodes: %q", text)
	}
	if !strings.Contains(text, "broken.md") {
		t.Errorf("summary should list the invalid document: %q", text)
	}
}

func TestSearchKnowledge(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "build_graph", nil)

	r := callTool(t, srv, "search_knowledge", map[string]interface{}{
		"seeds":  "notes/go.md",
		"layers": "3",
		"limit":  float64(10),
	})
	if r.IsError {
		t.Fatalf("search failed: %s", resultText(r))
	}
	var hits []graphservice.SearchHit
	if err := json.Unmarshal([]byte(resultText(r)), &hits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hits) == 0 || hits[0].NodeID != "notes/go.md" {
		t.Fatalf("first hit should be the seed, got %+v", hits)
	}
	found := false
	for _, h := range hits {
		if h.NodeID == "notes/concurrency.md" {
			found = true
		}
	}
	if !found {
		t.Error("linked note not activated")
	}
}

func TestSearchKnowledge_BadLayer(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "build_graph", nil)
	r := callTool(t, srv, "search_knowledge", map[string]interface{}{"seeds": "go", "layers": "7"})
	if !r.IsError {
		t.Error("expected error for layer 7")
	}
}

func TestSearchKnowledge_NoSeeds(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "build_graph", nil)
	r := callTool(t, srv, "search_knowledge", map[string]interface{}{"seeds": "zzzunknown"})
	if !r.IsError || !strings.HasPrefix(resultText(r), "not found") {
		t.Errorf("expected not found, got %q", resultText(r))
	}
}

func TestNavigate(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "build_graph", nil)

	r := callTool(t, srv, "navigate", map[string]interface{}{"path": "notes/concurrency.md"})
	if r.IsError {
		t.Fatalf("navigate failed: %s", resultText(r))
	}
	var nav graphservice.Navigation
	if err := json.Unmarshal([]byte(resultText(r)), &nav); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(nav.Inbound) != 1 || nav.Inbound[0].NodeID != "notes/go.md" {
		t.Errorf("inbound = %+v", nav.Inbound)
	}

	r = callTool(t, srv, "navigate", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing node")
	}
}

func TestSuggestLinks(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "build_graph", nil)

	r := callTool(t, srv, "suggest_links", map[string]interface{}{
		"tags":      "go, threads",
		"min_score": 0.1,
	})
	if r.IsError {
		t.Fatalf("suggest failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "notes/concurrency.md") {
		t.Errorf("expected concurrency suggestion, got %q", resultText(r))
	}

	r = callTool(t, srv, "suggest_links", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error without path or tags")
	}
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	content := testutil.Note(4, "go", "# Plan\n")
	r := callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "plan.md",
		"content": content,
	})
	if text := resultText(r); text != "created: plan.md" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"path": "plan.md"})
	if text := resultText(r); text != content {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "create_note", map[string]interface{}{"path": "plan.md", "content": content})
	if !r.IsError {
		t.Error("expected error for duplicate note")
	}
}

func TestCreateNote_InvalidFrontmatter(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "draft.md",
		"content": "# Draft\n",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "excluded from the graph") {
		t.Errorf("expected frontmatter warning, got %q", resultText(r))
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestFrontmatterContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_frontmatter_contract", nil)
	if !strings.Contains(resultText(r), "intimacy_level") {
		t.Error("contract should document person fields")
	}

	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
}

func TestParseLayers(t *testing.T) {
	layers, err := parseLayers("1, 3,5")
	if err != nil || len(layers) != 3 || layers[1] != 3 {
		t.Errorf("parseLayers = %v, %v", layers, err)
	}
	if _, err := parseLayers("0"); err == nil {
		t.Error("layer 0 should be rejected")
	}
}
