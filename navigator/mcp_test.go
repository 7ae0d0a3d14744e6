package navigator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "taxonav-test", Version: "0.1.0"}

func mcpSession(t *testing.T, s *Service) *mcp.ClientSession {
	t.Helper()
	srv := s.NewMCPServer()

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(testMCPImpl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, result.IsError
}

func ingestedService(t *testing.T) *Service {
	t.Helper()
	s := newService(t, nil)
	dropSource(t, s, "Taxonomy.xlsx", fixtureSheets...)
	if _, err := s.Ingest(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestMCP_ListTools(t *testing.T) {
	session := mcpSession(t, newService(t, nil))
	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"taxonomy_latest": true, "taxonomy_search": true, "taxonomy_hierarchy": true, "taxonomy_facets": true}
	for _, tool := range res.Tools {
		delete(want, tool.Name)
	}
	for name := range want {
		t.Errorf("missing tool %s", name)
	}
}

func TestMCP_LatestEmptyStore(t *testing.T) {
	session := mcpSession(t, newService(t, nil))
	_, isErr := callTool(t, session, "taxonomy_latest", map[string]any{})
	if !isErr {
		t.Error("expected a tool error when no snapshot exists")
	}
}

func TestMCP_Latest(t *testing.T) {
	session := mcpSession(t, ingestedService(t))
	text, isErr := callTool(t, session, "taxonomy_latest", map[string]any{})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var sum Summary
	if err := json.Unmarshal([]byte(text), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Counts["mitigation"] != 2 || sum.Counts["adaptation"] != 3 {
		t.Errorf("counts = %v", sum.Counts)
	}
}

func TestMCP_Search(t *testing.T) {
	session := mcpSession(t, ingestedService(t))
	text, isErr := callTool(t, session, "taxonomy_search", map[string]any{
		"category": "adaptation",
		"query":    "water",
		"level":    "Basic",
	})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var resp struct {
		Count   int              `json:"count"`
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Results[0]["investment"] != "Dikes" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMCP_BadCategory(t *testing.T) {
	session := mcpSession(t, ingestedService(t))
	if _, isErr := callTool(t, session, "taxonomy_facets", map[string]any{"category": "climate"}); !isErr {
		t.Error("expected a tool error for an unknown category")
	}
}

func TestMCP_HierarchyPath(t *testing.T) {
	session := mcpSession(t, ingestedService(t))
	text, isErr := callTool(t, session, "taxonomy_hierarchy", map[string]any{
		"category": "adaptation",
		"path":     []string{"Water"},
	})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var resp struct {
		Count  int      `json:"count"`
		Groups []string `json:"groups"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 3 || len(resp.Groups) != 2 || resp.Groups[0] != "Flood" || resp.Groups[1] != "Drought" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMCP_Facets(t *testing.T) {
	session := mcpSession(t, ingestedService(t))
	text, isErr := callTool(t, session, "taxonomy_facets", map[string]any{"category": "adaptation"})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var f struct {
		Levels []string `json:"levels"`
	}
	json.Unmarshal([]byte(text), &f)
	if len(f.Levels) != 2 || f.Levels[0] != "Basic" {
		t.Errorf("levels = %v", f.Levels)
	}
}
