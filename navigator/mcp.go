package navigator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/merceaemil/taxonomy-navigator/idgen"
	"github.com/merceaemil/taxonomy-navigator/kit"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

// Version is reported to MCP clients.
var Version = "dev"

// NewMCPServer returns an MCP server with the taxonomy tools registered.
func (s *Service) NewMCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "taxonav", Version: Version}, nil)
	s.RegisterMCP(srv)
	return srv
}

// RegisterMCP registers the taxonomy tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerLatestTool(srv)
	s.registerSearchTool(srv)
	s.registerHierarchyTool(srv)
	s.registerFacetsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

var categoryProp = map[string]any{
	"type":        "string",
	"enum":        []string{string(taxonomy.Mitigation), string(taxonomy.Adaptation), string(taxonomy.Various)},
	"description": "Taxonomy category",
}

func filterProps(props map[string]any) map[string]any {
	str := func(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
	props["type"] = str("Exact-match filter on the record type")
	props["level"] = str("Exact-match filter on the level (adaptation)")
	props["criteriaType"] = str("Exact-match filter on the criteria type (adaptation)")
	props["isicCodes"] = str("Substring filter on the ISIC code list (mitigation)")
	props["category_filter"] = str("Exact-match filter on the record's own category attribute")
	return props
}

// toolLog logs each tool call with its duration.
func (s *Service) toolLog(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			ctx = kit.WithRequestID(ctx, idgen.New())
			start := time.Now()
			resp, err := next(ctx, req)
			log := s.logger.With("tool", name, "request_id", kit.GetRequestID(ctx),
				"transport", kit.GetTransport(ctx), "duration", time.Since(start))
			if tid := kit.GetTraceID(ctx); tid != "" {
				log = log.With("trace_id", tid)
			}
			if err != nil {
				log.Warn("tool call failed", "error", err)
			} else {
				log.Debug("tool call")
			}
			return resp, err
		}
	}
}

// toolCategory parses the category argument.
func toolCategory(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		if cr, ok := req.(interface{ categoryArg() string }); ok {
			if _, err := taxonomy.ParseCategory(cr.categoryArg()); err != nil {
				return nil, err
			}
		}
		return next(ctx, req)
	}
}

func (s *Service) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, kit.Chain(s.toolLog(tool.Name), toolCategory)(endpoint), decode)
}

func decodeInto[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r T
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

type filterArgs struct {
	Type           string `json:"type"`
	Level          string `json:"level"`
	CriteriaType   string `json:"criteriaType"`
	ISICCodes      string `json:"isicCodes"`
	CategoryFilter string `json:"category_filter"`
}

func (f filterArgs) filters() taxonomy.Filters {
	return taxonomy.Filters{
		Type:         f.Type,
		Level:        f.Level,
		CriteriaType: f.CriteriaType,
		ISICCodes:    f.ISICCodes,
		Category:     f.CategoryFilter,
	}
}

// --- latest ---

type latestReq struct {
	IncludeData bool `json:"include_data"`
}

func (s *Service) registerLatestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "taxonomy_latest",
		Description: "Describe the newest taxonomy snapshot: file name and record counts per category. Set include_data to return every record.",
		InputSchema: inputSchema(map[string]any{
			"include_data": map[string]any{"type": "boolean", "description": "Include the full document"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*latestReq)
		sum, err := s.Summary(ctx)
		if err != nil {
			return nil, err
		}
		if !r.IncludeData {
			return sum, nil
		}
		_, doc, err := s.Latest(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"summary": sum, "data": doc}, nil
	}

	s.register(srv, tool, endpoint, decodeInto[latestReq])
}

// --- search ---

type searchReq struct {
	Category string `json:"category"`
	Query    string `json:"query"`
	filterArgs
}

func (r *searchReq) categoryArg() string { return r.Category }

func (s *Service) registerSearchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "taxonomy_search",
		Description: "Search one category of the newest snapshot. Every query word must appear in the activity name, description, sector, hazard or division/sub-sector. At most 100 records are returned.",
		InputSchema: inputSchema(filterProps(map[string]any{
			"category": categoryProp,
			"query":    map[string]any{"type": "string", "description": "Words to match (case-insensitive)"},
		}), []string{"category"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*searchReq)
		c, _ := taxonomy.ParseCategory(r.Category)
		recs, err := s.Search(ctx, c, r.Query, r.filters())
		if err != nil {
			return nil, err
		}
		return searchResponse{Category: c, Query: r.Query, Count: len(recs), Results: recs}, nil
	}

	s.register(srv, tool, endpoint, decodeInto[searchReq])
}

// --- hierarchy ---

type hierarchyReq struct {
	Category string   `json:"category"`
	Path     []string `json:"path"`
	filterArgs
}

func (r *hierarchyReq) categoryArg() string { return r.Category }

func (s *Service) registerHierarchyTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "taxonomy_hierarchy",
		Description: "Group one category of the newest snapshot by sector, then hazard and division (adaptation) or sub-sector (various). Give path to list only the group names below that point.",
		InputSchema: inputSchema(filterProps(map[string]any{
			"category": categoryProp,
			"path": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Group labels from the top level down, e.g. [\"Water\", \"Flood\"]",
			},
		}), []string{"category"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*hierarchyReq)
		c, _ := taxonomy.ParseCategory(r.Category)
		tree, err := s.Hierarchy(ctx, c, r.filters())
		if err != nil {
			return nil, err
		}
		if len(r.Path) == 0 {
			return hierarchyResponse{Category: c, Levels: tree.Levels, Count: tree.Len(), Groups: tree}, nil
		}
		g := tree.Find(r.Path...)
		if g == nil {
			return map[string]any{"path": r.Path, "groups": []string{}, "records": []taxonomy.Record{}}, nil
		}
		names := make([]string, len(g.Groups))
		for i, child := range g.Groups {
			names[i] = child.Key
		}
		recs := g.Records
		if recs == nil {
			recs = []taxonomy.Record{}
		}
		return map[string]any{"path": r.Path, "count": g.Count(), "groups": names, "records": recs}, nil
	}

	s.register(srv, tool, endpoint, decodeInto[hierarchyReq])
}

// --- facets ---

type facetsReq struct {
	Category string `json:"category"`
}

func (r *facetsReq) categoryArg() string { return r.Category }

func (s *Service) registerFacetsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "taxonomy_facets",
		Description: "List the values available to each filter (type, level, criteriaType, isicCodes, category) in one category of the newest snapshot.",
		InputSchema: inputSchema(map[string]any{
			"category": categoryProp,
		}, []string{"category"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*facetsReq)
		c, _ := taxonomy.ParseCategory(r.Category)
		return s.Facets(ctx, c)
	}

	s.register(srv, tool, endpoint, decodeInto[facetsReq])
}
