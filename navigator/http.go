package navigator

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/merceaemil/taxonomy-navigator/hierarchy"
	"github.com/merceaemil/taxonomy-navigator/ingest"
	"github.com/merceaemil/taxonomy-navigator/shield"
	"github.com/merceaemil/taxonomy-navigator/snapshot"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

// Error messages the browsing UI matches on.
const (
	msgNoSnapshots   = "No parsed files found"
	msgProcessFailed = "Failed to process and get latest data: "
	msgLatestFailed  = "Failed to get last parsed file: "
)

// Handler returns the HTTP API:
//
//	GET  /api/data                  process pending source, then newest snapshot
//	GET  /api/latest                newest snapshot
//	GET  /api/summary               newest snapshot's per-category counts
//	GET  /api/snapshots             snapshot list, newest first
//	GET  /api/snapshots/{id}        one snapshot
//	POST /api/ingest                process every pending source
//	GET  /api/{category}/hierarchy  grouped records
//	GET  /api/{category}/search     free-text search (?q=)
//	GET  /api/{category}/facets     filter values
//	GET  /healthz, /metrics, /mcp
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposedHeaders: []string{shield.TraceHeader, "Mcp-Session-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.Recoverer)
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/data", s.handleData)
		r.Get("/latest", s.handleLatest)
		r.Get("/summary", s.handleSummary)
		r.Get("/snapshots", s.handleSnapshots)
		r.Get("/snapshots/{id}", s.handleSnapshot)
		r.Post("/ingest", s.handleIngest)
		r.Route("/{category}", func(r chi.Router) {
			r.Get("/hierarchy", s.handleHierarchy)
			r.Get("/search", s.handleSearch)
			r.Get("/facets", s.handleFacets)
		})
	})

	if s.cfg.MCP {
		srv := s.NewMCPServer()
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	}
	return r
}

// instrument records request counts and latency per route pattern.
func (s *Service) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		s.metrics.RecordRequest(route, code, time.Since(start))
	})
}

type latestResponse struct {
	FileName string             `json:"fileName"`
	Data     *taxonomy.Document `json:"data"`
}

func (s *Service) handleData(w http.ResponseWriter, r *http.Request) {
	info, doc, err := s.ProcessAndLatest(r.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, msgNoSnapshots)
			return
		}
		shield.GetLogger(r.Context()).Error("process and get latest", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgProcessFailed+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, latestResponse{FileName: info.ID, Data: doc})
}

func (s *Service) handleLatest(w http.ResponseWriter, r *http.Request) {
	info, doc, err := s.Latest(r.Context())
	if err != nil {
		s.writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, latestResponse{FileName: info.ID, Data: doc})
}

func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Summary(r.Context())
	if err != nil {
		s.writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Service) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := s.Snapshots(r.Context())
	if err != nil {
		s.writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Service) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.Snapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "snapshot not found: "+id)
			return
		}
		s.writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, latestResponse{FileName: id, Data: doc})
}

type ingestResponse struct {
	Runs  []*ingest.Result `json:"runs"`
	Error string           `json:"error,omitempty"`
}

func (s *Service) handleIngest(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Ingest(r.Context())
	if runs == nil {
		runs = []*ingest.Result{}
	}
	if err != nil {
		shield.GetLogger(r.Context()).Error("ingest", "error", err)
		writeJSON(w, http.StatusInternalServerError, ingestResponse{Runs: runs, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Runs: runs})
}

type hierarchyResponse struct {
	Category taxonomy.Category `json:"category"`
	Levels   []hierarchy.Level `json:"levels"`
	Count    int               `json:"count"`
	Groups   *hierarchy.Tree   `json:"groups"`
}

func (s *Service) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	c, ok := category(w, r)
	if !ok {
		return
	}
	tree, err := s.Hierarchy(r.Context(), c, filters(r))
	if err != nil {
		s.writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hierarchyResponse{Category: c, Levels: tree.Levels, Count: tree.Len(), Groups: tree})
}

type searchResponse struct {
	Category taxonomy.Category `json:"category"`
	Query    string            `json:"query"`
	Count    int               `json:"count"`
	Results  []taxonomy.Record `json:"results"`
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	c, ok := category(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	recs, err := s.Search(r.Context(), c, q, filters(r))
	if err != nil {
		s.writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Category: c, Query: q, Count: len(recs), Results: recs})
}

func (s *Service) handleFacets(w http.ResponseWriter, r *http.Request) {
	c, ok := category(w, r)
	if !ok {
		return
	}
	f, err := s.Facets(r.Context(), c)
	if err != nil {
		s.writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// writeReadError maps store errors on read-only routes: no snapshot is 404,
// anything else 500.
func (s *Service) writeReadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, snapshot.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, msgNoSnapshots)
		return
	}
	shield.GetLogger(r.Context()).Error("read snapshot", "error", err)
	writeMessage(w, http.StatusInternalServerError, msgLatestFailed+err.Error())
}

func category(w http.ResponseWriter, r *http.Request) (taxonomy.Category, bool) {
	c, err := taxonomy.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return c, true
}

func filters(r *http.Request) taxonomy.Filters {
	q := r.URL.Query()
	return taxonomy.Filters{
		Type:         q.Get("type"),
		Level:        q.Get("level"),
		CriteriaType: q.Get("criteriaType"),
		ISICCodes:    q.Get("isicCodes"),
		Category:     q.Get("category"),
	}
}

// writeJSON leaves markup in rich-text fields unescaped, as stored.
func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
