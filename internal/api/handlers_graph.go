package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vyuha/vyuha-catalog/internal/engine"
	"github.com/vyuha/vyuha-catalog/internal/graph"
	"github.com/vyuha/vyuha-catalog/internal/view"
)

// ---------------------------------------------------------------------------
// GET /api/graph/tree?filter=Q
// ---------------------------------------------------------------------------

func (s *Server) handleGraphTree(w http.ResponseWriter, r *http.Request) {
	g, err := s.engine.Graph(r.URL.Query().Get("filter"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": g.Tree(),
	})
}

// ---------------------------------------------------------------------------
// GET /api/graph/hops?pivot=P&filter=Q
// ---------------------------------------------------------------------------

func (s *Server) handleGraphHops(w http.ResponseWriter, r *http.Request) {
	q := queryOf(r)
	if strings.TrimSpace(q.Pivot) == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PIVOT",
			"pivot query parameter is required (service:<name>, group:<id> or root)")
		return
	}

	g, hops, err := s.engine.Hops(q)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"pivot":   hops.Pivot,
			"found":   hops.Found,
			"reached": hops.Reached(),
			"nodes":   hops.Entries(g),
		},
	})
}

// ---------------------------------------------------------------------------
// GET /api/graph/stats?filter=Q
// ---------------------------------------------------------------------------

func (s *Server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	g, err := s.engine.Graph(r.URL.Query().Get("filter"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": g.Stats(),
	})
}

// ---------------------------------------------------------------------------
// GET /api/graph/dependencies?filter=Q
// ---------------------------------------------------------------------------

type dependencyView struct {
	Type      graph.Kind `json:"type"`
	Connector string     `json:"connector"`
	Source    string     `json:"source"`
	Target    string     `json:"target"`
}

func (s *Server) handleGraphDependencies(w http.ResponseWriter, r *http.Request) {
	g, err := s.engine.Graph(r.URL.Query().Get("filter"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	deps := g.Dependencies()
	out := make([]dependencyView, 0, len(deps))
	for _, d := range deps {
		out = append(out, dependencyView{
			Type:      d.Kind,
			Connector: d.Connector.Name,
			Source:    d.Source.Name,
			Target:    d.Target.Name,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"dependencies": out,
			"total":        len(out),
		},
	})
}

// ---------------------------------------------------------------------------
// GET /api/views/hierarchy?depth=N&pivot=P&filter=Q&services=false
// ---------------------------------------------------------------------------

func (s *Server) handleHierarchyView(w http.ResponseWriter, r *http.Request) {
	depth := 2
	if d := r.URL.Query().Get("depth"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_DEPTH",
				"depth must be a non-negative integer")
			return
		}
		depth = v
	}

	opts := view.HierarchyOptions{
		MaxDepth:     clampInt(depth, 0, 32),
		OmitServices: r.URL.Query().Get("services") == "false",
	}
	h, err := s.engine.Hierarchy(queryOf(r), opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h,
	})
}

// ---------------------------------------------------------------------------
// GET /api/views/flow?mode=flat|group&group=G&scope=S&pivot=P&filter=Q
// ---------------------------------------------------------------------------

func (s *Server) handleFlowView(w http.ResponseWriter, r *http.Request) {
	mode := view.FlowMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = view.FlowFlat
	}
	if mode != view.FlowFlat && mode != view.FlowGroup {
		writeError(w, http.StatusBadRequest, "INVALID_MODE",
			"mode must be one of: flat, group")
		return
	}

	q := queryOf(r)
	opts := view.FlowOptions{
		Mode:  mode,
		Group: r.URL.Query().Get("group"),
		Scope: r.URL.Query().Get("scope"),
	}
	// A group-centered flow defaults its pivot to the centre group.
	if mode == view.FlowGroup && q.Pivot == "" {
		q.Pivot = "group:" + opts.Group
	}

	f, err := s.engine.Flow(q, opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": f,
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// queryOf reads the filter and pivot parameters shared by graph and view
// endpoints.
func queryOf(r *http.Request) engine.Query {
	return engine.Query{
		Filter: r.URL.Query().Get("filter"),
		Pivot:  r.URL.Query().Get("pivot"),
	}
}

// queryInt parses an integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// clampInt restricts val to the range [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
