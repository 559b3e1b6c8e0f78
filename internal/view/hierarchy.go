// Package view projects a built graph into the data structures the catalog
// UI draws: a collapsible node/edge hierarchy and a three-column flow.
package view

import (
	"fmt"

	"github.com/vyuha/vyuha-catalog/internal/graph"
)

// ---------------------------------------------------------------------------
// Hierarchy output
// ---------------------------------------------------------------------------

// HierarchyNode is a group or service drawn in the collapsible graph.
// Parent is empty for top-level nodes. Hops and Related are set only when
// the projection was given a distance map.
type HierarchyNode struct {
	Type    graph.Kind      `json:"type"`
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Parent  string          `json:"parent,omitempty"`
	Color   string          `json:"color"`
	Hops    *graph.Distance `json:"hops,omitempty"`
	Related *bool           `json:"related,omitempty"`
}

// HierarchyEdge is one API or event dependency between two drawn nodes.
type HierarchyEdge struct {
	Type   graph.Kind `json:"type"`
	Source string     `json:"source"`
	Target string     `json:"target"`
}

// Hierarchy is the node/edge list for one depth limit.
type Hierarchy struct {
	MaxDepth int             `json:"maxDepth"`
	Nodes    []HierarchyNode `json:"nodes"`
	Edges    []HierarchyEdge `json:"edges"`
}

// HierarchyOptions configures ProjectHierarchy.
type HierarchyOptions struct {
	// MaxDepth is the deepest node level drawn. Top-level groups and
	// services without a group are at depth 1.
	MaxDepth int
	// OmitServices draws groups only; service edges collapse onto their
	// groups.
	OmitServices bool
}

// ---------------------------------------------------------------------------
// Projection
// ---------------------------------------------------------------------------

// ProjectHierarchy emits every group and service up to opts.MaxDepth and
// one edge per distinct dependency between drawn nodes. Endpoints deeper
// than the limit are replaced by their nearest drawn ancestor; edges that
// collapse onto a single node are dropped. hops may be nil.
func ProjectHierarchy(g *graph.Graph, hops *graph.Hops, opts HierarchyOptions) (*Hierarchy, error) {
	if opts.MaxDepth < 0 {
		return nil, fmt.Errorf("view: hierarchy depth must not be negative, got %d", opts.MaxDepth)
	}
	p := &hierarchyProjector{g: g, hops: hops, opts: opts}
	h := &Hierarchy{MaxDepth: opts.MaxDepth, Nodes: []HierarchyNode{}, Edges: []HierarchyEdge{}}

	p.walk(g.Root, h)

	seen := make(map[HierarchyEdge]bool)
	for _, dep := range g.Dependencies() {
		src, srcOK := p.anchor(dep.Source)
		dst, dstOK := p.anchor(dep.Target)
		if !srcOK || !dstOK {
			continue
		}
		e := HierarchyEdge{Type: dep.Kind, Source: src, Target: dst}
		if e.Source == e.Target || seen[e] {
			continue
		}
		seen[e] = true
		h.Edges = append(h.Edges, e)
	}
	return h, nil
}

type hierarchyProjector struct {
	g    *graph.Graph
	hops *graph.Hops
	opts HierarchyOptions
}

// walk emits grp's in-range descendants, groups before services at each
// level, children in name order.
func (p *hierarchyProjector) walk(grp *graph.Group, h *Hierarchy) {
	parent := ""
	if !grp.IsRoot() {
		parent = grp.Ref().String()
	}
	for _, child := range grp.SortedChildren() {
		if child.Depth() > p.opts.MaxDepth {
			break
		}
		h.Nodes = append(h.Nodes, p.node(child.Ref(), child.Name, parent))
		p.walk(child, h)
	}
	if p.opts.OmitServices {
		return
	}
	for _, s := range grp.Services {
		if s.Depth() > p.opts.MaxDepth {
			break
		}
		h.Nodes = append(h.Nodes, p.node(s.Ref(), s.Name, parent))
	}
}

func (p *hierarchyProjector) node(ref graph.NodeRef, name, parent string) HierarchyNode {
	n := HierarchyNode{
		Type:   ref.Kind,
		ID:     ref.String(),
		Name:   name,
		Parent: parent,
		Color:  ColorFor(name),
	}
	if p.hops != nil {
		d := p.hops.Of(ref)
		related := graph.IsDirectlyRelated(ref.Kind, d)
		n.Hops = &d
		n.Related = &related
	}
	return n
}

// anchor returns the ID of the node a service's edges attach to: the
// service itself when drawn, otherwise its nearest in-range group. ok is
// false when that group is the root, which is never drawn.
func (p *hierarchyProjector) anchor(s *graph.Service) (id string, ok bool) {
	if !p.opts.OmitServices && s.Depth() <= p.opts.MaxDepth {
		return s.Ref().String(), true
	}
	for _, grp := range append([]*graph.Group{s.Group}, s.Group.Ancestors()...) {
		if grp.Depth() <= p.opts.MaxDepth {
			return grp.Ref().String(), !grp.IsRoot()
		}
	}
	panic(fmt.Sprintf("view: no ancestor of service %q within depth %d", s.Name, p.opts.MaxDepth))
}
