package view

import (
	"fmt"
	"sort"

	"github.com/vyuha/vyuha-catalog/internal/graph"
)

// ---------------------------------------------------------------------------
// Flow output
// ---------------------------------------------------------------------------

// Position is the column a flow node is drawn in.
type Position string

const (
	Left   Position = "Left"   // providers and publishers
	Middle Position = "Middle" // APIs and events
	Right  Position = "Right"  // consumers and subscribers
)

func (p Position) order() int {
	switch p {
	case Left:
		return 0
	case Middle:
		return 1
	default:
		return 2
	}
}

// FlowNode is one box of the flow diagram. ID is "position:kind:name".
type FlowNode struct {
	ID       string     `json:"id"`
	Color    string     `json:"color"`
	Position Position   `json:"position"`
	Label    string     `json:"label"`
	Kind     graph.Kind `json:"kind"`
	Related  bool       `json:"related"`
}

// FlowLink joins two flow nodes. Value counts the underlying service to
// connector relations merged into the link.
type FlowLink struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	Value         int    `json:"value"`
	ColorOverride string `json:"colorOverride,omitempty"`
}

// Flow is the three-column diagram.
type Flow struct {
	Mode  FlowMode   `json:"mode"`
	Nodes []FlowNode `json:"nodes"`
	Links []FlowLink `json:"links"`
}

// FlowMode selects how services are grouped into flow nodes.
type FlowMode string

const (
	// FlowFlat lists every service in scope as its own node.
	FlowFlat FlowMode = "flat"
	// FlowGroup lists the diagonal relatives of a pivot group.
	FlowGroup FlowMode = "group"
)

// FlowOptions configures ProjectFlow.
type FlowOptions struct {
	Mode FlowMode
	// Group is the pivot group identifier for FlowGroup; empty is the root.
	Group string
	// Scope restricts FlowFlat to one group's subtree; empty is everything.
	Scope string
}

// ---------------------------------------------------------------------------
// Projection
// ---------------------------------------------------------------------------

// unit is the graph node a service is drawn as: the service itself or a
// group containing it.
type unit struct {
	ref   graph.NodeRef
	label string
}

// ProjectFlow builds the flow diagram. Each service contributes a link from
// its unit (Left) to every connector it provides or publishes, and from
// every connector it consumes or subscribes to its unit (Right). Parallel
// links are merged. When hops is non-nil, links whose both ends are not
// directly related to the pivot get the neutral color override.
func ProjectFlow(g *graph.Graph, hops *graph.Hops, opts FlowOptions) (*Flow, error) {
	var (
		services []*graph.Service
		unitOf   func(*graph.Service) unit
	)

	switch opts.Mode {
	case FlowFlat, "":
		opts.Mode = FlowFlat
		scope, ok := g.Group(opts.Scope)
		if !ok {
			return nil, fmt.Errorf("view: unknown scope group %q", opts.Scope)
		}
		if scope.IsRoot() {
			services = g.Services()
		} else {
			services = scope.AllServices()
		}
		unitOf = func(s *graph.Service) unit { return unit{ref: s.Ref(), label: s.Name} }
	case FlowGroup:
		pivot, ok := g.Group(opts.Group)
		if !ok {
			return nil, fmt.Errorf("view: unknown pivot group %q", opts.Group)
		}
		services = g.Services()
		unitOf = diagonalUnits(pivot)
	default:
		return nil, fmt.Errorf("view: unknown flow mode %q", opts.Mode)
	}

	b := newFlowBuilder(hops)
	for _, s := range services {
		u := unitOf(s)
		for _, c := range s.Produced() {
			b.link(b.node(Left, u.ref, u.label), b.node(Middle, c.Ref(), c.Name))
		}
		for _, c := range s.Consumed() {
			b.link(b.node(Middle, c.Ref(), c.Name), b.node(Right, u.ref, u.label))
		}
	}
	return b.flow(opts.Mode), nil
}

// DiagonalRelatives lists the units a group-centered flow is drawn with:
// the pivot's child groups and services, its siblings, and the siblings of
// every ancestor. Groups come before services at each level.
func DiagonalRelatives(pivot *graph.Group) []graph.NodeRef {
	var out []graph.NodeRef
	levelOf := func(grp *graph.Group, skip *graph.Group) {
		for _, c := range grp.SortedChildren() {
			if c != skip {
				out = append(out, c.Ref())
			}
		}
		for _, s := range grp.Services {
			out = append(out, s.Ref())
		}
	}

	levelOf(pivot, nil)
	for cur := pivot; !cur.IsRoot(); cur = cur.Parent {
		levelOf(cur.Parent, cur)
	}
	return out
}

// diagonalUnits maps every service to the diagonal relative of pivot that
// is the service itself or its nearest enclosing group.
func diagonalUnits(pivot *graph.Group) func(*graph.Service) unit {
	drawn := make(map[graph.NodeRef]bool)
	for _, ref := range DiagonalRelatives(pivot) {
		drawn[ref] = true
	}
	return func(s *graph.Service) unit {
		if drawn[s.Ref()] {
			return unit{ref: s.Ref(), label: s.Name}
		}
		for _, grp := range append([]*graph.Group{s.Group}, s.Group.Ancestors()...) {
			if drawn[grp.Ref()] {
				return unit{ref: grp.Ref(), label: grp.Name}
			}
		}
		panic(fmt.Sprintf("view: service %q has no diagonal relative of group %q", s.Name, pivot.Identifier))
	}
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

type linkKey struct{ source, target string }

type flowBuilder struct {
	hops  *graph.Hops
	nodes map[string]*FlowNode
	links map[linkKey]*FlowLink
}

func newFlowBuilder(hops *graph.Hops) *flowBuilder {
	return &flowBuilder{
		hops:  hops,
		nodes: make(map[string]*FlowNode),
		links: make(map[linkKey]*FlowLink),
	}
}

// node registers a node once per (position, kind, name) and returns its ID.
func (b *flowBuilder) node(pos Position, ref graph.NodeRef, label string) string {
	id := string(pos) + ":" + ref.String()
	if _, ok := b.nodes[id]; ok {
		return id
	}
	related := true
	if b.hops != nil {
		related = b.hops.Related(ref)
	}
	b.nodes[id] = &FlowNode{
		ID:       id,
		Color:    kindColor(ref.Kind, label),
		Position: pos,
		Label:    label,
		Kind:     ref.Kind,
		Related:  related,
	}
	return id
}

func (b *flowBuilder) link(source, target string) {
	key := linkKey{source, target}
	if l, ok := b.links[key]; ok {
		l.Value++
		return
	}
	l := &FlowLink{Source: source, Target: target, Value: 1}
	if !b.nodes[source].Related && !b.nodes[target].Related {
		l.ColorOverride = NeutralColor
	}
	b.links[key] = l
}

func (b *flowBuilder) flow(mode FlowMode) *Flow {
	f := &Flow{
		Mode:  mode,
		Nodes: make([]FlowNode, 0, len(b.nodes)),
		Links: make([]FlowLink, 0, len(b.links)),
	}
	for _, n := range b.nodes {
		f.Nodes = append(f.Nodes, *n)
	}
	for _, l := range b.links {
		f.Links = append(f.Links, *l)
	}
	sort.Slice(f.Nodes, func(i, j int) bool {
		a, c := f.Nodes[i], f.Nodes[j]
		if a.Position != c.Position {
			return a.Position.order() < c.Position.order()
		}
		return a.ID < c.ID
	})
	sort.Slice(f.Links, func(i, j int) bool {
		a, c := f.Links[i], f.Links[j]
		if a.Source != c.Source {
			return a.Source < c.Source
		}
		return a.Target < c.Target
	})
	return f
}
