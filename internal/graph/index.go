package graph

import (
	"sort"
)

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats summarises the contents of a built graph.
type Stats struct {
	Groups      int            `json:"groups"`
	Services    int            `json:"services"`
	APIs        int            `json:"apis"`
	Events      int            `json:"events"`
	Edges       int            `json:"edges"`
	EdgesByType map[string]int `json:"edges_by_type"`
	MaxDepth    int            `json:"max_depth"`
	Orphans     int            `json:"orphan_connectors"`
}

// ---------------------------------------------------------------------------
// Graph
// ---------------------------------------------------------------------------

// Graph is an immutable snapshot built from one record list. The name
// registries are owned by the snapshot; two builds never share nodes.
type Graph struct {
	Root *Group

	groups   map[string]*Group     // identifier → group (root under "")
	services map[string]*Service   // name → service
	apis     map[string]*Connector // name → api
	events   map[string]*Connector // name → event

	// insertion order, i.e. record order
	serviceOrder []*Service
}

func newGraph() *Graph {
	root := newGroup("", nil)
	return &Graph{
		Root:     root,
		groups:   map[string]*Group{"": root},
		services: make(map[string]*Service),
		apis:     make(map[string]*Connector),
		events:   make(map[string]*Connector),
	}
}

// Group returns the group with the given identifier. The empty identifier
// resolves to the root.
func (g *Graph) Group(identifier string) (*Group, bool) {
	grp, ok := g.groups[identifier]
	return grp, ok
}

// Service returns the service with the given name.
func (g *Graph) Service(name string) (*Service, bool) {
	s, ok := g.services[name]
	return s, ok
}

// API returns the API connector with the given name.
func (g *Graph) API(name string) (*Connector, bool) {
	c, ok := g.apis[name]
	return c, ok
}

// Event returns the Event connector with the given name.
func (g *Graph) Event(name string) (*Connector, bool) {
	c, ok := g.events[name]
	return c, ok
}

// Connector looks a connector up by kind and name.
func (g *Graph) Connector(kind Kind, name string) (*Connector, bool) {
	switch kind {
	case KindAPI:
		return g.API(name)
	case KindEvent:
		return g.Event(name)
	default:
		return nil, false
	}
}

// Services returns all services in record order.
func (g *Graph) Services() []*Service {
	out := make([]*Service, len(g.serviceOrder))
	copy(out, g.serviceOrder)
	return out
}

// Groups returns every regular group ordered by identifier (root excluded).
func (g *Graph) Groups() []*Group {
	out := make([]*Group, 0, len(g.groups))
	for id, grp := range g.groups {
		if id != "" {
			out = append(out, grp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// APIs returns all API connectors ordered by name.
func (g *Graph) APIs() []*Connector { return sortedConnectors(g.apis) }

// Events returns all Event connectors ordered by name.
func (g *Graph) Events() []*Connector { return sortedConnectors(g.events) }

func sortedConnectors(m map[string]*Connector) []*Connector {
	out := make([]*Connector, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stats returns a summary snapshot of the graph.
func (g *Graph) Stats() Stats {
	st := Stats{
		Groups:      len(g.groups) - 1,
		Services:    len(g.services),
		APIs:        len(g.apis),
		Events:      len(g.events),
		EdgesByType: make(map[string]int),
	}

	for _, s := range g.serviceOrder {
		st.EdgesByType[string(EdgeProvides)] += len(s.Provides)
		st.EdgesByType[string(EdgeConsumes)] += len(s.Consumes)
		st.EdgesByType[string(EdgePublishes)] += len(s.Publishes)
		st.EdgesByType[string(EdgeSubscribes)] += len(s.Subscribes)
		if d := s.Depth(); d > st.MaxDepth {
			st.MaxDepth = d
		}
	}
	for _, v := range st.EdgesByType {
		st.Edges += v
	}

	// A connector is orphaned when nobody produces it or nobody consumes it.
	for _, m := range []map[string]*Connector{g.apis, g.events} {
		for _, c := range m {
			if len(c.Producers) == 0 || len(c.Consumers) == 0 {
				st.Orphans++
			}
		}
	}
	return st
}
