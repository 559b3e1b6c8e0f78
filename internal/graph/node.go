package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
)

// ---------------------------------------------------------------------------
// Node kinds
// ---------------------------------------------------------------------------

// Kind discriminates the four node variants of the dependency graph.
type Kind string

const (
	KindGroup   Kind = "group"
	KindService Kind = "service"
	KindAPI     Kind = "api"
	KindEvent   Kind = "event"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindGroup, KindService, KindAPI, KindEvent:
		return true
	default:
		return false
	}
}

// IsConnector reports whether k names an API or Event kind.
func (k Kind) IsConnector() bool {
	return k == KindAPI || k == KindEvent
}

// NodeRef identifies any node of a graph: a group by identifier (empty for
// the root group), a service by name, a connector by name within its kind.
type NodeRef struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// String renders the ref as "kind:id", the same form view node IDs use.
func (r NodeRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// ParseNodeRef is the inverse of NodeRef.String.
func ParseNodeRef(s string) (NodeRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || !Kind(kind).Valid() {
		return NodeRef{}, fmt.Errorf("graph: malformed node ref %q", s)
	}
	return NodeRef{Kind: Kind(kind), ID: id}, nil
}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// Group is a dot-path addressable bucket of services and child groups. The
// root group has an empty Identifier and a nil Parent. Parent is a
// non-owning back reference used only for upward walks.
type Group struct {
	Name       string
	Identifier string
	Parent     *Group
	Children   map[string]*Group
	Services   []*Service
}

func newGroup(name string, parent *Group) *Group {
	g := &Group{
		Name:     name,
		Parent:   parent,
		Children: make(map[string]*Group),
	}
	if parent != nil {
		if parent.IsRoot() {
			g.Identifier = name
		} else {
			g.Identifier = parent.Identifier + "." + name
		}
	}
	return g
}

// IsRoot reports whether g is the root group.
func (g *Group) IsRoot() bool { return g.Parent == nil }

// Ref returns the group's node reference.
func (g *Group) Ref() NodeRef { return NodeRef{Kind: KindGroup, ID: g.Identifier} }

// Depth is 0 for the root and one more per path segment.
func (g *Group) Depth() int {
	if g.IsRoot() {
		return 0
	}
	return strings.Count(g.Identifier, ".") + 1
}

// SortedChildren returns the child groups ordered by name.
func (g *Group) SortedChildren() []*Group {
	out := make([]*Group, 0, len(g.Children))
	for _, c := range g.Children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Ancestors returns the chain from g's parent up to and including the root.
func (g *Group) Ancestors() []*Group {
	var out []*Group
	for p := g.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// AllServices returns every service in g's subtree, depth first, children
// in name order.
func (g *Group) AllServices() []*Service {
	var out []*Service
	var walk func(*Group)
	walk = func(cur *Group) {
		out = append(out, cur.Services...)
		for _, c := range cur.SortedChildren() {
			walk(c)
		}
	}
	walk(g)
	return out
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service is the graph node derived from one ServiceRecord. Connector
// slices hold references only; the Graph owns the connectors.
type Service struct {
	Name       string
	Group      *Group
	Record     *catalog.ServiceRecord
	Provides   []*Connector // APIs
	Consumes   []*Connector // APIs
	Publishes  []*Connector // Events
	Subscribes []*Connector // Events
}

// Ref returns the service's node reference.
func (s *Service) Ref() NodeRef { return NodeRef{Kind: KindService, ID: s.Name} }

// Depth is one deeper than the owning group.
func (s *Service) Depth() int { return s.Group.Depth() + 1 }

// Produced returns the connectors s is on the producing side of: provided
// APIs followed by published events.
func (s *Service) Produced() []*Connector {
	out := make([]*Connector, 0, len(s.Provides)+len(s.Publishes))
	out = append(out, s.Provides...)
	return append(out, s.Publishes...)
}

// Consumed returns the connectors s is on the consuming side of: consumed
// APIs followed by subscribed events.
func (s *Service) Consumed() []*Connector {
	out := make([]*Connector, 0, len(s.Consumes)+len(s.Subscribes))
	out = append(out, s.Consumes...)
	return append(out, s.Subscribes...)
}

// ---------------------------------------------------------------------------
// Connector
// ---------------------------------------------------------------------------

// Connector is an API or an Event. Producers are the providing (API) or
// publishing (Event) services, Consumers the consuming or subscribing ones.
type Connector struct {
	Kind      Kind
	Name      string
	Producers []*Service
	Consumers []*Service
}

// Ref returns the connector's node reference.
func (c *Connector) Ref() NodeRef { return NodeRef{Kind: c.Kind, ID: c.Name} }

// ProvidedBy is the API spelling of Producers.
func (c *Connector) ProvidedBy() []*Service { return c.Producers }

// ConsumedBy is the API spelling of Consumers.
func (c *Connector) ConsumedBy() []*Service { return c.Consumers }

// PublishedBy is the Event spelling of Producers.
func (c *Connector) PublishedBy() []*Service { return c.Producers }

// SubscribedBy is the Event spelling of Consumers.
func (c *Connector) SubscribedBy() []*Service { return c.Consumers }
