package graph

import (
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strconv"
)

// ---------------------------------------------------------------------------
// Distance
// ---------------------------------------------------------------------------

// Distance is a hop count from a pivot. Services and groups sit at even
// distances, connectors at odd ones.
type Distance int

// Infinity marks a node the pivot cannot reach.
const Infinity Distance = math.MaxInt32

// Finite reports whether the node was reached.
func (d Distance) Finite() bool { return d != Infinity }

func (d Distance) String() string {
	if !d.Finite() {
		return "inf"
	}
	return strconv.Itoa(int(d))
}

// MarshalJSON encodes Infinity as null.
func (d Distance) MarshalJSON() ([]byte, error) {
	if !d.Finite() {
		return []byte("null"), nil
	}
	return json.Marshal(int(d))
}

// Relatedness thresholds. A node within these distances of the pivot is
// "directly related" and rendered in full color.
const (
	relatedServiceHops   Distance = 2
	relatedConnectorHops Distance = 1
)

// IsDirectlyRelated classifies a node of the given kind at distance d.
func IsDirectlyRelated(kind Kind, d Distance) bool {
	switch kind {
	case KindService, KindGroup:
		return d <= relatedServiceHops
	case KindAPI, KindEvent:
		return d <= relatedConnectorHops
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Hops
// ---------------------------------------------------------------------------

// Hops is the result of a distance computation from one pivot. A nil *Hops
// is valid and reports every node as unreachable.
type Hops struct {
	Pivot NodeRef
	Found bool
	dist  map[NodeRef]Distance
}

// Of returns the distance of ref from the pivot.
func (h *Hops) Of(ref NodeRef) Distance {
	if h == nil {
		return Infinity
	}
	if d, ok := h.dist[ref]; ok {
		return d
	}
	return Infinity
}

// Related reports whether ref is directly related to the pivot.
func (h *Hops) Related(ref NodeRef) bool {
	return IsDirectlyRelated(ref.Kind, h.Of(ref))
}

// Reached returns the number of nodes with a finite distance.
func (h *Hops) Reached() int {
	if h == nil {
		return 0
	}
	return len(h.dist)
}

// HopEntry is one row of a serialised Hops result.
type HopEntry struct {
	Node     NodeRef  `json:"node"`
	Distance Distance `json:"distance"`
	Related  bool     `json:"related"`
}

// Entries lists every node of g with its distance, ordered by distance,
// then kind, then ID. Unreached nodes come last.
func (h *Hops) Entries(g *Graph) []HopEntry {
	var refs []NodeRef
	refs = append(refs, g.Root.Ref())
	for _, grp := range g.Groups() {
		refs = append(refs, grp.Ref())
	}
	for _, s := range g.Services() {
		refs = append(refs, s.Ref())
	}
	for _, c := range g.APIs() {
		refs = append(refs, c.Ref())
	}
	for _, c := range g.Events() {
		refs = append(refs, c.Ref())
	}

	out := make([]HopEntry, 0, len(refs))
	for _, ref := range refs {
		d := h.Of(ref)
		out = append(out, HopEntry{Node: ref, Distance: d, Related: IsDirectlyRelated(ref.Kind, d)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Node.Kind != b.Node.Kind {
			return a.Node.Kind < b.Node.Kind
		}
		return a.Node.ID < b.Node.ID
	})
	return out
}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// side identifies a connector together with the side it was entered from.
type side struct {
	ref          NodeRef
	fromProducer bool
}

// direction is the flow direction a service was discovered through. Pivot
// services walk both ways; every other service keeps walking the way it
// was reached.
type direction uint8

const (
	downstream direction = 1 << iota // reached from a producer, continues to consumers
	upstream                         // reached from a consumer, continues to producers
	both       = downstream | upstream
)

type queued struct {
	svc *Service
	dir direction
}

// ComputeHops measures the directed flow distance from pivot to every node.
// The pivot must be a service or a group; a group pivot starts from every
// service in its subtree. An unknown pivot is reported through logger and
// yields a result in which every node is unreachable.
//
// The walk follows data flow only. A service reached from a connector's
// producing side continues through what it produces, one reached from the
// consuming side continues through what it consumes. Group distances are
// the minimum over their subtree.
func ComputeHops(g *Graph, pivot NodeRef, logger *slog.Logger) *Hops {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hops{Pivot: pivot, dist: make(map[NodeRef]Distance)}

	start, ok := g.pivotServices(pivot)
	if !ok {
		logger.Warn("graph: hops pivot not found, distances left unassigned", "pivot", pivot.String())
		return h
	}
	h.Found = true

	queue := make([]queued, 0, len(start))
	for _, s := range start {
		if _, seen := h.dist[s.Ref()]; seen {
			continue
		}
		h.dist[s.Ref()] = 0
		queue = append(queue, queued{svc: s, dir: both})
	}

	expanded := make(map[side]bool)
	visit := func(c *Connector, d Distance, fromProducer bool) {
		if _, seen := h.dist[c.Ref()]; !seen {
			h.dist[c.Ref()] = d
		}
		key := side{ref: c.Ref(), fromProducer: fromProducer}
		if expanded[key] {
			return
		}
		expanded[key] = true

		next, dir := c.Producers, upstream
		if fromProducer {
			next, dir = c.Consumers, downstream
		}
		for _, s := range next {
			if _, seen := h.dist[s.Ref()]; seen {
				continue
			}
			h.dist[s.Ref()] = d + 1
			queue = append(queue, queued{svc: s, dir: dir})
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := h.dist[cur.svc.Ref()]

		if cur.dir&downstream != 0 {
			for _, c := range cur.svc.Produced() {
				visit(c, d+1, true)
			}
		}
		if cur.dir&upstream != 0 {
			for _, c := range cur.svc.Consumed() {
				visit(c, d+1, false)
			}
		}
	}

	h.assignGroups(g.Root)
	logger.Debug("graph: hops computed", "pivot", pivot.String(), "reached", len(h.dist))
	return h
}

// pivotServices resolves the pivot to its starting service set.
func (g *Graph) pivotServices(pivot NodeRef) ([]*Service, bool) {
	switch pivot.Kind {
	case KindService:
		s, ok := g.Service(pivot.ID)
		if !ok {
			return nil, false
		}
		return []*Service{s}, true
	case KindGroup:
		grp, ok := g.Group(pivot.ID)
		if !ok {
			return nil, false
		}
		return grp.AllServices(), true
	case KindAPI, KindEvent:
		return nil, false
	default:
		return nil, false
	}
}

// assignGroups computes group distances bottom-up and returns grp's.
func (h *Hops) assignGroups(grp *Group) Distance {
	best := Infinity
	for _, s := range grp.Services {
		if d := h.Of(s.Ref()); d < best {
			best = d
		}
	}
	for _, child := range grp.Children {
		if d := h.assignGroups(child); d < best {
			best = d
		}
	}
	if best.Finite() {
		h.dist[grp.Ref()] = best
	}
	return best
}
