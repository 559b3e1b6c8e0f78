package graph

import "sort"

// ---------------------------------------------------------------------------
// Edge types
// ---------------------------------------------------------------------------

// EdgeType names the relationship between a service and a connector.
type EdgeType string

const (
	EdgeProvides   EdgeType = "provides"
	EdgeConsumes   EdgeType = "consumes"
	EdgePublishes  EdgeType = "publishes"
	EdgeSubscribes EdgeType = "subscribes"
)

// connectorKind returns the connector kind an edge type attaches to.
func (t EdgeType) connectorKind() Kind {
	switch t {
	case EdgeProvides, EdgeConsumes:
		return KindAPI
	default:
		return KindEvent
	}
}

// producing reports whether the service is on the producing side.
func (t EdgeType) producing() bool {
	return t == EdgeProvides || t == EdgePublishes
}

// ---------------------------------------------------------------------------
// Dependency
// ---------------------------------------------------------------------------

// Dependency is one service-to-service data flow through a connector, in
// flow direction: APIs flow consumer -> provider, events flow
// publisher -> subscriber.
type Dependency struct {
	Kind      Kind
	Connector *Connector
	Source    *Service
	Target    *Service
}

// Dependencies enumerates every flow in the graph, ordered by connector
// kind, connector name, source name and target name.
func (g *Graph) Dependencies() []Dependency {
	var out []Dependency
	for _, api := range g.APIs() {
		for _, consumer := range api.Consumers {
			for _, provider := range api.Producers {
				out = append(out, Dependency{Kind: KindAPI, Connector: api, Source: consumer, Target: provider})
			}
		}
	}
	for _, ev := range g.Events() {
		for _, publisher := range ev.Producers {
			for _, subscriber := range ev.Consumers {
				out = append(out, Dependency{Kind: KindEvent, Connector: ev, Source: publisher, Target: subscriber})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Connector.Name != b.Connector.Name {
			return a.Connector.Name < b.Connector.Name
		}
		if a.Source.Name != b.Source.Name {
			return a.Source.Name < b.Source.Name
		}
		return a.Target.Name < b.Target.Name
	})
	return out
}
