package graph

import (
	"log/slog"
	"strings"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
)

// Build turns a flat record list into a Graph. It runs in two phases: all
// groups are created first, then services are attached and linked to their
// connectors. Nothing here returns an error; anomalies are reported through
// logger instead:
//
//   - a group identifier with empty or padded segments ("a..b", " a") is
//     resolved to its trimmed form ("a.b", "a") and a warning names both;
//   - an identifier with no segments at all attaches the service to the root;
//   - a second record reusing a service name is skipped, since names key the
//     service registry. catalog.Validate reports the same record up front.
//
// The records are copied, so later changes to the input slice do not leak
// into the snapshot.
func Build(records []catalog.ServiceRecord, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	g := newGraph()

	owned := make([]catalog.ServiceRecord, len(records))
	copy(owned, records)

	// Phase 1: groups.
	for i := range owned {
		if owned[i].Group != "" {
			g.ensureGroup(owned[i].Group)
		}
	}

	// Phase 2: services and connector edges.
	for i := range owned {
		rec := &owned[i]
		if _, dup := g.services[rec.Name]; dup {
			logger.Warn("graph: duplicate service name, record skipped",
				"service", rec.Name, "index", i)
			continue
		}

		grp := g.resolveGroup(rec.Group)
		switch {
		case grp == nil:
			logger.Warn("graph: group identifier has no segments, attaching to root",
				"service", rec.Name, "group", rec.Group)
			grp = g.Root
		case grp.Identifier != rec.Group:
			logger.Warn("graph: group identifier normalised",
				"service", rec.Name, "group", rec.Group, "resolved", grp.Identifier)
		}

		svc := &Service{Name: rec.Name, Group: grp, Record: rec}
		grp.Services = append(grp.Services, svc)
		g.services[svc.Name] = svc
		g.serviceOrder = append(g.serviceOrder, svc)

		g.linkAll(svc, EdgeProvides, rec.ProvidedAPIs)
		g.linkAll(svc, EdgeConsumes, rec.ConsumedAPIs)
		g.linkAll(svc, EdgePublishes, rec.PublishedEvents)
		g.linkAll(svc, EdgeSubscribes, rec.SubscribedEvents)
	}

	logger.Debug("graph: built",
		"services", len(g.services),
		"groups", len(g.groups)-1,
		"apis", len(g.apis),
		"events", len(g.events),
	)
	return g
}

// splitIdentifier splits a dotted group path, dropping empty segments.
func splitIdentifier(identifier string) []string {
	parts := strings.Split(identifier, ".")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ensureGroup walks the path top-down, creating missing groups and reusing
// existing ancestors. It returns nil when the path has no segments.
func (g *Graph) ensureGroup(identifier string) *Group {
	segments := splitIdentifier(identifier)
	if len(segments) == 0 {
		return nil
	}

	cur := g.Root
	for _, seg := range segments {
		child, ok := cur.Children[seg]
		if !ok {
			child = newGroup(seg, cur)
			cur.Children[seg] = child
			g.groups[child.Identifier] = child
		}
		cur = child
	}
	return cur
}

// resolveGroup maps a record's group field to its group. An empty field
// means the root; nil means the identifier was unusable.
func (g *Graph) resolveGroup(identifier string) *Group {
	if identifier == "" {
		return g.Root
	}
	segments := splitIdentifier(identifier)
	if len(segments) == 0 {
		return nil
	}
	if grp, ok := g.groups[strings.Join(segments, ".")]; ok {
		return grp
	}
	// Phase 1 creates every referenced group; this only runs if a caller
	// bypassed it.
	return g.ensureGroup(identifier)
}

// linkAll connects svc to every named connector, creating connectors on
// first use. Repeated names within one list are linked once.
func (g *Graph) linkAll(svc *Service, edge EdgeType, names []string) {
	kind := edge.connectorKind()
	registry := g.apis
	if kind == KindEvent {
		registry = g.events
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		c, ok := registry[name]
		if !ok {
			c = &Connector{Kind: kind, Name: name}
			registry[name] = c
		}

		if edge.producing() {
			c.Producers = append(c.Producers, svc)
		} else {
			c.Consumers = append(c.Consumers, svc)
		}
		switch edge {
		case EdgeProvides:
			svc.Provides = append(svc.Provides, c)
		case EdgeConsumes:
			svc.Consumes = append(svc.Consumes, c)
		case EdgePublishes:
			svc.Publishes = append(svc.Publishes, c)
		case EdgeSubscribes:
			svc.Subscribes = append(svc.Subscribes, c)
		}
	}
}
