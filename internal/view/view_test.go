package view

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
	"github.com/vyuha/vyuha-catalog/internal/graph"
)

// shop is a small catalog spread over three levels of groups.
func shop() []catalog.ServiceRecord {
	return []catalog.ServiceRecord{
		{Name: "web", Group: "front", ConsumedAPIs: []string{"orders", "cards"}},
		{Name: "orders", Group: "back.orders", ProvidedAPIs: []string{"orders"}, PublishedEvents: []string{"order-placed"}},
		{Name: "cards", Group: "back.payments.cards", ProvidedAPIs: []string{"cards"}},
		{Name: "ledger", Group: "back.payments.ledger", SubscribedEvents: []string{"order-placed"}},
		{Name: "mailer", SubscribedEvents: []string{"order-placed"}},
	}
}

func nodeIDs(h *Hierarchy) []string {
	out := make([]string, len(h.Nodes))
	for i, n := range h.Nodes {
		out[i] = n.ID
	}
	return out
}

func TestProjectHierarchy(t *testing.T) {
	g := graph.Build(shop(), nil)

	t.Run("full depth draws every node and dependency", func(t *testing.T) {
		h, err := ProjectHierarchy(g, nil, HierarchyOptions{MaxDepth: 10})
		require.NoError(t, err)

		assert.Equal(t, []string{
			"group:back",
			"group:back.orders",
			"service:orders",
			"group:back.payments",
			"group:back.payments.cards",
			"service:cards",
			"group:back.payments.ledger",
			"service:ledger",
			"group:front",
			"service:web",
			"service:mailer",
		}, nodeIDs(h))

		assert.ElementsMatch(t, []HierarchyEdge{
			{Type: graph.KindAPI, Source: "service:web", Target: "service:orders"},
			{Type: graph.KindAPI, Source: "service:web", Target: "service:cards"},
			{Type: graph.KindEvent, Source: "service:orders", Target: "service:ledger"},
			{Type: graph.KindEvent, Source: "service:orders", Target: "service:mailer"},
		}, h.Edges)
	})

	t.Run("parents reference drawn groups", func(t *testing.T) {
		h, err := ProjectHierarchy(g, nil, HierarchyOptions{MaxDepth: 10})
		require.NoError(t, err)
		byID := make(map[string]HierarchyNode)
		for _, n := range h.Nodes {
			byID[n.ID] = n
		}
		assert.Equal(t, "", byID["group:back"].Parent)
		assert.Equal(t, "", byID["service:mailer"].Parent)
		assert.Equal(t, "group:back.payments", byID["group:back.payments.cards"].Parent)
		assert.Equal(t, "group:back.payments.cards", byID["service:cards"].Parent)
	})

	t.Run("deep endpoints are re-rooted and deduplicated", func(t *testing.T) {
		h, err := ProjectHierarchy(g, nil, HierarchyOptions{MaxDepth: 1})
		require.NoError(t, err)

		assert.Equal(t, []string{"group:back", "group:front", "service:mailer"}, nodeIDs(h))
		// web -> orders and web -> cards both collapse to front -> back.
		// orders -> ledger collapses onto back itself and is dropped.
		assert.Equal(t, []HierarchyEdge{
			{Type: graph.KindAPI, Source: "group:front", Target: "group:back"},
			{Type: graph.KindEvent, Source: "group:back", Target: "service:mailer"},
		}, h.Edges)
	})

	t.Run("identical edges from two records are emitted once", func(t *testing.T) {
		g := graph.Build([]catalog.ServiceRecord{
			{Name: "p", ProvidedAPIs: []string{"x", "y"}},
			{Name: "c", ConsumedAPIs: []string{"x", "y"}},
		}, nil)
		h, err := ProjectHierarchy(g, nil, HierarchyOptions{MaxDepth: 1})
		require.NoError(t, err)
		assert.Equal(t, []HierarchyEdge{{Type: graph.KindAPI, Source: "service:c", Target: "service:p"}}, h.Edges)
	})

	t.Run("depth zero draws nothing", func(t *testing.T) {
		h, err := ProjectHierarchy(g, nil, HierarchyOptions{MaxDepth: 0})
		require.NoError(t, err)
		assert.Empty(t, h.Nodes)
		assert.Empty(t, h.Edges)
	})

	t.Run("groups only", func(t *testing.T) {
		h, err := ProjectHierarchy(g, nil, HierarchyOptions{MaxDepth: 2, OmitServices: true})
		require.NoError(t, err)
		for _, n := range h.Nodes {
			assert.Equal(t, graph.KindGroup, n.Type)
		}
		assert.Contains(t, h.Edges, HierarchyEdge{Type: graph.KindAPI, Source: "group:front", Target: "group:back.orders"})
		// mailer sits in the root, which is not drawn.
		for _, e := range h.Edges {
			assert.NotEqual(t, "group:", e.Target)
		}
	})

	t.Run("negative depth is rejected", func(t *testing.T) {
		_, err := ProjectHierarchy(g, nil, HierarchyOptions{MaxDepth: -1})
		assert.Error(t, err)
	})

	t.Run("hops annotate nodes", func(t *testing.T) {
		hops := graph.ComputeHops(g, graph.NodeRef{Kind: graph.KindService, ID: "web"}, nil)
		h, err := ProjectHierarchy(g, hops, HierarchyOptions{MaxDepth: 10})
		require.NoError(t, err)
		for _, n := range h.Nodes {
			require.NotNil(t, n.Hops, n.ID)
			require.NotNil(t, n.Related, n.ID)
			if n.ID == "service:orders" {
				assert.Equal(t, graph.Distance(2), *n.Hops)
				assert.True(t, *n.Related)
			}
		}
	})
}

func TestDiagonalRelatives(t *testing.T) {
	g := graph.Build(shop(), nil)
	pivot, ok := g.Group("back.payments")
	require.True(t, ok)

	refs := DiagonalRelatives(pivot)
	var ids []string
	for _, r := range refs {
		ids = append(ids, r.String())
	}
	assert.Equal(t, []string{
		"group:back.payments.cards",
		"group:back.payments.ledger",
		"group:back.orders",
		"group:front",
		"service:mailer",
	}, ids)
}

func TestProjectFlow(t *testing.T) {
	g := graph.Build(shop(), nil)

	t.Run("flat mode links services through connectors", func(t *testing.T) {
		f, err := ProjectFlow(g, nil, FlowOptions{Mode: FlowFlat})
		require.NoError(t, err)

		assert.Contains(t, f.Links, FlowLink{Source: "Left:service:orders", Target: "Middle:api:orders", Value: 1})
		assert.Contains(t, f.Links, FlowLink{Source: "Middle:api:orders", Target: "Right:service:web", Value: 1})
		assert.Contains(t, f.Links, FlowLink{Source: "Middle:event:order-placed", Target: "Right:service:mailer", Value: 1})
		assert.Len(t, f.Links, 7)

		for i := 1; i < len(f.Nodes); i++ {
			assert.LessOrEqual(t, f.Nodes[i-1].Position.order(), f.Nodes[i].Position.order())
		}
	})

	t.Run("flat scope restricts services", func(t *testing.T) {
		f, err := ProjectFlow(g, nil, FlowOptions{Mode: FlowFlat, Scope: "back.payments"})
		require.NoError(t, err)
		for _, n := range f.Nodes {
			if n.Kind == graph.KindService {
				assert.Contains(t, []string{"cards", "ledger"}, n.Label)
			}
		}
	})

	t.Run("group mode collapses into diagonal relatives", func(t *testing.T) {
		f, err := ProjectFlow(g, nil, FlowOptions{Mode: FlowGroup, Group: "back.payments"})
		require.NoError(t, err)

		pivot, _ := g.Group("back.payments")
		allowed := make(map[string]bool)
		for _, r := range DiagonalRelatives(pivot) {
			allowed[r.String()] = true
		}
		for _, n := range f.Nodes {
			if n.Kind.IsConnector() {
				assert.Equal(t, Middle, n.Position)
				continue
			}
			ref := strings.SplitN(n.ID, ":", 2)[1]
			assert.True(t, allowed[ref], "unexpected unit %s", n.ID)
		}
		assert.Contains(t, f.Links, FlowLink{Source: "Middle:api:cards", Target: "Right:group:front", Value: 1})
		assert.Contains(t, f.Links, FlowLink{Source: "Left:group:back.orders", Target: "Middle:event:order-placed", Value: 1})
	})

	t.Run("parallel links are merged", func(t *testing.T) {
		g := graph.Build([]catalog.ServiceRecord{
			{Name: "a", Group: "team", ConsumedAPIs: []string{"x"}},
			{Name: "b", Group: "team", ConsumedAPIs: []string{"x"}},
			{Name: "p", ProvidedAPIs: []string{"x"}},
		}, nil)
		f, err := ProjectFlow(g, nil, FlowOptions{Mode: FlowGroup})
		require.NoError(t, err)
		assert.Contains(t, f.Links, FlowLink{Source: "Middle:api:x", Target: "Right:group:team", Value: 2})
	})

	t.Run("unrelated links are grayed out", func(t *testing.T) {
		hops := graph.ComputeHops(g, graph.NodeRef{Kind: graph.KindService, ID: "cards"}, nil)
		f, err := ProjectFlow(g, hops, FlowOptions{Mode: FlowFlat})
		require.NoError(t, err)
		for _, l := range f.Links {
			switch {
			case strings.Contains(l.Source, "order-placed") && strings.HasSuffix(l.Target, ":mailer"):
				assert.Equal(t, NeutralColor, l.ColorOverride)
			case l.Source == "Left:service:cards":
				assert.Empty(t, l.ColorOverride)
			}
		}
	})

	t.Run("bad options", func(t *testing.T) {
		_, err := ProjectFlow(g, nil, FlowOptions{Mode: "sideways"})
		assert.Error(t, err)
		_, err = ProjectFlow(g, nil, FlowOptions{Mode: FlowGroup, Group: "nope"})
		assert.Error(t, err)
		_, err = ProjectFlow(g, nil, FlowOptions{Scope: "nope"})
		assert.Error(t, err)
	})
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, ColorFor("billing"), ColorFor("billing"))
	// "a" is 97, 97 % 10 = 7.
	assert.Equal(t, Palette[7], ColorFor("a"))
	assert.Equal(t, Palette[0], ColorFor(""))
	assert.Contains(t, Palette, ColorFor("日本"))
}
