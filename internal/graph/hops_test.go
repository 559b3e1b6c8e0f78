package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
)

func svcRef(name string) NodeRef   { return NodeRef{Kind: KindService, ID: name} }
func groupRef(id string) NodeRef   { return NodeRef{Kind: KindGroup, ID: id} }
func apiRef(name string) NodeRef   { return NodeRef{Kind: KindAPI, ID: name} }
func eventRef(name string) NodeRef { return NodeRef{Kind: KindEvent, ID: name} }

func TestComputeHops(t *testing.T) {
	pubSub := []catalog.ServiceRecord{
		{Name: "A", PublishedEvents: []string{"E"}},
		{Name: "B", SubscribedEvents: []string{"E"}},
	}

	t.Run("publisher pivot reaches subscriber in two hops", func(t *testing.T) {
		g := Build(pubSub, nil)
		h := ComputeHops(g, svcRef("A"), nil)

		assert.True(t, h.Found)
		assert.Equal(t, Distance(0), h.Of(svcRef("A")))
		assert.Equal(t, Distance(1), h.Of(eventRef("E")))
		assert.Equal(t, Distance(2), h.Of(svcRef("B")))
	})

	t.Run("subscriber pivot reaches publisher in two hops", func(t *testing.T) {
		g := Build(pubSub, nil)
		h := ComputeHops(g, svcRef("B"), nil)

		assert.Equal(t, Distance(0), h.Of(svcRef("B")))
		assert.Equal(t, Distance(1), h.Of(eventRef("E")))
		assert.Equal(t, Distance(2), h.Of(svcRef("A")))
	})

	t.Run("api chain accumulates hops", func(t *testing.T) {
		g := Build([]catalog.ServiceRecord{
			{Name: "front", ConsumedAPIs: []string{"orders"}},
			{Name: "orders-svc", ProvidedAPIs: []string{"orders"}, ConsumedAPIs: []string{"stock"}},
			{Name: "stock-svc", ProvidedAPIs: []string{"stock"}},
		}, nil)
		h := ComputeHops(g, svcRef("front"), nil)

		assert.Equal(t, Distance(1), h.Of(apiRef("orders")))
		assert.Equal(t, Distance(2), h.Of(svcRef("orders-svc")))
		assert.Equal(t, Distance(3), h.Of(apiRef("stock")))
		assert.Equal(t, Distance(4), h.Of(svcRef("stock-svc")))
	})

	t.Run("walk never turns back against the flow", func(t *testing.T) {
		// front consumes orders; other also consumes orders. Entering
		// orders from its consumer side leads to providers only, so the
		// sibling consumer stays unreachable.
		g := Build([]catalog.ServiceRecord{
			{Name: "front", ConsumedAPIs: []string{"orders"}},
			{Name: "other", ConsumedAPIs: []string{"orders"}},
			{Name: "orders-svc", ProvidedAPIs: []string{"orders"}},
		}, nil)
		h := ComputeHops(g, svcRef("front"), nil)

		assert.Equal(t, Distance(2), h.Of(svcRef("orders-svc")))
		assert.Equal(t, Infinity, h.Of(svcRef("other")))
	})

	t.Run("co-subscribers of the pivot's event stay unreachable", func(t *testing.T) {
		g := Build([]catalog.ServiceRecord{
			{Name: "S", SubscribedEvents: []string{"E"}},
			{Name: "P", PublishedEvents: []string{"E"}},
			{Name: "S2", SubscribedEvents: []string{"E"}},
		}, nil)
		h := ComputeHops(g, svcRef("S"), nil)

		assert.Equal(t, Distance(1), h.Of(eventRef("E")))
		assert.Equal(t, Distance(2), h.Of(svcRef("P")))
		assert.Equal(t, Infinity, h.Of(svcRef("S2")))
	})

	t.Run("downstream services keep walking downstream", func(t *testing.T) {
		// B is reached as a subscriber of A's event, so what B consumes is
		// upstream of B and not part of A's flow.
		g := Build([]catalog.ServiceRecord{
			{Name: "A", PublishedEvents: []string{"E"}},
			{Name: "B", SubscribedEvents: []string{"E"}, ConsumedAPIs: []string{"X"}, PublishedEvents: []string{"F"}},
			{Name: "X-svc", ProvidedAPIs: []string{"X"}},
			{Name: "C", SubscribedEvents: []string{"F"}},
		}, nil)
		h := ComputeHops(g, svcRef("A"), nil)

		assert.Equal(t, Distance(2), h.Of(svcRef("B")))
		assert.Equal(t, Distance(3), h.Of(eventRef("F")))
		assert.Equal(t, Distance(4), h.Of(svcRef("C")))
		assert.Equal(t, Infinity, h.Of(apiRef("X")))
		assert.Equal(t, Infinity, h.Of(svcRef("X-svc")))
	})

	t.Run("upstream services keep walking upstream", func(t *testing.T) {
		g := Build([]catalog.ServiceRecord{
			{Name: "front", ConsumedAPIs: []string{"orders"}},
			{Name: "orders-svc", ProvidedAPIs: []string{"orders"}, PublishedEvents: []string{"placed"}},
			{Name: "mailer", SubscribedEvents: []string{"placed"}},
		}, nil)
		h := ComputeHops(g, svcRef("front"), nil)

		assert.Equal(t, Distance(2), h.Of(svcRef("orders-svc")))
		assert.Equal(t, Infinity, h.Of(eventRef("placed")))
		assert.Equal(t, Infinity, h.Of(svcRef("mailer")))
	})

	t.Run("unconnected nodes are infinitely far", func(t *testing.T) {
		g := Build([]catalog.ServiceRecord{
			{Name: "A", PublishedEvents: []string{"E"}},
			{Name: "island", ProvidedAPIs: []string{"lonely"}},
		}, nil)
		h := ComputeHops(g, svcRef("A"), nil)

		assert.Equal(t, Infinity, h.Of(svcRef("island")))
		assert.Equal(t, Infinity, h.Of(apiRef("lonely")))
		assert.False(t, h.Of(svcRef("island")).Finite())
	})

	t.Run("group pivot starts from its whole subtree", func(t *testing.T) {
		g := Build([]catalog.ServiceRecord{
			{Name: "inner", Group: "team.core", PublishedEvents: []string{"E"}},
			{Name: "outer", Group: "other", SubscribedEvents: []string{"E"}},
			{Name: "far", Group: "other.deep"},
		}, nil)
		h := ComputeHops(g, groupRef("team"), nil)

		assert.Equal(t, Distance(0), h.Of(svcRef("inner")))
		assert.Equal(t, Distance(0), h.Of(groupRef("team")))
		assert.Equal(t, Distance(0), h.Of(groupRef("team.core")))
		assert.Equal(t, Distance(2), h.Of(svcRef("outer")))
		assert.Equal(t, Distance(2), h.Of(groupRef("other")))
		assert.Equal(t, Infinity, h.Of(groupRef("other.deep")))
		assert.Equal(t, Distance(0), h.Of(groupRef("")))
	})

	t.Run("group distance is the minimum of its services", func(t *testing.T) {
		g := Build([]catalog.ServiceRecord{
			{Name: "p", PublishedEvents: []string{"E1"}},
			{Name: "near", Group: "g", SubscribedEvents: []string{"E1"}, PublishedEvents: []string{"E2"}},
			{Name: "far", Group: "g.sub", SubscribedEvents: []string{"E2"}},
		}, nil)
		h := ComputeHops(g, svcRef("p"), nil)

		assert.Equal(t, Distance(2), h.Of(groupRef("g")))
		assert.Equal(t, Distance(4), h.Of(groupRef("g.sub")))
	})

	t.Run("unknown pivot leaves every node unreachable", func(t *testing.T) {
		g := Build(pubSub, nil)
		h := ComputeHops(g, svcRef("nope"), nil)

		assert.False(t, h.Found)
		assert.Equal(t, 0, h.Reached())
		assert.Equal(t, Infinity, h.Of(svcRef("A")))
	})

	t.Run("connector pivots are rejected", func(t *testing.T) {
		g := Build(pubSub, nil)
		h := ComputeHops(g, eventRef("E"), nil)
		assert.False(t, h.Found)
	})

	t.Run("nil result is safe", func(t *testing.T) {
		var h *Hops
		assert.Equal(t, Infinity, h.Of(svcRef("A")))
		assert.False(t, h.Related(svcRef("A")))
	})
}

func TestIsDirectlyRelated(t *testing.T) {
	tests := []struct {
		kind Kind
		d    Distance
		want bool
	}{
		{KindService, 0, true},
		{KindService, 2, true},
		{KindService, 4, false},
		{KindGroup, 2, true},
		{KindGroup, Infinity, false},
		{KindAPI, 1, true},
		{KindAPI, 3, false},
		{KindEvent, 1, true},
		{KindEvent, 2, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsDirectlyRelated(tt.kind, tt.d), "%s at %s", tt.kind, tt.d)
	}
}

func TestHopsEntries(t *testing.T) {
	g := Build([]catalog.ServiceRecord{
		{Name: "A", PublishedEvents: []string{"E"}},
		{Name: "B", SubscribedEvents: []string{"E"}},
		{Name: "C"},
	}, nil)
	h := ComputeHops(g, svcRef("A"), nil)

	entries := h.Entries(g)
	require.Len(t, entries, 5)
	assert.Equal(t, Distance(0), entries[0].Distance)
	assert.Equal(t, svcRef("C"), entries[len(entries)-1].Node)

	data, err := json.Marshal(entries[len(entries)-1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"node":{"kind":"service","id":"C"},"distance":null,"related":false}`, string(data))
}
