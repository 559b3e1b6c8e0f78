package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
	"github.com/vyuha/vyuha-catalog/internal/filter"
	"github.com/vyuha/vyuha-catalog/internal/graph"
	"github.com/vyuha/vyuha-catalog/internal/view"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{CacheSize: 16})
	require.NoError(t, err)
	e.Load("test", []catalog.ServiceRecord{
		{Name: "A", Group: "core", Tags: []string{"prod"}, PublishedEvents: []string{"E"}},
		{Name: "B", Group: "edge", Tags: []string{"prod", "stale"}, SubscribedEvents: []string{"E"}},
		{Name: "C", Group: "edge", ConsumedAPIs: []string{"api"}},
	})
	return e
}

func TestParsePivot(t *testing.T) {
	tests := []struct {
		in   string
		want graph.NodeRef
	}{
		{"root", graph.NodeRef{Kind: graph.KindGroup}},
		{"ROOT", graph.NodeRef{Kind: graph.KindGroup}},
		{"group:", graph.NodeRef{Kind: graph.KindGroup}},
		{"group:a.b", graph.NodeRef{Kind: graph.KindGroup, ID: "a.b"}},
		{"service:billing", graph.NodeRef{Kind: graph.KindService, ID: "billing"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePivot(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"billing", "api:orders", "event:e", "service:", "host:x"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := ParsePivot(bad)
			assert.ErrorIs(t, err, ErrUnknownPivot)
		})
	}
}

func TestEngine(t *testing.T) {
	t.Run("records are filtered", func(t *testing.T) {
		e := newTestEngine(t)
		out, err := e.Records("tag:prod AND NOT tag:stale")
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "A", out[0].Name)

		all, err := e.Records("")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("syntax errors pass through", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.Graph("colour:red")
		var syntaxErr *filter.SyntaxError
		assert.ErrorAs(t, err, &syntaxErr)
	})

	t.Run("graphs are memoized per snapshot", func(t *testing.T) {
		e := newTestEngine(t)
		g1, err := e.Graph("")
		require.NoError(t, err)
		g2, err := e.Graph("  ")
		require.NoError(t, err)
		assert.Same(t, g1, g2)

		e.Load("reload", []catalog.ServiceRecord{{Name: "X"}})
		g3, err := e.Graph("")
		require.NoError(t, err)
		assert.NotSame(t, g1, g3)
		assert.Equal(t, 1, g3.Stats().Services)
	})

	t.Run("hops over filtered graph", func(t *testing.T) {
		e := newTestEngine(t)
		_, h, err := e.Hops(Query{Pivot: "service:A"})
		require.NoError(t, err)
		assert.Equal(t, graph.Distance(2), h.Of(graph.NodeRef{Kind: graph.KindService, ID: "B"}))

		_, h, err = e.Hops(Query{Pivot: "service:A", Filter: "name:A"})
		require.NoError(t, err)
		assert.False(t, h.Of(graph.NodeRef{Kind: graph.KindService, ID: "B"}).Finite())

		_, h, err = e.Hops(Query{})
		require.NoError(t, err)
		assert.Nil(t, h)
	})

	t.Run("views", func(t *testing.T) {
		e := newTestEngine(t)
		h, err := e.Hierarchy(Query{Pivot: "group:core"}, view.HierarchyOptions{MaxDepth: 1})
		require.NoError(t, err)
		assert.Equal(t, []view.HierarchyEdge{
			{Type: graph.KindEvent, Source: "group:core", Target: "group:edge"},
		}, h.Edges)

		f, err := e.Flow(Query{}, view.FlowOptions{Mode: view.FlowGroup})
		require.NoError(t, err)
		assert.NotEmpty(t, f.Links)

		_, err = e.Flow(Query{Pivot: "nowhere"}, view.FlowOptions{})
		assert.ErrorIs(t, err, ErrUnknownPivot)
	})

	t.Run("load reports problems and notifies listeners", func(t *testing.T) {
		e := newTestEngine(t)
		var got []Snapshot
		e.OnLoad(func(s Snapshot) { got = append(got, s) })

		snap := e.Load("dups", []catalog.ServiceRecord{{Name: "a"}, {Name: "a"}})
		assert.Len(t, snap.Problems, 1)
		require.Len(t, got, 1)
		assert.Equal(t, snap.ID, got[0].ID)
		assert.Equal(t, snap, e.Snapshot())
	})
}

func TestUpdate(t *testing.T) {
	t.Run("concurrent updates all land", func(t *testing.T) {
		e := newTestEngine(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := e.Update("merge", func(current []catalog.ServiceRecord) ([]catalog.ServiceRecord, error) {
					return append(current, catalog.ServiceRecord{Name: fmt.Sprintf("svc-%d", i)}), nil
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		records, err := e.Records("")
		require.NoError(t, err)
		assert.Len(t, records, 23)
		assert.Equal(t, 23, e.Snapshot().Services)
	})

	t.Run("error leaves the catalog unchanged", func(t *testing.T) {
		e := newTestEngine(t)
		before := e.Snapshot()
		boom := errors.New("boom")

		_, err := e.Update("broken", func(current []catalog.ServiceRecord) ([]catalog.ServiceRecord, error) {
			current[0].Name = "mutated"
			return nil, boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, before.ID, e.Snapshot().ID)

		records, _ := e.Records("")
		assert.Equal(t, "A", records[0].Name)
	})
}
