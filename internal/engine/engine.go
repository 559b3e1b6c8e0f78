// Package engine is the single entry point the server and the CLI use to
// build graphs, compute hops and project views. It owns the current record
// set and memoizes every derived structure per snapshot.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
	"github.com/vyuha/vyuha-catalog/internal/filter"
	"github.com/vyuha/vyuha-catalog/internal/graph"
	"github.com/vyuha/vyuha-catalog/internal/metrics"
	"github.com/vyuha/vyuha-catalog/internal/view"
)

// ErrUnknownPivot is returned for pivot strings that do not name a service
// or a group.
var ErrUnknownPivot = errors.New("engine: unknown pivot")

// DefaultCacheSize is the number of memoized results kept when Config
// leaves CacheSize at zero.
const DefaultCacheSize = 256

// Config configures an Engine.
type Config struct {
	CacheSize int
	Logger    *slog.Logger
}

// Snapshot describes one loaded record set.
type Snapshot struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Services int               `json:"services"`
	LoadedAt time.Time         `json:"loaded_at"`
	Problems []catalog.Problem `json:"problems,omitempty"`
}

// Query selects the records and pivot a computation runs on. An empty
// Filter keeps every record; an empty Pivot means no pivot.
type Query struct {
	Filter string
	Pivot  string
}

type cacheKey struct {
	snapshot string
	stage    string
	filter   string
	arg      string
}

// Engine holds the current catalog. It is safe for concurrent use.
type Engine struct {
	logger *slog.Logger
	cache  *lru.Cache[cacheKey, any]

	// writeMu serialises Load and Update; mu guards the fields below it.
	writeMu  sync.Mutex
	mu       sync.RWMutex
	records  []catalog.ServiceRecord
	snapshot Snapshot

	listenersMu sync.Mutex
	listeners   []func(Snapshot)
}

// New creates an empty engine.
func New(cfg Config) (*Engine, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, any](size)
	if err != nil {
		return nil, fmt.Errorf("engine: create cache: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{logger: logger, cache: cache}
	e.snapshot = Snapshot{ID: uuid.New().String(), Source: "empty", LoadedAt: time.Now().UTC()}
	return e, nil
}

// ============================ SNAPSHOTS ===================================

// Load replaces the record set. Validation problems are reported on the
// snapshot and logged but never reject the load; the graph builder skips
// the records it cannot use.
func (e *Engine) Load(source string, records []catalog.ServiceRecord) Snapshot {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.load(source, records)
}

// Update derives the next record set from the current one and loads it.
// Updates and loads run one at a time, so a read-modify-load cycle never
// loses a change made concurrently. fn receives a copy it may modify; if it
// returns an error the catalog is left unchanged and the error is returned.
func (e *Engine) Update(source string, fn func(current []catalog.ServiceRecord) ([]catalog.ServiceRecord, error)) (Snapshot, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	current := e.read().records
	working := make([]catalog.ServiceRecord, len(current))
	copy(working, current)

	next, err := fn(working)
	if err != nil {
		return Snapshot{}, err
	}
	return e.load(source, next), nil
}

func (e *Engine) load(source string, records []catalog.ServiceRecord) Snapshot {
	owned := make([]catalog.ServiceRecord, len(records))
	copy(owned, records)

	snap := Snapshot{
		ID:       uuid.New().String(),
		Source:   source,
		Services: len(owned),
		LoadedAt: time.Now().UTC(),
		Problems: catalog.Validate(owned),
	}
	for _, p := range snap.Problems {
		e.logger.Warn("engine: record problem", "source", source, "problem", p.String())
	}

	e.mu.Lock()
	e.records = owned
	e.snapshot = snap
	e.mu.Unlock()

	e.cache.Purge()
	metrics.CatalogServices.Set(float64(len(owned)))
	e.logger.Info("engine: catalog loaded", "snapshot", snap.ID, "source", source, "services", len(owned))

	e.listenersMu.Lock()
	listeners := append([]func(Snapshot){}, e.listeners...)
	e.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

// OnLoad registers fn to be called after every Load.
func (e *Engine) OnLoad(fn func(Snapshot)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Snapshot returns the description of the current record set.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// ============================ COMPUTATIONS ================================

// memo returns the cached value for key or computes and stores it.
func memo[T any](e *Engine, key cacheKey, compute func() (T, error)) (T, error) {
	if v, ok := e.cache.Get(key); ok {
		metrics.CacheResult(key.stage, true)
		return v.(T), nil
	}
	metrics.CacheResult(key.stage, false)

	start := time.Now()
	v, err := compute()
	if err != nil {
		return v, err
	}
	metrics.ObserveStage(key.stage, start)
	e.cache.Add(key, v)
	return v, nil
}

// state is one consistent read of the engine state. Every derived value of a
// computation is keyed by the same snapshot ID it was computed from.
type state struct {
	records []catalog.ServiceRecord
	snap    string
}

func (e *Engine) read() state {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return state{records: e.records, snap: e.snapshot.ID}
}

// Records returns the records matching filterQuery in record order.
// Syntax problems come back as *filter.SyntaxError.
func (e *Engine) Records(filterQuery string) ([]catalog.ServiceRecord, error) {
	return e.filtered(e.read(), filterQuery)
}

func (e *Engine) filtered(st state, filterQuery string) ([]catalog.ServiceRecord, error) {
	key := cacheKey{snapshot: st.snap, stage: metrics.StageFilter, filter: normalize(filterQuery)}
	return memo(e, key, func() ([]catalog.ServiceRecord, error) {
		expr, err := filter.Parse(filterQuery)
		if err != nil {
			return nil, err
		}
		if expr == nil {
			return st.records, nil
		}
		return filter.Apply(expr, st.records), nil
	})
}

// Graph builds the graph of the records matching filterQuery.
func (e *Engine) Graph(filterQuery string) (*graph.Graph, error) {
	return e.graph(e.read(), filterQuery)
}

func (e *Engine) graph(st state, filterQuery string) (*graph.Graph, error) {
	records, err := e.filtered(st, filterQuery)
	if err != nil {
		return nil, err
	}
	key := cacheKey{snapshot: st.snap, stage: metrics.StageBuild, filter: normalize(filterQuery)}
	return memo(e, key, func() (*graph.Graph, error) {
		return graph.Build(records, e.logger), nil
	})
}

// Hops computes distances from q.Pivot over the filtered graph. A query
// without a pivot yields nil hops.
func (e *Engine) Hops(q Query) (*graph.Graph, *graph.Hops, error) {
	return e.hops(e.read(), q)
}

func (e *Engine) hops(st state, q Query) (*graph.Graph, *graph.Hops, error) {
	g, err := e.graph(st, q.Filter)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(q.Pivot) == "" {
		return g, nil, nil
	}
	pivot, err := ParsePivot(q.Pivot)
	if err != nil {
		return nil, nil, err
	}
	key := cacheKey{snapshot: st.snap, stage: metrics.StageHops, filter: normalize(q.Filter), arg: pivot.String()}
	h, err := memo(e, key, func() (*graph.Hops, error) {
		return graph.ComputeHops(g, pivot, e.logger), nil
	})
	return g, h, err
}

// Hierarchy projects the collapsible node/edge view.
func (e *Engine) Hierarchy(q Query, opts view.HierarchyOptions) (*view.Hierarchy, error) {
	st := e.read()
	g, hops, err := e.hops(st, q)
	if err != nil {
		return nil, err
	}
	key := cacheKey{
		snapshot: st.snap,
		stage:    metrics.StageHierarchy,
		filter:   normalize(q.Filter),
		arg:      fmt.Sprintf("%s|%d|%t", q.Pivot, opts.MaxDepth, opts.OmitServices),
	}
	return memo(e, key, func() (*view.Hierarchy, error) {
		return view.ProjectHierarchy(g, hops, opts)
	})
}

// Flow projects the three-column flow view.
func (e *Engine) Flow(q Query, opts view.FlowOptions) (*view.Flow, error) {
	st := e.read()
	g, hops, err := e.hops(st, q)
	if err != nil {
		return nil, err
	}
	key := cacheKey{
		snapshot: st.snap,
		stage:    metrics.StageFlow,
		filter:   normalize(q.Filter),
		arg:      fmt.Sprintf("%s|%s|%s|%s", q.Pivot, opts.Mode, opts.Group, opts.Scope),
	}
	return memo(e, key, func() (*view.Flow, error) {
		return view.ProjectFlow(g, hops, opts)
	})
}

// ============================ PIVOTS ======================================

// ParsePivot reads "service:<name>", "group:<identifier>" or "root".
// "group:" with an empty identifier is the root group as well.
func ParsePivot(s string) (graph.NodeRef, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "root") {
		return graph.NodeRef{Kind: graph.KindGroup}, nil
	}
	ref, err := graph.ParseNodeRef(s)
	if err != nil {
		return graph.NodeRef{}, fmt.Errorf("%w: %q", ErrUnknownPivot, s)
	}
	switch ref.Kind {
	case graph.KindService:
		if ref.ID == "" {
			return graph.NodeRef{}, fmt.Errorf("%w: %q has no service name", ErrUnknownPivot, s)
		}
		return ref, nil
	case graph.KindGroup:
		return ref, nil
	default:
		return graph.NodeRef{}, fmt.Errorf("%w: %q is not a service or group", ErrUnknownPivot, s)
	}
}

func normalize(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
