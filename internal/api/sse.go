package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vyuha/vyuha-catalog/internal/engine"
	"github.com/vyuha/vyuha-catalog/internal/metrics"
)

// Event names written on /api/events.
const (
	EventSnapshot  = "catalog.snapshot"
	EventReloaded  = "catalog.reloaded"
	EventHeartbeat = "heartbeat"
)

// ReloadNotice is the payload of catalog.snapshot and catalog.reloaded.
type ReloadNotice struct {
	Snapshot engine.Snapshot `json:"snapshot"`
	Previous string          `json:"previous,omitempty"` // snapshot ID replaced by this one
	Problems int             `json:"problems"`
}

// ---------------------------------------------------------------------------
// CatalogFeed
// ---------------------------------------------------------------------------

// CatalogFeed tells connected clients which catalog snapshot is current.
// Only the newest snapshot matters to a client, so each one holds at most
// one pending notice: a newer reload replaces an undelivered older one, and
// a snapshot a client has already seen is never sent to it again.
type CatalogFeed struct {
	mu       sync.Mutex
	current  engine.Snapshot
	previous string
	clients  map[string]*feedClient
}

type feedClient struct {
	ch   chan ReloadNotice
	seen string // last snapshot ID queued for this client
}

// NewCatalogFeed starts a feed at the given snapshot.
func NewCatalogFeed(current engine.Snapshot) *CatalogFeed {
	return &CatalogFeed{
		current: current,
		clients: make(map[string]*feedClient),
	}
}

func (f *CatalogFeed) notice() ReloadNotice {
	return ReloadNotice{Snapshot: f.current, Previous: f.previous, Problems: len(f.current.Problems)}
}

// Subscribe registers a client. It returns the client's notice channel and
// the notice for the snapshot current at subscription time.
func (f *CatalogFeed) Subscribe(clientID string) (<-chan ReloadNotice, ReloadNotice) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := &feedClient{ch: make(chan ReloadNotice, 1), seen: f.current.ID}
	f.clients[clientID] = c
	metrics.SSEClients.Set(float64(len(f.clients)))
	log.Printf("sse: client %s subscribed at snapshot %s (%d total)", clientID, f.current.ID, len(f.clients))
	return c.ch, f.notice()
}

// Unsubscribe removes a client and closes its channel.
func (f *CatalogFeed) Unsubscribe(clientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[clientID]; ok {
		close(c.ch)
		delete(f.clients, clientID)
		metrics.SSEClients.Set(float64(len(f.clients)))
		log.Printf("sse: client %s unsubscribed (%d remaining)", clientID, len(f.clients))
	}
}

// Publish makes snap the current snapshot and queues it for every client
// that has not seen it. It reports false when snap is already current.
func (f *CatalogFeed) Publish(snap engine.Snapshot) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if snap.ID == f.current.ID {
		return false
	}
	f.previous = f.current.ID
	f.current = snap
	n := f.notice()

	for id, c := range f.clients {
		if c.seen == snap.ID {
			continue
		}
		select {
		case <-c.ch:
			log.Printf("sse: client %s skipped an undelivered snapshot", id)
		default:
		}
		c.ch <- n
		c.seen = snap.ID
	}
	return true
}

// ---------------------------------------------------------------------------
// HTTP handler — GET /api/events
// ---------------------------------------------------------------------------

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SSE_NOT_SUPPORTED",
			"streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)

	clientID := uuid.New().String()
	ch, first := s.feed.Subscribe(clientID)
	defer s.feed.Unsubscribe(clientID)

	if err := writeSSEEvent(w, flusher, EventSnapshot, first); err != nil {
		return
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, flusher, EventReloaded, n); err != nil {
				return
			}
		case t := <-heartbeat.C:
			if err := writeSSEEvent(w, flusher, EventHeartbeat, map[string]int64{"t": t.Unix()}); err != nil {
				return
			}
		}
	}
}

// writeSSEEvent writes one frame and flushes it.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
