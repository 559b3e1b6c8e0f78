// Package source keeps the engine in sync with a records file on disk.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
	"github.com/vyuha/vyuha-catalog/internal/metrics"
)

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = 2 * time.Second

// Handler receives every freshly loaded record set.
type Handler func(ctx context.Context, records []catalog.ServiceRecord) error

// Status is a snapshot of a watcher's counters.
type Status struct {
	FilePath  string    `json:"file_path"`
	Active    bool      `json:"active"`
	Loads     int64     `json:"loads"`
	ParseErrs int64     `json:"parse_errors"`
	LastLoad  time.Time `json:"last_load,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// ---------------------------------------------------------------------------
// Watcher
// ---------------------------------------------------------------------------

// Watcher polls a records file and hands its contents to a Handler
// whenever the file's modification time or size changes. A file that fails
// to parse is logged and counted; the previous record set stays in effect
// and polling continues.
type Watcher struct {
	filePath string
	interval time.Duration
	handler  Handler
	done     chan struct{}
	wg       sync.WaitGroup

	mu        sync.Mutex
	modTime   time.Time
	size      int64
	lastLoad  time.Time
	lastError string
	startedAt time.Time
	active    bool

	loads     atomic.Int64
	parseErrs atomic.Int64
}

// NewWatcher creates a watcher for filePath. Call Start to begin polling.
func NewWatcher(filePath string, interval time.Duration, handler Handler) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		filePath: filePath,
		interval: interval,
		handler:  handler,
		done:     make(chan struct{}),
	}
}

// FilePath returns the watched path.
func (w *Watcher) FilePath() string { return w.filePath }

// Start loads the file once and fails if that initial load fails. It then
// polls in the background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.filePath)
	if err != nil {
		return fmt.Errorf("source: stat %s: %w", w.filePath, err)
	}
	if err := w.load(ctx, info); err != nil {
		return err
	}

	w.mu.Lock()
	w.startedAt = time.Now().UTC()
	w.active = true
	w.mu.Unlock()

	w.wg.Add(1)
	slog.Info("source: watcher started", "file", w.filePath, "interval", w.interval.String())

	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()
	return nil
}

// Stop signals the watcher to stop and waits for the poll loop to finish.
func (w *Watcher) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.wg.Wait()

	w.mu.Lock()
	w.active = false
	w.mu.Unlock()
	slog.Info("source: watcher stopped", "file", w.filePath, "loads", w.loads.Load())
}

func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll checks the file once and reloads it if it changed. It reports
// whether a reload was attempted.
func (w *Watcher) Poll(ctx context.Context) bool {
	info, err := os.Stat(w.filePath)
	if err != nil {
		slog.Warn("source: stat failed", "file", w.filePath, "error", err)
		return false
	}

	w.mu.Lock()
	changed := !info.ModTime().Equal(w.modTime) || info.Size() != w.size
	w.mu.Unlock()
	if !changed {
		return false
	}

	if err := w.load(ctx, info); err != nil {
		slog.Warn("source: reload failed, keeping previous catalog", "file", w.filePath, "error", err)
	}
	return true
}

// load reads the file and passes it on. The file's stamp is recorded even
// when parsing fails so a broken file is not re-read every tick.
func (w *Watcher) load(ctx context.Context, info os.FileInfo) error {
	w.mu.Lock()
	w.modTime = info.ModTime()
	w.size = info.Size()
	w.mu.Unlock()

	records, err := catalog.LoadFile(w.filePath)
	if err == nil {
		err = w.handler(ctx, records)
	}
	metrics.Reloaded("file", err)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.parseErrs.Add(1)
		w.lastError = err.Error()
		return fmt.Errorf("source: load %s: %w", w.filePath, err)
	}
	w.loads.Add(1)
	w.lastLoad = time.Now().UTC()
	w.lastError = ""
	return nil
}

// Status returns a snapshot of the watcher's current state.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		FilePath:  w.filePath,
		Active:    w.active,
		Loads:     w.loads.Load(),
		ParseErrs: w.parseErrs.Load(),
		LastLoad:  w.lastLoad,
		LastError: w.lastError,
		StartedAt: w.startedAt,
	}
}
