package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/vyuha/vyuha-catalog/internal/api"
	"github.com/vyuha/vyuha-catalog/internal/catalog"
	"github.com/vyuha/vyuha-catalog/internal/engine"
	"github.com/vyuha/vyuha-catalog/internal/source"
	"github.com/vyuha/vyuha-catalog/internal/storage"
)

// initLogger configures the global slog default with JSON output.
func initLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(h))
}

// envOrDefault resolves a configuration value with the priority:
//
//	flag (if explicitly set, i.e. differs from defaultVal) > env var > default.
func envOrDefault(envKey, flagVal, defaultVal string) string {
	if flagVal != defaultVal {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultVal
}

func main() {
	// ---- Flags -----------------------------------------------------------
	dbPathFlag := flag.String("db-path", "./catalog.db", "Path to SQLite database file (empty = in-memory catalog only)")
	portFlag := flag.Int("port", 8080, "HTTP server port")
	logLevel := flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	recordsFlag := flag.String("records-file", "", "Records file to load and watch (.json, .yaml, .hcl)")
	watchFlag := flag.Duration("watch-interval", source.DefaultInterval, "Polling interval for -records-file")
	cacheFlag := flag.Int("cache-size", engine.DefaultCacheSize, "Number of memoized graphs and views")
	flag.Parse()

	// Resolve config: flag > env var > default.
	dbPath := envOrDefault("CATALOG_DB_PATH", *dbPathFlag, "./catalog.db")
	portStr := envOrDefault("CATALOG_PORT", strconv.Itoa(*portFlag), "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("invalid port value %q: %v", portStr, err)
	}
	recordsFile := envOrDefault("CATALOG_RECORDS_FILE", *recordsFlag, "")
	watchStr := envOrDefault("CATALOG_WATCH_INTERVAL", watchFlag.String(), source.DefaultInterval.String())
	watchInterval, err := time.ParseDuration(watchStr)
	if err != nil {
		log.Fatalf("invalid watch interval %q: %v", watchStr, err)
	}
	cacheStr := envOrDefault("CATALOG_CACHE_SIZE", strconv.Itoa(*cacheFlag), strconv.Itoa(engine.DefaultCacheSize))
	cacheSize, err := strconv.Atoi(cacheStr)
	if err != nil {
		log.Fatalf("invalid cache size %q: %v", cacheStr, err)
	}

	initLogger(envOrDefault("CATALOG_LOG_LEVEL", *logLevel, "info"))

	// ---- Engine ----------------------------------------------------------
	eng, err := engine.New(engine.Config{CacheSize: cacheSize, Logger: slog.Default()})
	if err != nil {
		log.Fatalf("failed to initialise engine: %v", err)
	}

	// ---- Storage ---------------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store *storage.Storage
	if dbPath != "" {
		store, err = storage.New(dbPath)
		if err != nil {
			log.Fatalf("failed to initialise storage: %v", err)
		}
		records, err := store.GetAllRecords(ctx)
		if err != nil {
			log.Fatalf("failed to load records: %v", err)
		}
		eng.Load("storage", records)
	}

	// ---- HTTP Server -----------------------------------------------------
	srv := api.NewServer(eng, store)

	// ---- Records file watcher (optional) ---------------------------------
	var watcher *source.Watcher
	if recordsFile != "" {
		watcher = source.NewWatcher(recordsFile, watchInterval, func(ctx context.Context, records []catalog.ServiceRecord) error {
			if store != nil {
				if _, err := store.ReplaceAll(ctx, recordsFile, records); err != nil {
					return err
				}
			}
			eng.Load(recordsFile, records)
			return nil
		})
		if err := watcher.Start(ctx); err != nil {
			log.Fatalf("failed to load records file: %v", err)
		}
		srv.SetWatcher(watcher)
	}

	// ---- Startup banner --------------------------------------------------
	snap := eng.Snapshot()
	storeStatus := dbPath
	if store == nil {
		storeStatus = "disabled"
	}
	banner := fmt.Sprintf(`
═══════════════════════════════
 VYUHA CATALOG
 DB:       %s
 Port:     %d
 Services: %d
 Source:   %s
═══════════════════════════════`, storeStatus, port, snap.Services, snap.Source)
	fmt.Println(banner)

	slog.Info("catalog starting",
		"db_path", storeStatus,
		"port", port,
		"services", snap.Services,
		"snapshot", snap.ID,
		"records_file", recordsFile,
	)

	srv.RegisterRoutes()

	addr := fmt.Sprintf(":%d", port)

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// ---- Graceful shutdown -----------------------------------------------
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if watcher != nil {
		watcher.Stop()
	}

	if store != nil {
		if err := store.Close(); err != nil {
			slog.Error("storage close error", "error", err)
		}
	}

	slog.Info("catalog shutdown complete")
}
