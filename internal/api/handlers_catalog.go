package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
	"github.com/vyuha/vyuha-catalog/internal/filter"
	"github.com/vyuha/vyuha-catalog/internal/metrics"
	"github.com/vyuha/vyuha-catalog/internal/storage"
)

// maxImportBytes caps the request body of an import.
const maxImportBytes = 32 << 20

// ---------------------------------------------------------------------------
// GET /api/services?filter=Q
// ---------------------------------------------------------------------------

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.Records(r.URL.Query().Get("filter"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if records == nil {
		records = []catalog.ServiceRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"snapshot": s.engine.Snapshot().ID,
			"total":    len(records),
			"services": records,
		},
	})
}

// ---------------------------------------------------------------------------
// GET /api/services/{name}
// ---------------------------------------------------------------------------

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	records, err := s.engine.Records("")
	if err != nil {
		writeEngineError(w, err)
		return
	}
	for i := range records {
		if records[i].Name == name {
			writeJSON(w, http.StatusOK, map[string]interface{}{"data": records[i]})
			return
		}
	}
	writeError(w, http.StatusNotFound, "SERVICE_NOT_FOUND", "service not found")
}

// ---------------------------------------------------------------------------
// DELETE /api/services/{name}
// ---------------------------------------------------------------------------

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ctx := r.Context()

	snap, err := s.engine.Update("delete", func(current []catalog.ServiceRecord) ([]catalog.ServiceRecord, error) {
		if s.store != nil {
			if err := s.store.DeleteRecord(ctx, name); err != nil {
				return nil, err
			}
			return s.store.GetAllRecords(ctx)
		}
		kept := current[:0]
		for _, rec := range current {
			if rec.Name != name {
				kept = append(kept, rec)
			}
		}
		if len(kept) == len(current) {
			return nil, storage.ErrNotFound
		}
		return kept, nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "SERVICE_NOT_FOUND", "service not found")
		return
	}
	if err != nil {
		slog.Error("api: delete record failed", "service", name, "error", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to delete service")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{"snapshot": snap}})
}

// ---------------------------------------------------------------------------
// POST /api/services/import?format=json|yaml|hcl&mode=merge|replace
// ---------------------------------------------------------------------------

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatFromContentType(r.Header.Get("Content-Type"))
	}
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = storage.ModeMerge
	}
	if mode != storage.ModeMerge && mode != storage.ModeReplace {
		writeError(w, http.StatusBadRequest, "INVALID_MODE", "mode must be one of: merge, replace")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "failed to read request body")
		return
	}
	records, err := catalog.Load(format, body, "upload."+format)
	if err != nil {
		metrics.Reloaded("import", err)
		writeError(w, http.StatusBadRequest, "INVALID_RECORDS", err.Error())
		return
	}
	if problems := catalog.Validate(records); len(problems) > 0 {
		metrics.Reloaded("import", errors.New("invalid records"))
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":    "invalid records",
			"code":     "INVALID_RECORDS",
			"problems": problems,
		})
		return
	}

	// The store write and the reload that follows run inside one engine
	// update so concurrent imports cannot reload over each other.
	var importID string
	ctx := r.Context()
	snap, err := s.engine.Update("import", func(current []catalog.ServiceRecord) ([]catalog.ServiceRecord, error) {
		if s.store == nil {
			if mode == storage.ModeMerge {
				return mergeRecords(current, records), nil
			}
			return records, nil
		}
		var err error
		if mode == storage.ModeReplace {
			importID, err = s.store.ReplaceAll(ctx, "api", records)
		} else {
			importID, err = s.store.Import(ctx, "api", records)
		}
		if err != nil {
			return nil, err
		}
		return s.store.GetAllRecords(ctx)
	})
	metrics.Reloaded("import", err)
	if err != nil {
		slog.Error("api: import failed", "mode", mode, "error", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to store records")
		return
	}

	slog.Info("api: records imported", "import_id", importID, "mode", mode, "records", len(records))
	data := map[string]interface{}{"snapshot": snap, "imported": len(records)}
	if importID != "" {
		data["import_id"] = importID
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

// mergeRecords overlays incoming onto current by name. Replaced records
// keep their position; new ones are appended.
func mergeRecords(current, incoming []catalog.ServiceRecord) []catalog.ServiceRecord {
	out := make([]catalog.ServiceRecord, len(current), len(current)+len(incoming))
	copy(out, current)
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.Name] = i
	}
	for _, r := range incoming {
		if i, ok := index[r.Name]; ok {
			out[i] = r
			continue
		}
		index[r.Name] = len(out)
		out = append(out, r)
	}
	return out
}

func formatFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "yaml"):
		return "yaml"
	case strings.Contains(ct, "hcl"):
		return "hcl"
	default:
		return "json"
	}
}

// ---------------------------------------------------------------------------
// GET /api/imports?limit=N
// ---------------------------------------------------------------------------

func (s *Server) handleImports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "NO_STORAGE", "server runs without a database")
		return
	}
	limit := clampInt(queryInt(r, "limit", 20), 1, 200)
	entries, err := s.store.RecentImports(r.Context(), limit)
	if err != nil {
		slog.Error("api: list imports failed", "error", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to list imports")
		return
	}
	if entries == nil {
		entries = []storage.ImportEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": entries})
}

// ---------------------------------------------------------------------------
// GET /api/snapshot, /api/source/status, /api/filter/keys
// ---------------------------------------------------------------------------

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": s.engine.Snapshot()})
}

func (s *Server) handleSourceStatus(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"active": false},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": s.watcher.Status()})
}

func (s *Server) handleFilterKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"keys":  filter.Keys(),
			"empty": filter.EmptyValue,
		},
	})
}
