// ===========================================================================
// scripts/generate_demo_data — Generate a deterministic demo catalog
//
// Usage:
//
//	go run ./scripts/generate_demo_data \
//	    --out ./catalog.json \
//	    --db-path ./catalog-demo.db \
//	    --services 120
//
// ===========================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
	"github.com/vyuha/vyuha-catalog/internal/graph"
	"github.com/vyuha/vyuha-catalog/internal/storage"
)

// ---------------------------------------------------------------------------
// Flags
// ---------------------------------------------------------------------------

var (
	outPath  = flag.String("out", "./catalog.json", "Output records file (.json or .yaml)")
	dbPath   = flag.String("db-path", "", "Also write the records to this SQLite database")
	services = flag.Int("services", 80, "Number of services to generate")
	seed     = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// ---------------------------------------------------------------------------
// Vocabulary
// ---------------------------------------------------------------------------

var domains = map[string][]string{
	"commerce":  {"checkout", "cart", "pricing", "catalog"},
	"finance":   {"payments", "ledger", "invoicing"},
	"logistics": {"shipping", "warehouse", "tracking"},
	"identity":  {"auth", "profiles"},
	"platform":  {"notifications", "search", "analytics"},
}

var roles = []string{"api", "worker", "gateway", "sync", "reporter", "scheduler"}

var teams = []string{"team-blue", "team-green", "team-orange", "team-purple", "team-red"}

var people = []string{"asha", "bruno", "chen", "dara", "eli", "farah", "goran", "hana"}

var tagPool = []string{"prod", "beta", "critical", "pci", "stale", "internal", "public"}

var regions = []string{"eu-west", "us-east", "ap-south"}

func main() {
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	ctx := context.Background()

	log.Println("══════════════════════════════════════════")
	log.Println("  VYUHA CATALOG — Demo Data Generator")
	log.Println("══════════════════════════════════════════")
	log.Printf("  Out:      %s", *outPath)
	log.Printf("  Services: %d", *services)
	log.Println()

	// =====================================================================
	// Step 1: Services and their groups
	// =====================================================================
	log.Println("[1/4] Generating services…")
	records := generateServices(rng, *services)
	log.Printf("  ✓ %d services", len(records))

	// =====================================================================
	// Step 2: Dependencies
	// =====================================================================
	log.Println("[2/4] Wiring APIs and events…")
	wireDependencies(rng, records)

	g := graph.Build(records, nil)
	st := g.Stats()
	log.Printf("  ✓ %d groups, %d APIs, %d events, %d edges, %d orphan connectors",
		st.Groups, st.APIs, st.Events, st.Edges, st.Orphans)

	// =====================================================================
	// Step 3: Records file
	// =====================================================================
	log.Println("[3/4] Writing records file…")
	if err := writeRecords(*outPath, records); err != nil {
		log.Fatalf("  ✗ %v", err)
	}
	log.Printf("  ✓ %s", *outPath)

	// =====================================================================
	// Step 4: Database (optional)
	// =====================================================================
	if *dbPath == "" {
		log.Println("[4/4] Database skipped (no --db-path)")
		return
	}
	log.Println("[4/4] Writing database…")
	os.Remove(*dbPath)
	store, err := storage.New(*dbPath)
	if err != nil {
		log.Fatalf("  ✗ Failed to open storage: %v", err)
	}
	defer store.Close()

	importID, err := store.ReplaceAll(ctx, "generate_demo_data", records)
	if err != nil {
		log.Fatalf("  ✗ Failed to store records: %v", err)
	}
	log.Printf("  ✓ %s (import %s)", *dbPath, importID)
}

// generateServices creates n services spread over domain.subdomain groups,
// a few of them nested one level deeper and a few left ungrouped.
func generateServices(rng *rand.Rand, n int) []catalog.ServiceRecord {
	domainNames := make([]string, 0, len(domains))
	for d := range domains {
		domainNames = append(domainNames, d)
	}
	sort.Strings(domainNames)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seen := make(map[string]bool)
	out := make([]catalog.ServiceRecord, 0, n)

	for len(out) < n {
		domain := domainNames[rng.Intn(len(domainNames))]
		subs := domains[domain]
		sub := subs[rng.Intn(len(subs))]
		role := roles[rng.Intn(len(roles))]

		name := fmt.Sprintf("%s-%s", sub, role)
		if seen[name] {
			name = fmt.Sprintf("%s-%s-%d", sub, role, len(out))
		}
		seen[name] = true

		group := domain + "." + sub
		switch r := rng.Float64(); {
		case r < 0.1:
			group = ""
		case r < 0.3:
			group += "." + role + "s"
		}

		team := teams[rng.Intn(len(teams))]
		rec := catalog.ServiceRecord{
			Name:            name,
			Group:           group,
			Tags:            pick(rng, tagPool, rng.Intn(3)),
			ResponsibleTeam: team,
			Responsibles:    pick(rng, people, rng.Intn(3)),
			Repository:      fmt.Sprintf("https://git.example.com/%s/%s", team, name),
			Extensions: map[string]any{
				"tier":    float64(1 + rng.Intn(3)),
				"regions": toAny(pick(rng, regions, 1+rng.Intn(len(regions)))),
			},
			CreationTimestamp: now.Add(time.Duration(rng.Intn(365*24)) * time.Hour).Format(time.RFC3339),
		}
		if rng.Float64() < 0.7 {
			rec.APIDocumentation = rec.Repository + "/docs/api"
		}
		out = append(out, rec)
	}
	return out
}

// wireDependencies gives roughly half the services an API, a third an
// event, and makes the rest consume and subscribe at random.
func wireDependencies(rng *rand.Rand, records []catalog.ServiceRecord) {
	var apis, events []string
	for i := range records {
		r := &records[i]
		base := strings.TrimSuffix(r.Name, "-api")
		if rng.Float64() < 0.5 {
			api := base + "-v" + fmt.Sprint(1+rng.Intn(2))
			r.ProvidedAPIs = append(r.ProvidedAPIs, api)
			apis = append(apis, api)
		}
		if rng.Float64() < 0.35 {
			ev := base + "." + []string{"created", "updated", "deleted"}[rng.Intn(3)]
			r.PublishedEvents = append(r.PublishedEvents, ev)
			events = append(events, ev)
		}
	}

	for i := range records {
		r := &records[i]
		for _, api := range pick(rng, apis, rng.Intn(4)) {
			if !contains(r.ProvidedAPIs, api) {
				r.ConsumedAPIs = append(r.ConsumedAPIs, api)
			}
		}
		for _, ev := range pick(rng, events, rng.Intn(3)) {
			if !contains(r.PublishedEvents, ev) {
				r.SubscribedEvents = append(r.SubscribedEvents, ev)
			}
		}
	}
}

func writeRecords(path string, records []catalog.ServiceRecord) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(map[string]interface{}{"services": records})
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return os.WriteFile(path, data, 0o644)
	default:
		return catalog.WriteJSON(path, records)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// pick returns up to n distinct elements of pool in random order.
func pick(rng *rand.Rand, pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
