// Package catalog defines the flat service record that every other part of
// the catalog is derived from, together with loaders for the file formats
// records are authored in.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
)

// ---------------------------------------------------------------------------
// ServiceRecord
// ---------------------------------------------------------------------------

// ServiceRecord is the flat metadata document describing one service.
// Name is the primary key across the whole catalog. Every other field is
// optional; a nil slice and an empty slice are treated the same way.
type ServiceRecord struct {
	Name                     string         `json:"name" yaml:"name"`
	Group                    string         `json:"group,omitempty" yaml:"group,omitempty"`
	Tags                     []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	ProvidedAPIs             []string       `json:"providedAPIs,omitempty" yaml:"providedAPIs,omitempty"`
	ConsumedAPIs             []string       `json:"consumedAPIs,omitempty" yaml:"consumedAPIs,omitempty"`
	PublishedEvents          []string       `json:"publishedEvents,omitempty" yaml:"publishedEvents,omitempty"`
	SubscribedEvents         []string       `json:"subscribedEvents,omitempty" yaml:"subscribedEvents,omitempty"`
	Responsibles             []string       `json:"responsibles,omitempty" yaml:"responsibles,omitempty"`
	ResponsibleTeam          string         `json:"responsibleTeam,omitempty" yaml:"responsibleTeam,omitempty"`
	Repository               string         `json:"repository,omitempty" yaml:"repository,omitempty"`
	TaskBoard                string         `json:"taskBoard,omitempty" yaml:"taskBoard,omitempty"`
	DevelopmentDocumentation string         `json:"developmentDocumentation,omitempty" yaml:"developmentDocumentation,omitempty"`
	DeploymentDocumentation  string         `json:"deploymentDocumentation,omitempty" yaml:"deploymentDocumentation,omitempty"`
	APIDocumentation         string         `json:"apiDocumentation,omitempty" yaml:"apiDocumentation,omitempty"`
	Extensions               map[string]any `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	CreationTimestamp        string         `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
	UpdateTimestamp          string         `json:"updateTimestamp,omitempty" yaml:"updateTimestamp,omitempty"`
}

// ExtensionNames returns the record's extension keys in sorted order.
func (r *ServiceRecord) ExtensionNames() []string {
	names := make([]string, 0, len(r.Extensions))
	for k := range r.Extensions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ExtensionStrings renders an extension value as the list of strings it is
// matched against. Scalars yield a single element and list false, arrays one
// element per entry and list true. ok is false when the extension is absent.
func (r *ServiceRecord) ExtensionStrings(name string) (values []string, list bool, ok bool) {
	v, found := r.Extensions[name]
	if !found || v == nil {
		return nil, false, false
	}
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
		return out, true, true
	case []string:
		return t, true, true
	}
	s, scalar := scalarString(v)
	if !scalar {
		return nil, false, false
	}
	return []string{s}, false, true
}

// scalarString formats the primitive extension value types. Decoders hand
// numbers over as float64 (JSON, HCL) or int (YAML).
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	default:
		return "", false
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Problem is a single validation finding for one record.
type Problem struct {
	Index   int    `json:"index"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Name == "" {
		return fmt.Sprintf("record #%d: %s", p.Index, p.Message)
	}
	return fmt.Sprintf("record #%d (%s): %s", p.Index, p.Name, p.Message)
}

// Validate checks the catalog-wide invariants the graph relies on: every
// record has a name, names are unique, and extension values are primitives
// or arrays of primitives. It never modifies records.
func Validate(records []ServiceRecord) []Problem {
	var problems []Problem
	seen := make(map[string]int, len(records))

	for i := range records {
		r := &records[i]
		if r.Name == "" {
			problems = append(problems, Problem{Index: i, Message: "name is required"})
		} else if first, dup := seen[r.Name]; dup {
			problems = append(problems, Problem{
				Index:   i,
				Name:    r.Name,
				Message: fmt.Sprintf("duplicate name, first defined by record #%d", first),
			})
		} else {
			seen[r.Name] = i
		}

		for _, key := range r.ExtensionNames() {
			if !validExtensionValue(r.Extensions[key]) {
				problems = append(problems, Problem{
					Index:   i,
					Name:    r.Name,
					Message: fmt.Sprintf("extension %q must be a string, number, boolean or an array of those", key),
				})
			}
		}
	}
	return problems
}

func validExtensionValue(v any) bool {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if _, ok := scalarString(item); !ok {
				return false
			}
		}
		return true
	case []string:
		return true
	default:
		_, ok := scalarString(v)
		return ok
	}
}
