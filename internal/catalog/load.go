package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// document is the wrapped form of a records file. Files may also contain a
// bare top-level array of records.
type document struct {
	Services []ServiceRecord `json:"services" yaml:"services"`
}

// LoadFile reads records from path, choosing the decoder by extension:
// .json, .yaml/.yml or .hcl.
func LoadFile(path string) ([]ServiceRecord, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	return Load(filepath.Ext(path), src, path)
}

// Load decodes src in the given format: "json", "yaml", "yml" or "hcl",
// with or without a leading dot. name only labels diagnostics.
func Load(format string, src []byte, name string) ([]ServiceRecord, error) {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "json":
		return LoadJSON(src)
	case "yaml", "yml":
		return LoadYAML(src)
	case "hcl":
		return LoadHCL(src, name)
	default:
		return nil, fmt.Errorf("catalog: unsupported records format %q", format)
	}
}

// LoadJSON decodes either a JSON array of records or an object with a
// "services" array.
func LoadJSON(src []byte) ([]ServiceRecord, error) {
	trimmed := bytes.TrimSpace(src)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var records []ServiceRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("catalog: decode json records: %w", err)
		}
		return records, nil
	}

	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode json document: %w", err)
	}
	return doc.Services, nil
}

// LoadYAML decodes either a YAML sequence of records or a mapping with a
// "services" sequence.
func LoadYAML(src []byte) ([]ServiceRecord, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	body := root.Content[0]
	if body.Kind == yaml.SequenceNode {
		var records []ServiceRecord
		if err := body.Decode(&records); err != nil {
			return nil, fmt.Errorf("catalog: decode yaml records: %w", err)
		}
		return records, nil
	}

	var doc document
	if err := body.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml document: %w", err)
	}
	return doc.Services, nil
}

// WriteJSON encodes records as an indented JSON array.
func WriteJSON(path string, records []ServiceRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: encode records: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	return nil
}
