package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSON(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		records, err := LoadJSON([]byte(`[{"name":"a","group":"x.y","tags":["prod"]}]`))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "x.y", records[0].Group)
		assert.Equal(t, []string{"prod"}, records[0].Tags)
	})

	t.Run("wrapped document", func(t *testing.T) {
		records, err := LoadJSON([]byte(`{"services":[{"name":"a","extensions":{"port":8080,"zones":["eu"]}}]}`))
		require.NoError(t, err)
		require.Len(t, records, 1)
		values, list, ok := records[0].ExtensionStrings("port")
		assert.True(t, ok)
		assert.False(t, list)
		assert.Equal(t, []string{"8080"}, values)
	})

	t.Run("empty input", func(t *testing.T) {
		records, err := LoadJSON([]byte("  \n"))
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := LoadJSON([]byte(`[{"name":`))
		assert.Error(t, err)
	})
}

func TestLoadYAML(t *testing.T) {
	t.Run("sequence", func(t *testing.T) {
		records, err := LoadYAML([]byte("- name: a\n  providedAPIs: [orders]\n- name: b\n"))
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, []string{"orders"}, records[0].ProvidedAPIs)
	})

	t.Run("mapping", func(t *testing.T) {
		src := "services:\n  - name: a\n    extensions:\n      replicas: 3\n      public: true\n"
		records, err := LoadYAML([]byte(src))
		require.NoError(t, err)
		require.Len(t, records, 1)

		values, _, ok := records[0].ExtensionStrings("replicas")
		assert.True(t, ok)
		assert.Equal(t, []string{"3"}, values)
		values, _, _ = records[0].ExtensionStrings("public")
		assert.Equal(t, []string{"true"}, values)
	})
}

func TestLoadHCL(t *testing.T) {
	src := `
service "billing" {
  group         = "finance.payments"
  provided_apis = ["invoices"]
  tags          = ["prod"]
  extensions = {
    tier    = 1
    regions = ["eu", "us"]
  }
}

service "mailer" {
  subscribed_events = ["invoice-created"]
}
`
	records, err := LoadHCL([]byte(src), "catalog.hcl")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "billing", records[0].Name)
	assert.Equal(t, "finance.payments", records[0].Group)
	assert.Equal(t, []string{"invoices"}, records[0].ProvidedAPIs)
	assert.Equal(t, float64(1), records[0].Extensions["tier"])
	values, list, ok := records[0].ExtensionStrings("regions")
	assert.True(t, ok)
	assert.True(t, list)
	assert.Equal(t, []string{"eu", "us"}, values)

	assert.Equal(t, []string{"invoice-created"}, records[1].SubscribedEvents)
	assert.Nil(t, records[1].Extensions)

	_, err = LoadHCL([]byte(`service {`), "broken.hcl")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, WriteJSON(path, []ServiceRecord{{Name: "a", Group: "g"}}))
	records, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []ServiceRecord{{Name: "a", Group: "g"}}, records)

	other := filepath.Join(dir, "catalog.toml")
	require.NoError(t, os.WriteFile(other, []byte(""), 0o644))
	_, err = LoadFile(other)
	assert.Error(t, err)

	_, err = Load("yml", []byte("- name: x\n"), "inline")
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	problems := Validate([]ServiceRecord{
		{Name: "a"},
		{},
		{Name: "a"},
		{Name: "b", Extensions: map[string]any{"nested": map[string]any{"x": 1}}},
		{Name: "c", Extensions: map[string]any{"ok": []any{"x", 1.5, true}}},
	})
	require.Len(t, problems, 3)
	assert.Equal(t, 1, problems[0].Index)
	assert.Equal(t, 2, problems[1].Index)
	assert.Contains(t, problems[1].Message, "duplicate")
	assert.Equal(t, "b", problems[2].Name)
}
