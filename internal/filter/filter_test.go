package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
)

func match(t *testing.T, query string, r catalog.ServiceRecord) bool {
	t.Helper()
	e, err := Parse(query)
	require.NoError(t, err, query)
	return Evaluate(e, &r)
}

func TestEvaluate(t *testing.T) {
	t.Run("and not over tags", func(t *testing.T) {
		q := "tag:prod AND NOT tag:stale"
		assert.True(t, match(t, q, catalog.ServiceRecord{Name: "a", Tags: []string{"prod"}}))
		assert.False(t, match(t, q, catalog.ServiceRecord{Name: "b", Tags: []string{"prod", "stale"}}))
	})

	t.Run("wildcard is anchored", func(t *testing.T) {
		q := "name:*service"
		assert.True(t, match(t, q, catalog.ServiceRecord{Name: "billing-service"}))
		assert.False(t, match(t, q, catalog.ServiceRecord{Name: "billing-svc"}))
		assert.False(t, match(t, q, catalog.ServiceRecord{Name: "billing-service-v2"}))
	})

	t.Run("matching is case insensitive", func(t *testing.T) {
		assert.True(t, match(t, "name:BILLING*", catalog.ServiceRecord{Name: "billing-service"}))
		assert.True(t, match(t, "Tags:Prod", catalog.ServiceRecord{Name: "a", Tags: []string{"prod"}}))
	})

	t.Run("regex metacharacters are literal", func(t *testing.T) {
		assert.True(t, match(t, "name:a.b", catalog.ServiceRecord{Name: "a.b"}))
		assert.False(t, match(t, "name:a.b", catalog.ServiceRecord{Name: "axb"}))
		assert.True(t, match(t, `name:"a+(b)"`, catalog.ServiceRecord{Name: "a+(b)"}))
	})

	t.Run("empty value", func(t *testing.T) {
		q := "responsible:%empty%"
		assert.True(t, match(t, q, catalog.ServiceRecord{Name: "absent"}))
		assert.True(t, match(t, q, catalog.ServiceRecord{Name: "empty", Responsibles: []string{}}))
		assert.False(t, match(t, q, catalog.ServiceRecord{Name: "blank", Responsibles: []string{""}}))
		assert.False(t, match(t, q, catalog.ServiceRecord{Name: "set", Responsibles: []string{"ann"}}))

		assert.True(t, match(t, "repository:%empty%", catalog.ServiceRecord{Name: "x"}))
		assert.False(t, match(t, "repository:%empty%", catalog.ServiceRecord{Name: "x", Repository: "git"}))
	})

	t.Run("extensions", func(t *testing.T) {
		r := catalog.ServiceRecord{Name: "x", Extensions: map[string]any{
			"tier":    "gold",
			"regions": []any{"eu", "us"},
			"blank":   []any{""},
			"none":    []any{},
			"port":    float64(8080),
		}}
		assert.True(t, match(t, "extensions.tier:gold", r))
		assert.True(t, match(t, "extensions.regions:us", r))
		assert.True(t, match(t, "extensions.port:80*", r))
		assert.False(t, match(t, "extensions.tier:silver", r))
		assert.True(t, match(t, "extensions.missing:%empty%", r))
		assert.True(t, match(t, "extensions.none:%empty%", r))
		assert.False(t, match(t, "extensions.blank:%empty%", r))
	})

	t.Run("precedence and grouping", func(t *testing.T) {
		r := catalog.ServiceRecord{Name: "a", Tags: []string{"x"}}
		// AND binds tighter than OR.
		assert.True(t, match(t, "tag:x OR tag:y AND tag:z", r))
		assert.False(t, match(t, "(tag:x OR tag:y) AND tag:z", r))
		assert.True(t, match(t, "tag:x && !tag:z", r))
		assert.True(t, match(t, "tag:nope || name:a", r))
		assert.True(t, match(t, "not tag:z and tag:x", r))
	})

	t.Run("values containing colons", func(t *testing.T) {
		r := catalog.ServiceRecord{Name: "a", Repository: "https://git.example.com/a"}
		assert.True(t, match(t, "repository:https://git.example.com/*", r))
	})

	t.Run("nil expression matches everything", func(t *testing.T) {
		assert.True(t, Evaluate(nil, &catalog.ServiceRecord{Name: "a"}))
	})
}

func TestParse(t *testing.T) {
	t.Run("blank query", func(t *testing.T) {
		e, err := Parse("   ")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("tree shape", func(t *testing.T) {
		e, err := Parse("tag:a OR tag:b AND NOT name:c")
		require.NoError(t, err)
		assert.Equal(t, "(tag:a OR (tag:b AND NOT name:c))", e.String())
	})

	t.Run("quoted values", func(t *testing.T) {
		e, err := Parse(`responsibleTeam:"team blue"`)
		require.NoError(t, err)
		kv, ok := e.(*KeyValue)
		require.True(t, ok)
		assert.Equal(t, "team blue", kv.Value)
	})

	tests := []struct {
		name  string
		query string
		count int
	}{
		{"unknown key", "colour:red", 1},
		{"every unknown key reported", "colour:red AND size:big", 2},
		{"dangling operator", "tag:a AND", 1},
		{"unbalanced parenthesis", "(tag:a", 1},
		{"missing value", "tag:", 1},
		{"stray character", "tag:a & tag:b", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.query)
			assert.Nil(t, e)
			var syntaxErr *SyntaxError
			require.ErrorAs(t, err, &syntaxErr)
			assert.Len(t, syntaxErr.Messages, tt.count)
			assert.Equal(t, tt.query, syntaxErr.Query)
		})
	}
}

func TestApply(t *testing.T) {
	records := []catalog.ServiceRecord{
		{Name: "a", Group: "pay"},
		{Name: "b", Group: "ship"},
		{Name: "c", Group: "pay.cards"},
	}
	out := Apply(MustParse("group:pay*"), records)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Name)
	assert.Equal(t, "c", out[1].Name)
	assert.Len(t, records, 3)

	assert.Len(t, Apply(nil, records), 3)
}
