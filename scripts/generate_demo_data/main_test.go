package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
)

func generate(seed int64, n int) []catalog.ServiceRecord {
	rng := rand.New(rand.NewSource(seed))
	recs := generateServices(rng, n)
	wireDependencies(rng, recs)
	return recs
}

func TestGenerate(t *testing.T) {
	t.Run("same seed gives same catalog", func(t *testing.T) {
		assert.Equal(t, generate(7, 40), generate(7, 40))
	})

	t.Run("records are valid", func(t *testing.T) {
		recs := generate(42, 60)
		require.Len(t, recs, 60)
		assert.Empty(t, catalog.Validate(recs))
	})

	t.Run("services never consume what they produce", func(t *testing.T) {
		for _, r := range generate(3, 50) {
			for _, api := range r.ConsumedAPIs {
				assert.NotContains(t, r.ProvidedAPIs, api, r.Name)
			}
			for _, ev := range r.SubscribedEvents {
				assert.NotContains(t, r.PublishedEvents, ev, r.Name)
			}
		}
	})
}

func TestPick(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Nil(t, pick(rng, []string{"a"}, 0))
	assert.ElementsMatch(t, []string{"a", "b"}, pick(rng, []string{"a", "b"}, 5))
}
