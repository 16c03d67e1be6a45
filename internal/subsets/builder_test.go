package subsets

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
	"github.com/rosematcha/ciphermaniac-sub006/internal/filters"
	"github.com/rosematcha/ciphermaniac-sub006/internal/usage"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func makeDecks(lists ...[]string) []*decks.Deck {
	out := make([]*decks.Deck, len(lists))
	for i, names := range lists {
		d := &decks.Deck{ID: fmt.Sprintf("d%02d", i), Archetype: "Test"}
		for _, n := range names {
			d.Cards = append(d.Cards, decks.CardEntry{Count: 1, Identity: cards.Identity{Name: n}})
		}
		out[i] = d
	}
	return out
}

type fixture struct {
	pop    *decks.Population
	idx    *filters.Index
	master usage.Report
}

func newFixture(all []*decks.Deck) fixture {
	pop := decks.NewPopulation(all)
	return fixture{pop: pop, idx: filters.NewIndex(pop), master: usage.Build(all)}
}

func (f fixture) build(t *testing.T, opts Options, combos ...filters.Spec) *Result {
	t.Helper()
	opts.Now = fixedNow
	res, err := Build("Test", combos, f.pop, f.idx, f.master, opts)
	require.NoError(t, err)
	return res
}

// A never appears with B, so include(A) and include(A)+exclude(B) resolve
// to the same decks.
func abDecks() []*decks.Deck {
	return makeDecks(
		[]string{"Core", "A"},
		[]string{"Core", "A"},
		[]string{"Core", "A", "C"},
		[]string{"Core", "B"},
		[]string{"Core", "B", "C"},
		[]string{"Core"},
	)
}

func TestBuild_Deduplicates(t *testing.T) {
	f := newFixture(abDecks())
	includeA := filters.Spec{Include: []filters.Term{filters.Present("A")}}
	includeAExcludeB := filters.Spec{Include: []filters.Term{filters.Present("A")}, Exclude: []filters.Term{filters.Present("B")}}

	res := f.build(t, DefaultOptions(), includeA, includeAExcludeB)

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "subset_001", rec.ID)
	assert.Equal(t, includeA.Key(), rec.PrimaryFilter.Key())
	require.Len(t, rec.AlternateFilters, 1)
	assert.Equal(t, includeAExcludeB.Key(), rec.AlternateFilters[0].Key())

	fi := res.Index
	assert.Equal(t, "subset_001", fi.FilterMap[includeA.Key()])
	assert.Equal(t, "subset_001", fi.FilterMap[includeAExcludeB.Key()])
	assert.Equal(t, 2, fi.TotalCombinations)
	assert.Equal(t, 1, fi.UniqueSubsets)
	assert.Equal(t, 0.5, fi.DeduplicationRate)
	assert.Equal(t, 1, fi.Subsets["subset_001"].AlternateCount)
	assert.Equal(t, 3, rec.Data.DeckTotal)
}

func TestBuild_DiscardsDegenerate(t *testing.T) {
	f := newFixture(abDecks())
	combos := []filters.Spec{
		// empty
		{Include: []filters.Term{filters.Present("A"), filters.Present("B")}},
		// unchanged
		{Exclude: []filters.Term{filters.Present("Missing")}},
		// one deck
		{Include: []filters.Term{filters.Present("B")}, Exclude: []filters.Term{filters.Present("C")}},
		// kept
		{Include: []filters.Term{filters.Present("C")}},
	}

	res := f.build(t, DefaultOptions(), combos...)
	fi := res.Index

	assert.Equal(t, Stats{Generated: 4, Kept: 1, Empty: 1, Unchanged: 1, TooSmall: 1}, fi.Stats)
	assert.Equal(t, 3, fi.Stats.Discarded())
	assert.Len(t, fi.FilterMap, 1)
	assert.Equal(t, 1, fi.TotalCombinations)
	assert.Equal(t, 0.0, fi.DeduplicationRate)
}

func TestBuild_NoOpBasePolicy(t *testing.T) {
	f := newFixture(abDecks())
	noop := filters.Spec{Exclude: []filters.Term{filters.Present("Missing")}}

	res := f.build(t, Options{NoOpPolicy: NoOpBase}, noop)
	assert.Equal(t, BaseSubsetID, res.Index.FilterMap[noop.Key()])
	assert.Empty(t, res.Records)
	assert.Equal(t, 0, res.Index.TotalCombinations)
}

func TestBuild_SequentialIDs(t *testing.T) {
	f := newFixture(abDecks())
	res := f.build(t, DefaultOptions(),
		filters.Spec{Include: []filters.Term{filters.Present("A")}},
		filters.Spec{Include: []filters.Term{filters.Present("B")}},
		filters.Spec{Include: []filters.Term{filters.Present("C")}},
		filters.Spec{Exclude: []filters.Term{filters.Present("A")}},
	)

	var ids []string
	for _, r := range res.Records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"subset_001", "subset_002", "subset_003", "subset_004"}, ids)
	assert.Len(t, res.Index.Subsets, 4)
}

func TestBuild_DisplayFilters(t *testing.T) {
	f := newFixture(abDecks())
	spec := filters.Spec{Include: []filters.Term{filters.Exactly("A", 1)}, Exclude: []filters.Term{filters.Present("B")}}

	res := f.build(t, DefaultOptions(), spec)
	require.Len(t, res.Records, 1)
	got := res.Records[0].Data.Filters

	assert.Equal(t, 6, got.BaseDeckTotal)
	require.Len(t, got.Include, 1)
	assert.Equal(t, "A", got.Include[0].ID)
	assert.Equal(t, filters.OpEqual, got.Include[0].Operator)
	assert.Equal(t, 3, got.Include[0].Found)
	require.Len(t, got.Exclude, 1)
	assert.Equal(t, "B", got.Exclude[0].Name)
	assert.Equal(t, "Test", res.Records[0].Data.Source.Archetype)
	assert.Equal(t, fixedNow(), res.Records[0].Data.Source.GeneratedAt)
}

func TestBuild_GeneratedCombinations(t *testing.T) {
	f := newFixture(abDecks())
	combos := filters.Generate(f.master, filters.DefaultGeneratorOptions())

	res := f.build(t, DefaultOptions(), combos...)
	fi := res.Index

	assert.Equal(t, len(combos), fi.Stats.Generated)
	assert.Equal(t, fi.Stats.Kept, fi.TotalCombinations)
	assert.Len(t, fi.FilterMap, fi.TotalCombinations)
	assert.LessOrEqual(t, fi.UniqueSubsets, fi.TotalCombinations)

	hashes := make(map[string]bool)
	for _, rec := range res.Records {
		assert.False(t, hashes[rec.Hash], "duplicate hash %s", rec.Hash)
		hashes[rec.Hash] = true
		_, ok := fi.Cards["Core"]
		assert.True(t, ok)
	}
	assert.True(t, fi.Cards["Core"].AlwaysIncluded)
}

func TestSubsetReportJSON(t *testing.T) {
	f := newFixture(abDecks())
	res := f.build(t, DefaultOptions(), filters.Spec{Include: []filters.Term{filters.Present("A")}})

	data, err := json.Marshal(res.Records[0].Data)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "deckTotal")
	assert.Contains(t, decoded, "items")
	assert.Contains(t, decoded, "filters")
	assert.Contains(t, decoded, "source")
}

func TestReport_OnDemand(t *testing.T) {
	f := newFixture(abDecks())
	spec := filters.Spec{Include: []filters.Term{filters.Present("C")}}

	rep, outcome := Report("Test", spec, f.pop, f.idx, f.master, 2, fixedNow())
	assert.Equal(t, filters.OutcomeKept, outcome)
	assert.Equal(t, 2, rep.DeckTotal)

	res := f.build(t, DefaultOptions(), spec)
	assert.Equal(t, res.Records[0].Data, rep, "on-demand and batch reports agree")

	_, outcome = Report("Test", filters.Spec{Include: []filters.Term{filters.Present("Missing")}}, f.pop, f.idx, f.master, 2, fixedNow())
	assert.Equal(t, filters.OutcomeEmpty, outcome)
}

func TestParseNoOpPolicy(t *testing.T) {
	p, err := ParseNoOpPolicy("")
	require.NoError(t, err)
	assert.Equal(t, NoOpDrop, p)

	p, err = ParseNoOpPolicy("base")
	require.NoError(t, err)
	assert.Equal(t, NoOpBase, p)

	_, err = ParseNoOpPolicy("keep")
	assert.Error(t, err)
}
