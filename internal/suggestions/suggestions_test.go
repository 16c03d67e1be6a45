package suggestions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
	"github.com/rosematcha/ciphermaniac-sub006/internal/usage"
)

var latestDate = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

// buildHistory builds one snapshot per column of pcts, newest first and a week
// apart. A card missing from a snapshot is left out of its report.
func buildHistory(format string, pcts map[string][]float64) []Snapshot {
	n := 0
	for _, col := range pcts {
		n = max(n, len(col))
	}
	snaps := make([]Snapshot, n)
	for i := range snaps {
		snaps[i] = Snapshot{
			ID:     string(rune('a' + i)),
			Date:   latestDate.AddDate(0, 0, -7*i),
			Format: format,
		}
	}
	for name, col := range pcts {
		for i, p := range col {
			if p == 0 {
				continue
			}
			snaps[i].Report.Items = append(snaps[i].Report.Items, usage.Item{UID: name + "::SVI::001", Name: name, Set: "SVI", Number: "001", Pct: p})
		}
	}
	return snaps
}

func names(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func category(t *testing.T, s Suggestions, id string) Category {
	t.Helper()
	for _, c := range s.Categories {
		if c.ID == id {
			return c
		}
	}
	require.Failf(t, "missing category", "%s", id)
	return Category{}
}

func smallOptions() Options {
	o := DefaultOptions()
	o.MaxCandidates = 2
	o.MinCandidates = 0
	o.Day2dWindow = 2
	return o
}

func TestGenerate(t *testing.T) {
	snaps := buildHistory("Scarlet & Violet - Twilight Masquerade", map[string][]float64{
		"Iono":                 {80, 80, 80, 80},
		"Nest Ball":            {60, 60, 60, 60},
		"Basic Psychic Energy": {90, 90, 90, 90},
		"Dusk Ball":            {12, 1, 1, 1},
		"Lost Vacuum":          {0, 2, 20, 15},
		"Switch Cart":          {0, 0, 30, 0},
		"Pal Pad":              {1, 1, 8, 0},
	})

	got := Generate(snaps, smallOptions(), latestDate)
	assert.Equal(t, 4, got.Tournaments)
	assert.Equal(t, latestDate, got.GeneratedAt)

	var ids []string
	for _, c := range got.Categories {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{ConsistentLeaders, OnTheRise, ChoppedAndWashed, ThatDay2d}, ids)

	assert.Equal(t, []string{"Iono", "Nest Ball"}, names(category(t, got, ConsistentLeaders).Items))
	assert.Equal(t, []string{"Dusk Ball"}, names(category(t, got, OnTheRise).Items))

	chopped := category(t, got, ChoppedAndWashed)
	assert.Equal(t, []string{"Switch Cart", "Lost Vacuum"}, names(chopped.Items))
	require.NotNil(t, chopped.Items[0].Peak)
	require.NotNil(t, chopped.Items[0].Latest)
	assert.Equal(t, 30.0, *chopped.Items[0].Peak)
	assert.Equal(t, 0.0, *chopped.Items[0].Latest)
	assert.Equal(t, Unspecified, chopped.Items[0].Archetype)
	assert.Greater(t, chopped.Items[0].Score, chopped.Items[1].Score)

	// Lost Vacuum also fits here but was already suggested.
	assert.Equal(t, []string{"Pal Pad"}, names(category(t, got, ThatDay2d).Items))
}

func TestGenerate_ArchetypeCapRelaxes(t *testing.T) {
	pcts := map[string][]float64{
		"Staple A": {50, 50, 50},
		"Staple B": {50, 50, 50},
		"Staple C": {50, 50, 50},
		"Rise X":   {10, 1, 1},
		"Rise Y":   {9, 1, 1},
		"Rise Z":   {8, 1, 1},
	}
	snaps := buildHistory("", pcts)
	for i := range snaps {
		snaps[i].Archetypes = map[string]string{
			"Rise X::SVI::001": "Gardevoir ex",
			"Rise Y::SVI::001": "Gardevoir ex",
			"Rise Z::SVI::001": "Gardevoir ex",
		}
	}

	o := DefaultOptions()
	o.MaxCandidates = 3
	o.MinCandidates = 0
	rising := category(t, Generate(snaps, o, latestDate), OnTheRise)
	assert.Equal(t, []string{"Rise X", "Rise Y"}, names(rising.Items))
	assert.Equal(t, "Gardevoir ex", rising.Items[0].Archetype)

	o.MinCandidates = 3
	rising = category(t, Generate(snaps, o, latestDate), OnTheRise)
	assert.Equal(t, []string{"Rise X", "Rise Y", "Rise Z"}, names(rising.Items))
}

func TestGenerate_NewCardsAreNotRising(t *testing.T) {
	snaps := buildHistory("", map[string][]float64{
		"Iono":      {80, 80, 80},
		"New Promo": {20, 0, 0},
	})
	o := smallOptions()
	o.MaxCandidates = 1
	got := Generate(snaps, o, latestDate)
	assert.Empty(t, category(t, got, OnTheRise).Items)
}

func TestGenerate_Empty(t *testing.T) {
	got := Generate(nil, DefaultOptions(), latestDate)
	assert.Equal(t, 0, got.Tournaments)
	require.Len(t, got.Categories, 4)
	for _, c := range got.Categories {
		assert.NotNil(t, c.Items)
		assert.Empty(t, c.Items)
	}
	assert.Equal(t, "That Day 2'd?", got.Categories[3].Title)
}

func TestGenerate_OrdersByDate(t *testing.T) {
	snaps := buildHistory("", map[string][]float64{
		"Iono":      {80, 80, 80},
		"Dusk Ball": {12, 1, 1},
	})
	// reversed input still treats the 2024-06-10 event as latest
	reversed := []Snapshot{snaps[2], snaps[1], snaps[0]}
	o := smallOptions()
	o.MaxCandidates = 1
	got := Generate(reversed, o, latestDate)
	assert.Equal(t, []string{"Dusk Ball"}, names(category(t, got, OnTheRise).Items))
}

func TestCurrentRotation(t *testing.T) {
	snaps := []Snapshot{
		{ID: "1", Format: "Scarlet & Violet - Surging Sparks"},
		{ID: "2", Format: "Scarlet and Violet — Stellar Crown"},
		{ID: "3", Format: "Scarlet & Violet – Shrouded Fable"},
		{ID: "4", Format: "Sword & Shield - Silver Tempest"},
	}
	kept := CurrentRotation(snaps)
	require.Len(t, kept, 3)
	assert.Equal(t, "3", kept[2].ID)

	// too few events in the newest rotation keeps everything
	assert.Len(t, CurrentRotation([]Snapshot{snaps[0], snaps[3]}), 2)
	assert.Len(t, CurrentRotation([]Snapshot{{ID: "x"}, {ID: "y"}}), 2)
}

func TestIsBasicEnergy(t *testing.T) {
	basic := cards.Energy(cards.EnergyBasic)
	special := cards.Energy("special")
	tests := []struct {
		item usage.Item
		want bool
	}{
		{usage.Item{Name: "Psychic Energy"}, true},
		{usage.Item{Name: "Basic Darkness Energy"}, true},
		{usage.Item{Name: "Crystal Energy", Category: &basic}, true},
		{usage.Item{Name: "Jet Energy", Category: &special}, false},
		{usage.Item{Name: "Double Turbo Energy"}, false},
		{usage.Item{Name: "Energy Switch"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.item.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBasicEnergy(tt.item))
		})
	}
}
