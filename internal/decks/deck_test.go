package decks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
)

func rawDeck(archetype string, lines ...RawCard) RawDeck {
	return RawDeck{Player: "p", Archetype: archetype, TournamentID: "t1", Cards: lines}
}

func TestNewDeck(t *testing.T) {
	raw := rawDeck("Gardevoir_ex",
		RawCard{Count: 4, Name: "Ralts", Set: "svi", Number: "84"},
		RawCard{Count: 2, Name: "Dusknoir", Set: "PRE", Number: "037"},
	)

	d, err := NewDeck(raw, cards.DefaultReprints())
	require.NoError(t, err)

	assert.Equal(t, "Gardevoir ex", d.Archetype)
	assert.Equal(t, "Ralts::SVI::084", d.Cards[0].Identity.Key())
	assert.Equal(t, "Dusknoir::SFA::020", d.Cards[1].Identity.Key(), "reprint resolved")
	assert.Len(t, d.ID, 40)
	assert.Equal(t, 6, d.Size())
}

func TestNewDeck_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := NewDeck(rawDeck("X"), nil)
		assert.ErrorIs(t, err, ErrEmptyDeck)
	})

	t.Run("zero count", func(t *testing.T) {
		_, err := NewDeck(rawDeck("X", RawCard{Count: 0, Name: "Iono"}), nil)
		assert.ErrorIs(t, err, ErrInvalidCount)
	})

	t.Run("negative count", func(t *testing.T) {
		_, err := NewDeck(rawDeck("X", RawCard{Count: -1, Name: "Iono"}), nil)
		assert.ErrorIs(t, err, ErrInvalidCount)
	})
}

func TestDeckID_Stable(t *testing.T) {
	a, err := NewDeck(rawDeck("X",
		RawCard{Count: 1, Name: "Iono", Set: "PAL", Number: "185"},
		RawCard{Count: 4, Name: "Nest Ball", Set: "SVI", Number: "181"},
	), nil)
	require.NoError(t, err)

	// Same list in a different order and with a raw number that normalizes
	// to the same key.
	b, err := NewDeck(rawDeck("Y",
		RawCard{Count: 4, Name: "Nest Ball", Set: "svi", Number: "0181"},
		RawCard{Count: 1, Name: "Iono", Set: "PAL", Number: "185"},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	// Split lines collapse to the same totals.
	c, err := NewDeck(rawDeck("Z",
		RawCard{Count: 2, Name: "Nest Ball", Set: "SVI", Number: "181"},
		RawCard{Count: 1, Name: "Iono", Set: "PAL", Number: "185"},
		RawCard{Count: 2, Name: "Nest Ball", Set: "SVI", Number: "181"},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, c.ID)

	d, err := NewDeck(rawDeck("X",
		RawCard{Count: 2, Name: "Iono", Set: "PAL", Number: "185"},
		RawCard{Count: 4, Name: "Nest Ball", Set: "SVI", Number: "181"},
	), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, d.ID)
}

func TestGroupByArchetype(t *testing.T) {
	mk := func(arch string) *Deck { return &Deck{ID: arch, Archetype: arch} }
	all := []*Deck{mk("Dragapult ex"), mk("gardevoir_ex"), mk("dragapult  EX"), mk("Gardevoir ex"), mk("")}

	groups := GroupByArchetype(all)
	require.Len(t, groups, 3)

	assert.Equal(t, "Dragapult ex", groups[0].Label)
	assert.Len(t, groups[0].Decks, 2)
	assert.Equal(t, "gardevoir ex", groups[1].Label, "first casing seen wins")
	assert.Equal(t, "gardevoir_ex", groups[1].Slug)
	assert.Equal(t, "Unknown", groups[2].Label)
}

func TestGroupByArchetype_SharedSlug(t *testing.T) {
	mk := func(id, arch string) *Deck { return &Deck{ID: id, Archetype: arch} }
	all := []*Deck{
		mk("1", "Charizard ex / Pidgeot ex"),
		mk("2", "Charizard ex Pidgeot ex"),
		mk("3", "charizard ex: pidgeot ex"),
		mk("4", "???"),
	}

	groups := GroupByArchetype(all)
	require.Len(t, groups, 2)
	assert.Equal(t, "Charizard ex / Pidgeot ex", groups[0].Label)
	assert.Equal(t, "Charizard_ex_Pidgeot_ex", groups[0].Slug)
	assert.Len(t, groups[0].Decks, 3)
	assert.Equal(t, "Unknown", groups[1].Label, "names without slug characters fall back to Unknown")
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "Raging_Bolt_Ogerpon", Slug("Raging Bolt / Ogerpon"))
	assert.Equal(t, "Lost_Box", Slug("Lost  Box?"))
}

func TestPopulation_DuplicateIDs(t *testing.T) {
	a := &Deck{ID: "aaa"}
	b := &Deck{ID: "bbb"}
	pop := NewPopulation([]*Deck{a, b, a, a})

	assert.Equal(t, 4, pop.Len())
	assert.Equal(t, []string{"aaa", "bbb", "aaa#2", "aaa#3"}, pop.Keys())
	assert.Same(t, a, pop.Deck(3))
}

func TestResolveAll(t *testing.T) {
	raw := RawDeck{Archetype: "Dusknoir", Cards: []RawCard{
		{Count: 2, Name: "Dusknoir", Set: "PRE", Number: "37"},
		{Count: 4, Name: "Iono", Set: "PAL", Number: "185"},
	}}
	unresolved, err := NewDeck(raw, nil)
	require.NoError(t, err)
	untouched, err := NewDeck(RawDeck{Cards: []RawCard{{Count: 4, Name: "Iono", Set: "PAL", Number: "185"}}}, nil)
	require.NoError(t, err)

	out := ResolveAll([]*Deck{unresolved, untouched}, cards.DefaultReprints())
	require.Len(t, out, 2)

	direct, err := NewDeck(raw, cards.DefaultReprints())
	require.NoError(t, err)
	assert.Equal(t, direct.ID, out[0].ID)
	assert.Equal(t, 2, out[0].Counts()["Dusknoir::SFA::020"])
	assert.Equal(t, "Dusknoir::PRE::037", unresolved.Cards[0].Identity.Key(), "input decks are not modified")
	assert.Same(t, untouched, out[1])
}
