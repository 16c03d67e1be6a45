package decks

import (
	"sort"
	"strings"
)

// NormalizeArchetype replaces underscores with spaces and collapses runs of
// whitespace.
func NormalizeArchetype(name string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(name, "_", " ")), " ")
}

// archetypeKey is the case-insensitive grouping key of an archetype name.
// Names that only differ in characters Slug strips share a key, so every
// group owns a distinct slug.
func archetypeKey(name string) string {
	return strings.ToLower(Slug(name))
}

// Group is the decks of one archetype in input order.
type Group struct {
	Label string
	Slug  string
	Decks []*Deck
}

// GroupByArchetype groups decks by archetype slug, ignoring case. Each group
// is labelled with the first spelling seen. Groups are returned sorted by
// label; decks without a usable archetype name are grouped under "Unknown".
func GroupByArchetype(all []*Deck) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, d := range all {
		label := NormalizeArchetype(d.Archetype)
		if Slug(label) == "" {
			label = "Unknown"
		}
		key := archetypeKey(label)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Label: label, Slug: Slug(label)})
		}
		groups[i].Decks = append(groups[i].Decks, d)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Label < groups[j].Label
	})
	return groups
}

var slugReplacer = strings.NewReplacer(
	"<", "", ">", "", ":", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "",
)

// Slug turns an archetype label into a string safe for object keys and
// file names.
func Slug(label string) string {
	s := NormalizeArchetype(slugReplacer.Replace(label))
	return strings.ReplaceAll(s, " ", "_")
}
