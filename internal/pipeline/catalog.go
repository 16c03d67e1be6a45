package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
	"github.com/rosematcha/ciphermaniac-sub006/internal/filters"
	"github.com/rosematcha/ciphermaniac-sub006/internal/storage"
	"github.com/rosematcha/ciphermaniac-sub006/internal/usage"
)

// Archetype is the loaded state of one archetype: its population, the
// presence/count index over it and its unfiltered report.
type Archetype struct {
	Label      string
	Slug       string
	Population *decks.Population
	Index      *filters.Index
	Master     usage.Report
}

// ArchetypeSummary describes an archetype in listings.
type ArchetypeSummary struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
	Decks int    `json:"decks"`
}

// Catalog is an immutable snapshot of every archetype of a deck population.
type Catalog struct {
	archetypes []*Archetype
	byKey      map[string]*Archetype
}

// NewCatalog groups all by archetype and indexes each group.
func NewCatalog(all []*decks.Deck) *Catalog {
	c := &Catalog{byKey: make(map[string]*Archetype)}
	for _, group := range decks.GroupByArchetype(all) {
		pop := decks.NewPopulation(group.Decks)
		a := &Archetype{
			Label:      group.Label,
			Slug:       group.Slug,
			Population: pop,
			Index:      filters.NewIndex(pop),
			Master:     usage.Build(pop.Decks()),
		}
		c.archetypes = append(c.archetypes, a)
		c.byKey[strings.ToLower(a.Label)] = a
		c.byKey[strings.ToLower(a.Slug)] = a
	}
	return c
}

// LoadCatalog builds a catalog from the deck snapshot written by Run.
func LoadCatalog(ctx context.Context, store storage.BlobStore) (*Catalog, error) {
	var all []*decks.Deck
	if err := storage.GetJSON(ctx, store, DecksKey, &all); err != nil {
		return nil, fmt.Errorf("load deck snapshot: %w", err)
	}
	return NewCatalog(all), nil
}

// Lookup finds an archetype by label, slug or any spelling sharing its
// slug, ignoring case.
func (c *Catalog) Lookup(name string) (*Archetype, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if a, ok := c.byKey[key]; ok {
		return a, true
	}
	a, ok := c.byKey[strings.ToLower(decks.Slug(name))]
	return a, ok
}

// Archetypes lists the archetypes sorted by label.
func (c *Catalog) Archetypes() []ArchetypeSummary {
	out := make([]ArchetypeSummary, 0, len(c.archetypes))
	for _, a := range c.archetypes {
		out = append(out, ArchetypeSummary{Label: a.Label, Slug: a.Slug, Decks: a.Population.Len()})
	}
	return out
}

func (c *Catalog) contains(a *Archetype) bool {
	for _, x := range c.archetypes {
		if x == a {
			return true
		}
	}
	return false
}

// Len returns the number of archetypes.
func (c *Catalog) Len() int { return len(c.archetypes) }
