package pipeline

import (
	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
	"github.com/rosematcha/ciphermaniac-sub006/internal/storage"
)

// Artifact layout in the blob store.
const (
	MasterKey         = "master.json"
	CardIndexKey      = "cardIndex.json"
	DecksKey          = "decks.json"
	ArchetypeIndexKey = "archetypes/index.json"

	archetypesPrefix     = "archetypes/"
	includeExcludePrefix = "include-exclude/"
)

// ArchetypeReportKey is the key of an archetype's usage report.
func ArchetypeReportKey(label string) string {
	return storage.JoinKey("archetypes", decks.Slug(label), "cards.json")
}

// FilterIndexKey is the key of an archetype's filter index.
func FilterIndexKey(label string) string {
	return storage.JoinKey("include-exclude", decks.Slug(label), "index.json")
}

// SubsetKey is the key of one unique subset report.
func SubsetKey(label, subsetID string) string {
	return storage.JoinKey("include-exclude", decks.Slug(label), "unique_subsets", subsetID+".json")
}
