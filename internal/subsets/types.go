// Package subsets resolves filter combinations for an archetype, builds a
// usage report per resulting deck subset and collapses combinations with
// identical reports into one stored record.
package subsets

import (
	"fmt"
	"time"

	"github.com/rosematcha/ciphermaniac-sub006/internal/filters"
	"github.com/rosematcha/ciphermaniac-sub006/internal/usage"
)

// BaseSubsetID is the filter map target for combinations that resolve to
// the whole archetype under NoOpBase.
const BaseSubsetID = "base"

// NoOpPolicy decides what happens to exclude-only combinations that match
// every deck.
type NoOpPolicy string

const (
	// NoOpDrop leaves them out of the filter map.
	NoOpDrop NoOpPolicy = "drop"
	// NoOpBase maps them to BaseSubsetID.
	NoOpBase NoOpPolicy = "base"
)

// ParseNoOpPolicy parses a policy name; empty means NoOpDrop.
func ParseNoOpPolicy(s string) (NoOpPolicy, error) {
	switch NoOpPolicy(s) {
	case "", NoOpDrop:
		return NoOpDrop, nil
	case NoOpBase:
		return NoOpBase, nil
	default:
		return "", fmt.Errorf("unknown no-op policy %q", s)
	}
}

// CardSummary describes a filterable card of the archetype.
type CardSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Set            string  `json:"set,omitempty"`
	Number         string  `json:"number,omitempty"`
	Found          int     `json:"found"`
	Total          int     `json:"total"`
	Pct            float64 `json:"pct"`
	AlwaysIncluded bool    `json:"alwaysIncluded"`
}

// FilterCard is a filter term resolved for display.
type FilterCard struct {
	CardSummary
	Operator filters.Operator `json:"operator,omitempty"`
	Count    int              `json:"count,omitempty"`
}

// DisplayFilters are the filters a subset report was built from.
type DisplayFilters struct {
	Include       []FilterCard `json:"include"`
	Exclude       []FilterCard `json:"exclude"`
	BaseDeckTotal int          `json:"baseDeckTotal"`
}

// Source records where a subset report came from.
type Source struct {
	Archetype   string    `json:"archetype"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// SubsetReport is the usage report of a filtered deck subset.
type SubsetReport struct {
	usage.Report
	Filters DisplayFilters `json:"filters"`
	Source  Source         `json:"source"`
}

// UniqueSubsetRecord is one stored subset report and every combination that
// produced it.
type UniqueSubsetRecord struct {
	ID               string         `json:"id"`
	Hash             string         `json:"hash"`
	Data             SubsetReport   `json:"data"`
	PrimaryFilter    filters.Spec   `json:"primaryFilter"`
	AlternateFilters []filters.Spec `json:"alternateFilters"`
}

// SubsetMeta is the index entry of a stored subset.
type SubsetMeta struct {
	DeckTotal      int          `json:"deckTotal"`
	Hash           string       `json:"hash"`
	PrimaryFilter  filters.Spec `json:"primaryFilter"`
	AlternateCount int          `json:"alternateCount"`
}

// Stats counts what happened to the generated combinations.
type Stats struct {
	Generated int `json:"generated"`
	Kept      int `json:"kept"`
	Empty     int `json:"empty"`
	Unchanged int `json:"unchanged"`
	TooSmall  int `json:"tooSmall"`
}

// Discarded returns the number of combinations not kept.
func (s Stats) Discarded() int {
	return s.Empty + s.Unchanged + s.TooSmall
}

// FilterIndex maps filter keys onto stored subsets for one archetype.
type FilterIndex struct {
	Archetype         string                 `json:"archetype"`
	DeckTotal         int                    `json:"deckTotal"`
	TotalCombinations int                    `json:"totalCombinations"`
	UniqueSubsets     int                    `json:"uniqueSubsets"`
	DeduplicationRate float64                `json:"deduplicationRate"`
	NoOpPolicy        NoOpPolicy             `json:"noOpPolicy"`
	GeneratedAt       time.Time              `json:"generatedAt"`
	Cards             map[string]CardSummary `json:"cards"`
	FilterMap         map[string]string      `json:"filterMap"`
	Subsets           map[string]SubsetMeta  `json:"subsets"`
	Stats             Stats                  `json:"stats"`
}

// Lookup returns the subset id stored for spec.
func (fi *FilterIndex) Lookup(spec filters.Spec) (string, bool) {
	id, ok := fi.FilterMap[spec.Key()]
	return id, ok
}
