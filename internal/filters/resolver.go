package filters

import (
	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
)

// DefaultMinSubsetSize is the smallest subset worth reporting on.
const DefaultMinSubsetSize = 2

// Index holds per-archetype presence and copy-count lookups keyed by card
// UID and population deck key. Build it once per population.
type Index struct {
	order    []string
	presence map[string]map[string]struct{}
	counts   map[string]map[string]int
}

// NewIndex indexes pop. Lines naming the same card in one deck are summed.
func NewIndex(pop *decks.Population) *Index {
	idx := &Index{
		order:    pop.Keys(),
		presence: make(map[string]map[string]struct{}),
		counts:   make(map[string]map[string]int),
	}
	for i := 0; i < pop.Len(); i++ {
		key := pop.Key(i)
		for cardID, n := range pop.Deck(i).Counts() {
			if n <= 0 {
				continue
			}
			if idx.presence[cardID] == nil {
				idx.presence[cardID] = make(map[string]struct{})
				idx.counts[cardID] = make(map[string]int)
			}
			idx.presence[cardID][key] = struct{}{}
			idx.counts[cardID][key] = n
		}
	}
	return idx
}

// Len returns the population size.
func (idx *Index) Len() int { return len(idx.order) }

// Decks returns the keys of the decks playing cardID.
func (idx *Index) Decks(cardID string) map[string]struct{} {
	return idx.presence[cardID]
}

// Count returns the copies of cardID in the deck with the given key.
func (idx *Index) Count(cardID, deckKey string) int {
	return idx.counts[cardID][deckKey]
}

// Outcome classifies a resolved subset.
type Outcome int

const (
	// OutcomeKept is a subset worth persisting.
	OutcomeKept Outcome = iota
	// OutcomeEmpty means no deck matched.
	OutcomeEmpty
	// OutcomeUnchanged means an exclude-only spec matched every deck.
	OutcomeUnchanged
	// OutcomeTooSmall means fewer decks matched than the minimum size.
	OutcomeTooSmall
)

func (o Outcome) String() string {
	switch o {
	case OutcomeKept:
		return "kept"
	case OutcomeEmpty:
		return "empty"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeTooSmall:
		return "too_small"
	default:
		return "unknown"
	}
}

// Subset is the set of decks matched by a spec, in population order.
type Subset struct {
	positions []int
	keys      []string
}

// Len returns the number of decks in the subset.
func (s Subset) Len() int { return len(s.keys) }

// Keys returns the deck keys in population order.
func (s Subset) Keys() []string { return s.keys }

// Decks returns the subset's decks from pop in population order. pop must
// be the population the index was built from.
func (s Subset) Decks(pop *decks.Population) []*decks.Deck {
	out := make([]*decks.Deck, len(s.positions))
	for i, p := range s.positions {
		out[i] = pop.Deck(p)
	}
	return out
}

// Resolve applies spec to the indexed population. Include terms intersect
// with the decks satisfying them; exclude terms subtract every deck playing
// the card, whatever count the term carries. Only OutcomeKept subsets should
// be reported. minSize below one falls back to DefaultMinSubsetSize.
func Resolve(spec Spec, idx *Index, minSize int) (Subset, Outcome) {
	if minSize < 1 {
		minSize = DefaultMinSubsetSize
	}

	eligible := make(map[string]struct{}, len(idx.order))
	for _, k := range idx.order {
		eligible[k] = struct{}{}
	}

	for _, t := range spec.Include {
		present := idx.presence[t.CardID]
		for k := range eligible {
			if _, ok := present[k]; !ok || !t.Matches(idx.counts[t.CardID][k]) {
				delete(eligible, k)
			}
		}
		if len(eligible) == 0 {
			return Subset{}, OutcomeEmpty
		}
	}

	for _, t := range spec.Exclude {
		for k := range idx.presence[t.CardID] {
			delete(eligible, k)
		}
		if len(eligible) == 0 {
			return Subset{}, OutcomeEmpty
		}
	}

	if len(eligible) == 0 {
		return Subset{}, OutcomeEmpty
	}

	sub := Subset{
		positions: make([]int, 0, len(eligible)),
		keys:      make([]string, 0, len(eligible)),
	}
	for i, k := range idx.order {
		if _, ok := eligible[k]; ok {
			sub.positions = append(sub.positions, i)
			sub.keys = append(sub.keys, k)
		}
	}

	switch {
	case len(spec.Include) == 0 && sub.Len() == idx.Len():
		return sub, OutcomeUnchanged
	case sub.Len() < minSize:
		return sub, OutcomeTooSmall
	default:
		return sub, OutcomeKept
	}
}
