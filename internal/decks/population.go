package decks

import "strconv"

// Population is an ordered deck list where every deck has a unique key.
// Decks with the same ID (two players on an identical list) are counted
// separately: the second and later copies get "#2", "#3", ... suffixes.
type Population struct {
	decks []*Deck
	keys  []string
}

// NewPopulation indexes decks in the given order.
func NewPopulation(all []*Deck) *Population {
	p := &Population{
		decks: all,
		keys:  make([]string, len(all)),
	}
	seen := make(map[string]int, len(all))
	for i, d := range all {
		seen[d.ID]++
		if n := seen[d.ID]; n > 1 {
			p.keys[i] = d.ID + "#" + strconv.Itoa(n)
		} else {
			p.keys[i] = d.ID
		}
	}
	return p
}

// Len returns the number of decks.
func (p *Population) Len() int { return len(p.decks) }

// Deck returns the i-th deck.
func (p *Population) Deck(i int) *Deck { return p.decks[i] }

// Key returns the population-unique key of the i-th deck.
func (p *Population) Key(i int) string { return p.keys[i] }

// Decks returns the decks in population order.
func (p *Population) Decks() []*Deck { return p.decks }

// Keys returns the deck keys in population order.
func (p *Population) Keys() []string { return p.keys }
