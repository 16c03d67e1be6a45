// Package usage builds ranked card usage reports over a deck population.
package usage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
)

// Dist is one bucket of a card's copy-count histogram. Percent is the share
// of decks playing the card, not of the whole population.
type Dist struct {
	Copies  int     `json:"copies"`
	Players int     `json:"players"`
	Percent float64 `json:"percent"`
}

// Item is the usage of one canonical card. Field order is the serialization
// order and must not change: report hashes depend on it.
type Item struct {
	Rank     int             `json:"rank"`
	UID      string          `json:"uid"`
	Name     string          `json:"name"`
	Set      string          `json:"set,omitempty"`
	Number   string          `json:"number,omitempty"`
	Category *cards.Category `json:"category,omitempty"`
	Found    int             `json:"found"`
	Total    int             `json:"total"`
	Pct      float64         `json:"pct"`
	Dist     []Dist          `json:"dist"`
}

// AlwaysIncluded reports whether every deck of the population plays the card.
func (it Item) AlwaysIncluded() bool {
	return it.Total > 0 && it.Found == it.Total
}

// Report is a ranked usage report.
type Report struct {
	DeckTotal int    `json:"deckTotal"`
	Items     []Item `json:"items"`
}

// Find returns the item with the given uid.
func (r Report) Find(uid string) (Item, bool) {
	for _, it := range r.Items {
		if it.UID == uid {
			return it, true
		}
	}
	return Item{}, false
}

type accumulator struct {
	id       cards.Identity
	category cards.Category
	counts   map[int]int // copies -> players
	found    int
}

// Build aggregates decks into a usage report. Lines naming the same card in
// one deck are summed before counting. Items are ranked by the number of
// decks playing them, ties keeping first-seen order.
func Build(all []*decks.Deck) Report {
	total := len(all)
	if total == 0 {
		return Report{DeckTotal: 0, Items: []Item{}}
	}

	index := make(map[string]int)
	var accs []*accumulator

	for _, d := range all {
		perDeck := make(map[string]int, len(d.Cards))
		var order []string
		for _, e := range d.Cards {
			key := e.Identity.Key()
			if _, ok := perDeck[key]; !ok {
				order = append(order, key)
			}
			perDeck[key] += e.Count

			i, ok := index[key]
			if !ok {
				i = len(accs)
				index[key] = i
				accs = append(accs, &accumulator{id: e.Identity, counts: make(map[int]int)})
			}
			if accs[i].category.IsZero() {
				accs[i].category = e.Category
			}
		}

		for _, key := range order {
			n := perDeck[key]
			if n <= 0 {
				continue
			}
			acc := accs[index[key]]
			acc.counts[n]++
			acc.found++
		}
	}

	ranked := make([]*accumulator, 0, len(accs))
	for _, acc := range accs {
		if acc.found > 0 {
			ranked = append(ranked, acc)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].found > ranked[j].found
	})

	items := make([]Item, len(ranked))
	for i, acc := range ranked {
		items[i] = acc.item(i+1, total)
	}
	return Report{DeckTotal: total, Items: items}
}

func (acc *accumulator) item(rank, total int) Item {
	it := Item{
		Rank:   rank,
		UID:    acc.id.Key(),
		Name:   acc.id.Name,
		Set:    acc.id.Set,
		Number: acc.id.Number,
		Found:  acc.found,
		Total:  total,
		Pct:    Round2(acc.found, total),
		Dist:   distribution(acc.counts, acc.found),
	}
	if !acc.category.IsZero() {
		c := acc.category
		it.Category = &c
	}
	return it
}

func distribution(counts map[int]int, found int) []Dist {
	copies := make([]int, 0, len(counts))
	for c := range counts {
		copies = append(copies, c)
	}
	sort.Ints(copies)

	dist := make([]Dist, len(copies))
	for i, c := range copies {
		dist[i] = Dist{Copies: c, Players: counts[c], Percent: Round2(counts[c], found)}
	}
	return dist
}

// Round2 returns num/den as a percentage rounded half-up to two decimals.
// Integer arithmetic keeps 37/200 at exactly 18.5. A zero den yields 0.
func Round2(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	basisPoints := (int64(num)*20000 + int64(den)) / (2 * int64(den))
	return float64(basisPoints) / 100
}

// ItemsHash returns the hex SHA-256 of the compact JSON encoding of items.
// Item has a fixed field order and no maps, so equal items hash equally.
func ItemsHash(items []Item) (string, error) {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
