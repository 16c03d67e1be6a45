package usage

import (
	"sort"
	"strings"

	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
)

// CardIndexEntry is the usage of a card across all printings.
type CardIndexEntry struct {
	Found int      `json:"found"`
	Total int      `json:"total"`
	Pct   float64  `json:"pct"`
	Dist  []Dist   `json:"dist"`
	Sets  []string `json:"sets"`
}

// BuildCardIndex aggregates usage by card name regardless of printing. Names
// are matched case-insensitively and keyed by the first casing seen.
func BuildCardIndex(all []*decks.Deck) map[string]CardIndexEntry {
	total := len(all)
	display := make(map[string]string)
	histograms := make(map[string]map[int]int)
	found := make(map[string]int)
	sets := make(map[string]map[string]struct{})

	for _, d := range all {
		perDeck := make(map[string]int)
		for _, e := range d.Cards {
			base := strings.ToLower(e.Identity.Name)
			if _, ok := display[base]; !ok {
				display[base] = e.Identity.Name
				histograms[base] = make(map[int]int)
				sets[base] = make(map[string]struct{})
			}
			perDeck[base] += e.Count
			if e.Identity.Set != "" {
				sets[base][e.Identity.Set] = struct{}{}
			}
		}
		for base, n := range perDeck {
			histograms[base][n]++
			found[base]++
		}
	}

	index := make(map[string]CardIndexEntry, len(display))
	for base, name := range display {
		setList := make([]string, 0, len(sets[base]))
		for s := range sets[base] {
			setList = append(setList, s)
		}
		sort.Strings(setList)

		index[name] = CardIndexEntry{
			Found: found[base],
			Total: total,
			Pct:   Round2(found[base], total),
			Dist:  distribution(histograms[base], found[base]),
			Sets:  setList,
		}
	}
	return index
}
