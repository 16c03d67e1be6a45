package filters

import (
	"fmt"
	"sort"

	"github.com/rosematcha/ciphermaniac-sub006/internal/usage"
)

// GeneratorOptions bounds the generated combination space.
type GeneratorOptions struct {
	// MinUsagePercent drops cards played by a smaller share of the field.
	MinUsagePercent float64 `json:"minUsagePercent" toml:"min_usage_percent"`
	// TopN caps the cards taken into include/exclude pairs.
	TopN int `json:"topN" toml:"top_n"`
	// MaxCountFilters caps the exact-count includes per card.
	MaxCountFilters int `json:"maxCountFilters" toml:"max_count_filters"`
}

// DefaultGeneratorOptions returns the default bounds.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		MinUsagePercent: 0,
		TopN:            10,
		MaxCountFilters: 3,
	}
}

func (o GeneratorOptions) withDefaults() GeneratorOptions {
	d := DefaultGeneratorOptions()
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	if o.MaxCountFilters <= 0 {
		o.MaxCountFilters = d.MaxCountFilters
	}
	return o
}

// OptionalCards returns the report items eligible as filter targets: not
// played by every deck and at or above the usage threshold, ordered by
// usage descending.
func OptionalCards(report usage.Report, minUsagePercent float64) []usage.Item {
	var optional []usage.Item
	for _, it := range report.Items {
		if it.AlwaysIncluded() || it.Pct < minUsagePercent {
			continue
		}
		optional = append(optional, it)
	}
	sort.SliceStable(optional, func(i, j int) bool {
		return optional[i].Pct > optional[j].Pct
	})
	return optional
}

// commonCounts returns the copy counts of item ordered by how many decks
// play them, ties going to the smaller count.
func commonCounts(it usage.Item) []int {
	dist := make([]usage.Dist, 0, len(it.Dist))
	for _, d := range it.Dist {
		if d.Copies > 0 && d.Players > 0 {
			dist = append(dist, d)
		}
	}
	sort.SliceStable(dist, func(i, j int) bool {
		if dist[i].Players != dist[j].Players {
			return dist[i].Players > dist[j].Players
		}
		return dist[i].Copies < dist[j].Copies
	})

	counts := make([]int, len(dist))
	for i, d := range dist {
		counts[i] = d.Copies
	}
	return counts
}

// Generate enumerates the filter combinations worth computing for report.
// Every returned spec has a distinct key; order is not significant.
func Generate(report usage.Report, opts GeneratorOptions) []Spec {
	opts = opts.withDefaults()
	optional := OptionalCards(report, opts.MinUsagePercent)

	var specs []Spec
	seen := make(map[string]struct{})
	emit := func(s Spec) {
		if s.Include == nil {
			s.Include = []Term{}
		}
		if s.Exclude == nil {
			s.Exclude = []Term{}
		}
		key := s.Key()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		specs = append(specs, s)
	}

	for _, it := range optional {
		emit(Spec{Include: []Term{Present(it.UID)}})

		counts := commonCounts(it)
		top := counts
		if len(top) > opts.MaxCountFilters {
			top = top[:opts.MaxCountFilters]
		}
		exact := append([]int(nil), top...)
		sort.Ints(exact)
		for _, n := range exact {
			emit(Spec{Include: []Term{Exactly(it.UID, n)}})
		}
		if len(counts) >= 2 {
			emit(Spec{Include: []Term{AtLeast(it.UID, counts[1])}})
		}
	}

	for _, it := range optional {
		emit(Spec{Exclude: []Term{Present(it.UID)}})
	}

	pairs := optional
	if len(pairs) > opts.TopN {
		pairs = pairs[:opts.TopN]
	}
	for _, x := range pairs {
		counts := commonCounts(x)
		for _, y := range pairs {
			if x.UID == y.UID {
				continue
			}
			emit(Spec{Include: []Term{Present(x.UID)}, Exclude: []Term{Present(y.UID)}})
			if len(counts) > 0 {
				emit(Spec{Include: []Term{Exactly(x.UID, counts[0])}, Exclude: []Term{Present(y.UID)}})
			}
		}
	}

	return specs
}

// CheckSpec validates a caller-supplied spec against report before it is
// resolved. Excluding a card every deck plays can never match, so it is
// rejected up front with ErrImpossibleExclusion.
func CheckSpec(spec Spec, report usage.Report) error {
	if report.DeckTotal == 0 {
		return nil
	}
	items := make(map[string]usage.Item, len(report.Items))
	for _, it := range report.Items {
		items[it.UID] = it
	}

	for _, t := range spec.Include {
		if _, ok := items[t.CardID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCard, t.CardID)
		}
		if t.Operator != OpPresent && t.Count < 1 {
			return fmt.Errorf("%w: %s", ErrInvalidTerm, t)
		}
	}
	for _, t := range spec.Exclude {
		it, ok := items[t.CardID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCard, t.CardID)
		}
		if it.AlwaysIncluded() {
			return fmt.Errorf("%w: %s", ErrImpossibleExclusion, t.CardID)
		}
	}
	return nil
}
