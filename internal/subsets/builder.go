package subsets

import (
	"fmt"
	"strings"
	"time"

	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
	"github.com/rosematcha/ciphermaniac-sub006/internal/filters"
	"github.com/rosematcha/ciphermaniac-sub006/internal/usage"
)

// Options configures Build.
type Options struct {
	MinSubsetSize int
	NoOpPolicy    NoOpPolicy
	// Now stamps generated reports; time.Now when nil.
	Now func() time.Time
}

// DefaultOptions returns the builder defaults.
func DefaultOptions() Options {
	return Options{
		MinSubsetSize: filters.DefaultMinSubsetSize,
		NoOpPolicy:    NoOpDrop,
	}
}

// Result is the output of Build.
type Result struct {
	Index   *FilterIndex
	Records []*UniqueSubsetRecord
}

// SubsetID formats the n-th (1-based) subset id.
func SubsetID(n int) string {
	return fmt.Sprintf("subset_%03d", n)
}

// Build resolves every combination against the archetype population and
// deduplicates the resulting reports by the hash of their items. The first
// combination producing a report becomes its primary filter; later ones are
// recorded as alternates. master must be the usage report of pop.
func Build(archetype string, combos []filters.Spec, pop *decks.Population, idx *filters.Index, master usage.Report, opts Options) (*Result, error) {
	if opts.MinSubsetSize < 1 {
		opts.MinSubsetSize = filters.DefaultMinSubsetSize
	}
	if opts.NoOpPolicy == "" {
		opts.NoOpPolicy = NoOpDrop
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	generatedAt := now().UTC()

	cards := Summaries(master)
	fi := &FilterIndex{
		Archetype:   archetype,
		DeckTotal:   master.DeckTotal,
		NoOpPolicy:  opts.NoOpPolicy,
		GeneratedAt: generatedAt,
		Cards:       cards,
		FilterMap:   make(map[string]string),
		Subsets:     make(map[string]SubsetMeta),
	}

	var records []*UniqueSubsetRecord
	byHash := make(map[string]*UniqueSubsetRecord)
	// Equal deck sets always produce equal reports; skip rebuilding them.
	hashByMembers := make(map[string]string)

	for _, spec := range combos {
		fi.Stats.Generated++
		key := spec.Key()
		if _, done := fi.FilterMap[key]; done {
			continue
		}

		sub, outcome := filters.Resolve(spec, idx, opts.MinSubsetSize)
		switch outcome {
		case filters.OutcomeEmpty:
			fi.Stats.Empty++
			continue
		case filters.OutcomeTooSmall:
			fi.Stats.TooSmall++
			continue
		case filters.OutcomeUnchanged:
			fi.Stats.Unchanged++
			if opts.NoOpPolicy == NoOpBase {
				fi.FilterMap[key] = BaseSubsetID
			}
			continue
		}
		fi.Stats.Kept++

		members := strings.Join(sub.Keys(), "\x00")
		hash, seen := hashByMembers[members]
		var report usage.Report
		if !seen {
			report = usage.Build(sub.Decks(pop))
			h, err := usage.ItemsHash(report.Items)
			if err != nil {
				return nil, fmt.Errorf("hash subset for %s: %w", key, err)
			}
			hash = h
			hashByMembers[members] = hash
		}

		if rec, ok := byHash[hash]; ok {
			rec.AlternateFilters = append(rec.AlternateFilters, spec)
			fi.FilterMap[key] = rec.ID
			continue
		}

		rec := &UniqueSubsetRecord{
			ID:               SubsetID(len(records) + 1),
			Hash:             hash,
			PrimaryFilter:    spec,
			AlternateFilters: []filters.Spec{},
			Data: SubsetReport{
				Report:  report,
				Filters: Display(spec, cards, master.DeckTotal),
				Source:  Source{Archetype: archetype, GeneratedAt: generatedAt},
			},
		}
		records = append(records, rec)
		byHash[hash] = rec
		fi.FilterMap[key] = rec.ID
	}

	for _, rec := range records {
		fi.Subsets[rec.ID] = SubsetMeta{
			DeckTotal:      rec.Data.DeckTotal,
			Hash:           rec.Hash,
			PrimaryFilter:  rec.PrimaryFilter,
			AlternateCount: len(rec.AlternateFilters),
		}
	}
	fi.TotalCombinations = fi.Stats.Kept
	fi.UniqueSubsets = len(records)
	fi.DeduplicationRate = DeduplicationRate(fi.TotalCombinations, fi.UniqueSubsets)

	return &Result{Index: fi, Records: records}, nil
}

// DeduplicationRate returns (total-unique)/total, or 0 for no combinations.
func DeduplicationRate(total, unique int) float64 {
	if total == 0 {
		return 0
	}
	return float64(total-unique) / float64(total)
}

// Summaries returns the master report's cards keyed by UID.
func Summaries(master usage.Report) map[string]CardSummary {
	out := make(map[string]CardSummary, len(master.Items))
	for _, it := range master.Items {
		out[it.UID] = CardSummary{
			ID:             it.UID,
			Name:           it.Name,
			Set:            it.Set,
			Number:         it.Number,
			Found:          it.Found,
			Total:          it.Total,
			Pct:            it.Pct,
			AlwaysIncluded: it.AlwaysIncluded(),
		}
	}
	return out
}

// Display resolves the terms of spec against cards. Unknown ids keep only
// their id.
func Display(spec filters.Spec, cards map[string]CardSummary, baseDeckTotal int) DisplayFilters {
	resolve := func(terms []filters.Term) []FilterCard {
		out := make([]FilterCard, 0, len(terms))
		for _, t := range terms {
			summary, ok := cards[t.CardID]
			if !ok {
				summary = CardSummary{ID: t.CardID}
			}
			out = append(out, FilterCard{CardSummary: summary, Operator: t.Operator, Count: t.Count})
		}
		return out
	}
	return DisplayFilters{
		Include:       resolve(spec.Include),
		Exclude:       resolve(spec.Exclude),
		BaseDeckTotal: baseDeckTotal,
	}
}

// Report builds a subset report for one spec on demand. The outcome tells
// whether the subset would have been kept by Build; the report is built
// for every outcome except OutcomeEmpty.
func Report(archetype string, spec filters.Spec, pop *decks.Population, idx *filters.Index, master usage.Report, minSize int, now time.Time) (SubsetReport, filters.Outcome) {
	sub, outcome := filters.Resolve(spec, idx, minSize)
	if outcome == filters.OutcomeEmpty {
		return SubsetReport{}, outcome
	}
	return SubsetReport{
		Report:  usage.Build(sub.Decks(pop)),
		Filters: Display(spec, Summaries(master), master.DeckTotal),
		Source:  Source{Archetype: archetype, GeneratedAt: now.UTC()},
	}, outcome
}
