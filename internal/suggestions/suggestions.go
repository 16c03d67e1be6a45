// Package suggestions picks cards worth a second look from the usage
// history of successive tournaments: staples, breakouts and cards that fell
// out of favour.
package suggestions

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
	"github.com/rosematcha/ciphermaniac-sub006/internal/usage"
)

// Category ids.
const (
	ConsistentLeaders = "consistent-leaders"
	OnTheRise         = "on-the-rise"
	ChoppedAndWashed  = "chopped-and-washed"
	ThatDay2d         = "that-day2d"
)

// Unspecified groups cards whose archetype is unknown under the
// per-archetype cap.
const Unspecified = "UNSPECIFIED"

// Options tunes the heuristics. Percentages are usage percentages (0-100).
type Options struct {
	// HalfLife of the recency weight given to a past peak.
	HalfLife time.Duration
	// MinPeakPct is the smallest usage counted as a peak.
	MinPeakPct float64
	MinDropAbs float64
	// MinDropRel is the drop from a peak as a fraction of it.
	MinDropRel float64
	// LowUsagePct caps recent usage of chopped and day-2 cards.
	LowUsagePct     float64
	RiseMinPct      float64
	RiseMinDelta    float64
	RiseRatio       float64
	Day2dWindow     int
	Day2dPeakPct    float64
	Day2dLatestPct  float64
	MaxPerArchetype int
	// The per-archetype cap is relaxed up to RelaxedCap while a category
	// holds fewer than MinCandidates items.
	RelaxedCap    int
	MinCandidates int
	MaxCandidates int
}

// DefaultOptions returns the default heuristics.
func DefaultOptions() Options {
	return Options{
		HalfLife:        30 * 24 * time.Hour,
		MinPeakPct:      3,
		MinDropAbs:      3,
		MinDropRel:      0.4,
		LowUsagePct:     3,
		RiseMinPct:      3,
		RiseMinDelta:    3,
		RiseRatio:       1.6,
		Day2dWindow:     10,
		Day2dPeakPct:    6,
		Day2dLatestPct:  2,
		MaxPerArchetype: 2,
		RelaxedCap:      4,
		MinCandidates:   12,
		MaxCandidates:   18,
	}
}

// Snapshot is the usage of one tournament.
type Snapshot struct {
	ID     string    `json:"id"`
	Name   string    `json:"name,omitempty"`
	Date   time.Time `json:"date"`
	Format string    `json:"format,omitempty"`
	Report usage.Report
	// Archetypes maps a card uid to the archetype of the best-placed deck
	// playing it.
	Archetypes map[string]string
}

// Item is one suggested card.
type Item struct {
	Name      string   `json:"name"`
	UID       string   `json:"uid"`
	Set       string   `json:"set,omitempty"`
	Number    string   `json:"number,omitempty"`
	Archetype string   `json:"archetype,omitempty"`
	Score     float64  `json:"score,omitempty"`
	Peak      *float64 `json:"peak,omitempty"`
	Latest    *float64 `json:"latest,omitempty"`
}

// Category is one list of suggestions.
type Category struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Suggestions is the document written to suggestions.json.
type Suggestions struct {
	GeneratedAt time.Time  `json:"generatedAt"`
	Tournaments int        `json:"tournaments"`
	Categories  []Category `json:"categories"`
}

var basicEnergyTypes = map[string]bool{
	"psychic": true, "fire": true, "lightning": true, "grass": true,
	"darkness": true, "metal": true, "fighting": true, "water": true,
}

// IsBasicEnergy reports whether it is a basic energy, by category or by
// name ("Psychic Energy", "Basic Psychic Energy").
func IsBasicEnergy(it usage.Item) bool {
	if it.Category != nil && it.Category.Kind == cards.KindEnergy && it.Category.Subtype == cards.EnergyBasic {
		return true
	}
	name := strings.TrimPrefix(strings.ToLower(it.Name), "basic ")
	kind, ok := strings.CutSuffix(name, " energy")
	return ok && basicEnergyTypes[kind]
}

// history is the newest-first view the heuristics work on.
type history struct {
	snaps []Snapshot
	pct   []map[string]float64
	items map[string]usage.Item
	uids  []string
}

func newHistory(snaps []Snapshot) *history {
	h := &history{snaps: snaps, items: make(map[string]usage.Item)}
	for _, s := range snaps {
		m := make(map[string]float64, len(s.Report.Items))
		for _, it := range s.Report.Items {
			m[it.UID] = it.Pct
			// newest snapshot wins the display fields
			if _, ok := h.items[it.UID]; !ok {
				h.items[it.UID] = it
				h.uids = append(h.uids, it.UID)
			}
		}
		h.pct = append(h.pct, m)
	}
	sort.Strings(h.uids)
	return h
}

func (h *history) at(i int, uid string) float64 {
	if i >= len(h.pct) {
		return 0
	}
	return h.pct[i][uid]
}

func (h *history) archetype(uid string) string {
	for _, s := range h.snaps {
		if a := s.Archetypes[uid]; a != "" {
			return a
		}
	}
	return Unspecified
}

func (h *history) item(uid string) Item {
	it := h.items[uid]
	return Item{Name: it.Name, UID: uid, Set: it.Set, Number: it.Number}
}

// eligible lists the uids that may be suggested.
func (h *history) eligible(exclude map[string]bool) []string {
	var out []string
	for _, uid := range h.uids {
		if exclude[uid] || IsBasicEnergy(h.items[uid]) {
			continue
		}
		out = append(out, uid)
	}
	return out
}

type candidate struct {
	item  Item
	score float64
	tie   float64
}

// capped ranks candidates by score, then tie, then name, and keeps at most
// perArchetype per archetype and limit overall.
func capped(cands []candidate, perArchetype, limit int) []Item {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.tie != b.tie {
			return a.tie > b.tie
		}
		return a.item.Name < b.item.Name
	})
	out := []Item{}
	counts := make(map[string]int)
	for _, c := range cands {
		if counts[c.item.Archetype] >= perArchetype {
			continue
		}
		counts[c.item.Archetype]++
		out = append(out, c.item)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// relaxed runs pick with the per-archetype cap raised step by step until it
// yields MinCandidates items or the cap reaches RelaxedCap.
func (o Options) relaxed(pick func(perArchetype int) []Item) []Item {
	items := pick(o.MaxPerArchetype)
	for c := o.MaxPerArchetype + 1; c <= o.RelaxedCap && len(items) < o.MinCandidates; c++ {
		items = pick(c)
	}
	return items
}

// leaders returns the cards with the highest average usage.
func (h *history) leaders(o Options) []Item {
	type stat struct {
		uid     string
		avg     float64
		present int
	}
	var stats []stat
	for _, uid := range h.eligible(nil) {
		var sum float64
		present := 0
		for i := range h.pct {
			p := h.at(i, uid)
			sum += p
			if p > 0 {
				present++
			}
		}
		stats = append(stats, stat{uid: uid, avg: sum / float64(len(h.pct)), present: present})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.avg != b.avg {
			return a.avg > b.avg
		}
		if a.present != b.present {
			return a.present > b.present
		}
		return h.items[a.uid].Name < h.items[b.uid].Name
	})

	out := []Item{}
	for _, s := range stats {
		if len(out) >= o.MaxCandidates {
			break
		}
		out = append(out, h.item(s.uid))
	}
	return out
}

// rising returns cards whose latest usage broke out over their earlier mean.
// Cards absent from every earlier event are skipped as likely new releases.
func (h *history) rising(o Options, exclude map[string]bool, perArchetype int) []Item {
	var cands []candidate
	for _, uid := range h.eligible(exclude) {
		latest := h.at(0, uid)
		var sum float64
		seen := false
		for i := 1; i < len(h.pct); i++ {
			p := h.at(i, uid)
			sum += p
			seen = seen || p > 0
		}
		mean := 0.0
		if n := len(h.pct) - 1; n > 0 {
			if !seen {
				continue
			}
			mean = sum / float64(n)
		}
		delta := latest - mean
		if latest < o.RiseMinPct || (delta < o.RiseMinDelta && latest < mean*o.RiseRatio) {
			continue
		}
		it := h.item(uid)
		it.Archetype = h.archetype(uid)
		cands = append(cands, candidate{item: it, score: delta, tie: latest})
	}
	return capped(cands, perArchetype, o.MaxCandidates)
}

func (o Options) recencyWeight(age time.Duration) float64 {
	if o.HalfLife <= 0 {
		return 0
	}
	return math.Pow(0.5, float64(age)/float64(o.HalfLife))
}

// chopped scores cards by their drop from an earlier peak to the latest
// event, weighting recent peaks and crashes to zero higher.
func (h *history) chopped(o Options, now time.Time, exclude map[string]bool, perArchetype int) []Item {
	var cands []candidate
	for _, uid := range h.eligible(exclude) {
		latest := h.at(0, uid)
		if latest > o.LowUsagePct || (len(h.pct) > 1 && h.at(1, uid) > o.LowUsagePct) {
			continue
		}

		best, bestPeak := 0.0, 0.0
		for i := 1; i < len(h.pct); i++ {
			peak := h.at(i, uid)
			if peak < o.MinPeakPct {
				continue
			}
			drop := peak - latest
			if drop <= 0 {
				continue
			}
			rel := drop / peak
			if drop < o.MinDropAbs && rel < o.MinDropRel {
				continue
			}

			// undated events are spaced a week apart
			age := time.Duration(i) * 7 * 24 * time.Hour
			if d := h.snaps[i].Date; !d.IsZero() {
				age = now.Sub(d)
			}
			score := drop * (1 + rel) * (1 + peak/10) * (1 + o.recencyWeight(age))
			if latest <= 0 {
				score *= 2
			}
			if score > best {
				best, bestPeak = score, peak
			}
		}
		if best <= 0 {
			continue
		}

		it := h.item(uid)
		it.Archetype = h.archetype(uid)
		it.Score = math.Round(best*1000) / 1000
		it.Peak = ptr(bestPeak)
		it.Latest = ptr(latest)
		cands = append(cands, candidate{item: it, score: best})
	}
	return capped(cands, perArchetype, o.MaxCandidates)
}

// day2d returns cards that once peaked but have stayed low across the
// recent window.
func (h *history) day2d(o Options, exclude map[string]bool, perArchetype int) []Item {
	window := min(len(h.pct), o.Day2dWindow)
	var cands []candidate
	for _, uid := range h.eligible(exclude) {
		recent := false
		for i := 0; i < window; i++ {
			if h.at(i, uid) > o.LowUsagePct {
				recent = true
				break
			}
		}
		if recent {
			continue
		}

		latest, peak := h.at(0, uid), 0.0
		for i := 1; i < len(h.pct); i++ {
			peak = math.Max(peak, h.at(i, uid))
		}
		if peak < o.Day2dPeakPct || latest > o.Day2dLatestPct {
			continue
		}
		it := h.item(uid)
		it.Archetype = h.archetype(uid)
		cands = append(cands, candidate{item: it, score: peak - latest, tie: peak})
	}
	return capped(cands, perArchetype, o.MaxCandidates)
}

func ptr(f float64) *float64 { return &f }

// rotationPrefix reduces a format name to its rotation family, e.g.
// "Scarlet & Violet - Surging Sparks" to "Scarlet & Violet".
func rotationPrefix(format string) string {
	s := strings.NewReplacer("—", "-", "–", "-", " and ", " & ").Replace(format)
	head, _, _ := strings.Cut(s, "-")
	return strings.TrimSpace(head)
}

// CurrentRotation keeps the snapshots of the newest rotation family once it
// holds at least three events; otherwise all snapshots are kept.
func CurrentRotation(snaps []Snapshot) []Snapshot {
	current := ""
	for _, s := range snaps {
		if current = rotationPrefix(s.Format); current != "" {
			break
		}
	}
	if current == "" {
		return snaps
	}

	var kept []Snapshot
	for _, s := range snaps {
		if rotationPrefix(s.Format) == current {
			kept = append(kept, s)
		}
	}
	if len(kept) < 3 {
		return snaps
	}
	return kept
}

// Generate builds every category from snaps. Snapshots are ordered newest
// first by date; undated ones keep their relative order. A card lands in at
// most one category, in the order leaders, rising, chopped, day-2.
func Generate(snaps []Snapshot, o Options, now time.Time) Suggestions {
	ordered := append([]Snapshot(nil), snaps...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.After(ordered[j].Date)
	})
	ordered = CurrentRotation(ordered)

	out := Suggestions{GeneratedAt: now.UTC(), Tournaments: len(ordered)}
	if len(ordered) == 0 {
		out.Categories = []Category{
			{ID: ConsistentLeaders, Title: "Consistent Leaders", Items: []Item{}},
			{ID: OnTheRise, Title: "On The Rise", Items: []Item{}},
			{ID: ChoppedAndWashed, Title: "Chopped and Washed", Items: []Item{}},
			{ID: ThatDay2d, Title: "That Day 2'd?", Items: []Item{}},
		}
		return out
	}

	h := newHistory(ordered)
	taken := make(map[string]bool)
	take := func(items []Item) []Item {
		for _, it := range items {
			taken[it.UID] = true
		}
		return items
	}

	leaders := take(h.leaders(o))
	exclude := clone(taken)
	rising := take(o.relaxed(func(c int) []Item { return h.rising(o, exclude, c) }))
	exclude = clone(taken)
	chopped := take(o.relaxed(func(c int) []Item { return h.chopped(o, now, exclude, c) }))
	exclude = clone(taken)
	day2d := o.relaxed(func(c int) []Item { return h.day2d(o, exclude, c) })

	out.Categories = []Category{
		{ID: ConsistentLeaders, Title: "Consistent Leaders", Items: leaders},
		{ID: OnTheRise, Title: "On The Rise", Items: rising},
		{ID: ChoppedAndWashed, Title: "Chopped and Washed", Items: chopped},
		{ID: ThatDay2d, Title: "That Day 2'd?", Items: day2d},
	}
	return out
}

func clone(m map[string]bool) map[string]bool {
	c := make(map[string]bool, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
