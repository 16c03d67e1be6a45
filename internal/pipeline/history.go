package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
	"github.com/rosematcha/ciphermaniac-sub006/internal/storage"
	"github.com/rosematcha/ciphermaniac-sub006/internal/suggestions"
	"github.com/rosematcha/ciphermaniac-sub006/internal/usage"
)

// History layout. The tournaments/ prefix accumulates across runs and is
// never pruned.
const (
	TournamentIndexKey = "tournaments/index.json"
	SuggestionsKey     = "suggestions.json"
)

// TournamentReportKey is the key of one tournament's usage report.
func TournamentReportKey(id string) string {
	return storage.JoinKey("tournaments", decks.Slug(id), "master.json")
}

// TournamentArchetypesKey is the key of one tournament's card to archetype
// map.
func TournamentArchetypesKey(id string) string {
	return storage.JoinKey("tournaments", decks.Slug(id), "archetypes.json")
}

// Event describes one archived tournament.
type Event struct {
	ID      string    `json:"id"`
	Name    string    `json:"name,omitempty"`
	Date    time.Time `json:"date"`
	Format  string    `json:"format,omitempty"`
	Players int       `json:"players,omitempty"`
	Decks   int       `json:"decks"`
}

// cardArchetypes maps every card uid to the archetype of the best-placed
// deck playing it. Unplaced decks rank last.
func cardArchetypes(all []*decks.Deck) map[string]string {
	ordered := append([]*decks.Deck(nil), all...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Placement, ordered[j].Placement
		if (a == 0) != (b == 0) {
			return b == 0
		}
		return a < b
	})

	out := make(map[string]string)
	for _, d := range ordered {
		for _, e := range d.Cards {
			if _, ok := out[e.Identity.Key()]; !ok {
				out[e.Identity.Key()] = d.Archetype
			}
		}
	}
	return out
}

// Archive writes a usage report per tournament of all and merges events into
// the stored tournament index. Decks of a tournament missing from events are
// archived under a bare event carrying only the id.
func (r *Runner) Archive(ctx context.Context, events []Event, all []*decks.Deck) ([]Event, error) {
	byTournament := make(map[string][]*decks.Deck)
	for _, d := range all {
		if d.TournamentID == "" {
			continue
		}
		byTournament[d.TournamentID] = append(byTournament[d.TournamentID], d)
	}

	var index []Event
	if err := storage.GetJSON(ctx, r.store, TournamentIndexKey, &index); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load tournament index: %w", err)
	}
	merged := make(map[string]Event, len(index))
	for _, e := range index {
		merged[e.ID] = e
	}

	known := make(map[string]Event, len(events))
	for _, e := range events {
		known[e.ID] = e
	}
	for id, group := range byTournament {
		e, ok := known[id]
		if !ok {
			e = Event{ID: id}
			// keep metadata an earlier run recorded
			if prev, ok := merged[id]; ok {
				e = prev
			}
		}
		e.Decks = len(group)

		if err := storage.PutJSON(ctx, r.store, TournamentReportKey(id), usage.Build(group)); err != nil {
			return nil, err
		}
		if err := storage.PutJSON(ctx, r.store, TournamentArchetypesKey(id), cardArchetypes(group)); err != nil {
			return nil, err
		}
		merged[id] = e
	}

	index = index[:0]
	for _, e := range merged {
		index = append(index, e)
	}
	sort.Slice(index, func(i, j int) bool {
		if !index[i].Date.Equal(index[j].Date) {
			return index[i].Date.After(index[j].Date)
		}
		return index[i].ID < index[j].ID
	})
	if err := storage.PutJSON(ctx, r.store, TournamentIndexKey, index); err != nil {
		return nil, err
	}
	r.logger.Info("Archived tournaments",
		zap.Int("tournaments", len(byTournament)),
		zap.Int("history", len(index)))
	return index, nil
}

// Suggest loads the archived history, ranks suggestions over it and writes
// them to SuggestionsKey. Tournaments whose reports are missing are skipped.
func (r *Runner) Suggest(ctx context.Context, opts suggestions.Options) (*suggestions.Suggestions, error) {
	var index []Event
	if err := storage.GetJSON(ctx, r.store, TournamentIndexKey, &index); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load tournament index: %w", err)
	}

	snaps := make([]suggestions.Snapshot, 0, len(index))
	for _, e := range index {
		snap := suggestions.Snapshot{ID: e.ID, Name: e.Name, Date: e.Date, Format: e.Format}
		if err := storage.GetJSON(ctx, r.store, TournamentReportKey(e.ID), &snap.Report); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				r.logger.Warn("Tournament report missing", zap.String("tournament", e.ID))
				continue
			}
			return nil, fmt.Errorf("load tournament %s: %w", e.ID, err)
		}
		if err := storage.GetJSON(ctx, r.store, TournamentArchetypesKey(e.ID), &snap.Archetypes); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load tournament %s archetypes: %w", e.ID, err)
		}
		snaps = append(snaps, snap)
	}

	out := suggestions.Generate(snaps, opts, r.opts.Now())
	if err := storage.PutJSON(ctx, r.store, SuggestionsKey, out); err != nil {
		return nil, err
	}
	for _, c := range out.Categories {
		r.logger.Debug("Suggestions ranked", zap.String("category", c.ID), zap.Int("items", len(c.Items)))
	}
	r.logger.Info("Wrote suggestions", zap.Int("tournaments", out.Tournaments))
	return &out, nil
}
