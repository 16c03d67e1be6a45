// Package source ingests tournament decklists from an upstream provider and
// turns them into canonical decks.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
)

// Tournament identifies one event on the upstream provider.
type Tournament struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Date    time.Time `json:"date"`
	Format  string    `json:"format,omitempty"`
	Players int       `json:"players,omitempty"`
}

// Source lists tournaments and fetches their decklists.
type Source interface {
	// ListTournaments returns tournaments held at or after since. Records
	// that cannot be read are returned as skipped failures rather than
	// failing the listing.
	ListTournaments(ctx context.Context, since time.Time) ([]Tournament, []Failure, error)
	FetchDecks(ctx context.Context, t Tournament) ([]decks.RawDeck, error)
}

// Failure records a tournament that could not be listed or whose decklists
// could not be fetched.
type Failure struct {
	Tournament Tournament `json:"tournament"`
	Err        string     `json:"error"`
}

// Ingestion is the outcome of one ingestion pass.
type Ingestion struct {
	Tournaments int            `json:"tournaments"`
	Events      []Tournament   `json:"events,omitempty"`
	Decks       []*decks.Deck  `json:"decks"`
	Dropped     int            `json:"dropped"`
	Failures    []Failure      `json:"failures,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Reasons     map[string]int `json:"reasons,omitempty"`
}

// Ingest lists every tournament since the given time and canonicalizes its
// decks. A failed tournament is logged and recorded, and the pass continues.
// Only a failure to list tournaments or a cancelled context is fatal.
func Ingest(ctx context.Context, src Source, since time.Time, table *cards.SynonymTable, logger *zap.Logger) (*Ingestion, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	tournaments, skipped, err := src.ListTournaments(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list tournaments: %w", err)
	}

	result := &Ingestion{
		Tournaments: len(tournaments),
		Events:      tournaments,
		Reasons:     make(map[string]int),
	}
	for _, f := range skipped {
		logger.Warn("Skipping unreadable tournament record",
			zap.String("tournament", f.Tournament.ID),
			zap.String("error", f.Err))
	}
	result.Failures = append(result.Failures, skipped...)
	for _, t := range tournaments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raws, err := src.FetchDecks(ctx, t)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			logger.Warn("Skipping tournament",
				zap.String("tournament", t.ID),
				zap.String("name", t.Name),
				zap.Error(err))
			result.Failures = append(result.Failures, Failure{Tournament: t, Err: err.Error()})
			continue
		}

		for _, raw := range raws {
			if raw.TournamentID == "" {
				raw.TournamentID = t.ID
			}
			deck, err := decks.NewDeck(raw, table)
			if err != nil {
				result.Dropped++
				result.Reasons[dropReason(err)]++
				logger.Debug("Dropping deck",
					zap.String("tournament", t.ID),
					zap.String("player", raw.Player),
					zap.Error(err))
				continue
			}
			result.Decks = append(result.Decks, deck)
		}
	}

	result.Duration = time.Since(start)
	logger.Info("Ingestion finished",
		zap.Int("tournaments", result.Tournaments),
		zap.Int("decks", len(result.Decks)),
		zap.Int("dropped", result.Dropped),
		zap.Int("failed", len(result.Failures)),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, decks.ErrEmptyDeck):
		return "empty"
	case errors.Is(err, decks.ErrInvalidCount):
		return "invalid_count"
	default:
		return "other"
	}
}
