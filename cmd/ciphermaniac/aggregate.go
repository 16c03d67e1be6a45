package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
	"github.com/rosematcha/ciphermaniac-sub006/internal/config"
	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
	"github.com/rosematcha/ciphermaniac-sub006/internal/filters"
	"github.com/rosematcha/ciphermaniac-sub006/internal/metrics"
	"github.com/rosematcha/ciphermaniac-sub006/internal/pipeline"
	"github.com/rosematcha/ciphermaniac-sub006/internal/source"
	"github.com/rosematcha/ciphermaniac-sub006/internal/source/limitless"
	"github.com/rosematcha/ciphermaniac-sub006/internal/subsets"
	"github.com/rosematcha/ciphermaniac-sub006/internal/suggestions"
)

type aggregateFlags struct {
	since       string
	input       string
	workers     int
	suggestions bool
}

func newAggregateCmd(global *globalFlags) *cobra.Command {
	flags := &aggregateFlags{}
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Ingest recent decklists and write all reports",
		Long: `Fetches every tournament inside the look-back window from Limitless (or reads
decklists from --input), then writes the master report, the card index and the
per-archetype include/exclude reports to the artifact store. Each tournament is
also archived under tournaments/ and suggestions.json is ranked over the archive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd.Context(), global, flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flags.since, "since", "", "look-back window (e.g. 336h) or start date (2006-01-02)")
	cmd.Flags().StringVar(&flags.input, "input", "", "read raw decklists from a JSON file instead of Limitless")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "archetypes built concurrently, overrides engine.workers")
	cmd.Flags().BoolVar(&flags.suggestions, "suggestions", true, "archive per-tournament reports and rewrite suggestions.json")
	return cmd
}

// parseSince resolves --since against now: a duration counts back from now,
// a date is taken as midnight UTC.
func parseSince(value string, fallback time.Duration, now time.Time) (time.Time, error) {
	if value == "" {
		return now.Add(-fallback), nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("--since cannot be negative: %s", value)
		}
		return now.Add(-d), nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since %q: want a duration or a date", value)
}

// runnerOptions maps the engine config onto pipeline options.
func runnerOptions(cfg *config.Config) (pipeline.Options, error) {
	policy, err := subsets.ParseNoOpPolicy(cfg.Engine.NoOpPolicy)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.DefaultOptions()
	opts.Generator = filters.GeneratorOptions{
		MinUsagePercent: cfg.Engine.MinUsagePercent,
		TopN:            cfg.Engine.TopN,
		MaxCountFilters: cfg.Engine.MaxCountFilters,
	}
	opts.MinSubsetSize = cfg.Engine.MinSubsetSize
	opts.NoOpPolicy = policy
	opts.MinArchetypeDecks = cfg.Engine.MinArchetypeDecks
	opts.Workers = cfg.Engine.Workers
	opts.PruneStale = cfg.Engine.PruneStale
	return opts, nil
}

func runAggregate(ctx context.Context, global *globalFlags, flags *aggregateFlags, out io.Writer) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}
	if flags.workers > 0 {
		cfg.Engine.Workers = flags.workers
	}
	opts, err := runnerOptions(cfg)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	table, err := cards.LoadSynonyms(cfg.Synonyms.Path)
	if err != nil {
		return err
	}

	var (
		all    []*decks.Deck
		events []pipeline.Event
	)
	if flags.input != "" {
		all, err = readDecks(flags.input, table, logger)
	} else {
		all, events, err = ingest(ctx, cfg, flags.since, table, logger)
	}
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}()

	runner := pipeline.NewRunner(store, opts, logger, metrics.NewPipeline(nil))
	result, err := runner.Run(ctx, all)
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	if flags.suggestions {
		if _, err := runner.Archive(ctx, events, all); err != nil {
			logger.Warn("Failed to archive tournaments", zap.Error(err))
		} else if _, err := runner.Suggest(ctx, suggestions.DefaultOptions()); err != nil {
			logger.Warn("Failed to write suggestions", zap.Error(err))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("aggregation finished with %d failures", len(result.Failures))
	}
	return nil
}

func ingest(ctx context.Context, cfg *config.Config, since string, table *cards.SynonymTable, logger *zap.Logger) ([]*decks.Deck, []pipeline.Event, error) {
	cutoff, err := parseSince(since, cfg.SourceWindow(), time.Now().UTC())
	if err != nil {
		return nil, nil, err
	}

	client := limitless.NewClient(limitless.Config{
		BaseURL:   cfg.Source.BaseURL,
		APIURL:    cfg.Source.APIURL,
		APIKey:    cfg.Source.APIKey,
		Game:      cfg.Source.Game,
		Format:    cfg.Source.Format,
		RateLimit: time.Duration(cfg.Source.RateLimitMs) * time.Millisecond,
		RetryMax:  cfg.Source.RetryMax,
		Timeout:   cfg.SourceTimeout(),
		PageSize:  cfg.Source.PageSize,
	})

	result, err := source.Ingest(ctx, client, cutoff, table, logger)
	if err != nil {
		return nil, nil, err
	}
	events := make([]pipeline.Event, 0, len(result.Events))
	for _, t := range result.Events {
		events = append(events, pipeline.Event{ID: t.ID, Name: t.Name, Date: t.Date, Format: t.Format, Players: t.Players})
	}
	return result.Decks, events, nil
}

// readDecks loads raw decklists from a JSON file and canonicalizes them.
func readDecks(path string, table *cards.SynonymTable, logger *zap.Logger) ([]*decks.Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read decklists: %w", err)
	}
	var raws []decks.RawDeck
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse decklists: %w", err)
	}

	all := make([]*decks.Deck, 0, len(raws))
	for i, raw := range raws {
		d, err := decks.NewDeck(raw, table)
		if errors.Is(err, decks.ErrEmptyDeck) || errors.Is(err, decks.ErrInvalidCount) {
			logger.Warn("Dropping decklist", zap.Int("index", i), zap.String("player", raw.Player), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		all = append(all, d)
	}
	return all, nil
}
