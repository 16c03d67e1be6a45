// Package pipeline runs the aggregation over a deck population and serves
// filter reports on demand.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
	"github.com/rosematcha/ciphermaniac-sub006/internal/filters"
	"github.com/rosematcha/ciphermaniac-sub006/internal/logging"
	"github.com/rosematcha/ciphermaniac-sub006/internal/metrics"
	"github.com/rosematcha/ciphermaniac-sub006/internal/storage"
	"github.com/rosematcha/ciphermaniac-sub006/internal/subsets"
	"github.com/rosematcha/ciphermaniac-sub006/internal/usage"
)

// ErrEmptyPopulation is returned when Run is given no decks.
var ErrEmptyPopulation = errors.New("deck population is empty")

// Options configures a Runner.
type Options struct {
	Generator         filters.GeneratorOptions
	MinSubsetSize     int
	NoOpPolicy        subsets.NoOpPolicy
	MinArchetypeDecks int
	Workers           int
	PruneStale        bool
	Now               func() time.Time
}

// DefaultOptions returns the runner defaults.
func DefaultOptions() Options {
	return Options{
		Generator:         filters.DefaultGeneratorOptions(),
		MinSubsetSize:     filters.DefaultMinSubsetSize,
		NoOpPolicy:        subsets.NoOpDrop,
		MinArchetypeDecks: 4,
		Workers:           4,
		PruneStale:        true,
	}
}

// Counts summarizes one run.
type Counts struct {
	Decks         int `json:"decks"`
	Archetypes    int `json:"archetypes"`
	Processed     int `json:"processed"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
	Combinations  int `json:"combinations"`
	UniqueSubsets int `json:"uniqueSubsets"`
	Discarded     int `json:"discarded"`
	Artifacts     int `json:"artifacts"`
	Pruned        int `json:"pruned"`
}

// Durations are percentiles of per-archetype build times.
type Durations struct {
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	Max   time.Duration `json:"max"`
	Total time.Duration `json:"total"`
}

// ArchetypeFailure records an archetype whose artifacts could not be written.
type ArchetypeFailure struct {
	Archetype string `json:"archetype"`
	Err       string `json:"error"`
}

// Result is the outcome of Run.
type Result struct {
	Success   bool               `json:"success"`
	RunID     string             `json:"runId"`
	Counts    Counts             `json:"counts"`
	Durations Durations          `json:"durations"`
	Failures  []ArchetypeFailure `json:"failures,omitempty"`
}

// Runner writes the master report, card index and per-archetype filter
// artifacts for a deck population.
type Runner struct {
	store   storage.BlobStore
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Pipeline
}

// NewRunner creates a runner writing to store. logger and m may be nil.
func NewRunner(store storage.BlobStore, opts Options, logger *zap.Logger, m *metrics.Pipeline) *Runner {
	logger = logging.OrNop(logger)
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MinArchetypeDecks < 1 {
		opts.MinArchetypeDecks = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{store: store, opts: opts, logger: logger, metrics: m}
}

// archetypeOutcome is what one archetype contributed to the run.
type archetypeOutcome struct {
	written []string
	stats   subsets.Stats
	unique  int
}

// run holds the mutable state shared by the archetype workers.
type run struct {
	mu        sync.Mutex
	result    *Result
	written   map[string]struct{}
	durations *metrics.Histogram
}

func (r *run) addWritten(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.written[k] = struct{}{}
	}
	r.result.Counts.Artifacts += len(keys)
}

// Run aggregates all decks. Only an empty population or a cancelled context
// is fatal; a failed archetype is logged, counted and leaves Success false.
func (r *Runner) Run(ctx context.Context, all []*decks.Deck) (*Result, error) {
	if len(all) == 0 {
		return nil, ErrEmptyPopulation
	}
	start := time.Now()

	state := &run{
		result: &Result{
			RunID:  uuid.NewString(),
			Counts: Counts{Decks: len(all)},
		},
		written:   make(map[string]struct{}),
		durations: metrics.NewHistogram(1024),
	}
	logger := r.logger.With(zap.String("run_id", state.result.RunID))
	logger.Info("Starting aggregation run", zap.Int("decks", len(all)), zap.Int("workers", r.opts.Workers))

	globalFailed := false
	global := []struct {
		key   string
		value any
	}{
		{MasterKey, usage.Build(all)},
		{CardIndexKey, usage.BuildCardIndex(all)},
		{DecksKey, all},
	}
	for _, g := range global {
		if err := storage.PutJSON(ctx, r.store, g.key, g.value); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Error("Failed to write artifact", zap.String("key", g.key), zap.Error(err))
			state.result.Failures = append(state.result.Failures, ArchetypeFailure{Err: err.Error()})
			globalFailed = true
			continue
		}
		state.addWritten(g.key)
	}

	groups := decks.GroupByArchetype(all)
	state.result.Counts.Archetypes = len(groups)

	var eligible []decks.Group
	processed := []string{}
	for _, group := range groups {
		if len(group.Decks) < r.opts.MinArchetypeDecks {
			state.result.Counts.Skipped++
			r.metrics.ObserveArchetype("skipped", 0)
			logger.Debug("Skipping small archetype",
				zap.String("archetype", group.Label),
				zap.Int("decks", len(group.Decks)))
			continue
		}
		eligible = append(eligible, group)
		processed = append(processed, group.Slug)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, group := range eligible {
		group := group
		g.Go(func() error {
			began := time.Now()
			outcome, err := r.processArchetype(gctx, group)
			elapsed := time.Since(began)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.metrics.ObserveArchetype("failed", elapsed)
				logger.Error("Archetype failed", zap.String("archetype", group.Label), zap.Error(err))
				state.mu.Lock()
				state.result.Counts.Failed++
				state.result.Failures = append(state.result.Failures, ArchetypeFailure{Archetype: group.Label, Err: err.Error()})
				state.mu.Unlock()
				return nil
			}

			r.metrics.ObserveArchetype("processed", elapsed)
			state.durations.Record(elapsed)
			state.addWritten(outcome.written...)
			state.mu.Lock()
			state.result.Counts.Processed++
			state.result.Counts.Combinations += outcome.stats.Kept
			state.result.Counts.UniqueSubsets += outcome.unique
			state.result.Counts.Discarded += outcome.stats.Discarded()
			state.mu.Unlock()
			logger.Debug("Archetype done",
				zap.String("archetype", group.Label),
				zap.Int("decks", len(group.Decks)),
				zap.Int("combinations", outcome.stats.Kept),
				zap.Int("unique_subsets", outcome.unique),
				zap.Duration("duration", elapsed))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(processed)
	if err := storage.PutJSON(ctx, r.store, ArchetypeIndexKey, processed); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error("Failed to write artifact", zap.String("key", ArchetypeIndexKey), zap.Error(err))
		state.result.Failures = append(state.result.Failures, ArchetypeFailure{Err: err.Error()})
		globalFailed = true
	} else {
		state.addWritten(ArchetypeIndexKey)
	}

	result := state.result
	result.Success = !globalFailed && result.Counts.Failed == 0

	// A partial run keeps the artifacts of earlier runs reachable.
	if r.opts.PruneStale && result.Success {
		for _, prefix := range []string{archetypesPrefix, includeExcludePrefix} {
			n, err := storage.Prune(ctx, r.store, prefix, state.written)
			result.Counts.Pruned += n
			if err != nil {
				logger.Warn("Failed to prune stale artifacts", zap.String("prefix", prefix), zap.Error(err))
			}
		}
	}

	r.metrics.AddArtifacts(result.Counts.Artifacts)
	result.Durations = Durations{
		P50:   state.durations.Percentile(50),
		P95:   state.durations.Percentile(95),
		Max:   state.durations.Max(),
		Total: time.Since(start),
	}
	logger.Info("Aggregation run finished",
		zap.Bool("success", result.Success),
		zap.Int("processed", result.Counts.Processed),
		zap.Int("skipped", result.Counts.Skipped),
		zap.Int("failed", result.Counts.Failed),
		zap.Int("artifacts", result.Counts.Artifacts),
		zap.Duration("p95", result.Durations.P95),
		zap.Duration("duration", result.Durations.Total))
	return result, nil
}

// processArchetype writes the usage report of one archetype and, when it has
// optional cards, its filter index and unique subsets.
func (r *Runner) processArchetype(ctx context.Context, group decks.Group) (*archetypeOutcome, error) {
	pop := decks.NewPopulation(group.Decks)
	master := usage.Build(pop.Decks())
	outcome := &archetypeOutcome{}

	reportKey := ArchetypeReportKey(group.Label)
	if err := storage.PutJSON(ctx, r.store, reportKey, master); err != nil {
		return nil, err
	}
	outcome.written = append(outcome.written, reportKey)

	combos := filters.Generate(master, r.opts.Generator)
	if len(combos) == 0 {
		return outcome, nil
	}

	built, err := subsets.Build(group.Label, combos, pop, filters.NewIndex(pop), master, subsets.Options{
		MinSubsetSize: r.opts.MinSubsetSize,
		NoOpPolicy:    r.opts.NoOpPolicy,
		Now:           r.opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("build subsets for %s: %w", group.Label, err)
	}
	stats := built.Index.Stats
	r.metrics.ObserveCombinations(filters.OutcomeKept.String(), stats.Kept)
	r.metrics.ObserveCombinations(filters.OutcomeEmpty.String(), stats.Empty)
	r.metrics.ObserveCombinations(filters.OutcomeUnchanged.String(), stats.Unchanged)
	r.metrics.ObserveCombinations(filters.OutcomeTooSmall.String(), stats.TooSmall)

	for _, rec := range built.Records {
		key := SubsetKey(group.Label, rec.ID)
		if err := storage.PutJSON(ctx, r.store, key, rec); err != nil {
			return nil, err
		}
		outcome.written = append(outcome.written, key)
	}

	// The index goes last so readers never see ids without their records.
	indexKey := FilterIndexKey(group.Label)
	if err := storage.PutJSON(ctx, r.store, indexKey, built.Index); err != nil {
		return nil, err
	}
	outcome.written = append(outcome.written, indexKey)
	r.metrics.AddUniqueSubsets(len(built.Records))

	outcome.stats = stats
	outcome.unique = len(built.Records)
	return outcome, nil
}
