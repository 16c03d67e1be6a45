package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rosematcha/ciphermaniac-sub006/internal/cache"
	"github.com/rosematcha/ciphermaniac-sub006/internal/filters"
	"github.com/rosematcha/ciphermaniac-sub006/internal/logging"
	"github.com/rosematcha/ciphermaniac-sub006/internal/metrics"
	"github.com/rosematcha/ciphermaniac-sub006/internal/storage"
	"github.com/rosematcha/ciphermaniac-sub006/internal/subsets"
)

var (
	// ErrUnknownArchetype is returned for an archetype missing from the catalog.
	ErrUnknownArchetype = errors.New("unknown archetype")
	// ErrEmptySubset is returned when no deck matches a filter.
	ErrEmptySubset = errors.New("no deck matches the filter")
	// ErrSubsetTooSmall is returned when too few decks match a filter to
	// report on them.
	ErrSubsetTooSmall = errors.New("too few decks match the filter")
)

// Query statuses recorded in metrics and returned in Answer.
const (
	StatusCached   = "cached"
	StatusStored   = "stored"
	StatusComputed = "computed"
	StatusFailed   = "failed"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	MinSubsetSize int
	Now           func() time.Time
}

// Answer is the result of an on-demand query.
type Answer struct {
	Report    *subsets.SubsetReport
	Status    string
	SubsetID  string
	Unchanged bool
}

// Service answers filter queries for arbitrary combinations. Stored
// artifacts are preferred; anything else is resolved synchronously against
// the catalog. Results are memoized in the cache.
type Service struct {
	catalog atomic.Pointer[Catalog]
	store   storage.BlobStore
	cache   *cache.TTLCache[string, Answer]
	config  ServiceConfig
	logger  *zap.Logger
	metrics *metrics.Pipeline

	// Filter indexes read from the store, per archetype of the current
	// catalog. A nil entry records that the archetype has none.
	indexMu sync.Mutex
	indexes map[*Archetype]*subsets.FilterIndex
}

// NewService creates a service. store, c, logger and m may be nil.
func NewService(catalog *Catalog, store storage.BlobStore, c *cache.TTLCache[string, Answer], config ServiceConfig, logger *zap.Logger, m *metrics.Pipeline) *Service {
	logger = logging.OrNop(logger)
	if config.MinSubsetSize < 1 {
		config.MinSubsetSize = filters.DefaultMinSubsetSize
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	s := &Service{
		store:   store,
		cache:   c,
		config:  config,
		logger:  logger,
		metrics: m,
		indexes: make(map[*Archetype]*subsets.FilterIndex),
	}
	s.catalog.Store(catalog)
	return s
}

// Catalog returns the catalog the service answers from.
func (s *Service) Catalog() *Catalog {
	return s.catalog.Load()
}

// SetCatalog replaces the catalog and drops every cached answer and filter
// index.
func (s *Service) SetCatalog(catalog *Catalog) {
	s.catalog.Store(catalog)
	s.indexMu.Lock()
	s.indexes = make(map[*Archetype]*subsets.FilterIndex)
	s.indexMu.Unlock()
	if s.cache != nil {
		s.cache.Clear()
	}
	s.logger.Info("Catalog replaced", zap.Int("archetypes", catalog.Len()))
}

// Report returns the usage report of the decks of archetype matching spec.
// An empty spec yields the unfiltered report.
func (s *Service) Report(ctx context.Context, archetype string, spec filters.Spec) (answer Answer, err error) {
	start := time.Now()
	defer func() {
		status := answer.Status
		if err != nil {
			status = StatusFailed
		}
		s.metrics.ObserveQuery(status, time.Since(start))
	}()

	a, ok := s.Catalog().Lookup(archetype)
	if !ok {
		return Answer{}, fmt.Errorf("%w: %s", ErrUnknownArchetype, archetype)
	}

	cacheKey := a.Slug + "|" + spec.Key()
	if s.cache != nil {
		cached, hit := s.cache.Get(cacheKey)
		s.metrics.CacheHit(hit)
		if hit {
			cached.Status = StatusCached
			return cached, nil
		}
	}

	if !spec.IsEmpty() {
		if err := filters.CheckSpec(spec, a.Master); err != nil {
			return Answer{}, err
		}
	}

	answer, err = s.resolve(ctx, a, spec)
	if err != nil {
		return Answer{}, err
	}
	if s.cache != nil {
		s.cache.Set(cacheKey, answer)
	}
	return answer, nil
}

func (s *Service) resolve(ctx context.Context, a *Archetype, spec filters.Spec) (Answer, error) {
	if spec.IsEmpty() {
		return Answer{Report: s.baseReport(a), Status: StatusComputed, SubsetID: subsets.BaseSubsetID, Unchanged: true}, nil
	}

	if answer, ok := s.stored(ctx, a, spec); ok {
		return answer, nil
	}

	report, outcome := subsets.Report(a.Label, spec, a.Population, a.Index, a.Master, s.config.MinSubsetSize, s.config.Now())
	switch outcome {
	case filters.OutcomeEmpty:
		return Answer{}, ErrEmptySubset
	case filters.OutcomeTooSmall:
		return Answer{}, fmt.Errorf("%w: %d decks", ErrSubsetTooSmall, report.DeckTotal)
	}
	return Answer{
		Report:    &report,
		Status:    StatusComputed,
		Unchanged: outcome == filters.OutcomeUnchanged,
	}, nil
}

// stored returns the pre-computed report of spec when the last run wrote
// one.
func (s *Service) stored(ctx context.Context, a *Archetype, spec filters.Spec) (Answer, bool) {
	if s.store == nil {
		return Answer{}, false
	}

	index := s.filterIndex(ctx, a)
	if index == nil {
		return Answer{}, false
	}
	id, ok := index.Lookup(spec)
	if !ok {
		return Answer{}, false
	}
	if id == subsets.BaseSubsetID {
		return Answer{Report: s.baseReport(a), Status: StatusStored, SubsetID: id, Unchanged: true}, true
	}

	var rec subsets.UniqueSubsetRecord
	if err := storage.GetJSON(ctx, s.store, SubsetKey(a.Label, id), &rec); err != nil {
		s.logger.Warn("Failed to read subset",
			zap.String("archetype", a.Label),
			zap.String("subset", id),
			zap.Error(err))
		return Answer{}, false
	}
	// Stored records carry the display filters of their primary filter.
	rec.Data.Filters = subsets.Display(spec, index.Cards, index.DeckTotal)
	return Answer{Report: &rec.Data, Status: StatusStored, SubsetID: id}, true
}

// filterIndex returns the stored filter index of a, reading it on first
// use. Read errors other than a missing index are not remembered.
func (s *Service) filterIndex(ctx context.Context, a *Archetype) *subsets.FilterIndex {
	s.indexMu.Lock()
	index, loaded := s.indexes[a]
	s.indexMu.Unlock()
	if loaded {
		return index
	}

	var fi subsets.FilterIndex
	err := storage.GetJSON(ctx, s.store, FilterIndexKey(a.Label), &fi)
	switch {
	case err == nil:
		index = &fi
	case errors.Is(err, storage.ErrNotFound):
		index = nil
	default:
		s.logger.Warn("Failed to read filter index", zap.String("archetype", a.Label), zap.Error(err))
		return nil
	}

	s.indexMu.Lock()
	if s.catalog.Load().contains(a) {
		s.indexes[a] = index
	}
	s.indexMu.Unlock()
	return index
}

func (s *Service) baseReport(a *Archetype) *subsets.SubsetReport {
	return &subsets.SubsetReport{
		Report:  a.Master,
		Filters: subsets.Display(filters.Spec{}, nil, a.Master.DeckTotal),
		Source:  subsets.Source{Archetype: a.Label, GeneratedAt: s.config.Now().UTC()},
	}
}

// Archetypes lists the archetypes the service can answer for.
func (s *Service) Archetypes() []ArchetypeSummary {
	return s.Catalog().Archetypes()
}
