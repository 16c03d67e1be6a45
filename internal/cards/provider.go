package cards

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SynonymProvider serves the current synonym table and reloads it when the
// backing file changes.
type SynonymProvider struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	table    *SynonymTable
	loadedAt time.Time
	onReload []func(*SynonymTable)
}

// NewSynonymProvider loads path (or only the built-in reprints when path is
// empty) and returns a provider serving it.
func NewSynonymProvider(path string, logger *zap.Logger) (*SynonymProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	table, err := LoadSynonyms(path)
	if err != nil {
		return nil, err
	}
	return &SynonymProvider{
		path:     path,
		logger:   logger,
		table:    table,
		loadedAt: time.Now(),
	}, nil
}

// Table returns the current table.
func (p *SynonymProvider) Table() *SynonymTable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.table
}

// LoadedAt returns when the current table was loaded.
func (p *SynonymProvider) LoadedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadedAt
}

// Reload re-reads the synonyms file. On failure the previous table is kept.
func (p *SynonymProvider) Reload() error {
	table, err := LoadSynonyms(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.table = table
	p.loadedAt = time.Now()
	hooks := append([]func(*SynonymTable){}, p.onReload...)
	p.mu.Unlock()
	p.logger.Info("Synonym table reloaded", zap.String("path", p.path), zap.Int("synonyms", table.Len()))

	for _, fn := range hooks {
		fn(table)
	}
	return nil
}

// OnReload registers fn to run with the new table after every successful
// reload.
func (p *SynonymProvider) OnReload(fn func(*SynonymTable)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onReload = append(p.onReload, fn)
}

// Watch reloads the table on writes to the synonyms file until ctx is done.
// The directory is watched so editors that replace the file are noticed.
// A poll interval above zero adds a periodic reload as a backstop.
func (p *SynonymProvider) Watch(ctx context.Context, poll time.Duration) (err error) {
	if p.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create synonyms watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("watch synonyms directory: %w", err)
	}

	var tick <-chan time.Time
	if poll > 0 {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.reloadOrWarn()
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("Synonyms watcher error", zap.Error(werr))
		case <-tick:
			p.reloadOrWarn()
		}
	}
}

func (p *SynonymProvider) reloadOrWarn() {
	if err := p.Reload(); err != nil {
		p.logger.Warn("Keeping previous synonym table", zap.String("path", p.path), zap.Error(err))
	}
}
