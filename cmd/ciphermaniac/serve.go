package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rosematcha/ciphermaniac-sub006/internal/api"
	"github.com/rosematcha/ciphermaniac-sub006/internal/cache"
	"github.com/rosematcha/ciphermaniac-sub006/internal/cards"
	"github.com/rosematcha/ciphermaniac-sub006/internal/config"
	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
	"github.com/rosematcha/ciphermaniac-sub006/internal/metrics"
	"github.com/rosematcha/ciphermaniac-sub006/internal/pipeline"
	"github.com/rosematcha/ciphermaniac-sub006/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(global *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored reports and on-demand subsets over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.API.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port, overrides api.port")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}()

	var snapshot []*decks.Deck
	if err := storage.GetJSON(ctx, store, pipeline.DecksKey, &snapshot); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no deck snapshot in store, run aggregate first: %w", err)
		}
		return fmt.Errorf("load deck snapshot: %w", err)
	}

	provider, err := cards.NewSynonymProvider(cfg.Synonyms.Path, logger)
	if err != nil {
		return err
	}

	var reportCache *cache.TTLCache[string, pipeline.Answer]
	if cfg.Cache.Enabled {
		reportCache = cache.New[string, pipeline.Answer](cfg.CacheTTL(), cfg.Cache.MaxSize)
	}

	m := metrics.NewPipeline(nil)
	service := pipeline.NewService(
		pipeline.NewCatalog(decks.ResolveAll(snapshot, provider.Table())),
		store,
		reportCache,
		pipeline.ServiceConfig{MinSubsetSize: cfg.Engine.MinSubsetSize},
		logger,
		m,
	)
	provider.OnReload(func(table *cards.SynonymTable) {
		service.SetCatalog(pipeline.NewCatalog(decks.ResolveAll(snapshot, table)))
	})

	if cfg.Synonyms.Watch {
		go func() {
			err := provider.Watch(ctx, cfg.SynonymsPollInterval())
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Synonyms watcher stopped", zap.Error(err))
			}
		}()
	}

	server := api.NewServer(&api.Config{
		Port:           cfg.API.Port,
		RequestTimeout: cfg.RequestTimeout(),
		AllowedOrigins: cfg.API.AllowedOrigins,
	}, service, m.Registry(), logger)
	if err := server.Start(); err != nil {
		return err
	}
	logger.Info("Serving reports",
		zap.Int("archetypes", service.Catalog().Len()),
		zap.Int("decks", len(snapshot)),
		zap.String("backend", cfg.Store.Backend))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
