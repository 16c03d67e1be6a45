// Command ciphermaniac aggregates tournament decklists into card usage and
// include/exclude filter reports, and serves them over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rosematcha/ciphermaniac-sub006/internal/config"
	"github.com/rosematcha/ciphermaniac-sub006/internal/logging"
	"github.com/rosematcha/ciphermaniac-sub006/internal/storage"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	storePath  string
	backend    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "ciphermaniac",
		Short:         "Deck aggregation and filter report engine",
		Long:          `Ciphermaniac ingests tournament decklists, builds card usage reports per archetype and precomputes include/exclude filter reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.ciphermaniac/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flags.storePath, "store", "", "artifact store path, overrides store.path")
	rootCmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "artifact store backend (fs, sqlite, badger, gcs)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level, overrides log.level")

	rootCmd.AddCommand(
		newAggregateCmd(flags),
		newServeCmd(flags),
		newSynonymsCmd(flags),
	)
	return rootCmd
}

// loadConfig reads the config file and applies the global flag overrides.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFrom(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if f.storePath != "" {
		cfg.Store.Path = f.storePath
	}
	if f.backend != "" {
		cfg.Store.Backend = f.backend
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	store, err := storage.Open(ctx, storage.Options{
		Backend:         cfg.Store.Backend,
		Path:            cfg.Store.Path,
		Bucket:          cfg.Store.Bucket,
		Prefix:          cfg.Store.Prefix,
		CredentialsFile: cfg.Store.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	return store, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
