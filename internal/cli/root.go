// Package cli implements the launchpad command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/storage/pebble"
	"github.com/rovshanmuradov/launchpad/internal/utils/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configFile string
	debug      bool
	logFile    string
	dataDir    string
)

// Version is set at build time.
var Version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "launchpad",
	Short: "Bonding-curve token launch engine",
	Long: `launchpad replays launch scenarios against a bonding-curve engine,
records every committed event and exports the history as CSV or JSON.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "rotated JSON log file (overrides log.file)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "event store directory (overrides storage.path)")
}

// env is what every command needs: configuration, a logger and the store.
type env struct {
	cfg    *config.Config
	log    *logger.Logger
	store  storage.Store
	closed bool
}

// setup loads configuration and opens the store. With persistent false and
// no store path configured the history lives in memory.
func setup(ctx context.Context, persistent bool) (*env, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Storage.Path = dataDir
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.Log.File
	logCfg.Development = debug || cfg.Log.Debug
	logCfg.Console = os.Stderr
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	e := &env{cfg: cfg, log: log}
	switch {
	case cfg.Storage.Path != "":
		e.store, err = pebble.Open(ctx, pebble.Config{
			Path:        cfg.Storage.Path,
			CacheSize:   cfg.Storage.CacheSize,
			OpenTimeout: cfg.Storage.OpenTimeout,
		}, log.Logger)
		if err != nil {
			_ = log.Sync()
			return nil, err
		}
	case persistent:
		_ = log.Sync()
		return nil, fmt.Errorf("no event store: set storage.path or --data")
	default:
		e.store = memory.New()
	}
	return e, nil
}

func (e *env) close() {
	if e.closed {
		return
	}
	e.closed = true
	if err := e.store.Close(); err != nil {
		e.log.LogError("Failed to close event store", err)
	}
	_ = e.log.Sync()
}

func (e *env) named(name string) *zap.Logger {
	return e.log.WithComponent(name)
}
