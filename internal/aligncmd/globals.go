// Package aligncmd holds the command constructors and the run logic behind
// the placealign CLI.
package aligncmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/placealign/internal/config"
	"github.com/lehigh-university-libraries/placealign/internal/gazetteer"
	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// Globals are the persistent flags of the root command.
type Globals struct {
	DBDriver   string
	DBDSN      string
	ConfigPath string
	Verbose    bool
}

// Bind registers the global flags on cmd.
func (g *Globals) Bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&g.DBDriver, "db-driver", "", "Database driver (sqlite, postgres, mysql, sqlserver)")
	cmd.PersistentFlags().StringVar(&g.DBDSN, "db-dsn", "", "Database connection string")
	cmd.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "Path to a YAML configuration file")
	cmd.PersistentFlags().BoolVar(&g.Verbose, "verbose", false, "Verbose logging")
}

// SetupLogging installs a text handler on stderr as the default logger.
func (g *Globals) SetupLogging() *slog.Logger {
	return setupLogging(os.Stderr, g.Verbose)
}

func setupLogging(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log
}

// Config returns the configuration with the global flags applied last.
func (g *Globals) Config() (config.Config, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if g.DBDriver != "" {
		cfg.DBDriver = g.DBDriver
	}
	if g.DBDSN != "" {
		cfg.DBDSN = g.DBDSN
	}
	return cfg, nil
}

// env is what every command needs once flags are parsed.
type env struct {
	cfg   config.Config
	store *store.Store
	log   *slog.Logger
}

func (g *Globals) open(ctx context.Context, apply func(*config.Config)) (*env, error) {
	log := g.SetupLogging()
	cfg, err := g.Config()
	if err != nil {
		return nil, err
	}
	if apply != nil {
		apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Debug("Opening record store", "driver", cfg.DBDriver)
	s, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return &env{cfg: cfg, store: s, log: log}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.log.Warn("Failed to close record store", "error", err)
	}
}

// catalog returns the geographic catalog backed by the store's gazetteer.
func (e *env) catalog() *geodata.Catalog {
	return geodata.New(gazetteer.NewSource(e.store.Handle), geodata.Options{
		Country:  e.cfg.Country,
		Language: e.cfg.Language,
		Logger:   e.log,
	})
}
