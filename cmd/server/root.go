package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/warp/hours-ledger/config"
	"github.com/warp/hours-ledger/holiday"
	"github.com/warp/hours-ledger/i18n"
	"github.com/warp/hours-ledger/logger"
	"github.com/warp/hours-ledger/store/mongo"
	"github.com/warp/hours-ledger/store/sqlite"
	"github.com/warp/hours-ledger/worklog"
	"github.com/warp/hours-ledger/worklog/store"
)

var (
	flagStore    string
	flagDB       string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "hours-ledger",
	Short:         "Personal work-hours ledger",
	Long:          "hours-ledger records daily work shifts and leave, and reconciles them against the monthly requirement.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Store backend: sqlite, mongo or memory (env STORE)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (env SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (env LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(applyCmd)
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app holds everything a subcommand needs.
type app struct {
	cfg        config.Config
	log        *log.Logger
	translator *i18n.Translator
	holidays   *holiday.Resolver
	store      worklog.Store
	ledger     *worklog.Ledger

	closers []io.Closer
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = flagStore
	}
	if flags.Changed("db") {
		cfg.SQLitePath = flagDB
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, cfg.Validate()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	lg, logCloser, err := logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile, JSON: cfg.LogJSON})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, log: lg, closers: []io.Closer{logCloser}}
	if cfg.EnvFile {
		lg.Debug("loaded .env file")
	}

	a.translator, err = i18n.New(cfg.Locale)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.holidays = holiday.NewResolver(holiday.Options{
		Country:            cfg.HolidayCountry,
		BaseURL:            cfg.HolidayAPIURL,
		SubstituteKeywords: a.translator.SubstituteKeywords(),
		Logger:             lg,
	})

	a.store, err = openStore(ctx, cfg, lg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.store)

	table := worklog.DefaultLeaveTable().WithDeduction(worklog.LeaveFemale, cfg.FemaleLeaveDeduct)
	a.ledger = worklog.NewLedger(a.store, a.holidays, worklog.Options{
		Leave:       table,
		Concurrency: cfg.BulkConcurrency,
		Logger:      lg.WithPrefix("ledger"),
	})
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, lg *log.Logger) (worklog.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		lg.Warn("using in-memory store, data is lost on exit")
		return store.NewMemory(), nil
	case config.StoreMongo:
		s, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDB, lg.WithPrefix("mongo"))
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		lg.Info("store ready", "store", cfg.Store, "database", cfg.MongoDB)
		return s, nil
	case config.StoreSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		lg.Info("store ready", "store", cfg.Store, "path", cfg.SQLitePath)
		return s, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// appFor builds the app for a subcommand.
func appFor(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg)
}
