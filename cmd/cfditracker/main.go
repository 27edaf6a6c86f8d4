// Command cfditracker extracts tax fields from CFDI invoices, either once over
// a directory or as a long-running HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cfdi-tracker/internal/batch"
	"github.com/joseph-ayodele/cfdi-tracker/internal/cfdi"
	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/extract"
	"github.com/joseph-ayodele/cfdi-tracker/internal/metrics"
	"github.com/joseph-ayodele/cfdi-tracker/internal/repository"
	"github.com/joseph-ayodele/cfdi-tracker/internal/tuning"
)

// app is the state shared by every subcommand.
type app struct {
	cfg     *common.Config
	logger  *slog.Logger
	envFile string
	tuning  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cfditracker",
		Short:         "Extract VAT and lodging tax from CFDI invoices",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&a.tuning, "tuning", "", "YAML or JSON tuning file (overrides TUNING_FILE)")

	root.AddCommand(
		a.extractCmd(),
		a.serveCmd(),
		a.watchCmd(),
		a.dbHealthCmd(),
	)
	return root
}

func (a *app) init() error {
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}
	a.cfg = common.LoadConfig()
	if a.tuning != "" {
		a.cfg.Extract.TuningFile = a.tuning
	}
	a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: a.cfg.LogLevel,
	}))
	slog.SetDefault(a.logger)
	return a.cfg.Validate()
}

// aggregator builds the extractor from the tuning file and wraps it for batch
// use. m may be nil.
func (a *app) aggregator(m *metrics.Metrics) (*batch.Aggregator, error) {
	t, err := tuning.Load(a.cfg.Extract.TuningFile)
	if err != nil {
		return nil, err
	}
	limits := cfdi.DefaultLimits()
	limits.MaxElements = a.cfg.Extract.MaxElements
	limits.MaxAttributes = a.cfg.Extract.MaxAttributes

	xopts := []extract.Option{extract.WithLimits(limits)}
	bopts := []batch.Option{
		batch.WithWorkers(a.cfg.Extract.Workers),
		batch.WithMaxUploadBytes(a.cfg.Extract.MaxUploadBytes),
	}
	if m != nil {
		xopts = append(xopts, extract.WithObserver(m))
		bopts = append(bopts, batch.WithRejectObserver(m))
	}
	x, err := extract.New(t, a.logger, xopts...)
	if err != nil {
		return nil, err
	}
	if bad := x.InvalidSelectors(); len(bad) > 0 {
		a.logger.Warn("tuning.selectors.invalid", "selectors", bad)
	}
	a.logger.Info("extractor ready", "tuning_file", a.cfg.Extract.TuningFile, "workers", a.cfg.Extract.Workers)
	return batch.NewAggregator(x, a.logger, bopts...), nil
}

func (a *app) openStore(ctx context.Context) (repository.BatchRepository, error) {
	db := a.cfg.Database
	return repository.Open(ctx, repository.Config{
		Driver:           db.Driver,
		DSN:              db.DSN,
		MaxConns:         db.MaxConns,
		MinConns:         db.MinConns,
		MaxConnLifetime:  db.MaxConnLifetime,
		MaxConnIdleTime:  db.MaxConnIdleTime,
		DialTimeout:      db.DialTimeout,
		StatementTimeout: db.StatementTimeout,
	}, a.logger)
}

func (a *app) closeStore(repo repository.BatchRepository) {
	if err := repo.Close(); err != nil {
		a.logger.Error("failed to close store", "error", err)
	}
}
