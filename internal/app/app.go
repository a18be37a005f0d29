package app

import (
	"context"
	"fmt"
	"log/slog"

	postgres "github.com/heartmarshall/names-loader/internal/adapter/postgres"
	"github.com/heartmarshall/names-loader/internal/adapter/postgres/names"
	"github.com/heartmarshall/names-loader/internal/adapter/sqlite"
	"github.com/heartmarshall/names-loader/internal/app/loader"
	"github.com/heartmarshall/names-loader/internal/config"
	"github.com/heartmarshall/names-loader/internal/domain"
	"github.com/heartmarshall/names-loader/internal/metrics"
)

// Compile-time interface assertions.
var (
	_ loader.Schema       = (*postgres.Schema)(nil)
	_ loader.RecordWriter = (*names.CopyWriter)(nil)
	_ loader.RecordWriter = (*names.RowWriter)(nil)
	_ loader.CensusWriter = (*names.CensusWriter)(nil)
	_ loader.Schema       = (*sqlite.Store)(nil)
	_ loader.RecordWriter = (*sqlite.Store)(nil)
	_ loader.CensusWriter = (*sqlite.Store)(nil)
	_ loader.RecordWriter = (*loader.DiscardWriter)(nil)
	_ loader.Recorder     = (*metrics.Metrics)(nil)
	_ names.Copier        = (*postgres.Session)(nil)
	_ names.Execer        = (*postgres.Session)(nil)
)

// Run loads dataset (loader.DatasetFirstnames or loader.DatasetSurnames)
// into the configured destination and returns the run report. The report
// is returned even when the run fails, with whatever was counted so far.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, dataset string) (report *domain.Report, err error) {
	logger.Info("starting load",
		slog.String("version", BuildVersion()),
		slog.String("dataset", dataset),
		slog.String("strategy", cfg.Loader.Strategy),
		slog.String("rebuild", cfg.Loader.Rebuild),
		slog.Int("batch_size", cfg.Loader.BatchSize),
		slog.Bool("dry_run", cfg.Loader.DryRun),
	)

	m := metrics.New(cfg.Metrics.Namespace)
	if path := cfg.Metrics.TextfilePath; path != "" {
		defer func() {
			if werr := m.WriteTextfile(path); werr != nil {
				logger.Warn("write metrics textfile", slog.String("path", path), slog.String("error", werr.Error()))
			}
		}()
	}

	switch {
	case cfg.Loader.DryRun:
		discard := loader.NewDiscardWriter(logger)
		p := loader.NewPipeline(logger, cfg.Loader, loader.DiscardSchema{}, discard, discard, m)
		return runDataset(ctx, p, dataset)

	case cfg.Database.UsesSQLite():
		store, err := sqlite.Open(ctx, cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		p := loader.NewPipeline(logger, cfg.Loader, store, store, store, m)
		return runDataset(ctx, p, dataset)
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, cfg.Database.ConnString(), logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	err = postgres.WithSession(ctx, pool, func(ctx context.Context, s *postgres.Session) error {
		p := loader.NewPipeline(logger, cfg.Loader,
			postgres.NewSchema(s, logger),
			recordWriter(cfg.Loader.WriteStrategy(), s, logger),
			names.NewCensusWriter(s, logger),
			m,
		)

		load := func(ctx context.Context) error {
			var runErr error
			report, runErr = runDataset(ctx, p, dataset)
			return runErr
		}
		if cfg.Loader.SingleTransaction {
			return s.RunInTx(ctx, load)
		}
		return load(ctx)
	})
	return report, err
}

// Migrate applies the schema migrations to the configured PostgreSQL database.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Database.UsesSQLite() {
		store, err := sqlite.Open(ctx, cfg.Database.SQLitePath, logger)
		if err != nil {
			return err
		}
		return store.Close()
	}
	return postgres.Migrate(ctx, cfg.Database.ConnString(), logger)
}

func recordWriter(strategy domain.WriteStrategy, s *postgres.Session, logger *slog.Logger) loader.RecordWriter {
	if strategy == domain.WriteStrategyRows {
		return names.NewRowWriter(s, logger)
	}
	return names.NewCopyWriter(s, logger)
}

func runDataset(ctx context.Context, p *loader.Pipeline, dataset string) (*domain.Report, error) {
	switch dataset {
	case loader.DatasetFirstnames:
		return p.RunFirstnames(ctx)
	case loader.DatasetSurnames:
		return p.RunSurnames(ctx)
	default:
		return nil, fmt.Errorf("unknown dataset %q", dataset)
	}
}
