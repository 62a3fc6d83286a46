package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"strmsync/internal/config"
	"strmsync/internal/control"
	"strmsync/internal/logging"
	"strmsync/internal/metadata"
	"strmsync/internal/metrics"
	"strmsync/internal/progress"
	"strmsync/internal/reconcile"
	"strmsync/internal/snapshot"
	"strmsync/internal/tmdb"
	"strmsync/internal/xtream"
)

// app is the fully wired process: provider client, identifier resolver,
// engine and the control service that guards it.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Recorder
	cache   *metadata.Cache
	history *progress.History
	engine  *reconcile.Engine
	service *control.Service
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	recorder := metrics.New()

	client, err := xtream.New(xtream.SettingsFromConfig(cfg.Provider), logger,
		xtream.WithRequestObserver(recorder.ObserveRequest))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: recorder,
		history: progress.LoadHistory(cfg.HistoryPath(), progress.DefaultHistoryLimit, logger),
	}

	resolver, err := a.openResolver(ctx)
	if err != nil {
		return nil, err
	}

	engine, err := reconcile.New(reconcile.Deps{
		Config:    cfg,
		Source:    client,
		FS:        afero.NewOsFs(),
		Snapshots: snapshot.NewStore(cfg.SnapshotDir(), snapshot.DefaultRetain, logger),
		Resolver:  resolver,
		History:   a.history,
		Metrics:   recorder,
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine

	service, err := control.New(cfg, engine, a.history, afero.NewOsFs(), logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = service
	return a, nil
}

// openResolver builds the TMDB resolver when lookups are enabled. A cache
// that cannot be opened degrades to memory-only lookups for this process.
func (a *app) openResolver(ctx context.Context) (*metadata.Resolver, error) {
	if !a.cfg.Metadata.Enabled {
		return nil, nil
	}
	client, err := tmdb.New(a.cfg.TMDB.APIKey, a.cfg.TMDB.BaseURL, a.cfg.TMDB.Language)
	if err != nil {
		return nil, fmt.Errorf("tmdb client: %w", err)
	}
	cache, err := metadata.OpenCache(ctx, a.cfg.MetadataCachePath(), a.logger)
	if err != nil {
		logging.WarnWithContext(a.logger, "metadata cache unavailable", "metadata_cache_open_failed",
			logging.Error(err),
			logging.String("path", a.cfg.MetadataCachePath()),
			logging.String(logging.FieldImpact, "lookups are not cached across runs"))
		cache = nil
	}
	a.cache = cache
	return metadata.NewResolver(metadata.TMDBSearcher{Client: client}, cache,
		metadata.SettingsFromConfig(a.cfg), a.logger,
		metadata.WithObserver(func(kind metadata.Kind, result string) {
			a.metrics.ObserveLookup(string(kind), result)
		})), nil
}

func (a *app) Close() error {
	if a == nil || a.cache == nil {
		return nil
	}
	return a.cache.Close()
}
