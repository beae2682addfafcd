package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/payday/internal/adapters/repository"
	"github.com/okian/payday/internal/adapters/repository/postgres"
	service "github.com/okian/payday/internal/app"
	"github.com/okian/payday/internal/config"
	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/internal/domain/ranking"
	"github.com/okian/payday/internal/seed"
	"github.com/okian/payday/pkg/logger"
)

var errNoSeedFile = errors.New("seed_file is not configured")

// components are the long-lived parts shared by every command.
type components struct {
	store     repository.Store
	source    *ranking.CachedSource
	refresher service.Refresher
	log       logger.Logger
}

// openStore connects the configured ledger. The memory store starts from
// the seed file, payouts included.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		s := repository.NewMemoryStore()
		if cfg.SeedFile != "" {
			if err := seedStore(ctx, cfg.SeedFile, s); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
}

func seedStore(ctx context.Context, path string, w repository.Writer) error {
	f, err := seed.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	return f.Seed(ctx, w)
}

func build(ctx context.Context, cfg *config.Config) (*components, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sources := ranking.Sources{
		model.KindClassic:    ranking.NewClassicSource(store, nil),
		model.KindHeadToHead: ranking.NewHeadToHeadSource(store, nil),
	}
	cached, err := ranking.NewCachedSource(sources, cfg.RankingCacheSize)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ranking cache: %w", err)
	}

	c := &components{
		store:  store,
		source: cached,
		log:    logger.Get(),
	}
	if cfg.SeedFile != "" {
		c.refresher = seed.NewFileRefresher(cfg.SeedFile, store)
	}
	return c, nil
}

func (c *components) service(cfg *config.Config) *service.Service {
	opts := []service.Option{
		service.WithLogger(c.log.Named("payouts")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithCalendar(c.store),
		service.WithStaleAfter(cfg.RefreshStaleAfter()),
	}
	if c.refresher != nil {
		opts = append(opts, service.WithRefresher(c.refresher))
	}
	return service.New(c.store, c.source, opts...)
}

func (c *components) Close() {
	c.store.Close()
}
