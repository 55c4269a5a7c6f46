package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/cache"
	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/matcher"
	"github.com/collections-lab/georef-cli/internal/plss"
)

// env bundles the backends a resolution command needs.
type env struct {
	gaz        gazetteer.Lookup
	parseCache *cache.ParseCache
	pipeline   *matcher.Pipeline
}

// initEnv opens the gazetteer, parse cache, and PLSS client per the
// loaded configuration and wires them into a matching pipeline.
func initEnv(ctx context.Context) (*env, error) {
	gaz, err := openGazetteer(ctx)
	if err != nil {
		return nil, err
	}

	e := &env{gaz: gaz}
	opts := []matcher.Option{}

	if cfg.Cache.Path != "" {
		pc, err := cache.NewSQLite(cfg.Cache.Path,
			cache.WithMaxEntries(cfg.Cache.MaxEntries))
		if err != nil {
			gaz.Close()
			return nil, err
		}
		if err := pc.Migrate(ctx); err != nil {
			pc.Close()
			gaz.Close()
			return nil, err
		}
		e.parseCache = pc
		opts = append(opts, matcher.WithParseCache(pc))
	}

	if cfg.PLSS.Enabled {
		plssOpts := []plss.Option{plss.WithRateLimit(cfg.PLSS.RPS)}
		if cfg.PLSS.BaseURL != "" {
			plssOpts = append(plssOpts, plss.WithBaseURL(cfg.PLSS.BaseURL))
		}
		opts = append(opts, matcher.WithPLSS(plss.NewClient(plssOpts...)))
	}

	e.pipeline = matcher.New(gaz, opts...)
	return e, nil
}

func (e *env) Close() {
	if e.parseCache != nil {
		if err := e.parseCache.Close(); err != nil {
			zap.L().Warn("close parse cache", zap.Error(err))
		}
	}
	if err := e.gaz.Close(); err != nil {
		zap.L().Warn("close gazetteer", zap.Error(err))
	}
}

func openGazetteer(ctx context.Context) (gazetteer.Lookup, error) {
	switch cfg.Gazetteer.Driver {
	case "postgres":
		return gazetteer.NewPostgres(ctx, cfg.Gazetteer.DatabaseURL)
	case "sqlite":
		return gazetteer.NewSQLite(cfg.Gazetteer.SQLitePath)
	default:
		return nil, eris.Errorf("unknown gazetteer driver %q", cfg.Gazetteer.Driver)
	}
}

// openStore is openGazetteer with write access, for the load commands.
func openStore(ctx context.Context) (gazetteer.Store, error) {
	switch cfg.Gazetteer.Driver {
	case "postgres":
		return gazetteer.NewPostgres(ctx, cfg.Gazetteer.DatabaseURL)
	case "sqlite":
		return gazetteer.NewSQLite(cfg.Gazetteer.SQLitePath)
	default:
		return nil, eris.Errorf("unknown gazetteer driver %q", cfg.Gazetteer.Driver)
	}
}
