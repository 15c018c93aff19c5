package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/logging"
	"github.com/mohammad-safakhou/deepresearch/internal/research"
	"github.com/mohammad-safakhou/deepresearch/internal/telemetry"
	"github.com/mohammad-safakhou/deepresearch/repository/redis_repository"
	"github.com/mohammad-safakhou/deepresearch/tools/toolset"
	"github.com/mohammad-safakhou/deepresearch/tools/web_fetch"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search"
)

// app holds the long-lived dependencies shared by run and serve.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	completer llm.Completer
	tools     toolset.Toolset
	closers   []func()
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidatePipeline(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.General)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	tele, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.closers = append(a.closers, func() { _ = tele.Shutdown(context.Background()) })

	a.completer = llm.NewOpenAI(llm.OpenAIOptions{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Tools.Search.Provider), cfg.Tools.Search.APIKey, cfg.Tools.Search.Timeout)
	if err != nil {
		a.Close()
		return nil, err
	}
	fetcher, closeFetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Tools.Fetch.Backend), cfg.Tools.Fetch.Timeout, cfg.Tools.Fetch.UserAgent)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeFetcher)

	var tools toolset.Toolset = toolset.New(searcher, fetcher, toolset.Options{
		DefaultLimit: cfg.Tools.Search.DefaultLimit,
		MaxChars:     cfg.Tools.Fetch.MaxChars,
		Logger:       logger,
	})
	if cfg.Tools.Cache.Enabled {
		rdb, err := redis_repository.Conn(ctx, cfg.Tools.Cache.Redis, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("tool cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		tools = toolset.NewCached(tools, redis.UniversalClient(rdb), cfg.Tools.Cache.TTL, logger)
	}
	a.tools = tools

	logger.Info("deepresearch initialised",
		zap.String("version", version),
		zap.String("planner_model", cfg.LLM.Planner.Model),
		zap.String("worker_model", cfg.LLM.Worker.Model),
		zap.String("search_provider", cfg.Tools.Search.Provider),
		zap.String("fetch_backend", cfg.Tools.Fetch.Backend),
		zap.Bool("tool_cache", cfg.Tools.Cache.Enabled),
		zap.Bool("tracing", tele.Enabled()),
	)
	return a, nil
}

func (a *app) pipeline(observer research.Observer) *research.Pipeline {
	return research.FromConfig(a.cfg, a.completer, a.tools, observer, a.logger)
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
