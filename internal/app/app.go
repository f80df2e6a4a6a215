// Package app assembles the service's collaborators from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scrapegoat/scrapegoat/internal/browser"
	"github.com/scrapegoat/scrapegoat/internal/clock/system"
	"github.com/scrapegoat/scrapegoat/internal/config"
	"github.com/scrapegoat/scrapegoat/internal/crawler"
	"github.com/scrapegoat/scrapegoat/internal/extract"
	"github.com/scrapegoat/scrapegoat/internal/fetcher/static"
	"github.com/scrapegoat/scrapegoat/internal/id/uuid"
	"github.com/scrapegoat/scrapegoat/internal/jobs"
	"github.com/scrapegoat/scrapegoat/internal/llm"
	"github.com/scrapegoat/scrapegoat/internal/logging"
	"github.com/scrapegoat/scrapegoat/internal/media"
	"github.com/scrapegoat/scrapegoat/internal/metrics"
	"github.com/scrapegoat/scrapegoat/internal/policy/ratelimit"
	"github.com/scrapegoat/scrapegoat/internal/proxy"
)

// App holds the wired service graph.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Engine  *crawler.Engine
	Manager *jobs.Manager

	browserFactory *browser.Factory
	hub            *jobs.Hub
}

// New builds the full graph: logger, rate limiter, proxy pool, session
// factories, extractor, engine, and job manager. The browser itself starts
// lazily on first rendered crawl.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	var pool *proxy.Pool
	if len(cfg.Proxy.Proxies) > 0 {
		pool, err = proxy.NewPool(cfg.Proxy.Proxies...)
		if err != nil {
			return nil, fmt.Errorf("init proxy pool: %w", err)
		}
	}

	limiter := ratelimit.New(ratelimit.Config{
		MaxConcurrency:       cfg.Crawler.MaxConcurrency,
		MaxRequestsPerSecond: cfg.Crawler.MaxRequestsPerSecond,
	})

	browserFactory := browser.NewFactory(browser.Config{
		NavTimeout: cfg.NavTimeout(),
		Logger:     logger.Named("browser"),
	})
	staticFactory := static.NewFactory(static.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.NavTimeout(),
		Logger:    logger.Named("static"),
	})

	extractor := extract.New(extract.Config{
		ContentMinChars: cfg.Crawler.ContentMinChars,
		Logger:          logger.Named("extract"),
	})

	mediaDL, err := media.New(media.Config{
		OutputDir: cfg.Media.OutputDir,
		Timeout:   secondsToDuration(cfg.Media.TimeoutSeconds),
		MaxBytes:  cfg.Media.MaxBytes,
		Logger:    logger.Named("media"),
	})
	if err != nil {
		return nil, fmt.Errorf("init media downloader: %w", err)
	}

	var llmClient *llm.Client
	if cfg.LLM.Endpoint != "" {
		llmClient = llm.New(llm.Config{
			Endpoint: cfg.LLM.Endpoint,
			Model:    cfg.LLM.Model,
			Timeout:  secondsToDuration(cfg.LLM.TimeoutSeconds),
			Logger:   logger.Named("llm"),
		})
	}

	engine := crawler.NewEngine(
		crawler.Config{
			UserAgent:   cfg.Crawler.UserAgent,
			NavTimeout:  cfg.NavTimeout(),
			SettleDelay: cfg.SettleDelay(),
		},
		limiter,
		pool,
		browserFactory,
		staticFactory,
		extractor,
		mediaDL,
		llmClient,
		logger.Named("engine"),
	)

	hub := jobs.NewHub(logger.Named("hub"))
	manager := jobs.NewManager(
		jobs.NewStore(),
		hub,
		engine,
		uuid.New(),
		system.New(),
		jobs.Config{BaseContext: ctx, Logger: logger.Named("jobs")},
	)

	return &App{
		Config:         cfg,
		Logger:         logger,
		Engine:         engine,
		Manager:        manager,
		browserFactory: browserFactory,
		hub:            hub,
	}, nil
}

// Close tears the graph down: waits for in-flight jobs, drops subscribers,
// and stops any started browsers.
func (a *App) Close() {
	a.Manager.Close()
	a.hub.Close()
	a.browserFactory.Close()
	_ = a.Logger.Sync()
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
