package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scrapegoat/scrapegoat/internal/extract"
	"github.com/scrapegoat/scrapegoat/internal/hash/sha256"
	"github.com/scrapegoat/scrapegoat/internal/llm"
	"github.com/scrapegoat/scrapegoat/internal/media"
	"github.com/scrapegoat/scrapegoat/internal/metrics"
	"github.com/scrapegoat/scrapegoat/internal/paginate"
	"github.com/scrapegoat/scrapegoat/internal/policy/ratelimit"
	"github.com/scrapegoat/scrapegoat/internal/proxy"
)

// ErrMissingURL indicates a request submitted without a target URL.
var ErrMissingURL = errors.New("crawl request requires a url")

const defaultNavTimeout = 30 * time.Second

// Config controls Engine defaults applied when a request leaves a knob unset.
type Config struct {
	UserAgent   string
	NavTimeout  time.Duration
	SettleDelay time.Duration
}

// Engine composes the rate limiter, proxy pool, session factories, pagination
// traversal, and extraction into one crawl pipeline. It serves both the
// synchronous library surface and the job-based service.
type Engine struct {
	cfg       Config
	limiter   *ratelimit.Limiter
	pool      *proxy.Pool
	rendered  SessionFactory
	static    SessionFactory
	extractor *extract.Extractor
	media     *media.Downloader
	llm       *llm.Client
	logger    *zap.Logger
}

// NewEngine constructs an Engine. The proxy pool, media downloader, and llm
// client are optional; the session factories and limiter are not.
func NewEngine(
	cfg Config,
	limiter *ratelimit.Limiter,
	pool *proxy.Pool,
	rendered SessionFactory,
	static SessionFactory,
	extractor *extract.Extractor,
	mediaDL *media.Downloader,
	llmClient *llm.Client,
	logger *zap.Logger,
) *Engine {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		limiter:   limiter,
		pool:      pool,
		rendered:  rendered,
		static:    static,
		extractor: extractor,
		media:     mediaDL,
		llm:       llmClient,
		logger:    logger,
	}
}

// Crawl runs one rate-limited crawl attempt sequence for the request and
// returns the extracted data or a typed failure.
func (e *Engine) Crawl(ctx context.Context, req Request) (*extract.ScrapedData, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, ErrMissingURL
	}

	var result *extract.ScrapedData
	err := e.limiter.Do(ctx, func(ctx context.Context) error {
		data, crawlErr := e.crawl(ctx, req)
		result = data
		return crawlErr
	})
	if err != nil {
		metrics.ObserveCrawl("error")
		return nil, err
	}
	metrics.ObserveCrawl("ok")
	return result, nil
}

// CrawlBatch crawls each URL sequentially against the same engine. Per-URL
// failures become placeholder results carrying the error in metadata rather
// than aborting the batch.
func (e *Engine) CrawlBatch(ctx context.Context, urls []string, base Request) []*extract.ScrapedData {
	results := make([]*extract.ScrapedData, 0, len(urls))
	for _, u := range urls {
		req := base
		req.URL = u
		data, err := e.Crawl(ctx, req)
		if err != nil {
			e.logger.Warn("batch crawl entry failed", zap.String("url", u), zap.Error(err))
			placeholder := &extract.ScrapedData{
				URL:         u,
				Content:     "",
				ExtractedAt: time.Now().UTC(),
			}
			placeholder.SetMeta("error", err.Error())
			results = append(results, placeholder)
			continue
		}
		results = append(results, data)
	}
	return results
}

// crawl drives the proxy retry loop for one admitted request.
func (e *Engine) crawl(ctx context.Context, req Request) (*extract.ScrapedData, error) {
	proxies, err := e.resolveProxies(req)
	if err != nil {
		return nil, err
	}

	factory := e.static
	if req.Render {
		factory = e.rendered
	}
	if factory == nil {
		return nil, fmt.Errorf("crawl %s: no session factory for render=%t", req.URL, req.Render)
	}

	tries := len(proxies)
	if tries < 1 {
		tries = 1
	}

	var lastErr error
	for try := 0; try < tries; try++ {
		opts := e.sessionOptions(req, proxies, try)
		sess, err := factory.NewSession(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("open session for %s: %w", req.URL, err)
		}

		navErr := sess.Navigate(ctx, req.URL)
		status := sess.Status()

		switch {
		case navErr == nil && status < 400:
			data, harvestErr := e.harvest(ctx, sess, req)
			sess.Close()
			return data, harvestErr
		case retryable(status, navErr):
			sess.Close()
			metrics.ObserveProxyRetry()
			lastErr = navErr
			if lastErr == nil {
				lastErr = fmt.Errorf("status %d", status)
			}
			e.logger.Debug("retryable navigation failure",
				zap.String("url", req.URL),
				zap.Int("attempt", try+1),
				zap.Int("status", status),
				zap.Error(navErr),
			)
		default:
			sess.Close()
			if navErr == nil {
				navErr = fmt.Errorf("status %d", status)
			}
			return nil, fmt.Errorf("crawl %s: %w", req.URL, navErr)
		}
	}
	return nil, fmt.Errorf("crawl %s: %d attempts exhausted across proxy rotation: %w", req.URL, tries, lastErr)
}

// resolveProxies pins this request's retry order: an explicit per-request
// override wins; otherwise the default pool, when present, is drained by size
// into a fixed list.
func (e *Engine) resolveProxies(req Request) ([]proxy.Config, error) {
	if len(req.Proxies) > 0 {
		configs, err := proxy.Normalize(req.Proxies...)
		if err != nil {
			return nil, err
		}
		return configs, nil
	}
	if e.pool != nil {
		return e.pool.Snapshot(), nil
	}
	return nil, nil
}

func (e *Engine) sessionOptions(req Request, proxies []proxy.Config, try int) SessionOptions {
	opts := SessionOptions{
		UserAgent:  e.cfg.UserAgent,
		NavTimeout: e.cfg.NavTimeout,
	}
	if req.UserAgent != "" {
		opts.UserAgent = req.UserAgent
	}
	if req.Timeout > 0 {
		opts.NavTimeout = req.Timeout
	}
	if len(proxies) > 0 {
		opts.ProxyURL = proxies[try%len(proxies)].URL()
	}
	return opts
}

// harvest turns an established session into extracted data: settle wait,
// pagination, markup merge, optional schema detection, extraction, and the
// optional soft-failure media and llm passes.
func (e *Engine) harvest(ctx context.Context, sess Session, req Request) (*extract.ScrapedData, error) {
	settle := req.WaitAfterLoad
	if settle <= 0 {
		settle = e.cfg.SettleDelay
	}
	if settle > 0 {
		if err := sleepCtx(ctx, settle); err != nil {
			return nil, err
		}
	}

	pages, err := e.collectPages(ctx, sess, req)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", req.URL, err)
	}

	var merged strings.Builder
	visited := make([]string, 0, len(pages))
	for _, page := range pages {
		merged.WriteString(page.HTML)
		visited = append(visited, page.URL)
	}
	markup := merged.String()

	schema := req.Schema
	var detection *extract.Detection
	if schema == nil && req.AutoDetectSchema {
		det := extract.DetectSchema([]byte(markup))
		detection = &det
		schema = det.Schema
	}

	data, err := e.extractor.Extract(req.URL, markup, schema)
	if err != nil {
		return nil, err
	}

	data.SetMeta("content_hash", sha256.Digest([]byte(markup)))
	if len(visited) > 1 {
		data.SetMeta("pages_visited", visited)
	}
	if detection != nil {
		data.SetMeta("schema_confidence", detection.Confidence)
		data.SetMeta("schema_reasons", detection.Reasons)
	}

	if req.EmbedMedia && e.media != nil && len(data.Images) > 0 {
		data.SetMeta("media", e.media.FetchAll(ctx, data.Images))
	}

	if req.LLMExtract && e.llm != nil {
		fields, llmErr := e.llm.ExtractFields(ctx, data.Content)
		if llmErr != nil {
			e.logger.Warn("llm supplement failed", zap.String("url", req.URL), zap.Error(llmErr))
			data.SetMeta("llm_error", llmErr.Error())
		} else {
			data.SetMeta("llm", fields)
		}
	}

	return data, nil
}

// collectPages reads the current page, traversing pagination when the
// request asks for depth beyond the origin.
func (e *Engine) collectPages(ctx context.Context, sess Session, req Request) ([]paginate.VisitedPage, error) {
	if req.MaxDepth > 1 {
		traverser := paginate.New(paginate.Config{
			NextSelector: req.NextSelector,
			NextFunc:     req.NextFunc,
			Logger:       e.logger,
		})
		return traverser.Traverse(ctx, sess, req.MaxDepth)
	}
	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read markup: %w", err)
	}
	return []paginate.VisitedPage{{URL: req.URL, HTML: html}}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("settle wait: %w", ctx.Err())
	}
}
