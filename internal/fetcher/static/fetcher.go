// Package static implements the non-rendered fetch path using Colly.
package static

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/scrapegoat/scrapegoat/internal/crawler"
)

// ErrNotInteractive is returned for interactions a plain HTTP session cannot
// perform; the traversal's load-more branch degrades gracefully on it.
var ErrNotInteractive = errors.New("static session cannot interact with the page")

const defaultTimeout = 30 * time.Second

// Config controls the static session factory.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Factory implements crawler.SessionFactory over plain HTTP fetches. Used
// when a request does not ask for JavaScript rendering.
type Factory struct {
	cfg    Config
	logger *zap.Logger
}

// NewFactory constructs a Factory.
func NewFactory(cfg Config) *Factory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, logger: logger}
}

// NewSession builds a session with its own collector so proxy settings and
// cookies stay isolated per crawl attempt.
func (f *Factory) NewSession(_ context.Context, opts crawler.SessionOptions) (crawler.Session, error) {
	collector := colly.NewCollector(colly.IgnoreRobotsTxt())
	collector.UserAgent = f.cfg.UserAgent
	if opts.UserAgent != "" {
		collector.UserAgent = opts.UserAgent
	}
	timeout := opts.NavTimeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	collector.SetRequestTimeout(timeout)
	if opts.ProxyURL != "" {
		if err := collector.SetProxy(opts.ProxyURL); err != nil {
			return nil, fmt.Errorf("set proxy %s: %w", opts.ProxyURL, err)
		}
	}
	return &session{collector: collector, logger: f.logger}, nil
}

// session implements crawler.Session for static fetches. The page "state" is
// the markup of the last navigated URL.
type session struct {
	collector *colly.Collector
	logger    *zap.Logger

	mu      sync.Mutex
	current string
	body    string
	status  int
}

// Navigate fetches the target synchronously and records body and status.
func (s *session) Navigate(_ context.Context, target string) error {
	collector := s.collector.Clone()

	var (
		body   []byte
		status int
		navErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		navErr = err
	})

	if err := collector.Visit(target); err != nil {
		navErr = err
	}
	collector.Wait()

	s.mu.Lock()
	s.current = target
	s.body = string(body)
	s.status = status
	s.mu.Unlock()

	if navErr != nil {
		return fmt.Errorf("fetch %s: %w", target, navErr)
	}
	return nil
}

func (s *session) HTML(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body, nil
}

func (s *session) URL(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *session) Click(_ context.Context, _ string) error {
	return ErrNotInteractive
}

// Visible always reports false: nothing is clickable without a browser, so
// load-more affordances are skipped on the static path.
func (s *session) Visible(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *session) Status() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close is a no-op; collectors hold no long-lived resources.
func (s *session) Close() {}
