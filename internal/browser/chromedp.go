// Package browser opens rendered browsing sessions through headless Chrome
// via chromedp.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/scrapegoat/scrapegoat/internal/crawler"
)

const defaultNavTimeout = 30 * time.Second

// Config controls the shared browser factory.
type Config struct {
	// NavTimeout is the default navigation timeout for sessions that do not
	// set their own.
	NavTimeout time.Duration
	Logger     *zap.Logger
}

// Factory implements crawler.SessionFactory on headless Chrome. One Factory
// is shared process-wide; browser processes are started lazily on first use,
// one per distinct proxy, and torn down by Close.
type Factory struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	allocators map[string]allocatorHandle
	closed     bool
}

type allocatorHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewFactory constructs a Factory. No browser is started until the first
// session is requested.
func NewFactory(cfg Config) *Factory {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		cfg:        cfg,
		logger:     logger,
		allocators: make(map[string]allocatorHandle),
	}
}

// NewSession opens an isolated browsing context. Proxy configuration is fixed
// per browser process, so sessions sharing a proxy share an allocator while
// keeping separate contexts (separate cookies and cache).
func (f *Factory) NewSession(_ context.Context, opts crawler.SessionOptions) (crawler.Session, error) {
	alloc, err := f.allocator(opts.ProxyURL)
	if err != nil {
		return nil, err
	}

	taskCtx, taskCancel := chromedp.NewContext(alloc)

	timeout := opts.NavTimeout
	if timeout <= 0 {
		timeout = f.cfg.NavTimeout
	}
	s := &session{
		ctx:        taskCtx,
		cancel:     taskCancel,
		navTimeout: timeout,
		userAgent:  opts.UserAgent,
	}
	chromedp.ListenTarget(taskCtx, s.captureEvent)
	return s, nil
}

// Close tears down every started browser. The factory is unusable afterwards.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, handle := range f.allocators {
		handle.cancel()
		delete(f.allocators, key)
	}
	f.closed = true
}

func (f *Factory) allocator(proxyURL string) (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("browser factory closed")
	}
	if handle, ok := f.allocators[proxyURL]; ok {
		return handle.ctx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if proxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(proxyURL))
	}
	ctx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	f.allocators[proxyURL] = allocatorHandle{ctx: ctx, cancel: cancel}
	f.logger.Debug("browser allocator started", zap.String("proxy", proxyURL))
	return ctx, nil
}

// session implements crawler.Session over one chromedp context.
type session struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
	userAgent  string

	mu     sync.Mutex
	status int
}

// Navigate loads the target with the session timeout and waits for the body
// to be ready. The document response status is captured for classification.
func (s *session) Navigate(ctx context.Context, target string) error {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	actions := []chromedp.Action{
		s.setupAction(),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	return nil
}

// HTML returns the rendered document markup.
func (s *session) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read markup: %w", err)
	}
	return html, nil
}

// URL returns the page's current location.
func (s *session) URL(ctx context.Context) (string, error) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	var loc string
	if err := chromedp.Run(runCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Click activates the first visible element matching the selector.
func (s *session) Click(ctx context.Context, selector string) error {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// Visible reports whether the selector matches an element taking up layout
// space.
func (s *session) Visible(ctx context.Context, selector string) (bool, error) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	var visible bool
	script := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); return !!el && el.offsetParent !== null; })()`,
		selector,
	)
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &visible)); err != nil {
		return false, fmt.Errorf("visibility probe %q: %w", selector, err)
	}
	return visible, nil
}

// Status reports the last captured document response status.
func (s *session) Status() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close cancels the session's browsing context.
func (s *session) Close() {
	s.cancel()
}

func (s *session) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(runCtx, deadline)
	}
	return context.WithTimeout(runCtx, s.navTimeout)
}

func (s *session) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.userAgent != "" {
			if err := emulation.SetUserAgentOverride(s.userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (s *session) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	s.mu.Lock()
	s.status = int(resp.Response.Status)
	s.mu.Unlock()
}
