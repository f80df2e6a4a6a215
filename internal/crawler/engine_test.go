package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrapegoat/scrapegoat/internal/extract"
	"github.com/scrapegoat/scrapegoat/internal/policy/ratelimit"
	"github.com/scrapegoat/scrapegoat/internal/proxy"
)

// attempt scripts one session's navigation outcome.
type attempt struct {
	status int
	err    error
	html   string
}

type fakeSession struct {
	attempt attempt
	current string
	pages   map[string]string
	closed  bool
}

func (s *fakeSession) URL(context.Context) (string, error) { return s.current, nil }

func (s *fakeSession) HTML(context.Context) (string, error) {
	if s.pages != nil {
		return s.pages[s.current], nil
	}
	return s.attempt.html, nil
}

func (s *fakeSession) Navigate(_ context.Context, target string) error {
	s.current = target
	return s.attempt.err
}

func (s *fakeSession) Click(context.Context, string) error { return nil }

func (s *fakeSession) Visible(context.Context, string) (bool, error) { return false, nil }

func (s *fakeSession) Status() int { return s.attempt.status }

func (s *fakeSession) Close() { s.closed = true }

// fakeFactory replays scripted attempts in order and records the proxy each
// session was opened with.
type fakeFactory struct {
	attempts []attempt
	pages    map[string]string
	opened   []SessionOptions
	sessions []*fakeSession
}

func (f *fakeFactory) NewSession(_ context.Context, opts SessionOptions) (Session, error) {
	f.opened = append(f.opened, opts)
	idx := len(f.opened) - 1
	a := f.attempts[len(f.attempts)-1]
	if idx < len(f.attempts) {
		a = f.attempts[idx]
	}
	sess := &fakeSession{attempt: a, pages: f.pages}
	f.sessions = append(f.sessions, sess)
	return sess, nil
}

const fakeArticle = `<html><head><title>Fake</title></head><body><article>
<p>A reasonably long paragraph so the extraction threshold is comfortably cleared.</p>
</article></body></html>`

func newTestEngine(factory SessionFactory, pool *proxy.Pool) *Engine {
	return NewEngine(
		Config{UserAgent: "test-agent"},
		ratelimit.New(ratelimit.Config{MaxConcurrency: 2}),
		pool,
		factory,
		factory,
		extract.New(extract.Config{}),
		nil,
		nil,
		nil,
	)
}

func TestCrawlMissingURL(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(&fakeFactory{attempts: []attempt{{status: 200}}}, nil)
	_, err := engine.Crawl(context.Background(), Request{URL: "   "})
	require.ErrorIs(t, err, ErrMissingURL)
}

func TestCrawlSuccess(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{attempts: []attempt{{status: 200, html: fakeArticle}}}
	engine := newTestEngine(factory, nil)

	data, err := engine.Crawl(context.Background(), Request{URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, "Fake", data.Title)
	require.Contains(t, data.Content, "reasonably long paragraph")
	require.NotEmpty(t, data.Metadata["content_hash"])

	require.Len(t, factory.opened, 1)
	require.Equal(t, "test-agent", factory.opened[0].UserAgent)
	require.True(t, factory.sessions[0].closed)
}

func TestCrawlRetriesAcrossProxies(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{attempts: []attempt{
		{status: 403},
		{status: 200, html: fakeArticle},
	}}
	engine := newTestEngine(factory, nil)

	req := Request{
		URL:     "https://example.com",
		Proxies: []string{"http://p1.example.com:3128", "http://p2.example.com:3128"},
	}
	data, err := engine.Crawl(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "Fake", data.Title)

	require.Len(t, factory.opened, 2)
	require.Equal(t, "http://p1.example.com:3128", factory.opened[0].ProxyURL)
	require.Equal(t, "http://p2.example.com:3128", factory.opened[1].ProxyURL)
	require.True(t, factory.sessions[0].closed)
}

func TestCrawlRetryExhaustion(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{attempts: []attempt{{status: 429}, {status: 429}}}
	engine := newTestEngine(factory, nil)

	req := Request{
		URL:     "https://example.com",
		Proxies: []string{"http://p1.example.com:3128", "http://p2.example.com:3128"},
	}
	_, err := engine.Crawl(context.Background(), req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "attempts exhausted")
	require.Len(t, factory.opened, 2)
}

func TestCrawlTerminalFailureDoesNotRetry(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{attempts: []attempt{{status: 500}}}
	engine := newTestEngine(factory, nil)

	req := Request{
		URL:     "https://example.com",
		Proxies: []string{"http://p1.example.com:3128", "http://p2.example.com:3128"},
	}
	_, err := engine.Crawl(context.Background(), req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
	require.Len(t, factory.opened, 1)
}

func TestCrawlTimeoutErrorRetries(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{attempts: []attempt{
		{err: errors.New("page load error net::ERR_TIMED_OUT")},
		{status: 200, html: fakeArticle},
	}}
	engine := newTestEngine(factory, nil)

	req := Request{
		URL:     "https://example.com",
		Proxies: []string{"http://p1.example.com:3128", "http://p2.example.com:3128"},
	}
	_, err := engine.Crawl(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, factory.opened, 2)
}

func TestCrawlUsesDefaultPool(t *testing.T) {
	t.Parallel()

	pool, err := proxy.NewPool("http://pool.example.com:8080")
	require.NoError(t, err)

	factory := &fakeFactory{attempts: []attempt{{status: 200, html: fakeArticle}}}
	engine := newTestEngine(factory, pool)

	_, err = engine.Crawl(context.Background(), Request{URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, "http://pool.example.com:8080", factory.opened[0].ProxyURL)
}

func TestCrawlRequestOverridesEngineDefaults(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{attempts: []attempt{{status: 200, html: fakeArticle}}}
	engine := newTestEngine(factory, nil)

	_, err := engine.Crawl(context.Background(), Request{
		URL:       "https://example.com",
		UserAgent: "override-agent",
	})
	require.NoError(t, err)
	require.Equal(t, "override-agent", factory.opened[0].UserAgent)
}

func TestCrawlInvalidProxyOverride(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{attempts: []attempt{{status: 200, html: fakeArticle}}}
	engine := newTestEngine(factory, nil)

	_, err := engine.Crawl(context.Background(), Request{
		URL:     "https://example.com",
		Proxies: []string{"ftp://bad.example.com"},
	})
	require.Error(t, err)
	require.Empty(t, factory.opened)
}

func TestCrawlPagination(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"https://example.com/p1": `<article><p>page one content long enough to pass the extraction threshold</p></article><a rel="next" href="/p2">next</a>`,
		"https://example.com/p2": `<article><p>page two content also long enough to pass the threshold check</p></article>`,
	}
	factory := &fakeFactory{attempts: []attempt{{status: 200}}, pages: pages}
	engine := newTestEngine(factory, nil)

	data, err := engine.Crawl(context.Background(), Request{
		URL:      "https://example.com/p1",
		MaxDepth: 5,
	})
	require.NoError(t, err)
	require.Contains(t, data.Content, "page one content")
	require.Contains(t, data.Content, "page two content")
	require.Equal(t, []string{"https://example.com/p1", "https://example.com/p2"}, data.Metadata["pages_visited"])
}

func TestCrawlAutoDetectSchema(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{attempts: []attempt{{status: 200, html: fakeArticle}}}
	engine := newTestEngine(factory, nil)

	data, err := engine.Crawl(context.Background(), Request{
		URL:              "https://example.com",
		AutoDetectSchema: true,
	})
	require.NoError(t, err)
	require.Contains(t, data.Metadata, "schema_confidence")
	require.Contains(t, data.Metadata, "schema_reasons")
}

func TestCrawlBatchPlaceholders(t *testing.T) {
	t.Parallel()

	// The second URL's attempt fails terminally; the batch keeps going and
	// records the failure inline.
	factory := &fakeFactory{attempts: []attempt{
		{status: 200, html: fakeArticle},
		{status: 500},
		{status: 200, html: fakeArticle},
	}}
	engine := newTestEngine(factory, nil)

	urls := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	results := engine.CrawlBatch(context.Background(), urls, Request{})

	require.Len(t, results, 3)
	require.Equal(t, "Fake", results[0].Title)
	require.Equal(t, "https://b.example.com", results[1].URL)
	require.Contains(t, fmt.Sprint(results[1].Metadata["error"]), "status 500")
	require.Equal(t, "Fake", results[2].Title)
}

func TestEventForStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, EventJobCreated, EventForStatus(JobStatusPending))
	require.Equal(t, EventJobProcessing, EventForStatus(JobStatusProcessing))
	require.Equal(t, EventJobCompleted, EventForStatus(JobStatusCompleted))
	require.Equal(t, EventJobFailed, EventForStatus(JobStatusFailed))
}

func TestJobStatusTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, JobStatusPending.Terminal())
	require.False(t, JobStatusProcessing.Terminal())
	require.True(t, JobStatusCompleted.Terminal())
	require.True(t, JobStatusFailed.Terminal())
}
