package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrapegoat/scrapegoat/internal/crawler"
)

func TestNavigateRecordsBodyAndStatus(t *testing.T) {
	t.Parallel()

	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.UserAgent()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	factory := NewFactory(Config{UserAgent: "test-agent"})
	sess, err := factory.NewSession(context.Background(), crawler.SessionOptions{})
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Navigate(context.Background(), srv.URL))
	require.Equal(t, http.StatusOK, sess.Status())
	require.Equal(t, "test-agent", agent)

	html, err := sess.HTML(context.Background())
	require.NoError(t, err)
	require.Contains(t, html, "hello")

	loc, err := sess.URL(context.Background())
	require.NoError(t, err)
	require.Equal(t, srv.URL, loc)
}

func TestNavigateErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	factory := NewFactory(Config{})
	sess, err := factory.NewSession(context.Background(), crawler.SessionOptions{})
	require.NoError(t, err)

	err = sess.Navigate(context.Background(), srv.URL)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, sess.Status())
}

func TestUserAgentOverride(t *testing.T) {
	t.Parallel()

	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.UserAgent()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	factory := NewFactory(Config{UserAgent: "default-agent"})
	sess, err := factory.NewSession(context.Background(), crawler.SessionOptions{UserAgent: "per-request"})
	require.NoError(t, err)

	require.NoError(t, sess.Navigate(context.Background(), srv.URL))
	require.Equal(t, "per-request", seen)
}

func TestNavigationsAreIsolated(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("page a")) })
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("page b")) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	factory := NewFactory(Config{})
	sess, err := factory.NewSession(context.Background(), crawler.SessionOptions{})
	require.NoError(t, err)

	require.NoError(t, sess.Navigate(context.Background(), srv.URL+"/a"))
	require.NoError(t, sess.Navigate(context.Background(), srv.URL+"/b"))

	html, err := sess.HTML(context.Background())
	require.NoError(t, err)
	require.Equal(t, "page b", html)
}

func TestClickAndVisibleDegrade(t *testing.T) {
	t.Parallel()

	factory := NewFactory(Config{})
	sess, err := factory.NewSession(context.Background(), crawler.SessionOptions{})
	require.NoError(t, err)

	require.ErrorIs(t, sess.Click(context.Background(), ".load-more"), ErrNotInteractive)

	visible, err := sess.Visible(context.Background(), ".load-more")
	require.NoError(t, err)
	require.False(t, visible)
}

func TestInvalidProxyRejected(t *testing.T) {
	t.Parallel()

	factory := NewFactory(Config{})
	_, err := factory.NewSession(context.Background(), crawler.SessionOptions{ProxyURL: "://bad"})
	require.Error(t, err)
}
