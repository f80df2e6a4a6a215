package crawler

import (
	"context"
	"time"

	"github.com/scrapegoat/scrapegoat/internal/paginate"
)

// Session is one isolated browsing context bound to a single crawl attempt.
// Cookies and proxy configuration never leak between sessions. A Session must
// be closed on every exit path.
type Session interface {
	paginate.Page
	// Status reports the HTTP status of the last document navigation, or
	// zero when none completed.
	Status() int
	// Close releases the session's browsing context.
	Close()
}

// SessionOptions configure one attempt's session.
type SessionOptions struct {
	// ProxyURL routes the session's egress, empty for a direct connection.
	ProxyURL string
	// UserAgent overrides the session's user agent when non-empty.
	UserAgent string
	// NavTimeout bounds each navigation performed by the session.
	NavTimeout time.Duration
}

// SessionFactory opens sessions. The browser-backed factory is shared
// process-wide and lazily starts the browser on first use; the static factory
// builds plain HTTP sessions for non-rendered requests.
type SessionFactory interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}
