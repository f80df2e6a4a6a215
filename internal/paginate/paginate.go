// Package paginate discovers and visits successor pages of an initial page,
// bounded by depth and a visited-set.
package paginate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Page is the live page handle the traversal drives. Browser-backed pages
// support clicking; static pages may reject Click and report nothing visible.
type Page interface {
	// URL returns the page's current location.
	URL(ctx context.Context) (string, error)
	// HTML returns the page's current markup.
	HTML(ctx context.Context) (string, error)
	// Navigate loads the given URL in place.
	Navigate(ctx context.Context, target string) error
	// Click activates the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// Visible reports whether the selector matches a visible element.
	Visible(ctx context.Context, selector string) (bool, error)
}

// NextFunc is a caller-supplied override given the live page handle. A
// non-nil NextFunc bypasses every built-in heuristic; returning "" stops the
// traversal and an error is terminal for the crawl attempt.
type NextFunc func(ctx context.Context, page Page) (string, error)

// VisitedPage pairs a visited URL with the markup read there.
type VisitedPage struct {
	URL  string
	HTML string
}

// loadMoreSelectors are the fixed "load more" affordances tried after the
// anchor heuristics miss.
var loadMoreSelectors = []string{
	".load-more",
	"#load-more",
	".show-more",
	"button.load-more",
	"button[data-load-more]",
	".pagination__more",
}

// loadMoreTexts match button labels when no fixed selector is present.
var loadMoreTexts = []string{"load more", "show more", "view more"}

// Config controls a Traverser.
type Config struct {
	// NextSelector is an optional CSS selector for the "next" anchor. It
	// takes precedence over the built-in patterns.
	NextSelector string
	// NextFunc fully overrides next-URL resolution when non-nil.
	NextFunc NextFunc
	// SettleDelay is the fixed wait after clicking a load-more affordance
	// before the location is re-read. Zero keeps the default.
	SettleDelay time.Duration
	Logger      *zap.Logger
}

const defaultSettleDelay = 1500 * time.Millisecond

// Traverser drives the bounded pagination loop.
type Traverser struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs a Traverser.
func New(cfg Config) *Traverser {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Traverser{cfg: cfg, logger: logger}
}

// Traverse visits up to maxDepth pages starting from the page's current
// location and returns them in visit order. The result always includes the
// origin. Termination, in priority order: depth limit, no next URL, next URL
// already visited.
//
// A load-more click that leaves the URL unchanged means content was appended
// in place: the grown markup replaces the page's captured entry and the
// traversal stops, so an in-place affordance is followed exactly once rather
// than re-clicked until depth exhaustion.
func (t *Traverser) Traverse(ctx context.Context, page Page, maxDepth int) ([]VisitedPage, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}
	origin, err := page.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read origin url: %w", err)
	}

	visited := map[string]struct{}{origin: {}}
	current := origin
	var out []VisitedPage

	for {
		html, err := page.HTML(ctx)
		if err != nil {
			return nil, fmt.Errorf("read page markup at %s: %w", current, err)
		}
		out = append(out, VisitedPage{URL: current, HTML: html})

		if len(out) >= maxDepth {
			break
		}

		next, err := t.nextHop(ctx, page, current, html)
		if err != nil {
			return nil, err
		}
		if next.url == "" {
			break
		}
		if next.url == current {
			grown, herr := page.HTML(ctx)
			if herr == nil {
				out[len(out)-1].HTML = grown
			}
			break
		}
		if _, seen := visited[next.url]; seen {
			break
		}
		visited[next.url] = struct{}{}

		if !next.arrived {
			if err := page.Navigate(ctx, next.url); err != nil {
				return nil, fmt.Errorf("navigate to %s: %w", next.url, err)
			}
		}
		current = next.url
	}
	return out, nil
}

// hop is one resolved successor. arrived is set when the page is already at
// the URL (a load-more click navigated it).
type hop struct {
	url     string
	arrived bool
}

// nextHop resolves the next URL, first match wins: caller callback, custom
// selector, built-in anchor patterns, load-more affordance.
func (t *Traverser) nextHop(ctx context.Context, page Page, current, html string) (hop, error) {
	if t.cfg.NextFunc != nil {
		next, err := t.cfg.NextFunc(ctx, page)
		if err != nil {
			return hop{}, fmt.Errorf("pagination callback: %w", err)
		}
		return hop{url: next}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.logger.Debug("pagination markup parse failed", zap.String("url", current), zap.Error(err))
		return hop{}, nil
	}

	if t.cfg.NextSelector != "" {
		href := firstHref(doc.Find(t.cfg.NextSelector))
		if href != "" {
			return hop{url: resolveRef(current, href)}, nil
		}
		return hop{}, nil
	}

	if next := t.builtinNext(doc, current); next != "" {
		return hop{url: next}, nil
	}

	return t.loadMoreHop(ctx, page, doc, current)
}

// builtinNext tries the fixed anchor pattern list in order; the first pattern
// yielding an href that resolves to a URL different from the current one wins.
func (t *Traverser) builtinNext(doc *goquery.Document, current string) string {
	patterns := []func() string{
		func() string { return firstHref(doc.Find(`a[rel="next"]`)) },
		func() string { return anchorWithText(doc, "next") },
		func() string { return firstHref(doc.Find(".next, .pagination-next")) },
		func() string { return ariaNext(doc) },
	}
	for _, pattern := range patterns {
		href := pattern()
		if href == "" {
			continue
		}
		resolved := resolveRef(current, href)
		if resolved != current {
			return resolved
		}
	}
	return ""
}

// loadMoreHop finds a visible load-more affordance, clicks it, waits the
// settle delay, and re-reads the location. An unchanged URL is returned as
// the in-place sentinel.
func (t *Traverser) loadMoreHop(ctx context.Context, page Page, doc *goquery.Document, current string) (hop, error) {
	selector := findLoadMore(doc)
	if selector == "" {
		return hop{}, nil
	}
	visible, err := page.Visible(ctx, selector)
	if err != nil || !visible {
		return hop{}, nil
	}
	if err := page.Click(ctx, selector); err != nil {
		t.logger.Debug("load-more click failed", zap.String("selector", selector), zap.Error(err))
		return hop{}, nil
	}
	if err := sleepCtx(ctx, t.cfg.SettleDelay); err != nil {
		return hop{}, err
	}
	loc, err := page.URL(ctx)
	if err != nil || loc == "" {
		return hop{url: current, arrived: true}, nil
	}
	return hop{url: loc, arrived: true}, nil
}

// findLoadMore returns a clickable selector for a load-more affordance, from
// the fixed selector list first, then from button text patterns when the
// matched button carries an id or class to address it by.
func findLoadMore(doc *goquery.Document) string {
	for _, sel := range loadMoreSelectors {
		if doc.Find(sel).Length() > 0 {
			return sel
		}
	}
	var found string
	doc.Find("button, a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		for _, pattern := range loadMoreTexts {
			if !strings.Contains(text, pattern) {
				continue
			}
			if id := sel.AttrOr("id", ""); id != "" {
				found = "#" + id
				return false
			}
			if class := sel.AttrOr("class", ""); class != "" {
				found = "." + strings.Fields(class)[0]
				return false
			}
		}
		return true
	})
	return found
}

func firstHref(sel *goquery.Selection) string {
	node := sel.First()
	if node.Length() == 0 {
		return ""
	}
	if href := node.AttrOr("href", ""); href != "" {
		return href
	}
	return node.Find("a").First().AttrOr("href", "")
}

// anchorWithText returns the href of the first anchor whose text contains the
// given word, case-insensitively.
func anchorWithText(doc *goquery.Document, word string) string {
	var href string
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(sel.Text()), word) {
			href = sel.AttrOr("href", "")
			return href == ""
		}
		return true
	})
	return href
}

func ariaNext(doc *goquery.Document) string {
	var href string
	doc.Find("[aria-label]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(sel.AttrOr("aria-label", "")), "next") {
			href = firstHref(sel)
			return href == ""
		}
		return true
	})
	return href
}

// resolveRef resolves href against base. Resolution failures degrade to the
// raw string rather than failing the traversal.
func resolveRef(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pagination settle wait: %w", ctx.Err())
	}
}
