package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// collectImages gathers img srcs (or data-src fallbacks) and resolves them
// against the page URL. A non-empty selector scopes the scan to its matches;
// when the selector yields no usable source the whole document is scanned
// instead.
func collectImages(doc *goquery.Document, pageURL, selector string) []string {
	var raw []string
	if selector != "" {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if goquery.NodeName(sel) == "img" {
				raw = appendImageSrc(raw, sel)
				return
			}
			sel.Find("img").Each(func(_ int, img *goquery.Selection) {
				raw = appendImageSrc(raw, img)
			})
		})
		if len(raw) > 0 {
			return ResolveImageURLs(raw, pageURL)
		}
	}
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		raw = appendImageSrc(raw, sel)
	})
	return ResolveImageURLs(raw, pageURL)
}

func appendImageSrc(raw []string, sel *goquery.Selection) []string {
	src := sel.AttrOr("src", "")
	if src == "" {
		src = sel.AttrOr("data-src", "")
	}
	if src == "" {
		return raw
	}
	return append(raw, src)
}

// ResolveImageURLs resolves each candidate against the base URL, drops data:
// URIs (they carry no remote location to fetch), and deduplicates while
// preserving order. Candidates that fail to resolve pass through unresolved.
func ResolveImageURLs(candidates []string, base string) []string {
	baseURL, baseErr := url.Parse(base)

	seen := make(map[string]struct{}, len(candidates))
	resolved := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || strings.HasPrefix(candidate, "data:") {
			continue
		}
		out := candidate
		if baseErr == nil {
			if ref, err := url.Parse(candidate); err == nil {
				out = baseURL.ResolveReference(ref).String()
			}
		}
		if _, dup := seen[out]; dup {
			continue
		}
		seen[out] = struct{}{}
		resolved = append(resolved, out)
	}
	return resolved
}
