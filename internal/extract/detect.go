package extract

import (
	"bytes"
	"fmt"
)

// Detection is the outcome of the structural schema scanner.
type Detection struct {
	Schema     *Schema
	Confidence float64
	Reasons    []string
}

// structural markers checked by DetectSchema. The scan is byte-level on
// purpose: it never consults field text, only marker presence, so it stays
// cheap enough to run before any DOM parsing.
var (
	markerOGTitle     = []byte(`property="og:title"`)
	markerTitle       = []byte("<title")
	markerH1          = []byte("<h1")
	markerAuthorMeta  = []byte(`name="author"`)
	markerAuthorClass = []byte(`class="author`)
	markerArticle     = []byte("<article")
	markerMain        = []byte("<main")
	contentClasses    = [][]byte{
		[]byte(`class="post-content`),
		[]byte(`class="article-content`),
		[]byte(`class="entry-content`),
		[]byte(`class="content`),
	}
)

// DetectSchema scans raw markup for common structural markers and assembles a
// best-guess extraction schema with a confidence score in [0,1] and
// human-readable justifications.
func DetectSchema(markup []byte) Detection {
	lower := bytes.ToLower(markup)
	schema := &Schema{}
	var reasons []string
	signals, hits := 0, 0

	check := func(present bool, reason string, apply func()) {
		signals++
		if !present {
			return
		}
		hits++
		reasons = append(reasons, reason)
		if apply != nil {
			apply()
		}
	}

	hasOGTitle := bytes.Contains(lower, markerOGTitle)
	check(hasOGTitle, "og:title meta present", nil)
	check(bytes.Contains(lower, markerTitle), "title element present", nil)
	check(bytes.Contains(lower, markerH1), "h1 heading present", func() {
		// The built-in chain already prefers og:title; emitting an h1
		// selector here would override it with heading text.
		if !hasOGTitle {
			schema.Title = "h1"
		}
	})
	check(bytes.Contains(lower, markerAuthorMeta) || bytes.Contains(lower, markerAuthorClass),
		"author marker present", func() {
			schema.Author = ".author"
		})

	contentReason, contentSelector := detectContentMarker(lower)
	check(contentSelector != "", contentReason, func() {
		schema.Content = contentSelector
	})

	confidence := 0.0
	if signals > 0 {
		confidence = float64(hits) / float64(signals)
	}
	return Detection{Schema: schema, Confidence: confidence, Reasons: reasons}
}

func detectContentMarker(lower []byte) (string, string) {
	if bytes.Contains(lower, markerArticle) {
		return "article element present", "article"
	}
	if bytes.Contains(lower, markerMain) {
		return "main element present", "main"
	}
	for _, class := range contentClasses {
		if bytes.Contains(lower, class) {
			return fmt.Sprintf("content class marker %q present", string(class)), ".content"
		}
	}
	return "", ""
}
