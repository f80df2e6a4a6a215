package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// defaultContentMinChars is the text length a candidate region must exceed
// before it is accepted as the main content.
const defaultContentMinChars = 50

// contentCandidates are tried in order when no schema content selector
// qualifies. Semantic elements first, then common class/id conventions.
var contentCandidates = []string{
	"article",
	`[role="article"]`,
	"main",
	`[role="main"]`,
	".post-content",
	".article-content",
	".entry-content",
	".post-body",
	".article-body",
	".story-body",
	"#content",
	".content",
}

// noiseSelectors are always stripped before content is measured or selected.
var noiseSelectors = []string{
	".ad", ".ads", ".advert", ".advertisement", ".ad-container",
	".social-share", ".share-buttons", ".social-links",
	".newsletter", ".newsletter-signup", ".subscribe-box",
	".cookie-banner", ".cookie-notice", "#cookie-consent",
	".popup", ".modal-overlay", ".related-posts", ".comments", "#comments",
}

// chromeSelectors are stripped only when they do not wrap a semantic article
// or main region of their own.
var chromeSelectors = []string{"nav", "header", "footer", "aside"}

// Config controls Extractor behavior.
type Config struct {
	// ContentMinChars overrides the minimum content text length. Zero keeps
	// the default of 50 characters.
	ContentMinChars int
	Logger          *zap.Logger
}

// Extractor converts markup documents into ScrapedData. It is stateless and
// safe for concurrent use.
type Extractor struct {
	minChars int
	sanitize *bluemonday.Policy
	markdown *MarkdownRenderer
	logger   *zap.Logger
}

// New constructs an Extractor.
func New(cfg Config) *Extractor {
	minChars := cfg.ContentMinChars
	if minChars <= 0 {
		minChars = defaultContentMinChars
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		minChars: minChars,
		sanitize: bluemonday.UGCPolicy(),
		markdown: NewMarkdownRenderer(),
		logger:   logger,
	}
}

// Extract parses the (possibly multi-page-concatenated) markup and produces
// structured output. The schema may be nil; every field then follows its
// built-in fallback chain.
func (e *Extractor) Extract(pageURL, markup string, schema *Schema) (*ScrapedData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup for %s: %w", pageURL, err)
	}

	data := &ScrapedData{
		URL:         pageURL,
		ExtractedAt: time.Now().UTC(),
	}

	// Images come from the original markup, before any noise stripping.
	data.Images = collectImages(doc, pageURL, schemaField(schema, func(s *Schema) string { return s.Images }))

	data.Title = e.fieldValue(doc, schemaField(schema, func(s *Schema) string { return s.Title }), titleChain)
	data.Author = e.fieldValue(doc, schemaField(schema, func(s *Schema) string { return s.Author }), authorChain)
	data.PublishDate = e.fieldValue(doc, schemaField(schema, func(s *Schema) string { return s.PublishDate }), dateChain)

	if schema != nil {
		if err := e.applyRules(doc, schema.Rules, data); err != nil {
			return nil, err
		}
	}

	stripNoise(doc)

	contentHTML := e.selectContent(doc, schemaField(schema, func(s *Schema) string { return s.Content }))
	contentHTML = e.stripScripts(contentHTML)

	data.Content = normalizeText(textOf(contentHTML))
	data.Text = data.Content
	data.CleanedHTML = e.sanitize.Sanitize(contentHTML)

	if markdown, mdErr := e.markdown.Render(contentHTML); mdErr != nil {
		e.logger.Warn("markdown rendering failed", zap.String("url", pageURL), zap.Error(mdErr))
	} else {
		data.Markdown = markdown
	}

	return data, nil
}

// fieldValue resolves one field: the explicit selector first, then the
// built-in chain, short-circuiting at the first non-empty value.
func (e *Extractor) fieldValue(doc *goquery.Document, selector string, chain []probe) string {
	if selector != "" {
		if v := selectionValue(doc.Find(selector).First()); v != "" {
			return v
		}
	}
	for _, p := range chain {
		if v := p(doc); v != "" {
			return v
		}
	}
	return ""
}

// selectContent walks the multi-tier content fallback and returns the chosen
// region's inner markup. The final tiers guarantee a non-empty result whenever
// the document body holds any markup at all.
func (e *Extractor) selectContent(doc *goquery.Document, selector string) string {
	if selector != "" {
		if html := e.qualifyingHTML(doc.Find(selector)); html != "" {
			return html
		}
	}
	for _, candidate := range contentCandidates {
		if html := e.qualifyingHTML(doc.Find(candidate)); html != "" {
			return html
		}
	}

	// Concatenating the body's direct children avoids re-wrapping the whole
	// body element.
	var sb strings.Builder
	doc.Find("body").Children().Each(func(_ int, sel *goquery.Selection) {
		if html, err := goquery.OuterHtml(sel); err == nil {
			sb.WriteString(html)
		}
	})
	if sb.Len() > 0 {
		return sb.String()
	}

	if html, err := doc.Find("body").Html(); err == nil {
		return html
	}
	return ""
}

// qualifyingHTML returns the selection's combined inner markup when its text
// clears the minimum length threshold, otherwise "". Multiple matches (one per
// merged page, typically) are concatenated in document order.
func (e *Extractor) qualifyingHTML(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	if len(strings.TrimSpace(sel.Text())) <= e.minChars {
		return ""
	}
	var sb strings.Builder
	sel.Each(func(_ int, node *goquery.Selection) {
		if html, err := node.Html(); err == nil {
			sb.WriteString(html)
		}
	})
	return sb.String()
}

// stripScripts re-applies script/style removal to the selected content. Any
// failure keeps the previously selected content unmodified.
func (e *Extractor) stripScripts(contentHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(contentHTML))
	if err != nil {
		return contentHTML
	}
	doc.Find("script, style").Remove()
	stripped, err := doc.Find("body").Html()
	if err != nil {
		return contentHTML
	}
	if strings.TrimSpace(stripped) == "" && strings.TrimSpace(contentHTML) != "" {
		return contentHTML
	}
	return stripped
}

// applyRules evaluates custom schema rules into the metadata bag. Transform
// errors abort the extraction; a non-matching selector contributes nothing.
func (e *Extractor) applyRules(doc *goquery.Document, rules []Rule, data *ScrapedData) error {
	for _, rule := range rules {
		sel := doc.Find(rule.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		var raw string
		if rule.Attribute != "" {
			raw = sel.AttrOr(rule.Attribute, "")
		} else {
			raw = strings.TrimSpace(sel.Text())
		}
		if rule.Transform == nil {
			data.SetMeta(rule.Name, raw)
			continue
		}
		value, err := rule.Transform(raw)
		if err != nil {
			return fmt.Errorf("custom rule %q transform: %w", rule.Name, err)
		}
		data.SetMeta(rule.Name, value)
	}
	return nil
}

// stripNoise removes scripts, styles, noscript blocks, advertising chrome,
// and page chrome that does not wrap a semantic content region.
func stripNoise(doc *goquery.Document) {
	doc.Find("script, style, noscript").Remove()
	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}
	for _, sel := range chromeSelectors {
		doc.Find(sel).Each(func(_ int, node *goquery.Selection) {
			if node.Find(`article, main, [role="article"], [role="main"]`).Length() > 0 {
				return
			}
			node.Remove()
		})
	}
}

func schemaField(schema *Schema, pick func(*Schema) string) string {
	if schema == nil {
		return ""
	}
	return pick(schema)
}

// textOf extracts the visible text from a markup fragment.
func textOf(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return doc.Text()
}

// normalizeText collapses runs of whitespace into single spaces.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
