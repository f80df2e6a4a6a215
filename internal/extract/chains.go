package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// probe is one step of a fallback chain: a pure document lookup returning ""
// on a miss. Chains are evaluated lazily and short-circuit at the first
// non-empty value.
type probe func(doc *goquery.Document) string

var titleChain = []probe{
	metaContent(`meta[property="og:title"]`),
	elementText("title"),
	elementText("h1"),
}

var authorChain = []probe{
	metaContent(`meta[name="author"]`),
	metaContent(`meta[property="article:author"]`),
	elementText(`[rel="author"]`),
	elementText(".author"),
}

var dateChain = []probe{
	metaContent(`meta[property="article:published_time"]`),
	attrValue("time[datetime]", "datetime"),
	attrValue("time", "datetime"),
	elementText(".published"),
	elementText(".date"),
}

func metaContent(selector string) probe {
	return func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
	}
}

func elementText(selector string) probe {
	return func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find(selector).First().Text())
	}
}

func attrValue(selector, attr string) probe {
	return func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find(selector).First().AttrOr(attr, ""))
	}
}

// selectionValue resolves a schema-supplied selector match: meta elements
// yield their content attribute, anything else its trimmed text.
func selectionValue(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	if goquery.NodeName(sel) == "meta" {
		return strings.TrimSpace(sel.AttrOr("content", ""))
	}
	return strings.TrimSpace(sel.Text())
}
