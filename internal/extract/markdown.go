package extract

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// MarkdownRenderer converts cleaned content markup into Markdown. It is safe
// for concurrent use.
type MarkdownRenderer struct {
	conv *md.Converter
}

// NewMarkdownRenderer builds a converter with an image-preserving rule:
// images render as markdown image references, and images lacking a src are
// dropped entirely.
func NewMarkdownRenderer() *MarkdownRenderer {
	conv := md.NewConverter("", true, nil)
	conv.AddRules(md.Rule{
		Filter: []string{"img"},
		Replacement: func(_ string, sel *goquery.Selection, _ *md.Options) *string {
			src := strings.TrimSpace(sel.AttrOr("src", ""))
			if src == "" {
				return md.String("")
			}
			alt := strings.TrimSpace(sel.AttrOr("alt", ""))
			return md.String(fmt.Sprintf("![%s](%s)", alt, src))
		},
	})
	return &MarkdownRenderer{conv: conv}
}

// Render converts a markup fragment to Markdown.
func (r *MarkdownRenderer) Render(fragment string) (string, error) {
	out, err := r.conv.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return out, nil
}
