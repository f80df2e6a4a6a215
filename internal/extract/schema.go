// Package extract transforms raw page markup into structured, cleaned content.
package extract

import "time"

// TransformFunc converts a raw selected value into the final metadata value.
// Transforms are caller-supplied and invoked synchronously; an error from a
// transform is terminal for the extraction.
type TransformFunc func(raw string) (any, error)

// Rule is a declarative custom extraction rule. When Attribute is empty the
// selector's trimmed text is used. A rule whose selector matches nothing
// contributes no metadata key.
type Rule struct {
	Name      string        `json:"name"`
	Selector  string        `json:"selector"`
	Attribute string        `json:"attribute,omitempty"`
	Transform TransformFunc `json:"-"`
}

// Schema holds optional CSS selector overrides for the standard fields plus
// named custom rules. A nil or zero Schema falls back entirely to the built-in
// convention chains.
type Schema struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	PublishDate string `json:"publish_date,omitempty"`
	Content     string `json:"content,omitempty"`
	Images      string `json:"images,omitempty"`
	Rules       []Rule `json:"rules,omitempty"`
}

// ScrapedData is the normalized output of one extraction. Content is always
// set to the best available fallback, possibly the empty string, never
// omitted. The optional fields stay empty when every probe in their fallback
// chain misses.
type ScrapedData struct {
	URL         string         `json:"url"`
	Title       string         `json:"title,omitempty"`
	Author      string         `json:"author,omitempty"`
	PublishDate string         `json:"publish_date,omitempty"`
	Content     string         `json:"content"`
	CleanedHTML string         `json:"cleaned_html,omitempty"`
	Markdown    string         `json:"markdown,omitempty"`
	Text        string         `json:"text,omitempty"`
	Images      []string       `json:"images,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ExtractedAt time.Time      `json:"extracted_at"`
}

// SetMeta stores a key in the metadata bag, allocating it on first use.
func (d *ScrapedData) SetMeta(key string, value any) {
	if d.Metadata == nil {
		d.Metadata = make(map[string]any)
	}
	d.Metadata[key] = value
}
