// Package media downloads extracted image URLs. Every failure is a per-item
// soft failure: items are skipped, never failing the enclosing crawl.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxBytes = 10 << 20
)

// Config controls the Downloader.
type Config struct {
	// OutputDir, when set, receives downloaded files; the returned items
	// then carry file paths instead of base64 payloads.
	OutputDir string
	// Timeout bounds each download.
	Timeout time.Duration
	// MaxBytes caps a single item's size.
	MaxBytes int64
	Logger   *zap.Logger
}

// Item is one successfully fetched image.
type Item struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	// Base64 holds the payload when no output directory is configured.
	Base64 string `json:"base64,omitempty"`
	// Path holds the on-disk location when an output directory is set.
	Path string `json:"path,omitempty"`
}

// Downloader fetches image bytes with bounded size and time.
type Downloader struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a Downloader. When an output directory is configured it is
// created up front so per-item writes cannot fail on a missing root.
func New(cfg Config) (*Downloader, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
			return nil, fmt.Errorf("create media output dir: %w", err)
		}
	}
	return &Downloader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// FetchAll downloads each URL in order. Failed items are logged and skipped.
func (d *Downloader) FetchAll(ctx context.Context, urls []string) []Item {
	items := make([]Item, 0, len(urls))
	for _, u := range urls {
		item, err := d.fetch(ctx, u)
		if err != nil {
			d.logger.Debug("media download skipped", zap.String("url", u), zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items
}

func (d *Downloader) fetch(ctx context.Context, rawURL string) (Item, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Item{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return Item{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Item{}, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxBytes+1))
	if err != nil {
		return Item{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > d.cfg.MaxBytes {
		return Item{}, fmt.Errorf("item exceeds %d bytes", d.cfg.MaxBytes)
	}

	item := Item{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if d.cfg.OutputDir == "" {
		item.Base64 = base64.StdEncoding.EncodeToString(data)
		return item, nil
	}

	name := fileName(rawURL)
	full := filepath.Join(d.cfg.OutputDir, name)
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return Item{}, fmt.Errorf("write %s: %w", full, err)
	}
	item.Path = full
	return item, nil
}

// fileName derives a safe local name from the URL path.
func fileName(rawURL string) string {
	base := path.Base(rawURL)
	if idx := strings.IndexAny(base, "?#"); idx >= 0 {
		base = base[:idx]
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		base = "media"
	}
	return base
}
