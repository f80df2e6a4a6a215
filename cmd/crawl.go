package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrapegoat/scrapegoat/internal/app"
	"github.com/scrapegoat/scrapegoat/internal/crawler"
)

type crawlFlags struct {
	render       bool
	maxDepth     int
	nextSelector string
	timeoutMs    int
	waitMs       int
	autoSchema   bool
	embedMedia   bool
	llmExtract   bool
	proxies      []string
	userAgent    string
}

// newCrawlCmd creates the 'crawl' subcommand: a one-shot crawl of the given
// URLs with the result printed as JSON.
func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl URL [URL...]",
		Short: "Crawl one or more URLs and print extracted content",
		Long: `Runs the crawl pipeline once, outside the service: navigation,
optional pagination, and extraction, with the result written to stdout
as JSON. Multiple URLs are crawled sequentially under the same rate
limits; per-URL failures are reported inline.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawlCommand(cmd, args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.render, "render", false, "render the page in headless Chrome")
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", 1, "maximum pages to traverse via pagination")
	cmd.Flags().StringVar(&flags.nextSelector, "next-selector", "", "CSS selector for the next-page anchor")
	cmd.Flags().IntVar(&flags.timeoutMs, "timeout-ms", 0, "navigation timeout override in milliseconds")
	cmd.Flags().IntVar(&flags.waitMs, "wait-ms", 0, "settle wait after load in milliseconds")
	cmd.Flags().BoolVar(&flags.autoSchema, "auto-schema", false, "detect an extraction schema from page structure")
	cmd.Flags().BoolVar(&flags.embedMedia, "embed-media", false, "download and attach page images")
	cmd.Flags().BoolVar(&flags.llmExtract, "llm-extract", false, "supplement results via the configured model endpoint")
	cmd.Flags().StringSliceVar(&flags.proxies, "proxy", nil, "proxy to rotate through (repeatable)")
	cmd.Flags().StringVar(&flags.userAgent, "user-agent", "", "user agent override")

	return cmd
}

func runCrawlCommand(cmd *cobra.Command, urls []string, flags crawlFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	defer application.Close()

	base := crawler.Request{
		Render:           flags.render,
		Timeout:          time.Duration(flags.timeoutMs) * time.Millisecond,
		WaitAfterLoad:    time.Duration(flags.waitMs) * time.Millisecond,
		MaxDepth:         flags.maxDepth,
		NextSelector:     flags.nextSelector,
		Proxies:          flags.proxies,
		UserAgent:        flags.userAgent,
		AutoDetectSchema: flags.autoSchema,
		EmbedMedia:       flags.embedMedia,
		LLMExtract:       flags.llmExtract,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if len(urls) == 1 {
		base.URL = urls[0]
		data, err := application.Engine.Crawl(cmd.Context(), base)
		if err != nil {
			return fmt.Errorf("crawl: %w", err)
		}
		return enc.Encode(data)
	}

	results := application.Engine.CrawlBatch(cmd.Context(), urls, base)
	return enc.Encode(results)
}
