// Package cmd defines and implements the CLI commands for the scrapegoat executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scrapegoat/scrapegoat/internal/config"
)

var cfgFile string

// newRootCmd builds the command tree. Configuration is loaded once here and
// handed to subcommands through their constructors.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrapegoat",
		Short: "Web crawl orchestration and content extraction",
		Long: `scrapegoat crawls web pages through headless Chrome or plain HTTP,
follows pagination, and extracts structured content. Run it as an HTTP
service with "serve" or as a one-shot crawl with "crawl".`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
