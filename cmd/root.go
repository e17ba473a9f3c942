// Package cmd implements the CLI commands for PageMeta using Cobra.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var flagLogLevel string

var rootCmd = &cobra.Command{
	Use:   "pagemeta",
	Short: "PageMeta - fetch web pages and extract their metadata",
	Long: `PageMeta fetches a URL, follows redirects within a bounded budget,
decodes the page in its declared charset and extracts a metadata record
(title, description, social tags, canonical URL, ...).

Usage:
  pagemeta fetch <url>... [flags]`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(flagLogLevel)
		if err != nil {
			return fmt.Errorf("invalid --log_level %q: %w", flagLogLevel, err)
		}
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().Timestamp().Logger()
		cmd.SetContext(log.WithContext(cmd.Context()))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log_level", "info", "Log level (trace, debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
