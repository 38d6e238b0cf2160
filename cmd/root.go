// Package cmd defines and implements the CLI commands for the
// review-scraper executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/musicreview/scraper/pkg/config"
)

var cfgFile string

// newRootCmd creates and configures the root command with the global flags
// shared by every subcommand.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review-scraper",
		Short: "Scrapes album reviews into a JSONL corpus",
		Long: `review-scraper collects album reviews from a paginated web source,
one record per numeric identifier, and persists them incrementally to a
JSONL corpus. Runs can resume, extend, or selectively overwrite prior
results without re-fetching or losing data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	pf.String("output", "data/reviews.jsonl", "path to the JSONL corpus file")
	pf.Float64("max-rps", 2.5, "maximum requests per second")
	pf.String("existing", "add", "how to handle identifiers already in the corpus: add or update")
	pf.BoolP("verbose", "v", false, "enable verbose logging")

	// Flags override config-file and env values for the same keys.
	cobra.CheckErr(viper.BindPFlag("output.path", pf.Lookup("output")))
	cobra.CheckErr(viper.BindPFlag("scraper.max_rps", pf.Lookup("max-rps")))
	cobra.CheckErr(viper.BindPFlag("scraper.existing_mode", pf.Lookup("existing")))
	cobra.CheckErr(viper.BindPFlag("logging.verbose", pf.Lookup("verbose")))

	cobra.OnInitialize(func() {
		if _, err := config.InitConfig(cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
			os.Exit(1)
		}
	})

	cmd.AddCommand(newRunCmd(), newFullCmd(), newResumeCmd())
	return cmd
}

// Execute is the main entry point. Per-identifier failures never affect the
// exit code; only configuration errors and user interruption do.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Interrupted by user. Exiting.")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
