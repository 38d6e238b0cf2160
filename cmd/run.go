package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/musicreview/scraper/internal/corpus"
)

// newRunCmd scrapes an explicit identifier range.
func newRunCmd() *cobra.Command {
	var startID, endID int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape a specific identifier range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()
			return scrapeRange(cmd.Context(), cfg, logger, startID, endID)
		},
	}
	cmd.Flags().IntVar(&startID, "start-id", 1, "first review identifier to scrape")
	cmd.Flags().IntVar(&endID, "end-id", 0, "last review identifier (inclusive) to scrape")
	cobra.CheckErr(cmd.MarkFlagRequired("end-id"))
	return cmd
}

// newFullCmd scrapes from identifier 1 up to max-id.
func newFullCmd() *cobra.Command {
	var maxID int

	cmd := &cobra.Command{
		Use:   "full",
		Short: "Scrape from identifier 1 up to max-id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()
			return scrapeRange(cmd.Context(), cfg, logger, 1, maxID)
		},
	}
	cmd.Flags().IntVar(&maxID, "max-id", 0, "maximum review identifier currently on the site")
	cobra.CheckErr(cmd.MarkFlagRequired("max-id"))
	return cmd
}

// newResumeCmd continues after the highest identifier already in the corpus.
func newResumeCmd() *cobra.Command {
	var maxID int

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume scraping after the highest identifier in the corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()

			store := corpus.NewStore(cfg.Output.Path, logger)
			startID, err := store.NextID()
			if err != nil {
				return err
			}
			if startID > maxID {
				logger.Info("nothing to resume",
					zap.Int("highest_id", startID-1),
					zap.Int("max_id", maxID),
					zap.String("path", cfg.Output.Path),
				)
				return nil
			}
			if startID > 1 {
				logger.Info("resuming scrape",
					zap.Int("start_id", startID),
					zap.Int("max_id", maxID),
				)
			} else {
				logger.Info("corpus is empty, starting a full scrape",
					zap.Int("max_id", maxID),
				)
			}
			return scrapeRange(cmd.Context(), cfg, logger, startID, maxID)
		},
	}
	cmd.Flags().IntVar(&maxID, "max-id", 0, "maximum review identifier currently on the site")
	cobra.CheckErr(cmd.MarkFlagRequired("max-id"))
	return cmd
}
