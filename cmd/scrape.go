package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
)

// scrapeCmd runs a one-shot inventory scrape for a single dealership,
// the same inventory.Runner pathway the scheduler and the webhook
// trigger use, just invoked from the CLI with domain.TriggerManual.
func scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape [dealership-id]",
		Short: "Run a one-off inventory scrape for a dealership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dealershipID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid dealership id %q: %w", args[0], err)
			}

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
			ctx := context.Background()

			a, err := buildApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("startup failed: %w", err)
			}
			defer a.db.Close()

			settings, err := a.stores.Settings.Get(ctx, dealershipID)
			if err != nil {
				return fmt.Errorf("load settings for dealership %d: %w", dealershipID, err)
			}

			run, err := a.runner.Run(ctx, dealershipID, settings.ScraperSourceURLs, domain.TriggerManual)
			if err != nil {
				return fmt.Errorf("scrape dealership %d: %w", dealershipID, err)
			}

			logger.Info("scrape_complete",
				"dealershipId", dealershipID,
				"found", run.VehiclesFound,
				"inserted", run.VehiclesInserted,
				"updated", run.VehiclesUpdated,
				"deleted", run.VehiclesDeleted,
			)
			return nil
		},
	}
}
