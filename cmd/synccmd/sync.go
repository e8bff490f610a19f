// Package synccmd implements the sync command.
package synccmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/problemsync/cmd/common"
	"github.com/jonesrussell/north-cloud/problemsync/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/problemsync/internal/workitem"
)

// ErrRunFailed is returned when at least one item failed, so scripts can
// detect partial runs from the exit code.
var ErrRunFailed = errors.New("sync finished with failures")

// Command creates the sync command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch, extract and publish every problem in the CSV file",
		Long: `Sync loads work items from a CSV file and runs them through the pipeline.
Items with a successful or access-restricted checkpoint are not fetched again
unless --force is given. --dry-run stops after checkpointing.`,
		Example: `  problemsync sync --csv leetcode.csv --limit 20
  problemsync sync --force --workers 2
  problemsync sync --dry-run`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd)
		},
		RunE: run,
	}

	cmd.Flags().String("csv", "", "CSV file listing problems (default from config)")
	cmd.Flags().Int("limit", 0, "process at most N items (0 = all)")
	cmd.Flags().Bool("force", false, "ignore checkpoints and fetch every item again")
	cmd.Flags().Int("workers", 1, "number of items processed concurrently")
	cmd.Flags().Bool("dry-run", false, "fetch and checkpoint without publishing to Notion")

	return cmd
}

func bindFlags(cmd *cobra.Command) error {
	for key, flag := range map[string]string{
		common.KeyCSVPath:      "csv",
		common.KeyLimit:        "limit",
		common.KeyForceRefresh: "force",
		common.KeyWorkers:      "workers",
		common.KeySkipPublish:  "dry-run",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	log, err := common.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	items, err := workitem.LoadCSV(cfg.CSVPath)
	if err != nil {
		return err
	}
	log.Info("Loaded work items", logger.String("csv", cfg.CSVPath), logger.Int("count", len(items)))

	app, err := common.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	summary, err := app.Orchestrator.Run(ctx, items)
	summary.Render(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("sync aborted: %w", err)
	}
	if summary.Failed() > 0 {
		return fmt.Errorf("%w: %d of %d items", ErrRunFailed, summary.Failed(), summary.Processed)
	}
	return nil
}
