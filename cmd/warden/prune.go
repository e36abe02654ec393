package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/retention"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete history older than the retention window",
	Long: `Delete check results older than retention.check_result_days and
notifications older than retention.notification_days. A value of 0 keeps that
table forever. Violations and detected changes are never pruned.

The run command does the same as part of its daily job.`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	e, err := newEngine(cfg, logger, engineOptions{})
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	defer e.Close()

	res, err := retention.NewPruner(e.store, cfg.Retention, e.metrics, logger).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("prune", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d check results, %d notifications\n", res.CheckResults, res.Notifications)
	return nil
}
