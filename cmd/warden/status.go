package main

import (
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/report"
)

var statusFlags struct {
	policyID string
	limit    int
	since    time.Duration
	output   string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show compliance status",
	Long: `Show the compliance status of the monitored policies.

Without --policy, prints a summary of check results over the --since window
and the open violations of every monitored policy. With --policy, prints the
latest check results and the open violations of that policy.

Examples:
  warden status
  warden status --since 168h --output csv
  warden status --policy pol-access --limit 20 --output json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFlags.policyID, "policy", "p", "", "policy id")
	statusCmd.Flags().IntVarP(&statusFlags.limit, "limit", "n", 10, "number of recent check results with --policy")
	statusCmd.Flags().DurationVar(&statusFlags.since, "since", 24*time.Hour, "summary window without --policy")
	statusCmd.Flags().StringVarP(&statusFlags.output, "output", "o", "text", "output format (text, json, csv)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(statusFlags.output)
	if err != nil {
		return err
	}
	if statusFlags.limit < 1 {
		return cli.NewConfigError("limit", "must be at least 1")
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	e, err := newEngine(cfg, logger, engineOptions{})
	if err != nil {
		return cli.NewCommandError("status", err)
	}
	defer e.Close()

	ctx := cmd.Context()

	var view any
	if statusFlags.policyID != "" {
		view, err = report.Status(ctx, e.store, statusFlags.policyID, statusFlags.limit)
	} else {
		now := time.Now()
		view, err = report.Build(ctx, e.store, now.Add(-statusFlags.since), now)
	}
	if err != nil {
		return cli.NewCommandError("status", err)
	}

	if err := formatter.FormatTo(cmd.OutOrStdout(), view); err != nil {
		return cli.NewCommandError("status", err)
	}
	return nil
}
