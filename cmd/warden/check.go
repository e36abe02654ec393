package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/monitor"
)

var checkFlags struct {
	dryRun bool
	output string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one monitoring cycle now",
	Long: `Run one monitoring cycle over every monitored policy and print the run report.

The command exits with status 3 when at least one policy cycle errored and
with status 1 when the monitored policies could not be listed.

Examples:
  # Run a cycle and print a table
  warden check

  # Evaluate without writing changes, results, violations or notifications
  warden check --dry-run --output json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkFlags.dryRun, "dry-run", false, "evaluate without writing to the store")
	checkCmd.Flags().StringVarP(&checkFlags.output, "output", "o", "text", "output format (text, json, csv)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(checkFlags.output)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	e, err := newEngine(cfg, logger, engineOptions{monitor: true, dryRun: checkFlags.dryRun})
	if err != nil {
		return cli.NewCommandError("check", err)
	}
	defer e.Close()

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if err := e.ping(ctx); err != nil {
		return cli.NewCommandError("check", err)
	}

	report := e.orchestrator.RunMonitoringCycle(ctx)
	view := newRunView(&report)
	if e.dryRun != nil {
		view.Discarded = e.dryRun.Discarded()
	}

	if err := formatter.FormatTo(cmd.OutOrStdout(), view); err != nil {
		return cli.NewCommandError("check", err)
	}

	if report.Err != nil {
		return cli.NewCommandError("check", report.Err)
	}
	if n := report.Errored(); n > 0 {
		return &cli.CommandError{
			Command: "check",
			Err:     fmt.Errorf("%d of %d policies errored", n, len(report.Policies)),
			Code:    cli.ExitPartial,
		}
	}
	return nil
}

// runView is the printable form of a monitor.RunReport.
type runView struct {
	*monitor.RunReport
	Error     string         `json:"error,omitempty"`
	Cycles    []cycleView    `json:"policies"`
	Discarded map[string]int `json:"dry_run_discarded,omitempty"`
}

type cycleView struct {
	monitor.CycleReport
	Error string `json:"error,omitempty"`
}

func newRunView(r *monitor.RunReport) *runView {
	v := &runView{RunReport: r, Cycles: make([]cycleView, len(r.Policies))}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	for i := range r.Policies {
		v.Cycles[i] = cycleView{CycleReport: r.Policies[i], Error: r.Policies[i].ErrorMessage()}
	}
	return v
}

// Headers implements cli.Tabular.
func (v *runView) Headers() []string {
	return []string{"POLICY", "STATE", "VERSIONS", "CHANGES", "PASS", "FAIL", "PENDING", "ERROR", "VIOLATIONS", "NOTIFIED", "DETAIL"}
}

// Rows implements cli.Tabular.
func (v *runView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Cycles))
	for _, c := range v.Cycles {
		detail := c.Error
		if detail == "" && c.FallbackReason != "" {
			detail = "classifier fallback: " + c.FallbackReason
		}
		rows = append(rows, []string{
			c.PolicyID,
			string(c.State),
			strconv.Itoa(c.Versions),
			strconv.Itoa(c.Changes),
			strconv.Itoa(c.Results[compliance.StatusPass]),
			strconv.Itoa(c.Results[compliance.StatusFail]),
			strconv.Itoa(c.Results[compliance.StatusPending]),
			strconv.Itoa(c.Results[compliance.StatusError]),
			strconv.Itoa(c.Violations),
			strconv.Itoa(c.Notifications),
			detail,
		})
	}
	return rows
}
