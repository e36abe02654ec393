package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/monitor"
)

var monitorReportFixture = monitor.RunReport{RunID: "run-1"}

const testCatalog = `
policies:
  - id: pol-1
    name: Data Handling
    policy_type: security
    versions:
      - id: ver-1
        created_at: 2026-01-01T00:00:00Z
        content: |
          Purpose
          Scope
          Encryption
      - id: ver-2
        created_at: 2026-02-01T00:00:00Z
        content: |
          Purpose
          Scope
    subscribers: [alice]
checks:
  - id: chk-keywords
    name: keyword_check
    policy_type: security
    severity: high
    criteria:
      requiredKeywords: [encryption, audit]
`

// setup writes a config with a pure-Go SQLite store and a catalog into a
// temp directory and returns the global flags pointing at them.
func setup(t *testing.T) (flags []string, catalogPath string) {
	t.Helper()
	dir := t.TempDir()

	catalogPath = filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catalogPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := fmt.Sprintf(`
storage:
  driver: sqlite
  path: %s
catalog:
  path: %s
telemetry:
  logging:
    level: error
  metrics:
    enabled: false
`, filepath.Join(dir, "data", "warden.db"), catalogPath)
	cfgPath := filepath.Join(dir, "warden.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	return []string{"--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env"), "--log-level", "error"}, catalogPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), err
}

func TestCommands_EndToEnd(t *testing.T) {
	flags, catalogPath := setup(t)
	with := func(args ...string) []string { return append(append([]string{}, args...), flags...) }

	out, err := execute(t, with("catalog", "validate", catalogPath)...)
	if err != nil || !strings.Contains(out, "Catalog valid (1 policies, 1 checks)") {
		t.Fatalf("catalog validate: out=%q err=%v", out, err)
	}

	out, err = execute(t, with("catalog", "import", "--quiet")...)
	if err != nil || !strings.Contains(out, "Imported 1 policies, 2 versions, 1 checks, 1 subscriptions") {
		t.Fatalf("catalog import: out=%q err=%v", out, err)
	}

	// Dry run evaluates but writes nothing.
	out, err = execute(t, with("check", "--dry-run", "--output", "json")...)
	if err != nil {
		t.Fatalf("check --dry-run: %v", err)
	}
	var dry struct {
		RunID    string `json:"run_id"`
		Policies []struct {
			PolicyID   string `json:"policy_id"`
			State      string `json:"state"`
			Violations int    `json:"violations"`
		} `json:"policies"`
		Discarded map[string]int `json:"dry_run_discarded"`
	}
	if err := json.Unmarshal([]byte(out), &dry); err != nil {
		t.Fatalf("decode check output: %v\n%s", err, out)
	}
	if len(dry.Policies) != 1 || dry.Policies[0].State != "done" || dry.Policies[0].Violations != 1 {
		t.Errorf("dry run report = %+v", dry.Policies)
	}
	if dry.Discarded["save_violation"] != 1 || dry.Discarded["save_check_result"] != 1 {
		t.Errorf("discarded = %v", dry.Discarded)
	}

	out, err = execute(t, with("status", "--policy", "pol-1", "--output", "json")...)
	if err != nil {
		t.Fatalf("status after dry run: %v", err)
	}
	if strings.Contains(out, `"check_id": "chk-keywords"`) {
		t.Errorf("dry run should not have written results: %s", out)
	}

	// A real run persists the failing result and its violation.
	if _, err := execute(t, with("check", "--dry-run=false", "--output", "text")...); err != nil {
		t.Fatalf("check: %v", err)
	}

	out, err = execute(t, with("status", "--policy", "pol-1", "--limit", "5", "--output", "text")...)
	if err != nil {
		t.Fatalf("status --policy: %v", err)
	}
	for _, want := range []string{"violation", "result", "chk-keywords", "fail", "Missing required keywords"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, with("status", "--policy", "", "--output", "csv")...)
	if err != nil {
		t.Fatalf("status summary: %v", err)
	}
	if !strings.HasPrefix(out, "POLICY,PASS,FAIL,PENDING,ERROR,OPEN VIOLATIONS\npol-1,0,1,0,0,1\n") {
		t.Errorf("summary csv = %q", out)
	}

	out, err = execute(t, with("prune")...)
	if err != nil || !strings.Contains(out, "Pruned 0 check results, 0 notifications") {
		t.Errorf("prune: out=%q err=%v", out, err)
	}
}

func TestCommands_Errors(t *testing.T) {
	flags, _ := setup(t)
	with := func(args ...string) []string { return append(append([]string{}, args...), flags...) }

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{name: "unknown output format", args: with("check", "--output", "junit"), wantCode: cli.ExitConfig},
		{name: "missing config file", args: []string{"status", "--output", "text", "--config", "/nonexistent/warden.yaml"}, wantCode: cli.ExitConfig},
		{name: "unknown policy", args: with("status", "--policy", "nope", "--output", "text"), wantCode: cli.ExitFailure},
		{name: "bad limit", args: with("status", "--policy", "pol-1", "--limit", "0"), wantCode: cli.ExitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Errorf("exit code = %d (err %v), want %d", got, err, tt.wantCode)
			}
		})
	}

	// Later tests reuse the global flags.
	statusFlags.limit = 10
}

func TestRunView(t *testing.T) {
	out := &bytes.Buffer{}
	formatter, _ := cli.NewFormatter(cli.FormatCSV)
	// An empty report still renders its header.
	if err := formatter.FormatTo(out, newRunView(&monitorReportFixture)); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "POLICY,STATE,VERSIONS") {
		t.Errorf("csv = %q", out.String())
	}
}
