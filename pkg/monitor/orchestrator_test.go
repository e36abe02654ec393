package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/compliance/checks"
	"mercator-hq/warden/pkg/compliance/detector"
	"mercator-hq/warden/pkg/notify"
	"mercator-hq/warden/pkg/storage"
	"mercator-hq/warden/pkg/telemetry/logging"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// faultyStore wraps the memory store with per-call failure hooks.
type faultyStore struct {
	*storage.Memory

	listErr          error
	listGate         chan struct{}
	activeChecksErr  map[string]error // by policy type
	failResultsFor   map[string]bool  // by check id
	failChangeWrites bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Memory:          storage.NewMemory(),
		activeChecksErr: map[string]error{},
		failResultsFor:  map[string]bool{},
	}
}

func (s *faultyStore) ListMonitoredPolicies(ctx context.Context) ([]*compliance.Policy, error) {
	if s.listGate != nil {
		<-s.listGate
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Memory.ListMonitoredPolicies(ctx)
}

func (s *faultyStore) ActiveChecks(ctx context.Context, policyType string) ([]*compliance.CheckDefinition, error) {
	if err := s.activeChecksErr[policyType]; err != nil {
		return nil, err
	}
	return s.Memory.ActiveChecks(ctx, policyType)
}

func (s *faultyStore) SaveCheckResult(ctx context.Context, r *compliance.CheckResult) error {
	if s.failResultsFor[r.CheckID] {
		return errors.New("disk I/O error")
	}
	return s.Memory.SaveCheckResult(ctx, r)
}

func (s *faultyStore) SaveChange(ctx context.Context, c *compliance.Change) error {
	if s.failChangeWrites {
		return errors.New("disk I/O error")
	}
	return s.Memory.SaveChange(ctx, c)
}

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func addPolicy(t *testing.T, s *faultyStore, id, policyType string, versions ...string) {
	t.Helper()
	ctx := context.Background()
	if err := s.UpsertPolicy(ctx, &compliance.Policy{ID: id, PolicyType: policyType, MonitoringEnabled: true}); err != nil {
		t.Fatal(err)
	}
	for i, content := range versions {
		if err := s.AddVersion(ctx, &compliance.PolicyVersion{
			ID:        fmt.Sprintf("%s-v%d", id, i+1),
			PolicyID:  id,
			Content:   content,
			CreatedAt: t0.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
	}
}

func addCheck(t *testing.T, s *faultyStore, id, name, policyType, criteria string) {
	t.Helper()
	def := &compliance.CheckDefinition{
		ID:         id,
		CheckName:  name,
		CheckType:  compliance.CheckAutomated,
		IsActive:   true,
		PolicyType: policyType,
		Severity:   "high",
	}
	if criteria != "" {
		def.CheckCriteria = json.RawMessage(criteria)
	}
	if err := s.UpsertCheck(context.Background(), def); err != nil {
		t.Fatal(err)
	}
}

func subscribe(t *testing.T, s *faultyStore, policyID string, users ...string) {
	t.Helper()
	for _, u := range users {
		if err := s.AddSubscription(context.Background(), &compliance.Subscription{PolicyID: policyID, UserID: u}); err != nil {
			t.Fatal(err)
		}
	}
}

// newOrchestrator wires the real detector (no classifier), evaluator and
// dispatcher around store.
func newOrchestrator(store *faultyStore, cfg Config) *Orchestrator {
	logger := logging.Discard()
	return New(Dependencies{
		Store:     store,
		Detector:  detector.New(nil, detector.Config{}, nil, logger),
		Evaluator: checks.NewEvaluator(nil, checks.Config{}, logger),
		Notifier:  notify.NewDispatcher(store, nil, nil, logger),
	}, cfg, logger)
}

func list[T any](t *testing.T, fn func(context.Context, *compliance.Query) ([]T, error), q *compliance.Query) []T {
	t.Helper()
	rows, err := fn(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRunMonitoringCycle_KeywordScenario(t *testing.T) {
	store := newFaultyStore()
	addPolicy(t, store, "P", "security", "Access must be logged.", "Access must be logged and reviewed quarterly.")
	addCheck(t, store, "chk-kw", checks.NameKeywords, "security", `{"requiredKeywords":["reviewed"]}`)
	subscribe(t, store, "P", "alice")

	report := newOrchestrator(store, Config{}).RunMonitoringCycle(context.Background())

	if report.Err != nil || report.Skipped || len(report.Policies) != 1 {
		t.Fatalf("unexpected run report: %+v", report)
	}
	cycle := report.Policies[0]
	if cycle.State != StateDone {
		t.Fatalf("state = %s, err = %v", cycle.State, cycle.Err)
	}

	changes := list(t, store.ListChanges, &compliance.Query{PolicyID: "P"})
	if len(changes) != 1 || changes[0].Type != compliance.ChangeModification {
		t.Fatalf("changes = %+v, want one modification", changes)
	}
	if changes[0].VersionID != "P-v2" || changes[0].ImpactLevel != compliance.ImpactMedium {
		t.Errorf("change = %+v", changes[0])
	}

	results := list(t, store.ListCheckResults, &compliance.Query{PolicyID: "P"})
	if len(results) != 1 || results[0].Status != compliance.StatusPass {
		t.Fatalf("results = %+v, want one pass", results)
	}
	if results[0].RunID != report.RunID {
		t.Errorf("result run id = %q, want %q", results[0].RunID, report.RunID)
	}

	if n, _ := store.CountViolations(context.Background(), nil); n != 0 {
		t.Errorf("violations = %d, want 0", n)
	}
	if notes := list(t, store.ListNotifications, nil); len(notes) != 0 {
		t.Errorf("notifications = %+v, want none", notes)
	}
}

func TestRunMonitoringCycle_FailureIsolation(t *testing.T) {
	store := newFaultyStore()
	addPolicy(t, store, "A", "broken", "one", "two")
	addPolicy(t, store, "B", "security", "Purpose: x", "Purpose and Scope")
	addCheck(t, store, "chk-sec", checks.NameRequiredSections, "security", `{"requiredSections":["Purpose","Scope"]}`)
	store.activeChecksErr["broken"] = errors.New("connection reset")

	report := newOrchestrator(store, Config{}).RunMonitoringCycle(context.Background())

	if len(report.Policies) != 2 {
		t.Fatalf("got %d cycle reports, want 2", len(report.Policies))
	}
	a, b := report.Policies[0], report.Policies[1]

	if a.PolicyID != "A" || a.State != StateErrored || a.Err == nil {
		t.Fatalf("policy A = %+v, want errored", a)
	}
	if a.Err.State != StateChangesDetected || a.Err.PolicyID != "A" {
		t.Errorf("A failed in %s, want %s", a.Err.State, StateChangesDetected)
	}
	if b.State != StateDone || b.Results[compliance.StatusPass] != 1 {
		t.Errorf("policy B = %+v, want done with one pass", b)
	}
	if got := list(t, store.ListCheckResults, &compliance.Query{PolicyID: "B"}); len(got) != 1 {
		t.Errorf("B results persisted = %d, want 1", len(got))
	}
	if report.Errored() != 1 || report.Outcome() != "completed" {
		t.Errorf("Errored() = %d, Outcome() = %s", report.Errored(), report.Outcome())
	}
}

// panickyEvaluator panics for one check id and defers to next otherwise.
type panickyEvaluator struct {
	checkID string
	next    CheckEvaluator
}

func (e *panickyEvaluator) Evaluate(ctx context.Context, text string, def *compliance.CheckDefinition) checks.Result {
	if def.ID == e.checkID {
		panic("evaluator bug")
	}
	return e.next.Evaluate(ctx, text, def)
}

func TestRunPolicyCycle_EvaluatorPanicRecordsErrorResult(t *testing.T) {
	store := newFaultyStore()
	addPolicy(t, store, "P", "security", "Purpose")
	addCheck(t, store, "chk-a", checks.NameRequiredSections, "security", `{"requiredSections":["Purpose"]}`)
	addCheck(t, store, "chk-b", checks.NameKeywords, "security", `{"requiredKeywords":["purpose"]}`)

	logger := logging.Discard()
	o := New(Dependencies{
		Store:     store,
		Detector:  detector.New(nil, detector.Config{}, nil, logger),
		Evaluator: &panickyEvaluator{checkID: "chk-a", next: checks.NewEvaluator(nil, checks.Config{}, logger)},
		Notifier:  notify.NewDispatcher(store, nil, nil, logger),
	}, Config{}, logger)

	policy, _ := store.GetPolicy(context.Background(), "P")
	report := o.RunPolicyCycle(context.Background(), "run-1", policy)

	if report.State != StateDone {
		t.Fatalf("state = %s, err = %v", report.State, report.Err)
	}
	if report.Results[compliance.StatusError] != 1 || report.Results[compliance.StatusPass] != 1 {
		t.Errorf("results = %v, want one error and one pass", report.Results)
	}

	rows := list(t, store.ListCheckResults, &compliance.Query{PolicyID: "P"})
	if len(rows) != 2 {
		t.Fatalf("persisted %d results, want 2", len(rows))
	}
	byCheck := map[string]*compliance.CheckResult{}
	for _, r := range rows {
		byCheck[r.CheckID] = r
	}
	a := byCheck["chk-a"]
	if a == nil || a.Status != compliance.StatusError {
		t.Fatalf("chk-a result = %+v, want error", a)
	}
	if msg, _ := a.Details["error"].(string); !strings.Contains(msg, "evaluator bug") {
		t.Errorf("chk-a details = %v", a.Details)
	}
	if b := byCheck["chk-b"]; b == nil || b.Status != compliance.StatusPass {
		t.Errorf("chk-b result = %+v, want pass", b)
	}
	if n, _ := store.CountViolations(context.Background(), nil); n != 0 {
		t.Errorf("violations = %d, want 0", n)
	}
}

// panickyDetector panics for one policy text.
type panickyDetector struct {
	text string
	next ChangeDetector
}

func (d *panickyDetector) DetectChanges(ctx context.Context, oldText, newText string) ([]compliance.Change, detector.Detection) {
	if newText == d.text {
		panic("detector bug")
	}
	return d.next.DetectChanges(ctx, oldText, newText)
}

func TestRunPolicyCycle_RecoversPanic(t *testing.T) {
	store := newFaultyStore()
	addPolicy(t, store, "A", "security", "v1", "boom")
	addPolicy(t, store, "B", "security", "Purpose")
	addCheck(t, store, "chk-1", checks.NameRequiredSections, "security", `{"requiredSections":["Purpose"]}`)

	logger := logging.Discard()
	o := New(Dependencies{
		Store:     store,
		Detector:  &panickyDetector{text: "boom", next: detector.New(nil, detector.Config{}, nil, logger)},
		Evaluator: checks.NewEvaluator(nil, checks.Config{}, logger),
		Notifier:  notify.NewDispatcher(store, nil, nil, logger),
	}, Config{}, logger)

	report := o.RunMonitoringCycle(context.Background())

	a, b := report.Policies[0], report.Policies[1]
	if a.State != StateErrored || !errors.Is(a.Err, ErrPanic) {
		t.Fatalf("policy A = %+v, want errored with ErrPanic", a)
	}
	if a.Err.State != StateVersionsLoaded {
		t.Errorf("A failed in %s, want %s", a.Err.State, StateVersionsLoaded)
	}
	if b.State != StateDone || b.Results[compliance.StatusPass] != 1 {
		t.Errorf("policy B = %+v, want done", b)
	}
}

func TestRunPolicyCycle_ViolationPerFailedResult(t *testing.T) {
	store := newFaultyStore()
	addPolicy(t, store, "P", "security", "Scope only. Access logged.")
	addCheck(t, store, "chk-1", checks.NameRequiredSections, "security", `{"requiredSections":["Purpose","Scope"]}`)
	addCheck(t, store, "chk-2", checks.NameKeywords, "security", `{"requiredKeywords":["encrypted"]}`)
	addCheck(t, store, "chk-3", checks.NameKeywords, "security", `{"requiredKeywords":["logged"]}`)
	addCheck(t, store, "chk-4", "regex_check", "security", `{}`)
	subscribe(t, store, "P", "alice", "bob")

	o := newOrchestrator(store, Config{})
	policy, _ := store.GetPolicy(context.Background(), "P")
	report := o.RunPolicyCycle(context.Background(), "run-1", policy)

	if report.State != StateDone {
		t.Fatalf("state = %s, err = %v", report.State, report.Err)
	}
	if report.Results[compliance.StatusFail] != 2 || report.Results[compliance.StatusPass] != 1 || report.Results[compliance.StatusError] != 1 {
		t.Errorf("results = %v", report.Results)
	}

	failed := list(t, store.ListCheckResults, &compliance.Query{Status: string(compliance.StatusFail)})
	violations := list(t, store.ListViolations, nil)
	if len(violations) != len(failed) || report.Violations != 2 {
		t.Fatalf("%d violations for %d failed results", len(violations), len(failed))
	}

	byResult := map[string]*compliance.Violation{}
	for _, v := range violations {
		byResult[v.CheckResultID] = v
	}
	for _, r := range failed {
		v, ok := byResult[r.ID]
		if !ok {
			t.Errorf("no violation for failed result %s", r.ID)
			continue
		}
		if v.PolicyID != r.PolicyID || v.CheckID != r.CheckID || v.RunID != "run-1" {
			t.Errorf("violation %+v does not match result %+v", v, r)
		}
		if v.Severity != "high" || v.Status != compliance.ViolationOpen {
			t.Errorf("violation fields = %+v", v)
		}
	}

	// Two violations, two subscribers each.
	if report.Notifications != 4 {
		t.Errorf("notifications = %d, want 4", report.Notifications)
	}
}

func TestRunPolicyCycle_ResultWriteFailureSkipsViolation(t *testing.T) {
	store := newFaultyStore()
	addPolicy(t, store, "P", "security", "nothing here")
	addCheck(t, store, "chk-1", checks.NameKeywords, "security", `{"requiredKeywords":["reviewed"]}`)
	addCheck(t, store, "chk-2", checks.NameKeywords, "security", `{"requiredKeywords":["encrypted"]}`)
	store.failResultsFor["chk-1"] = true

	policy, _ := store.GetPolicy(context.Background(), "P")
	report := newOrchestrator(store, Config{}).RunPolicyCycle(context.Background(), "run-1", policy)

	if report.State != StateDone || report.WriteFailures != 1 {
		t.Fatalf("report = %+v", report)
	}
	violations := list(t, store.ListViolations, nil)
	if len(violations) != 1 || violations[0].CheckID != "chk-2" {
		t.Errorf("violations = %+v, want one for chk-2", violations)
	}
}

// fixedDetector reports the same change set for every call.
type fixedDetector struct {
	changes []compliance.Change
}

func (d fixedDetector) DetectChanges(ctx context.Context, oldText, newText string) ([]compliance.Change, detector.Detection) {
	out := make([]compliance.Change, len(d.changes))
	copy(out, d.changes)
	return out, detector.Detection{Source: compliance.SourceClassifier}
}

func TestRunPolicyCycle_ChangeNotificationThreshold(t *testing.T) {
	tests := []struct {
		name      string
		impacts   []compliance.ImpactLevel
		threshold compliance.ImpactLevel
		failWrite bool
		wantNotes int
	}{
		{name: "high notifies", impacts: []compliance.ImpactLevel{compliance.ImpactLow, compliance.ImpactHigh}, wantNotes: 2},
		{name: "critical notifies", impacts: []compliance.ImpactLevel{compliance.ImpactCritical}, wantNotes: 2},
		{name: "medium is below default", impacts: []compliance.ImpactLevel{compliance.ImpactMedium}, wantNotes: 0},
		{name: "medium with lowered threshold", impacts: []compliance.ImpactLevel{compliance.ImpactMedium}, threshold: compliance.ImpactMedium, wantNotes: 2},
		{name: "failed change write abandons notification", impacts: []compliance.ImpactLevel{compliance.ImpactHigh}, failWrite: true, wantNotes: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFaultyStore()
			addPolicy(t, store, "P", "security", "old", "new")
			subscribe(t, store, "P", "alice", "bob")
			store.failChangeWrites = tt.failWrite

			var changes []compliance.Change
			for _, impact := range tt.impacts {
				changes = append(changes, compliance.Change{Type: compliance.ChangeModification, Description: "d", ImpactLevel: impact})
			}

			logger := logging.Discard()
			o := New(Dependencies{
				Store:     store,
				Detector:  fixedDetector{changes: changes},
				Evaluator: checks.NewEvaluator(nil, checks.Config{}, logger),
				Notifier:  notify.NewDispatcher(store, nil, nil, logger),
			}, Config{NotifyMinImpact: tt.threshold}, logger)

			policy, _ := store.GetPolicy(context.Background(), "P")
			report := o.RunPolicyCycle(context.Background(), "run-1", policy)

			if report.State != StateDone {
				t.Fatalf("state = %s", report.State)
			}
			if report.Notifications != tt.wantNotes {
				t.Errorf("notifications = %d, want %d", report.Notifications, tt.wantNotes)
			}
			notes := list(t, store.ListNotifications, nil)
			if len(notes) != tt.wantNotes {
				t.Errorf("persisted notifications = %d, want %d", len(notes), tt.wantNotes)
			}
			for _, n := range notes {
				if n.Type != compliance.NotificationWarning || n.RelatedID != "P" {
					t.Errorf("notification = %+v", n)
				}
			}
			if !tt.failWrite && report.ChangeSource != compliance.SourceClassifier {
				t.Errorf("change source = %q", report.ChangeSource)
			}
		})
	}
}

func TestRunPolicyCycle_VersionCounts(t *testing.T) {
	tests := []struct {
		name        string
		versions    []string
		wantChanges int
		wantResults int
	}{
		{name: "no versions", versions: nil, wantChanges: 0, wantResults: 0},
		{name: "one version skips detection", versions: []string{"Purpose"}, wantChanges: 0, wantResults: 1},
		{name: "two versions", versions: []string{"Purpose", "Purpose\nScope"}, wantChanges: 1, wantResults: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFaultyStore()
			addPolicy(t, store, "P", "security", tt.versions...)
			addCheck(t, store, "chk-1", checks.NameRequiredSections, "security", `{"requiredSections":["Purpose"]}`)

			policy, _ := store.GetPolicy(context.Background(), "P")
			report := newOrchestrator(store, Config{}).RunPolicyCycle(context.Background(), "run-1", policy)

			if report.State != StateDone {
				t.Fatalf("state = %s, err = %v", report.State, report.Err)
			}
			if report.Versions != len(tt.versions) {
				t.Errorf("versions = %d", report.Versions)
			}
			if report.Changes != tt.wantChanges {
				t.Errorf("changes = %d, want %d", report.Changes, tt.wantChanges)
			}
			if got := len(list(t, store.ListCheckResults, nil)); got != tt.wantResults {
				t.Errorf("results = %d, want %d", got, tt.wantResults)
			}
		})
	}
}

func TestRunMonitoringCycle_ListFailure(t *testing.T) {
	store := newFaultyStore()
	store.listErr = errors.New("no such table: policies")

	report := newOrchestrator(store, Config{}).RunMonitoringCycle(context.Background())

	if report.Err == nil || !strings.Contains(report.Err.Error(), "no such table") {
		t.Fatalf("Err = %v", report.Err)
	}
	if report.Outcome() != "failed" || len(report.Policies) != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunMonitoringCycle_SkipsOverlappingRun(t *testing.T) {
	store := newFaultyStore()
	addPolicy(t, store, "P", "security", "text")
	store.listGate = make(chan struct{})

	o := newOrchestrator(store, Config{})

	first := make(chan RunReport, 1)
	go func() { first <- o.RunMonitoringCycle(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !o.Running() {
		if time.Now().After(deadline) {
			t.Fatal("first run never started")
		}
		time.Sleep(time.Millisecond)
	}

	second := o.RunMonitoringCycle(context.Background())
	if !second.Skipped || second.Outcome() != "skipped" {
		t.Errorf("overlapping run not skipped: %+v", second)
	}

	close(store.listGate)
	if r := <-first; r.Skipped || len(r.Policies) != 1 {
		t.Errorf("first run = %+v", r)
	}
	if o.Running() {
		t.Error("guard not released")
	}
}

// countingEvaluator tracks concurrent evaluations.
type countingEvaluator struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	next    CheckEvaluator
}

func (e *countingEvaluator) Evaluate(ctx context.Context, text string, def *compliance.CheckDefinition) checks.Result {
	e.mu.Lock()
	e.active++
	if e.active > e.maxSeen {
		e.maxSeen = e.active
	}
	e.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	e.mu.Lock()
	e.active--
	e.mu.Unlock()
	return e.next.Evaluate(ctx, text, def)
}

func TestRunMonitoringCycle_WorkerPool(t *testing.T) {
	store := newFaultyStore()
	for i := 0; i < 12; i++ {
		addPolicy(t, store, fmt.Sprintf("pol-%02d", i), "security", "Purpose")
	}
	addCheck(t, store, "chk-1", checks.NameRequiredSections, "security", `{"requiredSections":["Purpose"]}`)

	logger := logging.Discard()
	eval := &countingEvaluator{next: checks.NewEvaluator(nil, checks.Config{}, logger)}
	o := New(Dependencies{
		Store:     store,
		Detector:  detector.New(nil, detector.Config{}, nil, logger),
		Evaluator: eval,
		Notifier:  notify.NewDispatcher(store, nil, nil, logger),
	}, Config{Workers: 3}, logger)

	report := o.RunMonitoringCycle(context.Background())

	if len(report.Policies) != 12 {
		t.Fatalf("got %d reports", len(report.Policies))
	}
	for i, r := range report.Policies {
		if want := fmt.Sprintf("pol-%02d", i); r.PolicyID != want || r.State != StateDone {
			t.Errorf("report %d = %s/%s, want %s/done", i, r.PolicyID, r.State, want)
		}
	}
	if eval.maxSeen > 3 {
		t.Errorf("saw %d concurrent evaluations with 3 workers", eval.maxSeen)
	}
	if got := len(list(t, store.ListCheckResults, nil)); got != 12 {
		t.Errorf("results = %d, want 12", got)
	}
}

func TestRunMonitoringCycle_DryRun(t *testing.T) {
	store := newFaultyStore()
	addPolicy(t, store, "P", "security", "v1", "v2")
	addCheck(t, store, "chk-1", checks.NameKeywords, "security", `{"requiredKeywords":["missing"]}`)
	subscribe(t, store, "P", "alice")

	dry := storage.NewDryRun(store)
	logger := logging.Discard()
	o := New(Dependencies{
		Store:     dry,
		Detector:  detector.New(nil, detector.Config{}, nil, logger),
		Evaluator: checks.NewEvaluator(nil, checks.Config{}, logger),
		Notifier:  notify.NewDispatcher(dry, nil, nil, logger),
	}, Config{}, logger)

	report := o.RunMonitoringCycle(context.Background())

	if report.Policies[0].Violations != 1 {
		t.Fatalf("cycle = %+v", report.Policies[0])
	}
	if got := len(list(t, store.ListCheckResults, nil)); got != 0 {
		t.Errorf("dry run persisted %d results", got)
	}
	counts := dry.Discarded()
	if counts["save_check_result"] != 1 || counts["save_violation"] != 1 || counts["save_notification"] != 1 {
		t.Errorf("Discarded() = %v", counts)
	}
}

func TestRunMonitoringCycle_Spans(t *testing.T) {
	store := newFaultyStore()
	addPolicy(t, store, "A", "broken", "one")
	addPolicy(t, store, "B", "security", "Purpose")
	addCheck(t, store, "chk-1", checks.NameRequiredSections, "security", `{"requiredSections":["Purpose"]}`)
	store.activeChecksErr["broken"] = errors.New("connection reset")

	recorder := tracetest.NewSpanRecorder()
	provider := tracing.NewWithProcessor(recorder, sdktrace.AlwaysSample(), nil)

	logger := logging.Discard()
	o := New(Dependencies{
		Store:     store,
		Detector:  detector.New(nil, detector.Config{}, nil, logger),
		Evaluator: checks.NewEvaluator(nil, checks.Config{}, logger),
		Notifier:  notify.NewDispatcher(store, nil, nil, logger),
		Tracer:    provider.Tracer(),
	}, Config{}, logger)

	report := o.RunMonitoringCycle(context.Background())

	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want run + 2 cycles", len(spans))
	}

	byPolicy := map[string]sdktrace.ReadOnlySpan{}
	var run sdktrace.ReadOnlySpan
	for _, s := range spans {
		switch s.Name() {
		case "monitor.run":
			run = s
		case "monitor.policy_cycle":
			for _, kv := range s.Attributes() {
				if kv.Key == attribute.Key(tracing.AttrPolicyID) {
					byPolicy[kv.Value.AsString()] = s
				}
			}
		}
	}
	if run == nil || len(byPolicy) != 2 {
		t.Fatalf("spans = %v", spans)
	}
	if byPolicy["A"].Status().Code != codes.Error || byPolicy["B"].Status().Code != codes.Ok {
		t.Errorf("cycle statuses: A=%v B=%v", byPolicy["A"].Status(), byPolicy["B"].Status())
	}
	if byPolicy["B"].Parent().SpanID() != run.SpanContext().SpanID() {
		t.Error("policy cycle span is not a child of the run span")
	}
	if report.Errored() != 1 {
		t.Errorf("Errored() = %d", report.Errored())
	}
}
