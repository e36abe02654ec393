package detector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/warden/pkg/classifier"
	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/telemetry/logging"
	"mercator-hq/warden/pkg/telemetry/metrics"
)

// fakeClassifier returns a canned reply or error and records its input.
type fakeClassifier struct {
	reply string
	err   error
	delay time.Duration

	calls       int
	instruction string
	input       string
}

func (f *fakeClassifier) Complete(ctx context.Context, instruction, input string) (string, error) {
	f.calls++
	f.instruction = instruction
	f.input = input

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", &classifier.TimeoutError{Provider: "fake"}
		}
	}
	return f.reply, f.err
}

func TestDetectChanges_Classifier(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantTypes []compliance.ChangeType
		wantLevel []compliance.ImpactLevel
	}{
		{
			name:      "plain array",
			reply:     `[{"type":"modification","description":"Retention shortened","impact":"high"}]`,
			wantTypes: []compliance.ChangeType{compliance.ChangeModification},
			wantLevel: []compliance.ImpactLevel{compliance.ImpactHigh},
		},
		{
			name:      "fenced with mixed case",
			reply:     "```json\n[{\"type\":\"Addition\",\"description\":\"New clause\",\"impact\":\"LOW\"},{\"type\":\"deletion\",\"description\":\"Dropped appendix\",\"impact\":\"critical\"}]\n```",
			wantTypes: []compliance.ChangeType{compliance.ChangeAddition, compliance.ChangeDeletion},
			wantLevel: []compliance.ImpactLevel{compliance.ImpactLow, compliance.ImpactCritical},
		},
		{
			name:  "no changes",
			reply: `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeClassifier{reply: tt.reply}
			d := New(fake, Config{}, nil, logging.Discard())

			changes, detection := d.DetectChanges(context.Background(), "old", "new")

			if detection.Source != compliance.SourceClassifier || detection.FallbackReason != "" {
				t.Fatalf("unexpected detection: %+v", detection)
			}
			if len(changes) != len(tt.wantTypes) {
				t.Fatalf("got %d changes, want %d", len(changes), len(tt.wantTypes))
			}
			for i, c := range changes {
				if c.Type != tt.wantTypes[i] || c.ImpactLevel != tt.wantLevel[i] {
					t.Errorf("change %d = %+v", i, c)
				}
				if c.Source != compliance.SourceClassifier {
					t.Errorf("change %d source = %q", i, c.Source)
				}
			}
			if fake.instruction != Instruction {
				t.Error("expected the fixed instruction")
			}
			if !strings.Contains(fake.input, "old") || !strings.Contains(fake.input, "new") {
				t.Errorf("input does not carry both texts: %q", fake.input)
			}
		})
	}
}

func TestDetectChanges_Fallback(t *testing.T) {
	tests := []struct {
		name       string
		classifier classifier.Classifier
		wantReason string
	}{
		{name: "no classifier", classifier: nil, wantReason: ReasonNoClassifier},
		{name: "timeout", classifier: &fakeClassifier{err: &classifier.TimeoutError{Provider: "fake"}}, wantReason: "timeout"},
		{name: "server error", classifier: &fakeClassifier{err: &classifier.ProviderError{Provider: "fake", StatusCode: 500}}, wantReason: "status"},
		{name: "transport", classifier: &fakeClassifier{err: errors.New("connection refused")}, wantReason: "transport"},
		{name: "not json", classifier: &fakeClassifier{reply: "The documents differ in section 2."}, wantReason: ReasonParse},
		{name: "object instead of array", classifier: &fakeClassifier{reply: `{"type":"addition"}`}, wantReason: ReasonParse},
		{name: "null reply", classifier: &fakeClassifier{reply: "null"}, wantReason: ReasonParse},
		{name: "fenced null", classifier: &fakeClassifier{reply: "```json\nnull\n```"}, wantReason: ReasonParse},
		{name: "unknown type", classifier: &fakeClassifier{reply: `[{"type":"rewrite","description":"x","impact":"low"}]`}, wantReason: ReasonInvalidRecord},
		{name: "unknown impact", classifier: &fakeClassifier{reply: `[{"type":"addition","description":"x","impact":"severe"}]`}, wantReason: ReasonInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)
			d := New(tt.classifier, Config{}, collector, logging.Discard())

			changes, detection := d.DetectChanges(context.Background(), "a\nb", "a\nc")

			if !detection.Fallback() || detection.FallbackReason != tt.wantReason {
				t.Fatalf("detection = %+v, want fallback with reason %q", detection, tt.wantReason)
			}
			if len(changes) != 1 || changes[0].Type != compliance.ChangeModification {
				t.Fatalf("expected the line diff result, got %+v", changes)
			}
			if changes[0].Source != compliance.SourceTextDiff {
				t.Errorf("source = %q", changes[0].Source)
			}

			if n := fallbackCount(t, collector, tt.wantReason); n != 1 {
				t.Errorf("fallback counter for %q = %v, want 1", tt.wantReason, n)
			}
		})
	}
}

func fallbackCount(t *testing.T, collector *metrics.Collector, reason string) float64 {
	t.Helper()

	families, err := collector.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "warden_monitor_classifier_fallbacks_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "reason" && label.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestDetectChanges_TimeoutBound(t *testing.T) {
	fake := &fakeClassifier{reply: `[]`, delay: time.Second}
	d := New(fake, Config{Timeout: 20 * time.Millisecond}, nil, logging.Discard())

	start := time.Now()
	_, detection := d.DetectChanges(context.Background(), "x", "y")

	if detection.FallbackReason != "timeout" {
		t.Errorf("reason = %q, want timeout", detection.FallbackReason)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("classifier call was not bounded by the detector timeout")
	}
	if fake.calls != 1 {
		t.Errorf("expected a single attempt, got %d", fake.calls)
	}
}
