package compliance

import (
	"testing"
	"time"
)

func TestNewViolation(t *testing.T) {
	policy := &Policy{ID: "policy-1", PolicyType: "security"}
	executed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		check           *CheckDefinition
		details         Details
		wantDescription string
		wantSeverity    string
	}{
		{
			name:            "message from details",
			check:           &CheckDefinition{ID: "check-1", CheckName: "keyword_check", Severity: "high"},
			details:         Details{"message": "Missing required keywords: reviewed"},
			wantDescription: "Missing required keywords: reviewed",
			wantSeverity:    "high",
		},
		{
			name:            "generated description",
			check:           &CheckDefinition{ID: "check-2", CheckName: "required_sections_check", Severity: "critical"},
			details:         Details{"missingSections": []string{"Scope"}},
			wantDescription: `Check "required_sections_check" failed for policy policy-1`,
			wantSeverity:    "critical",
		},
		{
			name:            "non-string message ignored",
			check:           &CheckDefinition{ID: "check-3", CheckName: "ai_compliance_check"},
			details:         Details{"message": 42},
			wantDescription: `Check "ai_compliance_check" failed for policy policy-1`,
			wantSeverity:    DefaultSeverity,
		},
		{
			name:            "default severity",
			check:           &CheckDefinition{ID: "check-4", CheckName: "keyword_check", Severity: "  "},
			details:         Details{"message": "missing"},
			wantDescription: "missing",
			wantSeverity:    DefaultSeverity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &CheckResult{
				ID:         "result-1",
				RunID:      "run-1",
				CheckID:    tt.check.ID,
				PolicyID:   policy.ID,
				Status:     StatusFail,
				Details:    tt.details,
				ExecutedAt: executed,
			}

			v := NewViolation(policy, tt.check, result)

			if v.ID == "" {
				t.Error("expected violation ID to be generated")
			}
			if v.PolicyID != policy.ID || v.CheckID != tt.check.ID {
				t.Errorf("violation keys = (%s, %s), want (%s, %s)", v.PolicyID, v.CheckID, policy.ID, tt.check.ID)
			}
			if v.CheckResultID != "result-1" || v.RunID != "run-1" {
				t.Errorf("violation links = (%s, %s), want (result-1, run-1)", v.CheckResultID, v.RunID)
			}
			if v.Description != tt.wantDescription {
				t.Errorf("Description = %q, want %q", v.Description, tt.wantDescription)
			}
			if v.Severity != tt.wantSeverity {
				t.Errorf("Severity = %q, want %q", v.Severity, tt.wantSeverity)
			}
			if v.Status != ViolationOpen {
				t.Errorf("Status = %q, want open", v.Status)
			}
			if !v.CreatedAt.Equal(executed) {
				t.Errorf("CreatedAt = %v, want %v", v.CreatedAt, executed)
			}
		})
	}
}

func TestImpactLevel(t *testing.T) {
	if !ImpactCritical.AtLeast(ImpactHigh) || !ImpactHigh.AtLeast(ImpactHigh) {
		t.Error("expected high and critical to reach the high threshold")
	}
	if ImpactMedium.AtLeast(ImpactHigh) {
		t.Error("medium should not reach the high threshold")
	}
	if ImpactLevel("severe").AtLeast(ImpactLow) {
		t.Error("unknown level should never reach a threshold")
	}

	level, err := ParseImpactLevel(" HIGH ")
	if err != nil || level != ImpactHigh {
		t.Errorf("ParseImpactLevel() = %q, %v; want high", level, err)
	}
	if _, err := ParseImpactLevel("severe"); err == nil {
		t.Error("expected error for unknown level")
	}

	changes := []Change{{ImpactLevel: ImpactLow}, {ImpactLevel: ImpactCritical}, {ImpactLevel: ImpactMedium}}
	if got := HighestImpact(changes); got != ImpactCritical {
		t.Errorf("HighestImpact() = %q, want critical", got)
	}
	if got := HighestImpact(nil); got != "" {
		t.Errorf("HighestImpact(nil) = %q, want empty", got)
	}
}
