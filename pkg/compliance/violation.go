package compliance

import (
	"fmt"
	"strings"
)

// NewViolation derives an open violation from a failed check result.
//
// The description is the result's details message when present, otherwise a
// generated sentence naming the check. Severity is copied from the check
// definition and defaults to DefaultSeverity.
func NewViolation(policy *Policy, check *CheckDefinition, result *CheckResult) *Violation {
	description := result.Details.Message()
	if description == "" {
		description = fmt.Sprintf("Check %q failed for policy %s", check.CheckName, policy.ID)
	}

	severity := strings.TrimSpace(check.Severity)
	if severity == "" {
		severity = DefaultSeverity
	}

	return &Violation{
		ID:            NewID(),
		RunID:         result.RunID,
		PolicyID:      policy.ID,
		CheckID:       check.ID,
		CheckResultID: result.ID,
		Description:   description,
		Severity:      severity,
		Status:        ViolationOpen,
		CreatedAt:     result.ExecutedAt,
	}
}
