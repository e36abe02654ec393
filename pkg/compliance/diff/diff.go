// Package diff implements the deterministic line differ used when the
// semantic-diff service is unavailable.
//
// Lines compares the two texts position by position. It does not align
// inserted or removed lines, so an insertion near the top of a document shows
// every following line as modified. Callers that need alignment must not rely
// on this package.
package diff

import (
	"fmt"
	"strings"

	"mercator-hq/warden/pkg/compliance"
)

// Impact is the impact level assigned to every change the line differ emits.
const Impact = compliance.ImpactMedium

// Lines returns the changes between oldText and newText, one per differing
// line index. It never fails and has no side effects.
func Lines(oldText, newText string) []compliance.Change {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	n := max(len(oldLines), len(newLines))

	var changes []compliance.Change
	for i := 0; i < n; i++ {
		lineNo := i + 1
		switch {
		case i >= len(oldLines):
			changes = append(changes, change(compliance.ChangeAddition,
				fmt.Sprintf("Line %d added: %q", lineNo, newLines[i])))
		case i >= len(newLines):
			changes = append(changes, change(compliance.ChangeDeletion,
				fmt.Sprintf("Line %d removed: %q", lineNo, oldLines[i])))
		case oldLines[i] != newLines[i]:
			changes = append(changes, change(compliance.ChangeModification,
				fmt.Sprintf("Line %d modified: %q -> %q", lineNo, oldLines[i], newLines[i])))
		}
	}

	return changes
}

func change(t compliance.ChangeType, description string) compliance.Change {
	return compliance.Change{
		Type:        t,
		Description: description,
		ImpactLevel: Impact,
		Source:      compliance.SourceTextDiff,
	}
}

// splitLines splits on "\n" and drops a trailing "\r" from each line, so CRLF
// and LF documents compare equal. The empty string has no lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
