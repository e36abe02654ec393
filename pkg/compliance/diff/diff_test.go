package diff

import (
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"mercator-hq/warden/pkg/compliance"
)

func TestLines(t *testing.T) {
	tests := []struct {
		name      string
		oldText   string
		newText   string
		wantTypes []compliance.ChangeType
		wantDesc  []string
	}{
		{
			name:    "identical texts",
			oldText: "a\nb\nc",
			newText: "a\nb\nc",
		},
		{
			name:      "single modification",
			oldText:   "a\nb",
			newText:   "a\nc",
			wantTypes: []compliance.ChangeType{compliance.ChangeModification},
			wantDesc:  []string{`Line 2 modified: "b" -> "c"`},
		},
		{
			name:      "single addition",
			oldText:   "a",
			newText:   "a\nb",
			wantTypes: []compliance.ChangeType{compliance.ChangeAddition},
			wantDesc:  []string{`Line 2 added: "b"`},
		},
		{
			name:      "single deletion",
			oldText:   "a\nb",
			newText:   "a",
			wantTypes: []compliance.ChangeType{compliance.ChangeDeletion},
			wantDesc:  []string{`Line 2 removed: "b"`},
		},
		{
			name:      "from empty",
			oldText:   "",
			newText:   "a",
			wantTypes: []compliance.ChangeType{compliance.ChangeAddition},
			wantDesc:  []string{`Line 1 added: "a"`},
		},
		{
			name:      "to empty",
			oldText:   "a",
			newText:   "",
			wantTypes: []compliance.ChangeType{compliance.ChangeDeletion},
			wantDesc:  []string{`Line 1 removed: "a"`},
		},
		{
			name:    "crlf equals lf",
			oldText: "a\r\nb",
			newText: "a\nb",
		},
		{
			name:    "insertion shifts alignment",
			oldText: "b\nc",
			newText: "a\nb\nc",
			wantTypes: []compliance.ChangeType{
				compliance.ChangeModification,
				compliance.ChangeModification,
				compliance.ChangeAddition,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Lines(tt.oldText, tt.newText)

			if len(changes) != len(tt.wantTypes) {
				t.Fatalf("got %d changes, want %d: %+v", len(changes), len(tt.wantTypes), changes)
			}

			for i, c := range changes {
				if c.Type != tt.wantTypes[i] {
					t.Errorf("change[%d].Type = %q, want %q", i, c.Type, tt.wantTypes[i])
				}
				if c.ImpactLevel != compliance.ImpactMedium {
					t.Errorf("change[%d].ImpactLevel = %q, want medium", i, c.ImpactLevel)
				}
				if c.Source != compliance.SourceTextDiff {
					t.Errorf("change[%d].Source = %q, want text_diff", i, c.Source)
				}
				if tt.wantDesc != nil && c.Description != tt.wantDesc[i] {
					t.Errorf("change[%d].Description = %q, want %q", i, c.Description, tt.wantDesc[i])
				}
			}
		})
	}
}

func TestLines_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		oldLines := rapid.SliceOfN(rapid.StringMatching(`[a-c ]{0,4}`), 0, 8).Draw(t, "old")
		newLines := rapid.SliceOfN(rapid.StringMatching(`[a-c ]{0,4}`), 0, 8).Draw(t, "new")
		oldText := strings.Join(oldLines, "\n")
		newText := strings.Join(newLines, "\n")

		first := Lines(oldText, newText)
		second := Lines(oldText, newText)

		if !reflect.DeepEqual(first, second) {
			t.Fatalf("Lines is not deterministic:\n%+v\n%+v", first, second)
		}
	})
}

func TestLines_IdenticalTextsYieldNothing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := strings.Join(rapid.SliceOf(rapid.String()).Draw(t, "lines"), "\n")

		if changes := Lines(text, text); len(changes) != 0 {
			t.Fatalf("Lines(x, x) returned %d changes", len(changes))
		}
	})
}

func TestLines_ChangeCountBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		oldLines := rapid.SliceOfN(rapid.StringMatching(`[xy]{1,2}`), 1, 10).Draw(t, "old")
		newLines := rapid.SliceOfN(rapid.StringMatching(`[xy]{1,2}`), 1, 10).Draw(t, "new")

		changes := Lines(strings.Join(oldLines, "\n"), strings.Join(newLines, "\n"))

		if limit := max(len(oldLines), len(newLines)); len(changes) > limit {
			t.Fatalf("got %d changes for at most %d lines", len(changes), limit)
		}
	})
}
