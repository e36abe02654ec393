package cli

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestProgress(buf *bytes.Buffer, total int, clock *time.Time) *ImportProgress {
	p := NewImportProgress(buf, total)
	p.now = func() time.Time { return *clock }
	p.started = *clock
	return p
}

func TestImportProgress(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		advances []int
		want     []string
	}{
		{
			name:     "partial then done",
			total:    4,
			advances: []int{1, 2},
			want:     []string{"] 1/4", "] 2/4", "[###############...............] 2/4", " done in 1.5s\n"},
		},
		{
			name:     "overflow clamps to total",
			total:    2,
			advances: []int{5},
			want:     []string{"[##############################] 2/2"},
		},
		{
			name:     "negative count clamps to zero",
			total:    3,
			advances: []int{-1},
			want:     []string{"] 0/3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			p := newTestProgress(buf, tt.total, &clock)

			for _, n := range tt.advances {
				p.Advance(n)
			}
			clock = clock.Add(1500 * time.Millisecond)
			p.Done()

			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output %q missing %q", buf.String(), want)
				}
			}
		})
	}
}

func TestImportProgress_EmptyCatalog(t *testing.T) {
	buf := &bytes.Buffer{}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newTestProgress(buf, 0, &clock)

	p.Advance(0)
	p.Done()

	if buf.String() != " done in 0s\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestImportProgress_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newTestProgress(buf, 10, &clock)

	p.Advance(3)
	p.Fail(errors.New("database is locked"))
	size := buf.Len()
	p.Advance(9)
	p.Done()

	out := buf.String()
	if !strings.Contains(out, "stopped after 3 of 10 items: database is locked") {
		t.Errorf("output %q should report where the import stopped", out)
	}
	if buf.Len() != size {
		t.Errorf("writes after Fail: %q", out[size:])
	}
}

func TestImportProgress_Concurrent(t *testing.T) {
	p := NewImportProgress(&bytes.Buffer{}, 100)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Advance(i * 10)
		}()
	}
	wg.Wait()
	p.Done()
}
