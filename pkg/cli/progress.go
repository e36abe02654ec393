package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const importBarWidth = 30

// ImportProgress draws a single status line while a catalog import writes
// its items. The line is redrawn in place and closed by Done or Fail.
type ImportProgress struct {
	mu      sync.Mutex
	w       io.Writer
	total   int
	written int
	started time.Time
	closed  bool
	now     func() time.Time
}

// NewImportProgress starts tracking an import of total items. A nil w
// writes to stderr so the line stays out of piped command output.
func NewImportProgress(w io.Writer, total int) *ImportProgress {
	if w == nil {
		w = os.Stderr
	}
	p := &ImportProgress{w: w, total: total, now: time.Now}
	p.started = p.now()
	p.mu.Lock()
	p.draw()
	p.mu.Unlock()
	return p
}

// Advance records that written items have been stored. It matches the
// importer's OnProgress hook. Counts past the total are clamped and calls
// after the line is closed are dropped.
func (p *ImportProgress) Advance(written int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.written = min(max(written, 0), p.total)
	p.draw()
}

// Done closes the line with a summary of what was written.
func (p *ImportProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.draw()
	elapsed := p.now().Sub(p.started).Round(time.Millisecond)
	fmt.Fprintf(p.w, " done in %s\n", elapsed)
}

// Fail closes the line and reports how far the import got before err.
func (p *ImportProgress) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	fmt.Fprintf(p.w, "\n✗ import stopped after %d of %d items: %v\n", p.written, p.total, err)
}

// draw expects p.mu to be held. An empty catalog has nothing to draw.
func (p *ImportProgress) draw() {
	if p.total <= 0 {
		return
	}
	filled := p.written * importBarWidth / p.total
	fmt.Fprintf(p.w, "\rimporting [%s%s] %d/%d",
		strings.Repeat("#", filled), strings.Repeat(".", importBarWidth-filled),
		p.written, p.total)
}
