package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Progress renders a single-line progress bar for a seeding run.
type Progress struct {
	startTime time.Time
	output    io.Writer
	stats     Stats
	mu        sync.RWMutex
	enabled   bool
}

// NewProgress creates a tracker for total tiles. A disabled tracker only
// collects numbers for Summary.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		stats:     Stats{Total: total},
		startTime: time.Now(),
		output:    os.Stderr,
		enabled:   enabled,
	}
}

// Update records a snapshot.
func (p *Progress) Update(s Stats) {
	p.mu.Lock()
	p.stats = s
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for Config.OnProgress.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

func (p *Progress) snapshot() (Stats, time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats, time.Since(p.startTime)
}

// Print writes the current line, overwriting the previous one.
func (p *Progress) Print() {
	s, elapsed := p.snapshot()

	var rate float64
	var eta time.Duration
	if s.Completed > 0 {
		rate = float64(s.Completed) / elapsed.Seconds()
		if rate > 0 {
			eta = time.Duration(float64(s.Total-s.Completed)/rate) * time.Second
		}
	}

	const barWidth = 30
	filled := 0
	if s.Total > 0 {
		filled = s.Completed * barWidth / s.Total
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	var line strings.Builder
	fmt.Fprintf(&line, "\r[%s] %d/%d tiles", bar, s.Completed, s.Total)
	if s.Cached > 0 {
		fmt.Fprintf(&line, " (%d cached)", s.Cached)
	}
	if s.Failed > 0 {
		fmt.Fprintf(&line, " (%d failed)", s.Failed)
	}
	fmt.Fprintf(&line, " - %.1f tiles/sec", rate)
	if eta > 0 && s.Completed < s.Total {
		fmt.Fprintf(&line, " - ETA: %s", formatDuration(eta))
	}
	if s.Completed == s.Total {
		fmt.Fprintf(&line, " - Done in %s", formatDuration(elapsed))
	}
	// Clear leftovers of a longer previous line.
	line.WriteString("          ")

	fmt.Fprint(p.output, line.String())
}

// Done prints the final line followed by a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Summary describes the finished run.
func (p *Progress) Summary() string {
	s, elapsed := p.snapshot()

	var rate float64
	if elapsed.Seconds() > 0 {
		rate = float64(s.Completed) / elapsed.Seconds()
	}

	return fmt.Sprintf("Seeded %d/%d tiles (%d cached, %d failed) in %s (%.1f tiles/sec)",
		s.Completed-s.Failed, s.Total, s.Cached, s.Failed, formatDuration(elapsed), rate)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
