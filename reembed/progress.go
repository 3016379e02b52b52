package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports how many of a known number of items are done.
type ProgressTracker struct {
	mu             sync.Mutex
	writer         io.Writer
	unit           string
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
}

// NewProgressTracker creates a tracker that writes a line to writer every
// reportInterval items. unit names the items, e.g. "chunks".
func NewProgressTracker(writer io.Writer, unit string, total, reportInterval int) *ProgressTracker {
	if reportInterval <= 0 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		unit:           unit,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// Update sets the number of items done.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		p.set(current)
	}
}

// Increment adds delta to the number of items done.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		p.set(p.current + delta)
	}
}

// Current returns the number of items done.
func (p *ProgressTracker) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish reports the final count and ends the line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// set must be called with the lock held.
func (p *ProgressTracker) set(current int) {
	p.current = min(current, p.total)
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// report must be called with the lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed
	}
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}
	fmt.Fprintf(p.writer, "\rProgress: %d/%d %s (%.1f%%) - %.1f %s/s",
		p.current, p.total, p.unit, percentage, rate, p.unit)
}
