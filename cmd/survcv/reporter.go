package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/clinstat/survcv/internal/scheduler"
)

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

// consoleReporter prints progress events to the console. Events arrive
// from worker goroutines, so all writes go through the mutex.
type consoleReporter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool

	completed int
	failed    int
}

func newConsoleReporter(w io.Writer, verbose bool) *consoleReporter {
	return &consoleReporter{w: w, verbose: verbose}
}

// Listen satisfies scheduler.ProgressListener.
func (r *consoleReporter) Listen(event scheduler.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.EventType {
	case scheduler.EventRunStart:
		r.completed = 0
		r.failed = 0
		fmt.Fprintf(r.w, "Evaluating %d units...\n", event.TotalUnits)
	case scheduler.EventUnitComplete:
		r.completed++
		duration := time.Duration(event.DurationMs) * time.Millisecond
		if !event.Success {
			r.failed++
			fmt.Fprintf(r.w, "  [%d/%d] FAIL %s split %d (%s)\n",
				r.completed, event.TotalUnits, event.Variant, event.SplitID, formatDuration(duration))
		} else if r.verbose {
			fmt.Fprintf(r.w, "  [%d/%d] ok   %s split %d (%s)\n",
				r.completed, event.TotalUnits, event.Variant, event.SplitID, formatDuration(duration))
		}
	case scheduler.EventRunComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		if r.failed > 0 {
			fmt.Fprintf(r.w, "Done in %s: %d/%d units succeeded\n",
				formatDuration(duration), r.completed-r.failed, event.TotalUnits)
		} else {
			fmt.Fprintf(r.w, "Done in %s\n", formatDuration(duration))
		}
	}
}
