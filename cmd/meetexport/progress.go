package main

import (
	"fmt"
	"io"
	"time"
)

type progressKind int

const (
	progressItem progressKind = iota
	progressCooldown
	progressRateLimit
	progressResult
)

type progressEvent struct {
	kind        progressKind
	current     int
	total       int
	label       string
	remaining   time.Duration
	wait        time.Duration
	attempt     int
	maxAttempts int
	success     bool
}

// plainWaitInterval spaces countdown lines when the output is not a terminal.
const plainWaitInterval = 30 * time.Second

// progressRenderer turns pipeline callbacks into terminal output. Callbacks
// arrive on the pipeline goroutine and are handed over a channel to run,
// which owns all writes.
type progressRenderer struct {
	out    io.Writer
	tty    bool
	events chan progressEvent

	inline    bool
	completed int
	failed    int
}

func newProgressRenderer(out io.Writer, tty bool) *progressRenderer {
	return &progressRenderer{out: out, tty: tty, events: make(chan progressEvent, 64)}
}

func (r *progressRenderer) Progress(current, total int, label string) {
	r.events <- progressEvent{kind: progressItem, current: current, total: total, label: label}
}

func (r *progressRenderer) CooldownWait(remaining, total time.Duration) {
	r.events <- progressEvent{kind: progressCooldown, remaining: remaining, wait: total}
}

func (r *progressRenderer) RateLimitWait(remaining, total time.Duration, attempt, maxAttempts int) {
	r.events <- progressEvent{kind: progressRateLimit, remaining: remaining, wait: total, attempt: attempt, maxAttempts: maxAttempts}
}

func (r *progressRenderer) ItemResult(_ string, success bool) {
	r.events <- progressEvent{kind: progressResult, success: success}
}

// close ends the event stream; run returns once it has drained.
func (r *progressRenderer) close() {
	close(r.events)
}

func (r *progressRenderer) run() error {
	for ev := range r.events {
		r.render(ev)
	}
	r.endInline()
	return nil
}

func (r *progressRenderer) render(ev progressEvent) {
	switch ev.kind {
	case progressItem:
		r.endInline()
		fmt.Fprintf(r.out, "[%d/%d] %s\n", ev.current, ev.total, ev.label)
	case progressResult:
		r.endInline()
		if ev.success {
			r.completed++
			fmt.Fprintln(r.out, "  saved")
		} else {
			r.failed++
			fmt.Fprintln(r.out, "  failed")
		}
	case progressCooldown:
		r.wait(fmt.Sprintf("  cooling down: %s remaining", formatClock(ev.remaining)), ev.remaining, ev.wait)
	case progressRateLimit:
		r.wait(fmt.Sprintf("  rate limited (attempt %d/%d): retrying in %s", ev.attempt, ev.maxAttempts, formatClock(ev.remaining)), ev.remaining, ev.wait)
	}
}

func (r *progressRenderer) wait(line string, remaining, total time.Duration) {
	if r.tty {
		fmt.Fprint(r.out, "\r"+ansiClearLine+line)
		r.inline = true
		if remaining <= 0 {
			r.endInline()
		}
		return
	}
	if remaining == total || (remaining > 0 && remaining%plainWaitInterval == 0) {
		fmt.Fprintln(r.out, line)
	}
}

func (r *progressRenderer) endInline() {
	if r.inline {
		fmt.Fprint(r.out, "\r"+ansiClearLine)
		r.inline = false
	}
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
