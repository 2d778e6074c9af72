package bulk

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the minimum spacing between overview pushes.
const DefaultDebounceWindow = time.Second

// Debouncer rate-limits a callback with leading-edge plus max-wait semantics.
//
// The first Trigger after a quiet window starts fn at once on its own goroutine, so a
// slow fn never blocks the caller. Triggers inside the window are coalesced into a single
// trailing run at lastFlush+window, so under continuous triggering fn still runs once per
// window. fn reads current state when it runs, which gives latest-state-wins. Runs of fn
// never overlap. Flush is the only synchronous run.
type Debouncer struct {
	window time.Duration
	fn     func()
	now    func() time.Time

	mu        sync.Mutex
	pending   bool
	lastFlush time.Time
	timer     *time.Timer
	stopped   bool

	runMu sync.Mutex
}

// NewDebouncer constructs a Debouncer. A non-positive window selects DefaultDebounceWindow.
func NewDebouncer(window time.Duration, fn func()) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window: window,
		fn:     fn,
		now:    time.Now,
	}
}

// Trigger requests a run of fn.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.pending {
		d.mu.Unlock()
		return
	}

	now := d.now()
	elapsed := now.Sub(d.lastFlush)
	if d.lastFlush.IsZero() || elapsed >= d.window {
		d.lastFlush = now
		d.mu.Unlock()
		go d.run()
		return
	}

	d.pending = true
	d.timer = time.AfterFunc(d.window-elapsed, d.flushPending)
	d.mu.Unlock()
}

// Flush runs fn immediately, absorbing any pending trailing run.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
	d.lastFlush = d.now()
	d.mu.Unlock()
	d.run()
}

// Stop cancels any pending run and disables further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) flushPending() {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.lastFlush = d.now()
	d.mu.Unlock()
	d.run()
}

func (d *Debouncer) run() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	d.fn()
}
