package observer

import (
	"sync"
	"time"
)

// Throttler runs fn at most once per interval. The first trigger runs
// immediately; triggers that arrive inside the window collapse into one
// trailing run at the end of it.
type Throttler struct {
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
}

func NewThrottler(interval time.Duration, fn func()) *Throttler {
	return &Throttler{interval: interval, fn: fn}
}

func (t *Throttler) Trigger() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.timer != nil {
		t.pending = true
		t.mu.Unlock()
		return
	}
	t.timer = time.AfterFunc(t.interval, t.windowEnd)
	t.mu.Unlock()
	t.fn()
}

func (t *Throttler) windowEnd() {
	t.mu.Lock()
	if t.stopped || !t.pending {
		t.timer = nil
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.timer = time.AfterFunc(t.interval, t.windowEnd)
	t.mu.Unlock()
	t.fn()
}

func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Debouncer runs fn once, delay after the last trigger.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
