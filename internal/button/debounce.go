package button

import (
	"sync"
	"sync/atomic"
	"time"
)

const DefaultDebounce = 50 * time.Millisecond

// Edge is a debounced press or release of a button.
type Edge struct {
	Pressed bool
	At      time.Time
}

// Pin reads the current level of a momentary button.
type Pin interface {
	Pressed() bool
}

// Debouncer turns raw per-poll samples into clean edges. It reports a change
// only when the level differs from the last reported one and the last reported
// change is at least delay old.
type Debouncer struct {
	delay      time.Duration
	pressed    bool
	lastChange time.Time
	seen       bool
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay}
}

// Sample feeds one raw level taken at now.
func (d *Debouncer) Sample(pressed bool, now time.Time) (Edge, bool) {
	if pressed == d.pressed {
		return Edge{}, false
	}
	if d.seen && now.Sub(d.lastChange) < d.delay {
		return Edge{}, false
	}

	d.pressed = pressed
	d.lastChange = now
	d.seen = true

	return Edge{Pressed: pressed, At: now}, true
}

// Level is a Pin whose level is set by another goroutine.
type Level struct {
	v atomic.Bool
}

func (l *Level) Pressed() bool { return l.v.Load() }

func (l *Level) Set(pressed bool) { l.v.Store(pressed) }

// Click is a Pin for momentary presses that must not be lost while nobody is
// polling. A press stays down until it has been held for hold and then read
// once more.
type Click struct {
	mu    sync.Mutex
	hold  time.Duration
	down  bool
	until time.Time
	now   func() time.Time
}

func NewClick(hold time.Duration) *Click {
	return &Click{hold: hold, now: time.Now}
}

func (c *Click) Press() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = true
	c.until = c.now().Add(c.hold)
}

func (c *Click) Pressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.down {
		return false
	}
	if !c.now().Before(c.until) {
		c.down = false
	}
	return true
}
