package session

import (
	"sync"
	"time"
)

const (
	// DefaultInactivityTimeout is the quiet period after which an
	// authenticated session is ended.
	DefaultInactivityTimeout = 10 * time.Minute
	// DefaultCoalesceWindow bounds how often raw activity signals actually
	// reset the deadline.
	DefaultCoalesceWindow = 1 * time.Second
)

// ActivitySignal identifies the interaction kinds that qualify as user
// activity. Signals outside this set never postpone the deadline.
type ActivitySignal string

const (
	SignalPointerDown ActivitySignal = "pointer_down"
	SignalPointerMove ActivitySignal = "pointer_move"
	SignalKeyPress    ActivitySignal = "key_press"
	SignalScroll      ActivitySignal = "scroll"
	SignalTouchStart  ActivitySignal = "touch_start"
	SignalClick       ActivitySignal = "click"
)

// QualifiesAsActivity reports whether the signal postpones the idle deadline.
func QualifiesAsActivity(signal ActivitySignal) bool {
	switch signal {
	case SignalPointerDown, SignalPointerMove, SignalKeyPress,
		SignalScroll, SignalTouchStart, SignalClick:
		return true
	default:
		return false
	}
}

// Watchdog ends the session after a fixed period with no qualifying user
// activity. It only holds a deadline while armed; a deadline never survives
// a session boundary.
type Watchdog struct {
	mu       sync.Mutex
	timeout  time.Duration
	window   time.Duration
	onExpire func()
	logger   Logger
	now      func() time.Time

	timer     *time.Timer
	lastReset time.Time
	armed     bool
	resets    int
}

// WatchdogOption customizes watchdog construction.
type WatchdogOption func(*Watchdog)

// WithInactivityTimeout overrides the quiet period.
func WithInactivityTimeout(d time.Duration) WatchdogOption {
	return func(w *Watchdog) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithCoalesceWindow overrides the signal coalescing window. Zero disables
// coalescing.
func WithCoalesceWindow(d time.Duration) WatchdogOption {
	return func(w *Watchdog) {
		if d >= 0 {
			w.window = d
		}
	}
}

// WithWatchdogClock injects a custom clock (useful for tests).
func WithWatchdogClock(clock func() time.Time) WatchdogOption {
	return func(w *Watchdog) {
		if clock != nil {
			w.now = clock
		}
	}
}

// WithWatchdogLogger overrides the watchdog logger.
func WithWatchdogLogger(logger Logger) WatchdogOption {
	return func(w *Watchdog) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatchdog builds a watchdog that invokes onExpire when the inactivity
// deadline passes. It starts disarmed.
func NewWatchdog(onExpire func(), opts ...WatchdogOption) *Watchdog {
	_, logger := ResolveLogger("session.watchdog", nil, nil)
	w := &Watchdog{
		timeout:  DefaultInactivityTimeout,
		window:   DefaultCoalesceWindow,
		onExpire: onExpire,
		logger:   logger,
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	return w
}

// Arm schedules a fresh deadline at now + timeout, replacing any pending one.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()
	w.armed = true
	w.lastReset = w.now()
	w.timer = time.AfterFunc(w.timeout, w.expire)
}

// Disarm cancels any pending deadline. Safe to call repeatedly.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()
	w.armed = false
	w.lastReset = time.Time{}
}

// Touch records a qualifying activity signal. Resets are coalesced: at most
// one per window regardless of how many raw signals arrive.
func (w *Watchdog) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.armed {
		return
	}

	now := w.now()
	if !shouldReset(w.lastReset, now, w.window) {
		return
	}

	w.stopLocked()
	w.lastReset = now
	w.resets++
	w.timer = time.AfterFunc(w.timeout, w.expire)
}

// Armed reports whether a deadline is pending.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

func (w *Watchdog) stopLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watchdog) expire() {
	w.mu.Lock()
	if !w.armed {
		w.mu.Unlock()
		return
	}
	w.armed = false
	w.timer = nil
	w.mu.Unlock()

	w.logger.Info("inactivity deadline expired")
	if w.onExpire != nil {
		w.onExpire()
	}
}

// shouldReset is the coalescing rule: a reset happens only when the previous
// one is at least a full window in the past.
func shouldReset(lastReset, now time.Time, window time.Duration) bool {
	if lastReset.IsZero() {
		return true
	}
	return now.Sub(lastReset) >= window
}
