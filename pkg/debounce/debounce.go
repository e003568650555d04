// Package debounce filters contact bounce out of raw digital inputs.
//
// The scheme is settle-and-resample: a read that matches the last known
// level costs nothing; only a transition pays a short blocking settle
// before the line is sampled again. Steady-state polling stays cheap and
// a bouncing edge is only accepted once it survives the settle interval.
package debounce

import "time"

// DefaultSettle is the settle interval applied after a level change.
const DefaultSettle = 10 * time.Millisecond

// Line samples a raw digital input. True is the active (pressed) level.
type Line func() bool

// Debouncer settles transitioning lines before trusting them. The zero
// value is not usable; call New.
type Debouncer struct {
	settle time.Duration
	sleep  func(time.Duration)
}

// New returns a Debouncer with the given settle interval. A zero or
// negative settle falls back to DefaultSettle.
func New(settle time.Duration) *Debouncer {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Debouncer{settle: settle, sleep: time.Sleep}
}

// Read samples line and returns its settled level. If the sample
// differs from last, the read blocks for the settle interval and the
// line is sampled once more; that second sample wins.
func (d *Debouncer) Read(line Line, last bool) bool {
	cur := line()
	if cur == last {
		return cur
	}
	d.sleep(d.settle)
	return line()
}

// Input couples a Debouncer with one line and its last known level, so
// call sites can poll without tracking state themselves.
type Input struct {
	d    *Debouncer
	line Line
	last bool
}

// NewInput wraps line with the debouncer d. The line starts released.
func NewInput(d *Debouncer, line Line) *Input {
	return &Input{d: d, line: line}
}

// Read returns the current settled level and remembers it.
func (i *Input) Read() bool {
	i.last = i.d.Read(i.line, i.last)
	return i.last
}
