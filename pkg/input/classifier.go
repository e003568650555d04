// Package input turns debounced per-button levels into semantic events:
// press and release edges, short and long presses, the multi-click-then-
// hold playback gesture, and the both-buttons calibration chord.
//
// The classifier is fed once per control tick with a level snapshot and
// the tick timestamp. It owns all button and gesture state; nothing here
// touches hardware or the clock.
package input

import (
	"fmt"
	"time"

	"github.com/DerRheingold/deskd/pkg/desk"
)

// Kind discriminates classified input events.
type Kind uint8

const (
	// Press is a debounced released-to-pressed edge.
	Press Kind = iota
	// Release is a debounced pressed-to-released edge; Held carries the
	// press duration.
	Release
	// ShortPress fires on release when the press stayed under the
	// long-press threshold.
	ShortPress
	// LongPress fires on release when the press lasted at least the
	// long-press threshold.
	LongPress
	// PlaybackActivate fires while an up/down button is still held: the
	// preceding rapid clicks reached the click count and the hold just
	// crossed the gesture threshold. Held carries the hold elapsed so
	// far; the button may remain held afterward.
	PlaybackActivate
	// ChordHold fires once when up and down have been held together for
	// the chord threshold. Button is meaningless for this kind.
	ChordHold
)

func (k Kind) String() string {
	switch k {
	case Press:
		return "press"
	case Release:
		return "release"
	case ShortPress:
		return "short-press"
	case LongPress:
		return "long-press"
	case PlaybackActivate:
		return "playback-activate"
	case ChordHold:
		return "chord-hold"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is one classified input occurrence.
type Event struct {
	Kind   Kind
	Button desk.Button
	Held   time.Duration
}

// Default thresholds, shared by the firmware and the simulated desk.
const (
	DefaultLongPress   = 2000 * time.Millisecond
	DefaultClickWindow = 1000 * time.Millisecond
	DefaultClickCount  = 3
	DefaultGestureHold = 2000 * time.Millisecond
	DefaultChordHold   = 2000 * time.Millisecond
)

// Options tune the classifier thresholds. Zero fields take defaults.
type Options struct {
	// LongPress separates short from long presses, decided on release.
	LongPress time.Duration
	// ClickWindow is how soon after the previous release the next press
	// must land to continue a click chain.
	ClickWindow time.Duration
	// ClickCount is the number of completed clicks required before a
	// hold can activate playback.
	ClickCount int
	// GestureHold is how long the post-click press must be held before
	// PlaybackActivate fires.
	GestureHold time.Duration
	// ChordHold is how long up and down must be held together before
	// ChordHold fires.
	ChordHold time.Duration
}

func (o Options) withDefaults() Options {
	if o.LongPress <= 0 {
		o.LongPress = DefaultLongPress
	}
	if o.ClickWindow <= 0 {
		o.ClickWindow = DefaultClickWindow
	}
	if o.ClickCount <= 0 {
		o.ClickCount = DefaultClickCount
	}
	if o.GestureHold <= 0 {
		o.GestureHold = DefaultGestureHold
	}
	if o.ChordHold <= 0 {
		o.ChordHold = DefaultChordHold
	}
	return o
}

type buttonState struct {
	pressed    bool
	pressStart time.Time
	// suppressed presses emit no short/long classification and no click
	// counting on release: they were consumed by a chord or already
	// produced a playback activation.
	suppressed   bool
	gestureFired bool
}

type clickState struct {
	count       int
	lastRelease time.Time
}

// Classifier owns per-button state and the gesture layers. Not safe for
// concurrent use; the tick loop is its only caller.
type Classifier struct {
	opts Options
	btns [desk.ButtonCount]buttonState
	// Click chains exist per jog button, indexed by desk.ButtonUp and
	// desk.ButtonDown.
	clicks      [2]clickState
	chordStart  time.Time
	chordActive bool
	chordFired  bool
}

// New returns a classifier with all buttons released.
func New(opts Options) *Classifier {
	return &Classifier{opts: opts.withDefaults()}
}

// Update consumes one tick's level snapshot and returns the events it
// produced, in order: edges first, then chord, then gesture activation.
func (c *Classifier) Update(now time.Time, levels desk.Buttons) []Event {
	var evs []Event

	for b := desk.Button(0); b < desk.ButtonCount; b++ {
		evs = c.updateButton(now, b, levels.Get(b), evs)
	}
	evs = c.updateChord(now, levels, evs)
	evs = c.updateGesture(now, evs)

	return evs
}

func (c *Classifier) updateButton(now time.Time, b desk.Button, level bool, evs []Event) []Event {
	st := &c.btns[b]
	switch {
	case level && !st.pressed:
		st.pressed = true
		st.pressStart = now
		st.suppressed = false
		st.gestureFired = false
		evs = append(evs, Event{Kind: Press, Button: b})
		if _, jog := b.Direction(); jog {
			// A press landing after the window breaks the chain.
			cs := &c.clicks[b]
			if cs.count > 0 && now.Sub(cs.lastRelease) > c.opts.ClickWindow {
				cs.count = 0
			}
		}
	case !level && st.pressed:
		st.pressed = false
		held := now.Sub(st.pressStart)
		evs = append(evs, Event{Kind: Release, Button: b, Held: held})
		if st.suppressed {
			break
		}
		if held >= c.opts.LongPress {
			evs = append(evs, Event{Kind: LongPress, Button: b, Held: held})
		} else {
			evs = append(evs, Event{Kind: ShortPress, Button: b, Held: held})
		}
		if _, jog := b.Direction(); jog {
			cs := &c.clicks[b]
			cs.count++
			cs.lastRelease = now
		}
	}
	return evs
}

func (c *Classifier) updateChord(now time.Time, levels desk.Buttons, evs []Event) []Event {
	if levels.Up && levels.Down {
		if !c.chordActive {
			c.chordActive = true
			c.chordFired = false
			c.chordStart = now
			// The chord pre-empts per-button classification for both
			// participants until they are released again.
			c.btns[desk.ButtonUp].suppressed = true
			c.btns[desk.ButtonDown].suppressed = true
			c.clicks[desk.ButtonUp].count = 0
			c.clicks[desk.ButtonDown].count = 0
		} else if !c.chordFired && now.Sub(c.chordStart) >= c.opts.ChordHold {
			c.chordFired = true
			evs = append(evs, Event{Kind: ChordHold, Held: now.Sub(c.chordStart)})
		}
		return evs
	}
	c.chordActive = false
	return evs
}

func (c *Classifier) updateGesture(now time.Time, evs []Event) []Event {
	for _, b := range [...]desk.Button{desk.ButtonUp, desk.ButtonDown} {
		st := &c.btns[b]
		if !st.pressed || st.suppressed || st.gestureFired {
			continue
		}
		cs := &c.clicks[b]
		if cs.count < c.opts.ClickCount {
			continue
		}
		if held := now.Sub(st.pressStart); held >= c.opts.GestureHold {
			st.gestureFired = true
			st.suppressed = true
			cs.count = 0
			evs = append(evs, Event{Kind: PlaybackActivate, Button: b, Held: held})
		}
	}
	return evs
}
