package daemon

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/DerRheingold/deskd/pkg/control"
	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/input"
)

// Gesture timings. Every command is performed as timed button levels,
// so the margins here absorb the control tick quantization and the
// debounce settle on the other side.
const (
	// synthTap stays under the jog smoothing delay: a tap selects or
	// cancels without ever engaging the motors.
	synthTap = 200 * time.Millisecond
	// synthLongHold clears the long-press threshold.
	synthLongHold = 2200 * time.Millisecond
	// synthClickHeld and synthClickGap pace the click chain well inside
	// the click window.
	synthClickHeld = 150 * time.Millisecond
	synthClickGap  = 150 * time.Millisecond
	// synthGestureHold clears the activation and chord thresholds. The
	// activation fires mid-hold; the release after it is inert.
	synthGestureHold = 2300 * time.Millisecond
	// synthStep separates the phases of a multi-press sequence by one
	// control tick.
	synthStep = control.DefaultTick
)

// Synth is the daemon's finger: it performs API commands as the same
// timed button sequences a person would perform on the physical
// buttons, so both paths exercise identical control logic. Gestures are
// serialized; a second command waits for the current gesture to finish.
type Synth struct {
	desk Desk

	mu          sync.Mutex
	lastRelease [desk.ButtonCount]time.Time

	sleep func(time.Duration)
	now   func() time.Time
}

// NewSynth returns a synthesizer driving d.
func NewSynth(d Desk) *Synth {
	return &Synth{desk: d, sleep: time.Sleep, now: time.Now}
}

// Seek taps a preset button, starting a seek to its saved height.
func (s *Synth) Seek(slot desk.Slot) error {
	return s.run(func(g *gesture) error {
		return g.tap(slot.Button(), synthTap)
	})
}

// SavePreset long-presses a preset button, saving the current height
// into its slot.
func (s *Synth) SavePreset(slot desk.Slot) error {
	return s.run(func(g *gesture) error {
		return g.tap(slot.Button(), synthLongHold)
	})
}

// Jog holds a direction button long enough to drive for roughly d; the
// exact travel is tick-quantized like any physical button hold.
func (s *Synth) Jog(dir desk.Direction, d time.Duration) error {
	if d <= 0 {
		return pkgerrors.Errorf("jog duration must be positive, got %s", d)
	}
	hold := control.DefaultJogSmoothing + d + control.DefaultTick
	return s.run(func(g *gesture) error {
		// A hold this long lands in gesture territory: if recent taps
		// left a click chain on this button, the hold would activate
		// playback instead of jogging. Wait the chain out first.
		if hold >= input.DefaultGestureHold {
			g.breakClickChain(dir.Button())
		}
		return g.tap(dir.Button(), hold)
	})
}

// Stop taps the up button: in any automatic mode the press edge cancels
// motion, and in idle a tap this short arms nothing.
func (s *Synth) Stop() error {
	return s.run(func(g *gesture) error {
		return g.tap(desk.ButtonUp, synthTap)
	})
}

// Play performs the click-click-click-hold gesture on the direction's
// button, replaying the recorded program.
func (s *Synth) Play(dir desk.Direction) error {
	b := dir.Button()
	return s.run(func(g *gesture) error {
		for i := 0; i < input.DefaultClickCount; i++ {
			if err := g.tap(b, synthClickHeld); err != nil {
				return err
			}
			g.wait(synthClickGap)
		}
		return g.tap(b, synthGestureHold)
	})
}

// Record enters record mode with the two-button chord, then drives the
// given direction for d and releases, capturing d as that direction's
// program.
func (s *Synth) Record(dir desk.Direction, d time.Duration) error {
	if d <= 0 {
		return pkgerrors.Errorf("record duration must be positive, got %s", d)
	}
	return s.run(func(g *gesture) error {
		if err := g.press(desk.ButtonUp); err != nil {
			return err
		}
		if err := g.press(desk.ButtonDown); err != nil {
			return err
		}
		g.wait(synthGestureHold)
		if err := g.release(desk.ButtonUp); err != nil {
			return err
		}
		if err := g.release(desk.ButtonDown); err != nil {
			return err
		}
		g.wait(2 * synthStep)
		return g.tap(dir.Button(), d)
	})
}

// Press holds an arbitrary button for d, exposing the raw input layer.
func (s *Synth) Press(b desk.Button, d time.Duration) error {
	if d <= 0 {
		return pkgerrors.Errorf("press duration must be positive, got %s", d)
	}
	return s.run(func(g *gesture) error {
		return g.tap(b, d)
	})
}

// run executes one serialized gesture. If it fails midway, every button
// it still holds is released so the desk is never left driving.
func (s *Synth) run(fn func(g *gesture) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := &gesture{s: s}
	err := fn(g)
	if err != nil {
		g.releaseAll()
	}
	return err
}

// gesture tracks the buttons one command currently holds.
type gesture struct {
	s       *Synth
	pressed []desk.Button
}

func (g *gesture) press(b desk.Button) error {
	if err := g.s.desk.SetButton(b, true); err != nil {
		return pkgerrors.Wrapf(err, "failed to press %s", b)
	}
	g.pressed = append(g.pressed, b)
	return nil
}

func (g *gesture) release(b desk.Button) error {
	if err := g.s.desk.SetButton(b, false); err != nil {
		return pkgerrors.Wrapf(err, "failed to release %s", b)
	}
	for i, p := range g.pressed {
		if p == b {
			g.pressed = append(g.pressed[:i], g.pressed[i+1:]...)
			break
		}
	}
	g.s.lastRelease[b] = g.s.now()
	return nil
}

func (g *gesture) tap(b desk.Button, hold time.Duration) error {
	if err := g.press(b); err != nil {
		return err
	}
	g.wait(hold)
	return g.release(b)
}

func (g *gesture) wait(d time.Duration) {
	g.s.sleep(d)
}

// breakClickChain waits until a press of b lands outside the click
// window of its last release.
func (g *gesture) breakClickChain(b desk.Button) {
	since := g.s.now().Sub(g.s.lastRelease[b])
	if since < input.DefaultClickWindow {
		g.wait(input.DefaultClickWindow - since + synthStep)
	}
}

func (g *gesture) releaseAll() {
	for _, b := range g.pressed {
		_ = g.s.desk.SetButton(b, false)
		g.s.lastRelease[b] = g.s.now()
	}
	g.pressed = nil
}
