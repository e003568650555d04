// Package control implements the motion state machine of the desk: idle,
// manual jog, sensor-gated seek, timed playback, and program recording.
//
// The controller is a cooperative tick machine. Once per tick the caller
// hands it the current time, the debounced button levels, the sensor
// reading, and the classified input events; the controller issues motion
// and display commands through its injected collaborators and stores
// nothing global. Cancellation is an ordinary transition rule checked
// every tick, not a break buried in a loop.
package control

import (
	"time"

	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/input"
)

// Defaults shared by the firmware and the simulated desk.
const (
	// DefaultTick is the control loop cadence. It bounds sensor polling
	// and input latency; the controller itself never sleeps.
	DefaultTick = 100 * time.Millisecond
	// DefaultJogSmoothing is how long an up/down button must be held
	// before the motors engage, so a stray tap causes no chatter.
	DefaultJogSmoothing = 250 * time.Millisecond
	// DefaultSeekSettle is the pause between reaching a target and the
	// confirming read, absorbing sensor jitter around the stop point.
	DefaultSeekSettle = 500 * time.Millisecond
	// DefaultDisplayHold keeps a banner (saved preset, error code) on
	// the display before height updates resume.
	DefaultDisplayHold = 1500 * time.Millisecond
)

// Params tunes the controller. Zero fields take defaults.
type Params struct {
	JogSmoothing time.Duration
	SeekSettle   time.Duration
	DisplayHold  time.Duration
}

func (p Params) withDefaults() Params {
	if p.JogSmoothing <= 0 {
		p.JogSmoothing = DefaultJogSmoothing
	}
	if p.SeekSettle <= 0 {
		p.SeekSettle = DefaultSeekSettle
	}
	if p.DisplayHold <= 0 {
		p.DisplayHold = DefaultDisplayHold
	}
	return p
}

// Saver persists the settings after a successful mutation. The
// controller validates before it mutates the resident copy and saves
// after; a failing save leaves the resident copy authoritative until
// the next power cycle, which is all the hardware ever guaranteed.
type Saver interface {
	Save(desk.Settings) error
}

// Inputs is everything the controller consumes on one tick: the
// debounced levels and the single sensor reading shared by the mode
// logic and the height monitor.
type Inputs struct {
	Buttons desk.Buttons
	Height  desk.Height
}

// Controller owns the operating mode and the resident calibration and
// program records. Single-threaded by contract: only the tick loop may
// call it.
type Controller struct {
	params  Params
	saver   Saver
	motor   desk.MotionDriver
	display desk.Display

	settings desk.Settings
	mode     desk.Mode

	// Pending jog: an up/down press edge seen in idle, waiting out the
	// smoothing delay.
	jogPending    bool
	jogPendingDir desk.Direction
	jogPendingAt  time.Time

	jogDir desk.Direction

	seekSlot      desk.Slot
	seekTarget    desk.Height
	seekDir       desk.Direction
	seekSettling  bool
	seekSettleEnd time.Time

	playDir      desk.Direction
	playDeadline time.Duration
	playStart    time.Time

	recActive bool
	recDir    desk.Direction
	recStart  time.Time

	lastShown      desk.Height
	lastShownValid bool
	holdUntil      time.Time

	lastErr    desk.ErrCode
	lastErrAt  time.Time
	lastErrSet bool
}

// New returns an idle controller owning the given resident settings.
func New(params Params, saver Saver, motor desk.MotionDriver, display desk.Display, settings desk.Settings) *Controller {
	return &Controller{
		params:   params.withDefaults(),
		saver:    saver,
		motor:    motor,
		display:  display,
		settings: settings,
	}
}

// Mode returns the current operating mode.
func (c *Controller) Mode() desk.Mode { return c.mode }

// Settings returns the resident settings copy.
func (c *Controller) Settings() desk.Settings { return c.settings }

// Moving reports the commanded travel direction, if any.
func (c *Controller) Moving() (desk.Direction, bool) {
	switch c.mode {
	case desk.ModeManualJog:
		return c.jogDir, true
	case desk.ModeSeek:
		if c.seekSettling {
			return 0, false
		}
		return c.seekDir, true
	case desk.ModePlayback:
		return c.playDir, true
	case desk.ModeRecord:
		if c.recActive {
			return c.recDir, true
		}
	}
	return 0, false
}

// LastError returns the most recently displayed error, if any.
func (c *Controller) LastError() (desk.StatusError, bool) {
	if !c.lastErrSet {
		return desk.StatusError{}, false
	}
	return desk.StatusError{
		Code:    c.lastErr,
		Message: c.lastErr.String(),
		At:      c.lastErrAt,
	}, true
}

// ReplaceSettings swaps the resident settings, stopping any motion
// first. Used after a storage wipe or an external reload.
func (c *Controller) ReplaceSettings(s desk.Settings) {
	c.motor.Stop()
	c.mode = desk.ModeIdle
	c.jogPending = false
	c.recActive = false
	c.seekSettling = false
	c.settings = s
}

// tickView is the per-tick digest of classified events.
type tickView struct {
	presses  []desk.Button
	shorts   []input.Event
	longs    []input.Event
	activate *input.Event
	chord    bool
}

func viewOf(events []input.Event) tickView {
	var v tickView
	for i := range events {
		e := events[i]
		switch e.Kind {
		case input.Press:
			v.presses = append(v.presses, e.Button)
		case input.ShortPress:
			v.shorts = append(v.shorts, e)
		case input.LongPress:
			v.longs = append(v.longs, e)
		case input.PlaybackActivate:
			v.activate = &events[i]
		case input.ChordHold:
			v.chord = true
		}
	}
	return v
}

// Tick advances the state machine by one control tick.
func (c *Controller) Tick(now time.Time, in Inputs, events []input.Event) {
	view := viewOf(events)

	if !c.cancelOnPress(view) {
		switch c.mode {
		case desk.ModeIdle:
			c.tickIdle(now, in, view)
		case desk.ModeManualJog:
			c.tickJog(now, in, view)
		case desk.ModeSeek:
			c.tickSeek(now, in)
		case desk.ModePlayback:
			c.tickPlayback(now)
		case desk.ModeRecord:
			c.tickRecord(now, in, view)
		}
	}

	c.monitor(now, in.Height)
}

// cancelOnPress implements the always-available exit path: any button
// press edge during an automatic mode stops motion and returns to idle
// within the same tick. The cancelling edge is consumed; it does not
// double as a mode entry. In record mode the up/down edges are the
// functional inputs, so only a preset press cancels there.
func (c *Controller) cancelOnPress(view tickView) bool {
	if len(view.presses) == 0 {
		return false
	}
	switch c.mode {
	case desk.ModeManualJog, desk.ModeSeek, desk.ModePlayback:
		c.stopToIdle()
		return true
	case desk.ModeRecord:
		for _, b := range view.presses {
			if _, preset := b.Slot(); preset {
				c.stopToIdle()
				return true
			}
		}
	}
	return false
}

func (c *Controller) stopToIdle() {
	c.motor.Stop()
	c.mode = desk.ModeIdle
	c.jogPending = false
	c.recActive = false
	c.seekSettling = false
}

func (c *Controller) tickIdle(now time.Time, in Inputs, view tickView) {
	if view.chord {
		c.jogPending = false
		c.mode = desk.ModeRecord
		c.recActive = false
		return
	}
	if view.activate != nil {
		c.jogPending = false
		c.enterPlayback(now, *view.activate)
		return
	}
	for _, e := range view.shorts {
		if slot, ok := e.Button.Slot(); ok {
			c.jogPending = false
			c.enterSeek(now, in, slot)
			return
		}
	}
	for _, e := range view.longs {
		if slot, ok := e.Button.Slot(); ok {
			c.saveSetpoint(now, in, slot)
			return
		}
	}
	for _, b := range view.presses {
		if dir, ok := b.Direction(); ok {
			c.jogPending = true
			c.jogPendingDir = dir
			c.jogPendingAt = now
			break
		}
	}
	// Both jog buttons down means a chord is forming in the classifier;
	// hold the jog back so record mode is reachable.
	if in.Buttons.Up && in.Buttons.Down {
		c.jogPending = false
		return
	}
	if c.jogPending {
		if !in.Buttons.Get(c.jogPendingDir.Button()) {
			c.jogPending = false
			return
		}
		if now.Sub(c.jogPendingAt) >= c.params.JogSmoothing {
			c.jogPending = false
			c.jogDir = c.jogPendingDir
			c.mode = desk.ModeManualJog
			c.drive(c.jogDir)
		}
	}
}

func (c *Controller) tickJog(now time.Time, in Inputs, view tickView) {
	if view.chord {
		c.motor.Stop()
		c.mode = desk.ModeRecord
		c.recActive = false
		return
	}
	if view.activate != nil {
		c.enterPlayback(now, *view.activate)
		return
	}
	if !in.Buttons.Get(c.jogDir.Button()) {
		c.motor.Stop()
		c.mode = desk.ModeIdle
		return
	}
	c.drive(c.jogDir)
}

func (c *Controller) enterSeek(now time.Time, in Inputs, slot desk.Slot) {
	target := c.settings.Calibration.Slot(slot)
	if !target.Set() {
		c.fail(now, desk.ErrCodeNoPreset)
		return
	}
	h := in.Height
	if h.Fault() {
		c.fail(now, desk.ErrCodeSensor)
		return
	}
	if h == target {
		return
	}
	c.mode = desk.ModeSeek
	c.seekSlot = slot
	c.seekTarget = target
	c.seekSettling = false
	if h < target {
		c.seekDir = desk.Raise
	} else {
		c.seekDir = desk.Lower
	}
	c.drive(c.seekDir)
}

func (c *Controller) tickSeek(now time.Time, in Inputs) {
	if c.seekSettling {
		if !now.Before(c.seekSettleEnd) {
			c.seekSettling = false
			c.mode = desk.ModeIdle
			// Force the confirming read onto the display even if the
			// value did not change during the settle.
			c.lastShownValid = false
		}
		return
	}
	h := in.Height
	if h.Fault() {
		// Fatal for this invocation: driving on without feedback risks
		// a stall against a hard stop. Not retried.
		c.motor.Stop()
		c.mode = desk.ModeIdle
		c.fail(now, desk.ErrCodeSensor)
		return
	}
	reached := (c.seekDir == desk.Raise && h >= c.seekTarget) ||
		(c.seekDir == desk.Lower && h <= c.seekTarget)
	if reached {
		c.motor.Stop()
		c.seekSettling = true
		c.seekSettleEnd = now.Add(c.params.SeekSettle)
		return
	}
	c.drive(c.seekDir)
}

func (c *Controller) saveSetpoint(now time.Time, in Inputs, slot desk.Slot) {
	h := in.Height
	if h.Fault() {
		c.fail(now, desk.ErrCodeSensor)
		return
	}
	if code, bad := c.settings.Calibration.SaveViolation(slot, h); bad {
		c.fail(now, code)
		return
	}
	c.settings.Calibration = c.settings.Calibration.WithSlot(slot, h)
	c.persist()
	c.display.ShowSaved(slot, h)
	c.holdUntil = now.Add(c.params.DisplayHold)
	c.lastShownValid = false
}

func (c *Controller) enterPlayback(now time.Time, ev input.Event) {
	dir, ok := ev.Button.Direction()
	if !ok {
		return
	}
	programmed, recorded := c.settings.Program.Duration(dir)
	if !recorded {
		if c.mode == desk.ModeManualJog {
			c.motor.Stop()
		}
		c.mode = desk.ModeIdle
		c.fail(now, desk.ErrCodeNoProgram)
		return
	}
	// The gesture hold already moved the desk for ev.Held (the hold is
	// an ordinary jog until activation), so only the remainder of the
	// programmed duration is replayed.
	deadline := programmed - ev.Held
	if deadline < 0 {
		deadline = 0
	}
	if deadline == 0 {
		if c.mode == desk.ModeManualJog {
			c.motor.Stop()
		}
		c.mode = desk.ModeIdle
		return
	}
	c.mode = desk.ModePlayback
	c.playDir = dir
	c.playDeadline = deadline
	c.playStart = now
	c.drive(dir)
}

func (c *Controller) tickPlayback(now time.Time) {
	if now.Sub(c.playStart) >= c.playDeadline {
		c.motor.Stop()
		c.mode = desk.ModeIdle
		return
	}
	c.drive(c.playDir)
}

func (c *Controller) tickRecord(now time.Time, in Inputs, view tickView) {
	if !c.recActive {
		for _, b := range view.presses {
			if dir, ok := b.Direction(); ok {
				c.recActive = true
				c.recDir = dir
				c.recStart = now
				c.drive(dir)
				return
			}
		}
		return
	}
	if !in.Buttons.Get(c.recDir.Button()) {
		dur := now.Sub(c.recStart)
		c.motor.Stop()
		c.settings.Program = c.settings.Program.WithRecording(c.recDir, dur)
		c.persist()
		c.recActive = false
		c.mode = desk.ModeIdle
		return
	}
	c.drive(c.recDir)
}

// monitor forwards changed readings to the display: heights as numbers,
// the fault sentinel as the sensor error code. Banners hold the display
// for a while first.
func (c *Controller) monitor(now time.Time, h desk.Height) {
	if now.Before(c.holdUntil) {
		return
	}
	if c.lastShownValid && h == c.lastShown {
		return
	}
	c.lastShown = h
	c.lastShownValid = true
	if h.Fault() {
		c.lastErr = desk.ErrCodeSensor
		c.lastErrAt = now
		c.lastErrSet = true
		c.display.ShowError(desk.ErrCodeSensor)
		return
	}
	c.display.ShowHeight(h)
}

func (c *Controller) fail(now time.Time, code desk.ErrCode) {
	c.lastErr = code
	c.lastErrAt = now
	c.lastErrSet = true
	c.display.ShowError(code)
	c.holdUntil = now.Add(c.params.DisplayHold)
	c.lastShownValid = false
}

func (c *Controller) drive(dir desk.Direction) {
	if dir == desk.Raise {
		c.motor.Raise()
		return
	}
	c.motor.Lower()
}

func (c *Controller) persist() {
	// Save failures surface through the Saver implementation (the
	// daemon wraps it with logging); the resident copy stays the
	// source of truth either way.
	_ = c.saver.Save(c.settings)
}
