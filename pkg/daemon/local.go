package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DerRheingold/deskd/pkg/control"
	"github.com/DerRheingold/deskd/pkg/debounce"
	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/events"
	"github.com/DerRheingold/deskd/pkg/input"
	"github.com/DerRheingold/deskd/pkg/rig"
	"github.com/DerRheingold/deskd/pkg/store"
)

// LocalParams configures the in-process backend.
type LocalParams struct {
	Sim     rig.SimParams
	Control control.Params
	Store   store.Store
	Hub     *events.EventHub
}

// Local runs the control core in-process against the simulated frame.
// It is the same loop the firmware runs, with virtual button levels in
// place of GPIO reads and the event hub in place of the 7-segment
// display.
type Local struct {
	sim  *rig.Sim
	ctrl *control.Controller
	hub  *events.EventHub
	st   store.Store

	inputs     [desk.ButtonCount]*debounce.Input
	classifier *input.Classifier
	display    *displayBridge

	mu       sync.Mutex
	virtual  desk.Buttons
	status   desk.Status
	settings desk.Settings
	lastTick time.Time
	started  bool

	lastLog   localLogStatus
	lastLogAt time.Time

	wipeCh chan chan error
	stopCh chan struct{}
	doneCh chan struct{}
}

var _ Desk = &Local{}

// NewLocal builds the backend without starting its loop. An unreadable
// settings store is logged and treated as blank, like the firmware
// treats unreadable flash.
func NewLocal(params LocalParams) *Local {
	settings, err := params.Store.Load()
	if err != nil {
		logrus.WithError(err).Warn("settings store unreadable, starting with blank records")
		settings = desk.Settings{}
	}

	l := &Local{
		sim:    rig.NewSim(params.Sim),
		hub:    params.Hub,
		st:     params.Store,
		wipeCh: make(chan chan error),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	l.display = &displayBridge{hub: params.Hub}
	l.ctrl = control.New(params.Control, &loggingSaver{st: params.Store}, l.sim, l.display, settings)

	deb := debounce.New(0)
	for i := range l.inputs {
		b := desk.Button(i)
		l.inputs[i] = debounce.NewInput(deb, func() bool { return l.virtualLevel(b) })
	}
	l.classifier = input.New(input.Options{})

	l.refresh(time.Now())
	return l
}

// Sim exposes the simulated frame for fault injection.
func (l *Local) Sim() *rig.Sim { return l.sim }

// Start launches the control loop.
func (l *Local) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()
	go l.run()
}

func (l *Local) run() {
	defer close(l.doneCh)

	ticker := time.NewTicker(control.DefaultTick)
	defer ticker.Stop()

	logrus.Debug("control loop starts")
	for {
		select {
		case <-l.stopCh:
			return
		case resp := <-l.wipeCh:
			resp <- l.wipe()
		case now := <-ticker.C:
			l.step(now)
		}
	}
}

// step advances the rig and the control core by one tick. It is called
// from the loop goroutine only (tests call it directly instead of
// starting the loop).
func (l *Local) step(now time.Time) {
	l.mu.Lock()
	last := l.lastTick
	l.lastTick = now
	l.mu.Unlock()

	if !last.IsZero() && now.After(last) {
		l.sim.Advance(now.Sub(last))
	}

	var levels desk.Buttons
	for i := range l.inputs {
		levels = levels.Set(desk.Button(i), l.inputs[i].Read())
	}
	evs := l.classifier.Update(now, levels)

	modeBefore := l.ctrl.Mode()
	progBefore := l.ctrl.Settings().Program

	l.ctrl.Tick(now, control.Inputs{Buttons: levels, Height: l.sim.ReadHeight()}, evs)

	if mode := l.ctrl.Mode(); mode != modeBefore {
		logrus.WithFields(logrus.Fields{"from": modeBefore.String(), "to": mode.String()}).Debug("mode changed")
		l.hub.Publish(events.ModeChanged, events.ModeChangedEvent{
			From: modeBefore.String(),
			To:   mode.String(),
			Ts:   now.Unix(),
		})
	}
	l.publishRecordings(progBefore, l.ctrl.Settings().Program, now)

	l.refresh(now)
	l.logStatus()
}

func (l *Local) publishRecordings(before, after desk.Program, now time.Time) {
	if after.RaiseRecorded && (!before.RaiseRecorded || after.RaiseDuration != before.RaiseDuration) {
		logrus.WithField("ms", after.RaiseDuration.Milliseconds()).Info("raise program recorded")
		l.hub.Publish(events.ProgramRecorded, events.ProgramRecordedEvent{
			Direction: desk.Raise.String(),
			Ms:        after.RaiseDuration.Milliseconds(),
			Ts:        now.Unix(),
		})
	}
	if after.LowerRecorded && (!before.LowerRecorded || after.LowerDuration != before.LowerDuration) {
		logrus.WithField("ms", after.LowerDuration.Milliseconds()).Info("lower program recorded")
		l.hub.Publish(events.ProgramRecorded, events.ProgramRecordedEvent{
			Direction: desk.Lower.String(),
			Ms:        after.LowerDuration.Milliseconds(),
			Ts:        now.Unix(),
		})
	}
}

// refresh rebuilds the status snapshot served to clients.
func (l *Local) refresh(now time.Time) {
	settings := l.ctrl.Settings()

	st := desk.Status{
		Height:    l.sim.ReadHeight(),
		Mode:      l.ctrl.Mode(),
		Display:   l.display.Current(),
		Presets:   desk.PresetStatusOf(settings.Calibration),
		Program:   desk.ProgramStatusOf(settings.Program),
		Backend:   "sim",
		Linked:    true,
		UpdatedAt: now,
	}
	if dir, moving := l.ctrl.Moving(); moving {
		st.Moving = dir.String()
	}
	if lastErr, ok := l.ctrl.LastError(); ok {
		st.LastError = &lastErr
	}

	l.mu.Lock()
	l.status = st
	l.settings = settings
	l.mu.Unlock()
}

type localLogStatus struct {
	height desk.Height
	mode   desk.Mode
	moving string
}

// logStatus emits the loop status, throttled the same way the height
// display is: unchanged state logs at trace, changes at debug.
func (l *Local) logStatus() {
	l.mu.Lock()
	st := l.status
	cur := localLogStatus{height: st.Height, mode: st.Mode, moving: st.Moving}
	same := cur == l.lastLog && time.Since(l.lastLogAt) < 5*time.Second
	if !same {
		l.lastLog = cur
		l.lastLogAt = time.Now()
	}
	l.mu.Unlock()

	fields := logrus.Fields{
		"height": st.Height.String(),
		"mode":   st.Mode.String(),
		"moving": st.Moving,
	}
	if same {
		logrus.WithFields(fields).Trace("control loop status")
	} else {
		logrus.WithFields(fields).Debug("control loop status")
	}
}

func (l *Local) virtualLevel(b desk.Button) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.virtual.Get(b)
}

func (l *Local) Status() desk.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Local) Settings() desk.Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings
}

func (l *Local) SetButton(b desk.Button, pressed bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.virtual = l.virtual.Set(b, pressed)
	return nil
}

// WipeStorage clears the persisted settings. With the loop running the
// wipe is handed to the loop goroutine so the controller is never
// touched concurrently.
func (l *Local) WipeStorage() error {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()

	if !started {
		return l.wipe()
	}
	resp := make(chan error, 1)
	select {
	case l.wipeCh <- resp:
		return <-resp
	case <-l.stopCh:
		return fmt.Errorf("backend is shut down")
	}
}

func (l *Local) wipe() error {
	if err := l.st.Wipe(); err != nil {
		logrus.WithError(err).Error("failed to wipe settings storage")
		return err
	}
	l.ctrl.ReplaceSettings(desk.Settings{})
	l.refresh(time.Now())
	logrus.Info("settings storage wiped")
	return nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()

	select {
	case <-l.stopCh:
		return nil
	default:
		close(l.stopCh)
	}
	if started {
		<-l.doneCh
	}
	return nil
}

// displayBridge is the local backend's 7-segment display: it keeps the
// text a physical display would show and forwards updates to the event
// hub. The controller already throttles updates, so every call here is
// a real change.
type displayBridge struct {
	hub *events.EventHub

	mu   sync.Mutex
	text string
}

var _ desk.Display = &displayBridge{}

func (d *displayBridge) ShowHeight(h desk.Height) {
	d.set(fmt.Sprintf("%d", int(h)))
	logrus.WithField("height", h.String()).Debug("display height")
	d.hub.Publish(events.HeightChanged, events.HeightChangedEvent{
		HeightCm: int(h),
		Ts:       time.Now().Unix(),
	})
}

func (d *displayBridge) ShowError(code desk.ErrCode) {
	d.set(fmt.Sprintf("E%d", int(code)))
	logrus.WithFields(logrus.Fields{"code": int(code), "error": code.String()}).Warn("display error")
	d.hub.Publish(events.DeskError, events.DeskErrorEvent{
		Code:    int(code),
		Message: code.String(),
		Ts:      time.Now().Unix(),
	})
	if code == desk.ErrCodeSensor {
		d.hub.Publish(events.HeightChanged, events.HeightChangedEvent{
			HeightCm: 0,
			Fault:    true,
			Ts:       time.Now().Unix(),
		})
	}
}

func (d *displayBridge) ShowSaved(slot desk.Slot, h desk.Height) {
	d.set(fmt.Sprintf("S%d", int(h)))
	logrus.WithFields(logrus.Fields{"slot": slot.String(), "height": h.String()}).Info("preset saved")
	d.hub.Publish(events.PresetSaved, events.PresetSavedEvent{
		Slot:     slot.String(),
		HeightCm: int(h),
		Ts:       time.Now().Unix(),
	})
}

func (d *displayBridge) Clear() {
	d.set("")
}

func (d *displayBridge) set(text string) {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
}

// Current returns the text the display shows right now.
func (d *displayBridge) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// loggingSaver wraps the settings store with logging; the controller
// itself stays silent.
type loggingSaver struct {
	st store.Store
}

func (s *loggingSaver) Save(settings desk.Settings) error {
	if err := s.st.Save(settings); err != nil {
		logrus.WithError(err).Error("failed to persist settings")
		return err
	}
	logrus.WithFields(logrus.Fields{
		"sit":     settings.Calibration.SitHeight.String(),
		"stand":   settings.Calibration.StandHeight.String(),
		"raiseMs": settings.Program.RaiseDuration.Milliseconds(),
		"lowerMs": settings.Program.LowerDuration.Milliseconds(),
	}).Debug("settings persisted")
	return nil
}
