package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DerRheingold/deskd/pkg/control"
	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/events"
	"github.com/DerRheingold/deskd/pkg/rig"
)

// BoardParams configures the serial-linked backend.
type BoardParams struct {
	Serial rig.SerialParams
	Hub    *events.EventHub
}

// Board serves a physical controller board over its serial link. The
// board runs the whole control loop itself; this backend only mirrors
// its telemetry and injects virtual button levels.
type Board struct {
	link   *rig.Serial
	hub    *events.EventHub
	device string

	mu       sync.Mutex
	status   desk.Status
	settings desk.Settings
	prev     rig.BoardState
	prevOK   bool
	lastErr  *desk.StatusError
	started  bool

	stopCh chan struct{}
	doneCh chan struct{}
}

var _ Desk = &Board{}

// NewBoard opens the serial link. Telemetry starts flowing immediately;
// Start launches the loop that mirrors it into status and events.
func NewBoard(params BoardParams) (*Board, error) {
	link, err := rig.OpenSerial(params.Serial)
	if err != nil {
		return nil, err
	}
	b := &Board{
		link:   link,
		hub:    params.Hub,
		device: params.Serial.Device,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	b.status = desk.Status{Backend: "serial"}
	return b, nil
}

// Start launches the telemetry mirror loop.
func (b *Board) Start() {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()
	go b.run()
}

func (b *Board) run() {
	defer close(b.doneCh)

	ticker := time.NewTicker(control.DefaultTick)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.poll()
		}
	}
}

// poll mirrors the latest board snapshot and publishes the diffs
// against the previous one.
func (b *Board) poll() {
	st, ok := b.link.State()

	b.mu.Lock()
	prev, prevOK := b.prev, b.prevOK
	wasLinked := b.status.Linked
	b.mu.Unlock()

	if ok && !wasLinked {
		logrus.WithField("device", b.device).Info("board link up")
	}
	if !ok && wasLinked {
		logrus.Warn("board link lost, serving last known state")
	}

	if ok {
		b.publishDiffs(prev, prevOK, st)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.prev = st
		b.prevOK = true
		b.settings = st.Settings
		b.status = b.statusOf(st, true)
	} else {
		b.status.Linked = false
	}
}

func (b *Board) publishDiffs(prev rig.BoardState, prevOK bool, st rig.BoardState) {
	now := time.Now().Unix()

	if !prevOK || st.Height != prev.Height {
		b.hub.Publish(events.HeightChanged, events.HeightChangedEvent{
			HeightCm: int(st.Height),
			Fault:    st.Height == desk.HeightFault,
			Ts:       now,
		})
	}
	if prevOK && st.Mode != prev.Mode {
		logrus.WithFields(logrus.Fields{"from": prev.Mode.String(), "to": st.Mode.String()}).Debug("board mode changed")
		b.hub.Publish(events.ModeChanged, events.ModeChangedEvent{
			From: prev.Mode.String(),
			To:   st.Mode.String(),
			Ts:   now,
		})
	}

	// The board reports the error code only while its display shows
	// it, so a rising edge here is one displayed error.
	if st.ErrSet && (!prevOK || !prev.ErrSet || st.ErrCode != prev.ErrCode) {
		logrus.WithFields(logrus.Fields{"code": int(st.ErrCode), "error": st.ErrCode.String()}).Warn("board reported error")
		b.hub.Publish(events.DeskError, events.DeskErrorEvent{
			Code:    int(st.ErrCode),
			Message: st.ErrCode.String(),
			Ts:      now,
		})
		b.mu.Lock()
		b.lastErr = &desk.StatusError{Code: st.ErrCode, Message: st.ErrCode.String(), At: time.Now()}
		b.mu.Unlock()
	}

	if prevOK {
		b.publishSettingsDiffs(prev.Settings, st.Settings, now)
	}
}

func (b *Board) publishSettingsDiffs(prev, cur desk.Settings, now int64) {
	if cur.Calibration.SitHeight != prev.Calibration.SitHeight && cur.Calibration.SitHeight != 0 {
		b.hub.Publish(events.PresetSaved, events.PresetSavedEvent{
			Slot:     desk.SlotSit.String(),
			HeightCm: int(cur.Calibration.SitHeight),
			Ts:       now,
		})
	}
	if cur.Calibration.StandHeight != prev.Calibration.StandHeight && cur.Calibration.StandHeight != 0 {
		b.hub.Publish(events.PresetSaved, events.PresetSavedEvent{
			Slot:     desk.SlotStand.String(),
			HeightCm: int(cur.Calibration.StandHeight),
			Ts:       now,
		})
	}
	if cur.Program.RaiseRecorded && (!prev.Program.RaiseRecorded || cur.Program.RaiseDuration != prev.Program.RaiseDuration) {
		b.hub.Publish(events.ProgramRecorded, events.ProgramRecordedEvent{
			Direction: desk.Raise.String(),
			Ms:        cur.Program.RaiseDuration.Milliseconds(),
			Ts:        now,
		})
	}
	if cur.Program.LowerRecorded && (!prev.Program.LowerRecorded || cur.Program.LowerDuration != prev.Program.LowerDuration) {
		b.hub.Publish(events.ProgramRecorded, events.ProgramRecordedEvent{
			Direction: desk.Lower.String(),
			Ms:        cur.Program.LowerDuration.Milliseconds(),
			Ts:        now,
		})
	}
}

// statusOf maps a telemetry snapshot to the served status. Callers hold
// b.mu.
func (b *Board) statusOf(st rig.BoardState, linked bool) desk.Status {
	out := desk.Status{
		Height:    st.Height,
		Mode:      st.Mode,
		Presets:   desk.PresetStatusOf(st.Settings.Calibration),
		Program:   desk.ProgramStatusOf(st.Settings.Program),
		Backend:   "serial",
		Linked:    linked,
		LastError: b.lastErr,
		UpdatedAt: st.At,
	}
	if st.Moving {
		out.Moving = st.MoveDir.String()
	}
	switch {
	case st.ErrSet:
		out.Display = fmt.Sprintf("E%d", int(st.ErrCode))
	case st.Height != desk.HeightFault:
		out.Display = fmt.Sprintf("%d", int(st.Height))
	}
	return out
}

func (b *Board) Status() desk.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Board) Settings() desk.Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings
}

func (b *Board) SetButton(btn desk.Button, pressed bool) error {
	return b.link.SetButton(btn, pressed)
}

// WipeStorage asks the board to clear its settings flash. The mirrored
// settings catch up with the next telemetry line.
func (b *Board) WipeStorage() error {
	return b.link.Wipe()
}

func (b *Board) Close() error {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()

	select {
	case <-b.stopCh:
	default:
		close(b.stopCh)
		if started {
			<-b.doneCh
		}
	}
	return b.link.Close()
}
