package daemon

import (
	"errors"
	"testing"
	"time"

	"github.com/DerRheingold/deskd/pkg/control"
	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/events"
)

// memStore is an in-memory settings store.
type memStore struct {
	settings desk.Settings
	loadErr  error
	saves    int
	wipes    int
}

func (m *memStore) Load() (desk.Settings, error) {
	if m.loadErr != nil {
		return desk.Settings{}, m.loadErr
	}
	return m.settings, nil
}

func (m *memStore) Save(s desk.Settings) error {
	m.settings = s
	m.saves++
	return nil
}

func (m *memStore) Wipe() error {
	m.settings = desk.Settings{}
	m.wipes++
	return nil
}

type localHarness struct {
	t   *testing.T
	l   *Local
	st  *memStore
	hub *events.EventHub
	sub chan events.Event
	now time.Time
}

// newLocalHarness builds a Local without starting its loop; tests drive
// step directly with a deterministic clock.
func newLocalHarness(t *testing.T, settings desk.Settings) *localHarness {
	t.Helper()
	h := &localHarness{
		t:   t,
		st:  &memStore{settings: settings},
		hub: events.NewEventHub(),
		now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	h.l = NewLocal(LocalParams{Store: h.st, Hub: h.hub})
	h.sub = h.hub.Subscribe()
	return h
}

func (h *localHarness) step() {
	h.now = h.now.Add(control.DefaultTick)
	h.l.step(h.now)
}

func (h *localHarness) stepN(n int) {
	for i := 0; i < n; i++ {
		h.step()
	}
}

func (h *localHarness) press(b desk.Button) {
	if err := h.l.SetButton(b, true); err != nil {
		h.t.Fatalf("SetButton(%s, true) returned error: %v", b, err)
	}
}

func (h *localHarness) release(b desk.Button) {
	if err := h.l.SetButton(b, false); err != nil {
		h.t.Fatalf("SetButton(%s, false) returned error: %v", b, err)
	}
}

// drain returns all events published so far.
func (h *localHarness) drain() []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-h.sub:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func modeTransitions(evs []events.Event) []string {
	var out []string
	for _, ev := range evs {
		if ev.Name != events.ModeChanged {
			continue
		}
		payload, err := events.DecodeAs[events.ModeChangedEvent](ev)
		if err != nil {
			continue
		}
		out = append(out, payload.From+">"+payload.To)
	}
	return out
}

func calibratedSettings() desk.Settings {
	return desk.Settings{
		Calibration: desk.Calibration{SitHeight: 70, StandHeight: 110},
	}
}

func TestLocalJogRaisesAndStops(t *testing.T) {
	h := newLocalHarness(t, desk.Settings{})
	start := h.l.Status().Height

	h.press(desk.ButtonUp)
	h.stepN(10)

	st := h.l.Status()
	if st.Mode != desk.ModeManualJog {
		t.Fatalf("mode = %s, want manual-jog", st.Mode)
	}
	if st.Moving != "raise" {
		t.Fatalf("moving = %q, want raise", st.Moving)
	}

	h.release(desk.ButtonUp)
	h.stepN(2)

	st = h.l.Status()
	if st.Mode != desk.ModeIdle {
		t.Fatalf("mode after release = %s, want idle", st.Mode)
	}
	if st.Moving != "" {
		t.Fatalf("moving after release = %q, want empty", st.Moving)
	}
	if st.Height <= start {
		t.Errorf("height %s did not rise from %s", st.Height, start)
	}

	transitions := modeTransitions(h.drain())
	want := []string{"idle>manual-jog", "manual-jog>idle"}
	if len(transitions) != len(want) {
		t.Fatalf("mode transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("mode transitions = %v, want %v", transitions, want)
		}
	}
}

func TestLocalSeekReachesPreset(t *testing.T) {
	h := newLocalHarness(t, calibratedSettings())

	h.press(desk.ButtonSit)
	h.step()
	h.release(desk.ButtonSit)
	h.step()

	if st := h.l.Status(); st.Mode != desk.ModeSeek {
		t.Fatalf("mode after tap = %s, want seek", st.Mode)
	}

	for i := 0; i < 100 && h.l.Status().Mode != desk.ModeIdle; i++ {
		h.step()
	}

	st := h.l.Status()
	if st.Mode != desk.ModeIdle {
		t.Fatalf("seek did not finish, mode = %s", st.Mode)
	}
	if st.Height != 70 {
		t.Errorf("height = %s, want 70cm", st.Height)
	}

	sawTarget := false
	for _, ev := range h.drain() {
		if ev.Name != events.HeightChanged {
			continue
		}
		payload, err := events.DecodeAs[events.HeightChangedEvent](ev)
		if err != nil {
			t.Fatalf("failed to decode height event: %v", err)
		}
		if payload.HeightCm == 70 {
			sawTarget = true
		}
	}
	if !sawTarget {
		t.Error("no height.changed event for the target height")
	}
}

func TestLocalRecordCapturesProgram(t *testing.T) {
	h := newLocalHarness(t, calibratedSettings())

	h.press(desk.ButtonUp)
	h.press(desk.ButtonDown)
	h.stepN(21)

	if st := h.l.Status(); st.Mode != desk.ModeRecord {
		t.Fatalf("mode after chord = %s, want record", st.Mode)
	}

	h.release(desk.ButtonUp)
	h.release(desk.ButtonDown)
	h.step()

	h.press(desk.ButtonUp)
	h.step()
	h.stepN(10)
	h.release(desk.ButtonUp)
	h.step()

	st := h.l.Status()
	if st.Mode != desk.ModeIdle {
		t.Fatalf("mode after capture = %s, want idle", st.Mode)
	}
	if !st.Program.RaiseRecorded {
		t.Fatal("raise program not recorded")
	}
	if st.Program.RaiseMs != 1100 {
		t.Errorf("captured %d ms, want 1100", st.Program.RaiseMs)
	}
	if h.st.saves == 0 {
		t.Error("capture did not persist settings")
	}

	var recorded *events.ProgramRecordedEvent
	for _, ev := range h.drain() {
		if ev.Name != events.ProgramRecorded {
			continue
		}
		payload, err := events.DecodeAs[events.ProgramRecordedEvent](ev)
		if err != nil {
			t.Fatalf("failed to decode program event: %v", err)
		}
		recorded = &payload
	}
	if recorded == nil {
		t.Fatal("no program.recorded event published")
	}
	if recorded.Direction != "raise" || recorded.Ms != 1100 {
		t.Errorf("program event = %+v, want raise/1100", recorded)
	}
}

func TestLocalSensorFaultPublishesError(t *testing.T) {
	h := newLocalHarness(t, calibratedSettings())
	h.stepN(2)
	h.drain()

	h.l.Sim().SetFault(true)
	h.stepN(2)

	st := h.l.Status()
	if st.Height != desk.HeightFault {
		t.Fatalf("height = %s, want fault sentinel", st.Height)
	}
	if st.LastError == nil || st.LastError.Code != desk.ErrCodeSensor {
		t.Fatalf("lastError = %+v, want sensor code", st.LastError)
	}

	var sawError, sawFaultHeight bool
	for _, ev := range h.drain() {
		switch ev.Name {
		case events.DeskError:
			payload, err := events.DecodeAs[events.DeskErrorEvent](ev)
			if err != nil {
				t.Fatalf("failed to decode error event: %v", err)
			}
			if payload.Code == int(desk.ErrCodeSensor) {
				sawError = true
			}
		case events.HeightChanged:
			payload, err := events.DecodeAs[events.HeightChangedEvent](ev)
			if err != nil {
				t.Fatalf("failed to decode height event: %v", err)
			}
			if payload.Fault {
				sawFaultHeight = true
			}
		}
	}
	if !sawError {
		t.Error("no desk.error event for the sensor fault")
	}
	if !sawFaultHeight {
		t.Error("no fault-flagged height.changed event")
	}
}

func TestLocalWipeStorage(t *testing.T) {
	h := newLocalHarness(t, calibratedSettings())
	h.stepN(2)

	if err := h.l.WipeStorage(); err != nil {
		t.Fatalf("WipeStorage returned error: %v", err)
	}
	if h.st.wipes != 1 {
		t.Fatalf("store wipes = %d, want 1", h.st.wipes)
	}

	s := h.l.Settings()
	if s.Calibration.SitHeight != 0 || s.Calibration.StandHeight != 0 {
		t.Errorf("settings after wipe = %+v, want blank", s.Calibration)
	}
	if st := h.l.Status(); st.Presets.SitHeightCm != 0 {
		t.Errorf("status presets after wipe = %+v, want blank", st.Presets)
	}
}

func TestLocalUnreadableStoreStartsBlank(t *testing.T) {
	st := &memStore{
		settings: calibratedSettings(),
		loadErr:  errors.New("corrupt"),
	}
	l := NewLocal(LocalParams{Store: st, Hub: events.NewEventHub()})

	s := l.Settings()
	if s.Calibration.SitHeight != 0 || s.Calibration.StandHeight != 0 {
		t.Errorf("settings = %+v, want blank on unreadable store", s.Calibration)
	}
}

func TestLocalDisplayMirrorsHeight(t *testing.T) {
	h := newLocalHarness(t, desk.Settings{})
	h.stepN(2)

	if d := h.l.Status().Display; d != "74" {
		t.Fatalf("display = %q, want 74", d)
	}

	h.l.Sim().SetFault(true)
	h.stepN(2)
	if d := h.l.Status().Display; d != "E2" {
		t.Fatalf("display during fault = %q, want E2", d)
	}
}
