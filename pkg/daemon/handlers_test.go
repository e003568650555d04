package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DerRheingold/deskd/pkg/config"
	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/events"
	"github.com/DerRheingold/deskd/pkg/rig"
)

// setupHandlerTest wires the package-level daemon state to fakes and
// returns the router. Handlers run against an instant-gesture
// synthesizer, so even long holds finish immediately.
func setupHandlerTest(t *testing.T) (*gin.Engine, *fakeDesk) {
	t.Helper()

	var err error
	conf, err = config.NewFile(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("failed to build test config: %v", err)
	}

	fake := &fakeDesk{clock: func() time.Duration { return 0 }, failOp: -1}
	fake.status = desk.Status{
		Height:  74,
		Mode:    desk.ModeIdle,
		Presets: desk.PresetStatus{SitHeightCm: 70, StandHeightCm: 110},
		Program: desk.ProgramStatus{RaiseMs: 9200, RaiseRecorded: true},
		Backend: "sim",
		Linked:  true,
	}

	activeDesk = fake
	deskSynth = NewSynth(fake)
	deskSynth.sleep = func(time.Duration) {}
	hub = events.NewEventHub()
	sched = NewScheduler(scheduleTask, schedulePreCheck, scheduleResult)
	simRig = nil

	return setupRoutes(), fake
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// waitForOps polls until the fake saw at least n button ops; async
// gestures run in the background even with an instant sleep.
func waitForOps(t *testing.T, fake *fakeDesk, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for fake.opCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("saw %d button ops, want at least %d", fake.opCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, _ := setupHandlerTest(t)

	w := doRequest(router, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", w.Code)
	}

	var st desk.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if st.Height != 74 || st.Mode != desk.ModeIdle || !st.Linked {
		t.Errorf("status = %+v, want height 74, idle, linked", st)
	}
}

func TestSettingsEndpoint(t *testing.T) {
	router, fake := setupHandlerTest(t)
	fake.settings = desk.Settings{
		Calibration: desk.Calibration{SitHeight: 70, StandHeight: 110},
		Program:     desk.Program{RaiseDuration: 9200 * time.Millisecond, RaiseRecorded: true},
	}

	w := doRequest(router, http.MethodGet, "/settings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /settings = %d, want 200", w.Code)
	}

	var resp settingsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode settings: %v", err)
	}
	if resp.Presets.SitHeightCm != 70 || resp.Presets.StandHeightCm != 110 {
		t.Errorf("presets = %+v", resp.Presets)
	}
	if !resp.Program.RaiseRecorded || resp.Program.RaiseMs != 9200 {
		t.Errorf("program = %+v", resp.Program)
	}
}

func TestSeekPreset(t *testing.T) {
	router, fake := setupHandlerTest(t)

	w := doRequest(router, http.MethodPut, "/preset/sit", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT /preset/sit = %d, want 201: %s", w.Code, w.Body.String())
	}

	ops := fake.opsFor(desk.ButtonSit)
	if len(ops) != 2 {
		t.Fatalf("expected a sit tap, got %d ops", len(ops))
	}
}

func TestSeekPresetRejectsUnknownSlot(t *testing.T) {
	router, _ := setupHandlerTest(t)

	w := doRequest(router, http.MethodPut, "/preset/kneel", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("PUT /preset/kneel = %d, want 400", w.Code)
	}
}

func TestSeekPresetRejectsUnsetSlot(t *testing.T) {
	router, fake := setupHandlerTest(t)
	fake.status.Presets = desk.PresetStatus{}

	w := doRequest(router, http.MethodPut, "/preset/sit", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("PUT /preset/sit with unset preset = %d, want 400", w.Code)
	}
	if fake.opCount() != 0 {
		t.Errorf("rejected seek still injected %d ops", fake.opCount())
	}
}

func TestSeekPresetRejectsSensorFault(t *testing.T) {
	router, fake := setupHandlerTest(t)
	fake.status.Height = desk.HeightFault

	w := doRequest(router, http.MethodPut, "/preset/sit", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("PUT /preset/sit during fault = %d, want 400", w.Code)
	}
}

func TestSeekPresetRejectsDownedLink(t *testing.T) {
	router, _ := setupHandlerTest(t)
	activeDesk.(*fakeDesk).status.Linked = false

	w := doRequest(router, http.MethodPut, "/preset/sit", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("PUT /preset/sit with link down = %d, want 503", w.Code)
	}
}

func TestSavePreset(t *testing.T) {
	router, fake := setupHandlerTest(t)

	w := doRequest(router, http.MethodPost, "/preset/sit/save", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /preset/sit/save = %d, want 201: %s", w.Code, w.Body.String())
	}

	ops := fake.opsFor(desk.ButtonSit)
	if len(ops) != 2 {
		t.Fatalf("expected a sit hold, got %d ops", len(ops))
	}
}

func TestSavePresetRejectsOrderViolation(t *testing.T) {
	router, fake := setupHandlerTest(t)
	// Current height at the stand setpoint; saving sit here would break
	// the ordering.
	fake.status.Height = 110

	w := doRequest(router, http.MethodPost, "/preset/sit/save", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /preset/sit/save at 110cm = %d, want 400", w.Code)
	}
	if fake.opCount() != 0 {
		t.Errorf("rejected save still injected %d ops", fake.opCount())
	}
}

func TestJogEndpoint(t *testing.T) {
	router, fake := setupHandlerTest(t)

	w := doRequest(router, http.MethodPost, "/jog", `{"direction":"raise","ms":1500}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST /jog = %d, want 202: %s", w.Code, w.Body.String())
	}

	waitForOps(t, fake, 2)
	ops := fake.opsFor(desk.ButtonUp)
	if len(ops) != 2 {
		t.Fatalf("expected an up hold, got %d ops", len(ops))
	}
}

func TestJogEndpointValidation(t *testing.T) {
	router, _ := setupHandlerTest(t)

	bad := []string{
		`{"direction":"sideways","ms":1000}`,
		`{"direction":"raise","ms":0}`,
		`{"direction":"raise","ms":90000}`,
		`not json`,
	}
	for _, body := range bad {
		if w := doRequest(router, http.MethodPost, "/jog", body); w.Code != http.StatusBadRequest {
			t.Errorf("POST /jog %s = %d, want 400", body, w.Code)
		}
	}
}

func TestStopEndpoint(t *testing.T) {
	router, fake := setupHandlerTest(t)

	w := doRequest(router, http.MethodPost, "/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("POST /stop = %d, want 200", w.Code)
	}
	if len(fake.opsFor(desk.ButtonUp)) != 2 {
		t.Fatalf("stop did not tap the up button")
	}
}

func TestPlayEndpoint(t *testing.T) {
	router, fake := setupHandlerTest(t)

	w := doRequest(router, http.MethodPost, "/play", `{"direction":"raise"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST /play = %d, want 202: %s", w.Code, w.Body.String())
	}

	// Three clicks plus the hold press, with releases.
	waitForOps(t, fake, 8)
}

func TestPlayEndpointRequiresRecording(t *testing.T) {
	router, fake := setupHandlerTest(t)

	w := doRequest(router, http.MethodPost, "/play", `{"direction":"lower"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /play without a lower program = %d, want 400", w.Code)
	}
	if fake.opCount() != 0 {
		t.Errorf("rejected play still injected %d ops", fake.opCount())
	}
}

func TestRecordEndpoint(t *testing.T) {
	router, fake := setupHandlerTest(t)

	w := doRequest(router, http.MethodPost, "/record", `{"direction":"lower","ms":8000}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST /record = %d, want 202: %s", w.Code, w.Body.String())
	}

	// Chord press/release pairs plus the drive pair.
	waitForOps(t, fake, 6)
	if len(fake.opsFor(desk.ButtonDown)) != 4 {
		t.Fatalf("expected chord and drive ops on down, got %d", len(fake.opsFor(desk.ButtonDown)))
	}
}

func TestPressEndpoint(t *testing.T) {
	router, fake := setupHandlerTest(t)

	w := doRequest(router, http.MethodPost, "/button", `{"button":"stand","ms":300}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST /button = %d, want 202: %s", w.Code, w.Body.String())
	}
	waitForOps(t, fake, 2)

	if w := doRequest(router, http.MethodPost, "/button", `{"button":"eject","ms":300}`); w.Code != http.StatusBadRequest {
		t.Errorf("POST /button with unknown button = %d, want 400", w.Code)
	}
}

func TestWipeStorageEndpoint(t *testing.T) {
	router, fake := setupHandlerTest(t)

	w := doRequest(router, http.MethodDelete, "/storage", "")
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE /storage = %d, want 200", w.Code)
	}
	if fake.wipeCount() != 1 {
		t.Fatalf("wipes = %d, want 1", fake.wipeCount())
	}
}

func TestScheduleEndpoints(t *testing.T) {
	router, _ := setupHandlerTest(t)

	body := `[{"name":"morning","cron":"0 9 * * 1-5","action":"stand"}]`
	w := doRequest(router, http.MethodPut, "/schedules", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT /schedules = %d, want 201: %s", w.Code, w.Body.String())
	}

	if got := conf.Schedules(); len(got) != 1 || got[0].Name != "morning" {
		t.Fatalf("config schedules = %+v, want persisted morning entry", got)
	}

	w = doRequest(router, http.MethodGet, "/schedules", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /schedules = %d, want 200", w.Code)
	}
	var entries []EntryStatus
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to decode schedules: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "morning" || entries[0].NextRun.IsZero() {
		t.Fatalf("entries = %+v", entries)
	}

	w = doRequest(router, http.MethodPost, "/schedules/morning/skip", "")
	if w.Code != http.StatusOK {
		t.Fatalf("POST skip = %d, want 200: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodPost, "/schedules/nope/skip", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("POST skip unknown = %d, want 404", w.Code)
	}

	w = doRequest(router, http.MethodPut, "/schedules", `[{"name":"bad","cron":"never","action":"sit"}]`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("PUT /schedules with bad cron = %d, want 400", w.Code)
	}
}

func TestSimFaultRequiresSimBackend(t *testing.T) {
	router, _ := setupHandlerTest(t)

	w := doRequest(router, http.MethodPost, "/sim/fault", `{"fault":true}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /sim/fault without sim = %d, want 400", w.Code)
	}
}

func TestSimHeightRequiresSimBackend(t *testing.T) {
	router, _ := setupHandlerTest(t)

	w := doRequest(router, http.MethodPost, "/sim/height", `{"heightCm":85}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /sim/height without sim = %d, want 400", w.Code)
	}
}

func TestSimHeightTeleportsFrame(t *testing.T) {
	router, _ := setupHandlerTest(t)
	simRig = rig.NewSim(rig.SimParams{})

	w := doRequest(router, http.MethodPost, "/sim/height", `{"heightCm":85}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /sim/height = %d, want 201, body %s", w.Code, w.Body.String())
	}
	if got := simRig.Position(); got != 85 {
		t.Errorf("sim position = %v, want 85", got)
	}

	// Out-of-range heights land on the travel limit instead.
	w = doRequest(router, http.MethodPost, "/sim/height", `{"heightCm":500}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /sim/height (clamped) = %d, want 201", w.Code)
	}
	if got := simRig.Position(); got != rig.DefaultMaxHeight {
		t.Errorf("sim position = %v, want clamp to %v", got, rig.DefaultMaxHeight)
	}
}

func TestSimHeightRejectsNonPositive(t *testing.T) {
	router, _ := setupHandlerTest(t)
	simRig = rig.NewSim(rig.SimParams{})

	w := doRequest(router, http.MethodPost, "/sim/height", `{"heightCm":-3}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /sim/height -3 = %d, want 400", w.Code)
	}
}

func TestVersionEndpoint(t *testing.T) {
	router, _ := setupHandlerTest(t)

	w := doRequest(router, http.MethodGet, "/version", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /version = %d, want 200", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatal("version response is empty")
	}
}

func TestEventsStream(t *testing.T) {
	router, _ := setupHandlerTest(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	// Give the handler a moment to subscribe, then publish and hang up.
	time.Sleep(50 * time.Millisecond)
	hub.Publish(events.HeightChanged, events.HeightChangedEvent{HeightCm: 75, Ts: 1})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event stream handler did not shut down on disconnect")
	}

	body := w.Body.String()
	if !strings.Contains(body, "height.changed") {
		t.Fatalf("stream output %q lacks the published event", body)
	}
	if !strings.Contains(body, "75") {
		t.Fatalf("stream output %q lacks the payload", body)
	}
}
