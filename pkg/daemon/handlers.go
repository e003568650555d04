package daemon

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/DerRheingold/deskd/pkg/config"
	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/version"
)

// maxHoldMs bounds the durations accepted over the API. Gestures are
// serialized, so an absurd hold would block every later command.
const maxHoldMs = 60000

type jogRequest struct {
	Direction string `json:"direction"`
	Ms        int64  `json:"ms"`
}

type playRequest struct {
	Direction string `json:"direction"`
}

type recordRequest struct {
	Direction string `json:"direction"`
	Ms        int64  `json:"ms"`
}

type pressRequest struct {
	Button string `json:"button"`
	Ms     int64  `json:"ms"`
}

type faultRequest struct {
	Fault bool `json:"fault"`
}

type heightRequest struct {
	HeightCm float64 `json:"heightCm"`
}

type settingsResponse struct {
	Presets desk.PresetStatus  `json:"presets"`
	Program desk.ProgramStatus `json:"program"`
}

func getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, activeDesk.Status())
}

func getSettings(c *gin.Context) {
	s := activeDesk.Settings()
	c.IndentedJSON(http.StatusOK, settingsResponse{
		Presets: desk.PresetStatusOf(s.Calibration),
		Program: desk.ProgramStatusOf(s.Program),
	})
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

// streamEvents serves the event hub as server-sent events until the
// client goes away or the daemon shuts down.
func streamEvents(c *gin.Context) {
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(ev.Name, string(ev.Data))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

// seekPreset starts a move to a saved preset. A press in any active
// mode cancels it and the release then selects the new target, so no
// explicit stop is needed first.
func seekPreset(c *gin.Context) {
	slot, err := desk.ParseSlot(c.Param("slot"))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	st := activeDesk.Status()
	if !st.Linked {
		err := fmt.Errorf("controller board link is down")
		c.IndentedJSON(http.StatusServiceUnavailable, err.Error())
		_ = c.AbortWithError(http.StatusServiceUnavailable, err)
		return
	}
	if !presetSet(st.Presets, slot) {
		err := fmt.Errorf("preset %s is not saved yet", slot)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if st.Height.Fault() {
		err := fmt.Errorf("height sensor fault, cannot seek")
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := deskSynth.Seek(slot); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("seeking to %s preset", slot)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("seeking to %s preset", slot))
}

// savePreset stores the current height into a preset slot, mirroring a
// long press of the preset button.
func savePreset(c *gin.Context) {
	slot, err := desk.ParseSlot(c.Param("slot"))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	st := activeDesk.Status()
	if !st.Linked {
		err := fmt.Errorf("controller board link is down")
		c.IndentedJSON(http.StatusServiceUnavailable, err.Error())
		_ = c.AbortWithError(http.StatusServiceUnavailable, err)
		return
	}
	if st.Height.Fault() {
		err := fmt.Errorf("height sensor fault, cannot save a preset")
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if code, bad := desk.CalibrationOf(st.Presets).SaveViolation(slot, st.Height); bad {
		err := fmt.Errorf("cannot save %s at %s: %s", slot, st.Height, code)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := deskSynth.SavePreset(slot); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("saved %s preset at %s", slot, st.Height)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("saved %s preset at %s", slot, st.Height))
}

// jog drives the desk in one direction for a bounded duration. The
// gesture runs in the background; gestures are serialized.
func jog(c *gin.Context) {
	var req jogRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	dir, err := desk.ParseDirection(req.Direction)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if req.Ms <= 0 || req.Ms > maxHoldMs {
		err := fmt.Errorf("jog ms must be between 1 and %d, got %d", maxHoldMs, req.Ms)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	d := time.Duration(req.Ms) * time.Millisecond
	go func() {
		if err := deskSynth.Jog(dir, d); err != nil {
			logrus.Errorf("jog %s for %s failed: %v", dir, d, err)
		}
	}()

	c.IndentedJSON(http.StatusAccepted, fmt.Sprintf("jogging %s for %d ms", dir, req.Ms))
}

// stopMotion cancels whatever the desk is doing.
func stopMotion(c *gin.Context) {
	if err := deskSynth.Stop(); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, "stopped")
}

// play replays the recorded program for a direction, as the
// click-click-click-hold gesture.
func play(c *gin.Context) {
	var req playRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	dir, err := desk.ParseDirection(req.Direction)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	st := activeDesk.Status()
	recorded := st.Program.RaiseRecorded
	if dir == desk.Lower {
		recorded = st.Program.LowerRecorded
	}
	if !recorded {
		err := fmt.Errorf("no %s program recorded", dir)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	go func() {
		if err := deskSynth.Play(dir); err != nil {
			logrus.Errorf("playback %s failed: %v", dir, err)
		}
	}()

	c.IndentedJSON(http.StatusAccepted, fmt.Sprintf("playing %s program", dir))
}

// record captures a new program: the two-button chord enters record
// mode, then the direction is driven for the requested duration.
func record(c *gin.Context) {
	var req recordRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	dir, err := desk.ParseDirection(req.Direction)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if req.Ms <= 0 || req.Ms > maxHoldMs {
		err := fmt.Errorf("record ms must be between 1 and %d, got %d", maxHoldMs, req.Ms)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	d := time.Duration(req.Ms) * time.Millisecond
	go func() {
		if err := deskSynth.Record(dir, d); err != nil {
			logrus.Errorf("recording %s for %s failed: %v", dir, d, err)
		}
	}()

	c.IndentedJSON(http.StatusAccepted, fmt.Sprintf("recording %s program of %d ms", dir, req.Ms))
}

// pressButton exposes the raw input layer: hold one button for a
// duration and let the classifier make of it what it will.
func pressButton(c *gin.Context) {
	var req pressRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	btn, err := desk.ParseButton(req.Button)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if req.Ms <= 0 || req.Ms > maxHoldMs {
		err := fmt.Errorf("press ms must be between 1 and %d, got %d", maxHoldMs, req.Ms)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	d := time.Duration(req.Ms) * time.Millisecond
	go func() {
		if err := deskSynth.Press(btn, d); err != nil {
			logrus.Errorf("pressing %s for %s failed: %v", btn, d, err)
		}
	}()

	c.IndentedJSON(http.StatusAccepted, fmt.Sprintf("pressing %s for %d ms", btn, req.Ms))
}

func wipeStorage(c *gin.Context) {
	if err := activeDesk.WipeStorage(); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	logrus.Info("settings storage wiped over the api")
	c.IndentedJSON(http.StatusOK, "storage wiped")
}

func getSchedules(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, sched.Entries())
}

// setSchedules replaces all schedule entries and persists them.
func setSchedules(c *gin.Context) {
	var schedules []config.Schedule
	if err := c.BindJSON(&schedules); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := sched.SetEntries(schedules); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetSchedules(schedules)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("replaced schedules, %d entries", len(schedules))
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("%d schedules configured", len(schedules)))
}

func skipSchedule(c *gin.Context) {
	name := c.Param("name")
	skippedTo, err := sched.SkipNext(name)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "no schedule named") {
			status = http.StatusNotFound
		}
		c.IndentedJSON(status, err.Error())
		_ = c.AbortWithError(status, err)
		return
	}

	logrus.Infof("skipping next run of schedule %q", name)
	c.IndentedJSON(http.StatusOK, fmt.Sprintf("next run of %q moved to %s", name, skippedTo.Format(time.DateTime)))
}

// setSimFault injects or clears a height sensor fault on the simulated
// desk.
func setSimFault(c *gin.Context) {
	if simRig == nil {
		err := fmt.Errorf("fault injection requires the sim backend")
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	var req faultRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	simRig.SetFault(req.Fault)
	logrus.Infof("sim sensor fault set to %t", req.Fault)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("sim sensor fault set to %t", req.Fault))
}

// setSimHeight teleports the simulated frame, clamped to its travel
// limits.
func setSimHeight(c *gin.Context) {
	if simRig == nil {
		err := fmt.Errorf("height injection requires the sim backend")
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	var req heightRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if req.HeightCm <= 0 {
		err := fmt.Errorf("height cm must be positive, got %v", req.HeightCm)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	simRig.SetPosition(req.HeightCm)
	got := simRig.Position()
	logrus.Infof("sim height set to %.1f cm", got)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("sim height set to %.1f cm", got))
}
