package client

import (
	"encoding/json"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/DerRheingold/deskd/pkg/config"
	"github.com/DerRheingold/deskd/pkg/desk"
)

// Settings mirrors the daemon's /settings response.
type Settings struct {
	Presets desk.PresetStatus  `json:"presets"`
	Program desk.ProgramStatus `json:"program"`
}

// ScheduleStatus is one entry of the daemon's /schedules response.
type ScheduleStatus struct {
	Name    string    `json:"name"`
	Cron    string    `json:"cron"`
	Action  string    `json:"action"`
	NextRun time.Time `json:"nextRun"`
}

type drivePayload struct {
	Direction string `json:"direction"`
	Ms        int64  `json:"ms"`
}

type playPayload struct {
	Direction string `json:"direction"`
}

type pressPayload struct {
	Button string `json:"button"`
	Ms     int64  `json:"ms"`
}

type faultPayload struct {
	Fault bool `json:"fault"`
}

type heightPayload struct {
	HeightCm float64 `json:"heightCm"`
}

func (c *Client) GetStatus() (*desk.Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get desk status")
	}

	var st desk.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal desk status")
	}

	return &st, nil
}

func (c *Client) GetSettings() (*Settings, error) {
	ret, err := c.Get("/settings")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get desk settings")
	}

	var s Settings
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal desk settings")
	}

	return &s, nil
}

// Seek starts a move to a saved preset.
func (c *Client) Seek(slot desk.Slot) (string, error) {
	return c.Put("/preset/"+slot.String(), "")
}

// SavePreset stores the current height into a preset slot.
func (c *Client) SavePreset(slot desk.Slot) (string, error) {
	return c.Post("/preset/"+slot.String()+"/save", "")
}

// Jog nudges the desk in one direction for the given duration.
func (c *Client) Jog(dir desk.Direction, d time.Duration) (string, error) {
	payload, err := json.Marshal(drivePayload{Direction: dir.String(), Ms: d.Milliseconds()})
	if err != nil {
		return "", err
	}
	return c.Post("/jog", string(payload))
}

// Stop cancels whatever the desk is doing.
func (c *Client) Stop() (string, error) {
	return c.Post("/stop", "")
}

// Play replays the recorded timed program for a direction.
func (c *Client) Play(dir desk.Direction) (string, error) {
	payload, err := json.Marshal(playPayload{Direction: dir.String()})
	if err != nil {
		return "", err
	}
	return c.Post("/play", string(payload))
}

// Record captures a timed program by driving dir for the given
// duration.
func (c *Client) Record(dir desk.Direction, d time.Duration) (string, error) {
	payload, err := json.Marshal(drivePayload{Direction: dir.String(), Ms: d.Milliseconds()})
	if err != nil {
		return "", err
	}
	return c.Post("/record", string(payload))
}

// Press holds a single panel button for the given duration.
func (c *Client) Press(btn desk.Button, d time.Duration) (string, error) {
	payload, err := json.Marshal(pressPayload{Button: btn.String(), Ms: d.Milliseconds()})
	if err != nil {
		return "", err
	}
	return c.Post("/button", string(payload))
}

// WipeStorage clears presets and programs from persistent storage.
func (c *Client) WipeStorage() (string, error) {
	return c.Delete("/storage")
}

func (c *Client) GetSchedules() ([]ScheduleStatus, error) {
	ret, err := c.Get("/schedules")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get schedules")
	}

	var entries []ScheduleStatus
	if err := json.Unmarshal([]byte(ret), &entries); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal schedules")
	}

	return entries, nil
}

// SetSchedules replaces all schedule entries on the daemon.
func (c *Client) SetSchedules(schedules []config.Schedule) (string, error) {
	payload, err := json.Marshal(schedules)
	if err != nil {
		return "", err
	}
	return c.Put("/schedules", string(payload))
}

// SkipSchedule skips the next run of a named schedule.
func (c *Client) SkipSchedule(name string) (string, error) {
	return c.Post("/schedules/"+name+"/skip", "")
}

// SetSimFault injects or clears a height sensor fault on the sim
// backend.
func (c *Client) SetSimFault(fault bool) (string, error) {
	payload, err := json.Marshal(faultPayload{Fault: fault})
	if err != nil {
		return "", err
	}
	return c.Post("/sim/fault", string(payload))
}

// SetSimHeight teleports the simulated frame to a height in
// centimeters. The sim clamps it to its travel limits.
func (c *Client) SetSimHeight(cm float64) (string, error) {
	payload, err := json.Marshal(heightPayload{HeightCm: cm})
	if err != nil {
		return "", err
	}
	return c.Post("/sim/height", string(payload))
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	// Remove "" around JSON string. I don't want to use a JSON decoder just for this.
	ret = ret[1 : len(ret)-1] // remove the surrounding quotes
	return ret, nil
}
