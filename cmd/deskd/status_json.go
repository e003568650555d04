package main

import (
	"encoding/json"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/DerRheingold/deskd/pkg/config"
	"github.com/DerRheingold/deskd/pkg/desk"
)

type statusJSON struct {
	Desk          statusDeskJSON       `json:"desk"`
	Presets       statusPresetsJSON    `json:"presets"`
	Program       statusProgramJSON    `json:"program"`
	Schedules     []statusScheduleJSON `json:"schedules"`
	Configuration statusConfigJSON     `json:"configuration"`
}

type statusDeskJSON struct {
	// HeightCm is omitted when the sensor is faulted.
	HeightCm    *int             `json:"heightCm"`
	SensorFault bool             `json:"sensorFault"`
	Mode        string           `json:"mode"`
	Moving      string           `json:"moving,omitempty"`
	Display     string           `json:"display,omitempty"`
	Linked      bool             `json:"linked"`
	Backend     string           `json:"backend"`
	LastError   *statusErrorJSON `json:"lastError,omitempty"`
	UpdatedAt   *time.Time       `json:"updatedAt,omitempty"`
}

type statusErrorJSON struct {
	Code    uint8     `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type statusPresetsJSON struct {
	// Heights are null when the preset has not been saved.
	SitHeightCm   *int `json:"sitHeightCm"`
	StandHeightCm *int `json:"standHeightCm"`
}

type statusProgramJSON struct {
	// Durations are null when no motion has been recorded.
	RaiseSeconds *float64 `json:"raiseSeconds"`
	LowerSeconds *float64 `json:"lowerSeconds"`
}

type statusScheduleJSON struct {
	Name    string    `json:"name"`
	Cron    string    `json:"cron"`
	Action  string    `json:"action"`
	NextRun time.Time `json:"nextRun"`
}

type statusConfigJSON struct {
	Backend            string `json:"backend"`
	SerialDevice       string `json:"serialDevice,omitempty"`
	SerialBaudRate     int    `json:"serialBaudRate,omitempty"`
	SettingsPath       string `json:"settingsPath"`
	AllowNonRootAccess bool   `json:"allowNonRootAccess"`
}

func heightPtr(h desk.Height) *int {
	if !h.Set() {
		return nil
	}
	v := int(h)
	return &v
}

func secondsPtr(recorded bool, ms int64) *float64 {
	if !recorded {
		return nil
	}
	v := math.Round(float64(ms)/1e3*10) / 10
	return &v
}

func printStatusJSON(cmd *cobra.Command, data *statusData, cfg *config.File) error {
	st := data.status

	var lastError *statusErrorJSON
	if st.LastError != nil {
		lastError = &statusErrorJSON{
			Code:    uint8(st.LastError.Code),
			Message: st.LastError.Message,
			At:      st.LastError.At,
		}
	}

	var updatedAt *time.Time
	if !st.UpdatedAt.IsZero() {
		updatedAt = &st.UpdatedAt
	}

	schedules := make([]statusScheduleJSON, 0, len(data.schedules))
	for _, s := range data.schedules {
		schedules = append(schedules, statusScheduleJSON{
			Name:    s.Name,
			Cron:    s.Cron,
			Action:  s.Action,
			NextRun: s.NextRun,
		})
	}

	out := statusJSON{
		Desk: statusDeskJSON{
			HeightCm:    heightPtr(st.Height),
			SensorFault: st.Height.Fault(),
			Mode:        st.Mode.String(),
			Moving:      st.Moving,
			Display:     st.Display,
			Linked:      st.Linked,
			Backend:     st.Backend,
			LastError:   lastError,
			UpdatedAt:   updatedAt,
		},
		Presets: statusPresetsJSON{
			SitHeightCm:   heightPtr(desk.Height(st.Presets.SitHeightCm)),
			StandHeightCm: heightPtr(desk.Height(st.Presets.StandHeightCm)),
		},
		Program: statusProgramJSON{
			RaiseSeconds: secondsPtr(st.Program.RaiseRecorded, st.Program.RaiseMs),
			LowerSeconds: secondsPtr(st.Program.LowerRecorded, st.Program.LowerMs),
		},
		Schedules: schedules,
		Configuration: statusConfigJSON{
			Backend:            cfg.Backend(),
			SettingsPath:       cfg.SettingsPath(),
			AllowNonRootAccess: cfg.AllowNonRootAccess(),
		},
	}

	if cfg.Backend() == config.BackendSerial {
		out.Configuration.SerialDevice = cfg.SerialDevice()
		out.Configuration.SerialBaudRate = cfg.SerialBaudRate()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
