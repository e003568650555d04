package config

import "github.com/sirupsen/logrus"

// Desk backend selection.
const (
	BackendSim    = "sim"
	BackendSerial = "serial"
)

// Schedule is one recurring desk action: drive to a preset on a cron
// spec.
type Schedule struct {
	Name   string `json:"name"`
	Cron   string `json:"cron"`
	Action string `json:"action"` // "sit" or "stand"
}

type Config interface {
	AllowNonRootAccess() bool
	Backend() string
	SerialDevice() string
	SerialBaudRate() int
	SettingsPath() string
	Schedules() []Schedule

	SetAllowNonRootAccess(bool)
	SetBackend(string)
	SetSerialDevice(string)
	SetSchedules([]Schedule)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	// LogrusFields returns the loaded values as structured log fields.
	LogrusFields() logrus.Fields
}
