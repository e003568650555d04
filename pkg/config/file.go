package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DerRheingold/deskd/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		AllowNonRootAccess: ptr.To(false),
		Backend:            ptr.To(BackendSim),
		SerialDevice:       ptr.To("/dev/ttyACM0"),
		SerialBaudRate:     ptr.To(115200),
		SettingsPath:       ptr.To("/var/lib/deskd/settings.json"),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	AllowNonRootAccess *bool       `json:"allowNonRootAccess,omitempty"`
	Backend            *string     `json:"backend,omitempty"`
	SerialDevice       *string     `json:"serialDevice,omitempty"`
	SerialBaudRate     *int        `json:"serialBaudRate,omitempty"`
	SettingsPath       *string     `json:"settingsPath,omitempty"`
	Schedules          *[]Schedule `json:"schedules,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
		Backend:            ptr.To(c.Backend()),
		SerialDevice:       ptr.To(c.SerialDevice()),
		SerialBaudRate:     ptr.To(c.SerialBaudRate()),
		SettingsPath:       ptr.To(c.SettingsPath()),
		Schedules:          ptr.To(c.Schedules()),
	}

	return rawConfig, nil
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var allowNonRootAccess bool

	if f.c.AllowNonRootAccess != nil {
		allowNonRootAccess = *f.c.AllowNonRootAccess
	} else {
		allowNonRootAccess = *defaultFileConfig.AllowNonRootAccess
	}

	return allowNonRootAccess
}

func (f *File) Backend() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var backend string

	if f.c.Backend != nil {
		backend = *f.c.Backend
	} else {
		backend = *defaultFileConfig.Backend
	}

	return backend
}

func (f *File) SerialDevice() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var device string

	if f.c.SerialDevice != nil {
		device = *f.c.SerialDevice
	} else {
		device = *defaultFileConfig.SerialDevice
	}

	return device
}

func (f *File) SerialBaudRate() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var baud int

	if f.c.SerialBaudRate != nil {
		baud = *f.c.SerialBaudRate
	} else {
		baud = *defaultFileConfig.SerialBaudRate
	}

	return baud
}

func (f *File) SettingsPath() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var path string

	if f.c.SettingsPath != nil {
		path = *f.c.SettingsPath
	} else {
		path = *defaultFileConfig.SettingsPath
	}

	return path
}

func (f *File) Schedules() []Schedule {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Schedules == nil {
		return nil
	}

	// Hand out a copy so callers cannot mutate the resident slice.
	out := make([]Schedule, len(*f.c.Schedules))
	copy(out, *f.c.Schedules)
	return out
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.c.AllowNonRootAccess = &b
}

func (f *File) SetBackend(backend string) {
	if f.c == nil {
		panic("config is nil")
	}

	if backend != BackendSim && backend != BackendSerial {
		panic("backend must be " + BackendSim + " or " + BackendSerial)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.c.Backend = &backend
}

func (f *File) SetSerialDevice(device string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.c.SerialDevice = &device
}

func (f *File) SetSchedules(schedules []Schedule) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	own := make([]Schedule, len(schedules))
	copy(own, schedules)
	f.c.Schedules = &own
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}
	configString := string(b)

	if strings.TrimSpace(configString) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"allowNonRootAccess": f.AllowNonRootAccess(),
		"backend":            f.Backend(),
		"serialDevice":       f.SerialDevice(),
		"serialBaudRate":     f.SerialBaudRate(),
		"settingsPath":       f.SettingsPath(),
		"schedules":          len(f.Schedules()),
	}
}
