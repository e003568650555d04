//go:build !tinygo

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/utils/ptr"
)

var _ Store = &File{}

// rawSettings is the on-disk JSON shape. Pointer fields tell an absent
// key apart from a zero value, so unset slots and unrecorded programs
// survive a round trip.
type rawSettings struct {
	SitHeightCm   *int   `json:"sitHeightCm,omitempty"`
	StandHeightCm *int   `json:"standHeightCm,omitempty"`
	RaiseMs       *int64 `json:"raiseMs,omitempty"`
	LowerMs       *int64 `json:"lowerMs,omitempty"`
}

func rawOf(s desk.Settings) *rawSettings {
	raw := &rawSettings{}
	if s.Calibration.SitHeight.Set() {
		raw.SitHeightCm = ptr.To(int(s.Calibration.SitHeight))
	}
	if s.Calibration.StandHeight.Set() {
		raw.StandHeightCm = ptr.To(int(s.Calibration.StandHeight))
	}
	if s.Program.RaiseRecorded {
		raw.RaiseMs = ptr.To(s.Program.RaiseDuration.Milliseconds())
	}
	if s.Program.LowerRecorded {
		raw.LowerMs = ptr.To(s.Program.LowerDuration.Milliseconds())
	}
	return raw
}

func (r *rawSettings) settings() desk.Settings {
	var s desk.Settings
	if r.SitHeightCm != nil && *r.SitHeightCm > 0 {
		s.Calibration.SitHeight = desk.Height(*r.SitHeightCm)
	}
	if r.StandHeightCm != nil && *r.StandHeightCm > 0 {
		s.Calibration.StandHeight = desk.Height(*r.StandHeightCm)
	}
	if r.RaiseMs != nil && *r.RaiseMs >= 0 {
		s.Program.RaiseDuration = time.Duration(*r.RaiseMs) * time.Millisecond
		s.Program.RaiseRecorded = true
	}
	if r.LowerMs != nil && *r.LowerMs >= 0 {
		s.Program.LowerDuration = time.Duration(*r.LowerMs) * time.Millisecond
		s.Program.LowerRecorded = true
	}
	return sanitize(s)
}

// File persists the settings as a small JSON document, the daemon's
// stand-in for the controller board's flash page.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load() (desk.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return desk.Settings{}, nil
		}
		return desk.Settings{}, pkgerrors.Wrapf(err, "failed to read settings file %s", f.path)
	}
	if strings.TrimSpace(string(b)) == "" {
		return desk.Settings{}, nil
	}

	raw := rawSettings{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return desk.Settings{}, pkgerrors.Wrapf(err, "failed to unmarshal settings from file %s", f.path)
	}
	return raw.settings(), nil
}

func (f *File) Save(s desk.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Write a sibling temp file and rename it into place, so a partial
	// write never reaches the real path.
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create temp settings file for %s", f.path)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rawOf(s)); err != nil {
		_ = tmp.Close()
		return pkgerrors.Wrapf(err, "failed to encode settings to file %s", tmp.Name())
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return pkgerrors.Wrapf(err, "failed to chmod settings file %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.Wrapf(err, "failed to close settings file %s", tmp.Name())
	}
	return pkgerrors.Wrapf(os.Rename(tmp.Name(), f.path), "failed to replace settings file %s", f.path)
}

func (f *File) Wipe() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return pkgerrors.Wrapf(err, "failed to remove settings file %s", f.path)
	}
	return nil
}
