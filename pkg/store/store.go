// Package store persists the desk settings. Two implementations share
// one layout-agnostic interface: a JSON file for the daemon and a fixed
// binary block for the firmware's flash page.
package store

import "github.com/DerRheingold/deskd/pkg/desk"

// Store reads and writes the persisted settings record.
type Store interface {
	// Load reads the persisted settings. A missing or blank store is
	// not an error; it loads as the zero value.
	Load() (desk.Settings, error)
	Save(desk.Settings) error
	// Wipe clears the store so the next Load returns the zero value.
	Wipe() error
}

// sanitize discards a stored calibration that violates the
// sit-below-stand ordering, treating a corrupt record like a blank one.
// The program durations are kept; they carry no cross-field invariant.
func sanitize(s desk.Settings) desk.Settings {
	if !s.Calibration.Valid() {
		s.Calibration = desk.Calibration{}
	}
	return s
}
