package daemon

import (
	"github.com/DerRheingold/deskd/pkg/desk"
)

// Desk is the daemon's view of a controllable desk, whichever side of
// the serial cable the control core runs on. The local backend runs
// the core in-process against a simulated frame; the board backend
// mirrors a controller board that runs the core itself.
//
// There are deliberately no "seek" or "save" methods here. Every
// external command is injected as virtual button levels and travels
// the same debounce and classification path as a finger on the
// paddle, so remote control can never reach a state a person cannot.
type Desk interface {
	// Status returns the current state snapshot.
	Status() desk.Status
	// Settings returns the resident calibration and program records.
	Settings() desk.Settings
	// SetButton sets the level of a virtual button.
	SetButton(b desk.Button, pressed bool) error
	// WipeStorage clears the persisted settings and resets the
	// resident records.
	WipeStorage() error
	// Close stops the backend and releases its resources.
	Close() error
}
