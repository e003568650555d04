// Package desk defines the shared vocabulary of the desk controller:
// heights, directions, buttons, operating modes, error codes, and the
// narrow interfaces the control core drives its collaborators through.
package desk

import (
	"fmt"
)

// Height is a desk height in centimeters. The zero value doubles as the
// sensor fault sentinel: a reading of 0 means "the sensor could not
// produce a measurement", never "desk at ground level". Saved setpoints
// use 0 to mean "not calibrated yet".
type Height int

// HeightFault is the reading a distance sensor returns when it fails.
const HeightFault Height = 0

// Fault reports whether h is the sensor fault sentinel.
func (h Height) Fault() bool { return h == HeightFault }

// Set reports whether a stored setpoint holds a real height.
func (h Height) Set() bool { return h != 0 }

func (h Height) String() string {
	if h == HeightFault {
		return "--"
	}
	return fmt.Sprintf("%dcm", int(h))
}

// Direction is the travel direction of the desk surface.
type Direction uint8

const (
	Raise Direction = iota
	Lower
)

func (d Direction) String() string {
	switch d {
	case Raise:
		return "raise"
	case Lower:
		return "lower"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// Opposite returns the reversed direction.
func (d Direction) Opposite() Direction {
	if d == Raise {
		return Lower
	}
	return Raise
}

// ParseDirection parses "raise"/"up" or "lower"/"down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "raise", "up":
		return Raise, nil
	case "lower", "down":
		return Lower, nil
	}
	return 0, fmt.Errorf("unknown direction %q (want raise or lower)", s)
}

// Command is a transient motion command issued to the drivetrain on a
// control tick. The drivetrain is memoryless: repeating a command is a
// no-op, so the core may re-issue the active command every tick.
type Command uint8

const (
	CommandStop Command = iota
	CommandRaise
	CommandLower
)

func (c Command) String() string {
	switch c {
	case CommandStop:
		return "stop"
	case CommandRaise:
		return "raise"
	case CommandLower:
		return "lower"
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// Command maps a direction to its motion command.
func (d Direction) Command() Command {
	if d == Raise {
		return CommandRaise
	}
	return CommandLower
}

// Slot identifies one of the two persisted height setpoints.
type Slot uint8

const (
	SlotSit Slot = iota
	SlotStand
)

func (s Slot) String() string {
	switch s {
	case SlotSit:
		return "sit"
	case SlotStand:
		return "stand"
	}
	return fmt.Sprintf("slot(%d)", uint8(s))
}

// ParseSlot parses "sit" or "stand".
func ParseSlot(s string) (Slot, error) {
	switch s {
	case "sit":
		return SlotSit, nil
	case "stand":
		return SlotStand, nil
	}
	return 0, fmt.Errorf("unknown preset %q (want sit or stand)", s)
}

// Button identifies one of the four physical input buttons.
type Button uint8

const (
	ButtonUp Button = iota
	ButtonDown
	ButtonSit
	ButtonStand

	ButtonCount = 4
)

func (b Button) String() string {
	switch b {
	case ButtonUp:
		return "up"
	case ButtonDown:
		return "down"
	case ButtonSit:
		return "sit"
	case ButtonStand:
		return "stand"
	}
	return fmt.Sprintf("button(%d)", uint8(b))
}

// ParseButton parses a button name.
func ParseButton(s string) (Button, error) {
	switch s {
	case "up":
		return ButtonUp, nil
	case "down":
		return ButtonDown, nil
	case "sit":
		return ButtonSit, nil
	case "stand":
		return ButtonStand, nil
	}
	return 0, fmt.Errorf("unknown button %q (want up, down, sit or stand)", s)
}

// Direction returns the travel direction a jog button commands, and
// whether b is a jog button at all.
func (b Button) Direction() (Direction, bool) {
	switch b {
	case ButtonUp:
		return Raise, true
	case ButtonDown:
		return Lower, true
	}
	return 0, false
}

// Slot returns the setpoint a preset button addresses, and whether b is
// a preset button.
func (b Button) Slot() (Slot, bool) {
	switch b {
	case ButtonSit:
		return SlotSit, true
	case ButtonStand:
		return SlotStand, true
	}
	return 0, false
}

// Button returns the jog button that commands direction d.
func (d Direction) Button() Button {
	if d == Raise {
		return ButtonUp
	}
	return ButtonDown
}

// Button returns the preset button that addresses slot s.
func (s Slot) Button() Button {
	if s == SlotSit {
		return ButtonSit
	}
	return ButtonStand
}

// Buttons is one tick's debounced level snapshot of all four buttons.
// Levels are active-high: true means pressed.
type Buttons struct {
	Up    bool
	Down  bool
	Sit   bool
	Stand bool
}

// Get returns the level of a single button.
func (b Buttons) Get(btn Button) bool {
	switch btn {
	case ButtonUp:
		return b.Up
	case ButtonDown:
		return b.Down
	case ButtonSit:
		return b.Sit
	case ButtonStand:
		return b.Stand
	}
	return false
}

// Set returns a copy with one button forced to the given level.
func (b Buttons) Set(btn Button, level bool) Buttons {
	switch btn {
	case ButtonUp:
		b.Up = level
	case ButtonDown:
		b.Down = level
	case ButtonSit:
		b.Sit = level
	case ButtonStand:
		b.Stand = level
	}
	return b
}

// Or merges two snapshots, typically physical levels with virtual
// (remotely injected) presses.
func (b Buttons) Or(o Buttons) Buttons {
	return Buttons{
		Up:    b.Up || o.Up,
		Down:  b.Down || o.Down,
		Sit:   b.Sit || o.Sit,
		Stand: b.Stand || o.Stand,
	}
}

// Any reports whether any button is held.
func (b Buttons) Any() bool { return b.Up || b.Down || b.Sit || b.Stand }

// Mode is the operating mode of the control core.
type Mode uint8

const (
	// ModeIdle is the default mode: motors stopped, inputs watched.
	ModeIdle Mode = iota
	// ModeManualJog drives the desk while an up/down button is held.
	ModeManualJog
	// ModeSeek drives toward a saved setpoint under sensor feedback.
	ModeSeek
	// ModePlayback drives one direction for a pre-recorded duration.
	ModePlayback
	// ModeRecord captures a drive duration for later playback.
	ModeRecord
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeManualJog:
		return "manual-jog"
	case ModeSeek:
		return "seek"
	case ModePlayback:
		return "playback"
	case ModeRecord:
		return "record"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// MarshalJSON encodes the mode as its string name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either the string name or the numeric code.
func (m *Mode) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	switch s {
	case "idle", "0":
		*m = ModeIdle
	case "manual-jog", "1":
		*m = ModeManualJog
	case "seek", "2":
		*m = ModeSeek
	case "playback", "3":
		*m = ModePlayback
	case "record", "4":
		*m = ModeRecord
	default:
		return fmt.Errorf("unknown mode %q", s)
	}
	return nil
}

// ErrCode is a displayed error code, shown as E0..E4 on the board's
// 7-segment display.
type ErrCode uint8

const (
	// ErrCodeSitOrder: a sit setpoint save would put it at or above the
	// stand setpoint.
	ErrCodeSitOrder ErrCode = 0
	// ErrCodeStandOrder: a stand setpoint save would put it at or below
	// the sit setpoint.
	ErrCodeStandOrder ErrCode = 1
	// ErrCodeSensor: the distance sensor returned the fault sentinel.
	ErrCodeSensor ErrCode = 2
	// ErrCodeNoProgram: playback requested for a direction that has no
	// recorded duration.
	ErrCodeNoProgram ErrCode = 3
	// ErrCodeNoPreset: seek requested for a slot that has no saved
	// height.
	ErrCodeNoPreset ErrCode = 4
)

func (e ErrCode) String() string {
	switch e {
	case ErrCodeSitOrder:
		return "sit setpoint must stay below stand setpoint"
	case ErrCodeStandOrder:
		return "stand setpoint must stay above sit setpoint"
	case ErrCodeSensor:
		return "distance sensor fault"
	case ErrCodeNoProgram:
		return "no recorded program for this direction"
	case ErrCodeNoPreset:
		return "preset has no saved height"
	}
	return fmt.Sprintf("error code %d", uint8(e))
}
