package events

import "encoding/json"

// Event name constants
const (
	HeightChanged   = "height.changed"
	ModeChanged     = "mode.changed"
	DeskError       = "desk.error"
	PresetSaved     = "preset.saved"
	ProgramRecorded = "program.recorded"
	ScheduleFired   = "schedule.fired"
)

// Event is a generic SSE event from the daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// HeightChangedEvent is the typed payload for height.changed. Fault is
// set when the reading is the sensor fault sentinel rather than a
// height.
type HeightChangedEvent struct {
	HeightCm int   `json:"heightCm"`
	Fault    bool  `json:"fault,omitempty"`
	Ts       int64 `json:"ts"`
}

// ModeChangedEvent is the typed payload for mode.changed.
type ModeChangedEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
	Ts   int64  `json:"ts"`
}

// DeskErrorEvent is the typed payload for desk.error. Code matches the
// number the desk display shows.
type DeskErrorEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

// PresetSavedEvent is the typed payload for preset.saved.
type PresetSavedEvent struct {
	Slot     string `json:"slot"`
	HeightCm int    `json:"heightCm"`
	Ts       int64  `json:"ts"`
}

// ProgramRecordedEvent is the typed payload for program.recorded.
type ProgramRecordedEvent struct {
	Direction string `json:"direction"`
	Ms        int64  `json:"ms"`
	Ts        int64  `json:"ts"`
}

// ScheduleFiredEvent is the typed payload for schedule.fired. Result is
// one of "done", "skipped", or "failed"; a schedule is skipped when the
// desk is busy with another motion.
type ScheduleFiredEvent struct {
	Name   string `json:"name"`
	Action string `json:"action"`
	Result string `json:"result"`
	Ts     int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.HeightChangedEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.HeightCm)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
