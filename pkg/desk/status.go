package desk

import "time"

// Status is the snapshot of desk state the daemon serves to clients.
type Status struct {
	// Height is the latest sensor reading; 0 means sensor fault.
	Height Height `json:"heightCm"`
	Mode   Mode   `json:"mode"`
	// Moving is "raise" or "lower" while the drivetrain is commanded,
	// empty otherwise.
	Moving string `json:"moving,omitempty"`
	// Display mirrors what the 7-segment display currently shows.
	Display   string        `json:"display,omitempty"`
	LastError *StatusError  `json:"lastError,omitempty"`
	Presets   PresetStatus  `json:"presets"`
	Program   ProgramStatus `json:"program"`
	Backend   string        `json:"backend,omitempty"`
	// Linked is false while the serial link to the controller board is
	// down; the rest of the snapshot is then the last known state.
	Linked    bool      `json:"linked"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// StatusError is the most recently displayed error.
type StatusError struct {
	Code    ErrCode   `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// PresetStatus is the wire form of Calibration. Zero means unset.
type PresetStatus struct {
	SitHeightCm   int `json:"sitHeightCm"`
	StandHeightCm int `json:"standHeightCm"`
}

// ProgramStatus is the wire form of Program, durations in milliseconds.
type ProgramStatus struct {
	RaiseMs       int64 `json:"raiseMs"`
	LowerMs       int64 `json:"lowerMs"`
	RaiseRecorded bool  `json:"raiseRecorded"`
	LowerRecorded bool  `json:"lowerRecorded"`
}

// PresetStatusOf converts a calibration record to its wire form.
func PresetStatusOf(c Calibration) PresetStatus {
	return PresetStatus{
		SitHeightCm:   int(c.SitHeight),
		StandHeightCm: int(c.StandHeight),
	}
}

// CalibrationOf converts the wire form back to a calibration record.
func CalibrationOf(p PresetStatus) Calibration {
	return Calibration{
		SitHeight:   Height(p.SitHeightCm),
		StandHeight: Height(p.StandHeightCm),
	}
}

// ProgramStatusOf converts a program to its wire form.
func ProgramStatusOf(p Program) ProgramStatus {
	return ProgramStatus{
		RaiseMs:       p.RaiseDuration.Milliseconds(),
		LowerMs:       p.LowerDuration.Milliseconds(),
		RaiseRecorded: p.RaiseRecorded,
		LowerRecorded: p.LowerRecorded,
	}
}

// ProgramOf converts the wire form back to a program.
func ProgramOf(s ProgramStatus) Program {
	return Program{
		RaiseDuration: time.Duration(s.RaiseMs) * time.Millisecond,
		LowerDuration: time.Duration(s.LowerMs) * time.Millisecond,
		RaiseRecorded: s.RaiseRecorded,
		LowerRecorded: s.LowerRecorded,
	}
}
