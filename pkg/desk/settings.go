package desk

import "time"

// Calibration holds the two persisted height setpoints. A zero field is
// an unset slot. Whenever both are set, SitHeight < StandHeight holds;
// writes that would break the ordering are rejected before anything is
// mutated or persisted.
type Calibration struct {
	SitHeight   Height
	StandHeight Height
}

// Slot returns the setpoint stored in s.
func (c Calibration) Slot(s Slot) Height {
	if s == SlotSit {
		return c.SitHeight
	}
	return c.StandHeight
}

// WithSlot returns a copy with slot s replaced by h.
func (c Calibration) WithSlot(s Slot, h Height) Calibration {
	if s == SlotSit {
		c.SitHeight = h
	} else {
		c.StandHeight = h
	}
	return c
}

// SaveViolation checks whether storing h into slot s would break the
// sit-below-stand ordering against the other saved setpoint. An unset
// other slot never conflicts.
func (c Calibration) SaveViolation(s Slot, h Height) (ErrCode, bool) {
	switch s {
	case SlotSit:
		if c.StandHeight.Set() && h >= c.StandHeight {
			return ErrCodeSitOrder, true
		}
	case SlotStand:
		if c.SitHeight.Set() && h <= c.SitHeight {
			return ErrCodeStandOrder, true
		}
	}
	return 0, false
}

// Valid reports whether the record is internally consistent (ordering
// holds, or at least one slot is unset).
func (c Calibration) Valid() bool {
	if !c.SitHeight.Set() || !c.StandHeight.Set() {
		return true
	}
	return c.SitHeight < c.StandHeight
}

// Program holds the timed auto-drive durations. A duration is only
// meaningful while its recorded flag is true. Playback is purely
// time-based and drifts with supply voltage and load; that imprecision
// is inherent to the scheme, not something the controller corrects.
type Program struct {
	RaiseDuration time.Duration
	LowerDuration time.Duration
	RaiseRecorded bool
	LowerRecorded bool
}

// Duration returns the programmed duration for a direction and whether
// one has been recorded.
func (p Program) Duration(d Direction) (time.Duration, bool) {
	if d == Raise {
		return p.RaiseDuration, p.RaiseRecorded
	}
	return p.LowerDuration, p.LowerRecorded
}

// WithRecording returns a copy with the direction's duration replaced
// and its recorded flag set.
func (p Program) WithRecording(d Direction, dur time.Duration) Program {
	if d == Raise {
		p.RaiseDuration = dur
		p.RaiseRecorded = true
	} else {
		p.LowerDuration = dur
		p.LowerRecorded = true
	}
	return p
}

// Settings is everything the desk persists across power cycles.
type Settings struct {
	Calibration Calibration
	Program     Program
}
