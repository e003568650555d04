package desk

// DistanceSensor measures the current desk height. A failed measurement
// returns HeightFault; there is no error value, the sentinel is the
// whole contract.
type DistanceSensor interface {
	ReadHeight() Height
}

// MotionDriver moves the two-motor drivetrain. Commands are idempotent
// and take effect before the next control tick; the driver keeps no
// state the core depends on. Both motors always run in lockstep
// opposite directions, so the interface speaks desk travel, not motors.
type MotionDriver interface {
	Raise()
	Lower()
	Stop()
}

// Display is the presentation collaborator. It feeds nothing back into
// control decisions.
type Display interface {
	ShowHeight(Height)
	ShowError(ErrCode)
	ShowSaved(Slot, Height)
	Clear()
}
