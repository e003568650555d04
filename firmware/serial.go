//go:build tinygo

package main

import (
	"machine"
	"time"

	"github.com/DerRheingold/deskd/pkg/desk"
)

// Telemetry line format, one line per emit:
//
//	millis,height,mode,err,sit,stand,raiseMs,lowerMs,flags
//
// err is 255 while no error code is displayed. The flags bits mark the
// recorded programs, drivetrain motion and its direction.
const (
	errNone = 255

	flagRaiseRecorded = 1 << 0
	flagLowerRecorded = 1 << 1
	flagMoving        = 1 << 2
	flagMovingRaise   = 1 << 3
)

// Host commands are short lines: a button letter plus a level digit
// (U1, U0, D1, S0, T1, ...) injects a virtual press or release, a lone
// W wipes the settings flash. Anything else is dropped.
var (
	serialBuf [8]byte
	serialLen int
)

func processSerial() {
	for machine.Serial.Buffered() > 0 {
		c, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		if c == '\n' || c == '\r' {
			handleCommand(serialBuf[:serialLen])
			serialLen = 0
			continue
		}
		if c == ' ' || c == '\t' {
			continue
		}
		if serialLen < len(serialBuf) {
			serialBuf[serialLen] = c
			serialLen++
		}
	}
}

func handleCommand(cmd []byte) {
	switch len(cmd) {
	case 1:
		if cmd[0] == 'W' {
			wipeRequested = true
		}
	case 2:
		b, ok := commandButton(cmd[0])
		if !ok {
			return
		}
		switch cmd[1] {
		case '1':
			virtual = virtual.Set(b, true)
		case '0':
			virtual = virtual.Set(b, false)
		}
	}
}

func commandButton(letter byte) (desk.Button, bool) {
	switch letter {
	case 'U':
		return desk.ButtonUp, true
	case 'D':
		return desk.ButtonDown, true
	case 'S':
		return desk.ButtonSit, true
	case 'T':
		return desk.ButtonStand, true
	}
	return 0, false
}

func emitTelemetry(now time.Time) {
	s := ctrl.Settings()

	flags := 0
	if s.Program.RaiseRecorded {
		flags |= flagRaiseRecorded
	}
	if s.Program.LowerRecorded {
		flags |= flagLowerRecorded
	}
	if dir, moving := ctrl.Moving(); moving {
		flags |= flagMoving
		if dir == desk.Raise {
			flags |= flagMovingRaise
		}
	}

	errField := errNone
	if code, ok := display.CurrentError(); ok {
		errField = int(code)
	}

	print(now.Sub(bootTime).Milliseconds())
	print(",")
	print(int(lastHeight))
	print(",")
	print(int(ctrl.Mode()))
	print(",")
	print(errField)
	print(",")
	print(int(s.Calibration.SitHeight))
	print(",")
	print(int(s.Calibration.StandHeight))
	print(",")
	print(s.Program.RaiseDuration.Milliseconds())
	print(",")
	print(s.Program.LowerDuration.Milliseconds())
	print(",")
	print(flags)
	print("\n")
}
