//go:build tinygo

package main

import (
	"machine"

	"github.com/DerRheingold/deskd/pkg/desk"
)

// Wiring for the Raspberry Pi Pico carrier board. The buttons close to
// ground against the internal pull-ups, one L293D channel drives each
// leg motor, and the HC-SR04 looks down at the floor from under the
// desktop.
const (
	pinButtonUp    = machine.GP2
	pinButtonDown  = machine.GP3
	pinButtonSit   = machine.GP4
	pinButtonStand = machine.GP5

	pinLeftMotorIn1  = machine.GP6
	pinLeftMotorIn2  = machine.GP7
	pinLeftMotorEn   = machine.GP8
	pinRightMotorIn1 = machine.GP10
	pinRightMotorIn2 = machine.GP11
	pinRightMotorEn  = machine.GP12

	pinSensorTrigger = machine.GP14
	pinSensorEcho    = machine.GP15

	pinDisplayCLK = machine.GP16
	pinDisplayDIO = machine.GP17
)

const (
	// Brightness 0-7 per the TM1637 datasheet.
	displayBrightness = 5

	// One telemetry line every fifth tick, twice a second at the
	// default cadence. The daemon marks the link stale after two
	// seconds of silence.
	telemetryTicks = 5
)

// buttonPins indexes the wired button pins by their logical identity.
var buttonPins = [desk.ButtonCount]machine.Pin{
	desk.ButtonUp:    pinButtonUp,
	desk.ButtonDown:  pinButtonDown,
	desk.ButtonSit:   pinButtonSit,
	desk.ButtonStand: pinButtonStand,
}

func configureButtons() {
	for _, pin := range buttonPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
}
