//go:build tinygo

package main

import (
	"tinygo.org/x/drivers/hcsr04"

	"github.com/DerRheingold/deskd/pkg/desk"
)

// heightSensor reads the desk height off an HC-SR04 pointed at the
// floor. The driver reports millimeters and returns 0 when the echo
// times out, which maps straight onto the height fault sentinel.
type heightSensor struct {
	dev hcsr04.Device
}

var _ desk.DistanceSensor = &heightSensor{}

func newHeightSensor() *heightSensor {
	s := &heightSensor{dev: hcsr04.New(pinSensorTrigger, pinSensorEcho)}
	s.dev.Configure()
	return s
}

func (s *heightSensor) ReadHeight() desk.Height {
	mm := s.dev.ReadDistance()
	if mm <= 0 {
		return desk.HeightFault
	}
	return desk.Height(mm / 10)
}
